// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/auth/postgres"
)

func newTestAccount(username string, email *string) *auth.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &auth.Account{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func cleanupAccount(t *testing.T, id ulid.ULID) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = testPool.Exec(context.Background(),
			`DELETE FROM accounts WHERE id = $1`, id.String())
	})
}

func TestAccountRepository_Create_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("creates new account", func(t *testing.T) {
		account := newTestAccount("create_test_user", nil)

		err := repo.Create(ctx, account)
		require.NoError(t, err)
		cleanupAccount(t, account.ID)

		stored, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, account.ID, stored.ID)
		assert.Equal(t, account.Username, stored.Username)
		assert.Equal(t, account.PasswordHash, stored.PasswordHash)
		assert.False(t, stored.EmailVerified)
	})

	t.Run("creates account with email", func(t *testing.T) {
		email := "create_email@example.com"
		account := newTestAccount("create_email_user", &email)

		err := repo.Create(ctx, account)
		require.NoError(t, err)
		cleanupAccount(t, account.ID)

		stored, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.Email)
		assert.Equal(t, email, *stored.Email)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		account := newTestAccount("dup_username_user", nil)
		require.NoError(t, repo.Create(ctx, account))
		cleanupAccount(t, account.ID)

		dupe := newTestAccount("DUP_USERNAME_USER", nil)
		err := repo.Create(ctx, dupe)
		assert.ErrorIs(t, err, auth.ErrUsernameTaken)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		email := "dup@example.com"
		account := newTestAccount("dup_email_one", &email)
		require.NoError(t, repo.Create(ctx, account))
		cleanupAccount(t, account.ID)

		caseVariant := "DUP@example.com"
		dupe := newTestAccount("dup_email_two", &caseVariant)
		err := repo.Create(ctx, dupe)
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
	})
}

func TestAccountRepository_Lookups_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	email := "lookup@example.com"
	account := newTestAccount("lookup_user", &email)
	require.NoError(t, repo.Create(ctx, account))
	cleanupAccount(t, account.ID)

	t.Run("by username case-insensitive", func(t *testing.T) {
		stored, err := repo.GetByUsername(ctx, "LOOKUP_USER")
		require.NoError(t, err)
		assert.Equal(t, account.ID, stored.ID)
	})

	t.Run("by email case-insensitive", func(t *testing.T) {
		stored, err := repo.GetByEmail(ctx, "Lookup@Example.com")
		require.NoError(t, err)
		assert.Equal(t, account.ID, stored.ID)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := repo.GetByUsername(ctx, "no_such_user")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, ulid.Make())
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("empty username never matches external accounts", func(t *testing.T) {
		external := newTestAccount("", nil)
		externalEmail := "external_lookup@example.com"
		external.Email = &externalEmail
		require.NoError(t, repo.Create(ctx, external))
		cleanupAccount(t, external.ID)

		_, err := repo.GetByUsername(ctx, "")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_Update_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("updates mutable fields", func(t *testing.T) {
		account := newTestAccount("update_user", nil)
		require.NoError(t, repo.Create(ctx, account))
		cleanupAccount(t, account.ID)

		lockedUntil := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
		account.DisplayName = "Updated Name"
		account.EmailVerified = true
		account.FailedAttempts = 3
		account.LockedUntil = &lockedUntil
		account.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

		require.NoError(t, repo.Update(ctx, account))

		stored, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "Updated Name", stored.DisplayName)
		assert.True(t, stored.EmailVerified)
		assert.Equal(t, 3, stored.FailedAttempts)
		require.NotNil(t, stored.LockedUntil)
		assert.WithinDuration(t, lockedUntil, *stored.LockedUntil, time.Second)
	})

	t.Run("missing account", func(t *testing.T) {
		account := newTestAccount("ghost_user", nil)
		err := repo.Update(ctx, account)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_UpdatePassword_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	account := newTestAccount("password_user", nil)
	require.NoError(t, repo.Create(ctx, account))
	cleanupAccount(t, account.ID)

	newHash := "$argon2id$v=19$m=65536,t=1,p=4$bmV3c2FsdA$bmV3aGFzaA"
	require.NoError(t, repo.UpdatePassword(ctx, account.ID, newHash))

	stored, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, newHash, stored.PasswordHash)

	err = repo.UpdatePassword(ctx, ulid.Make(), newHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestAccountRepository_MarkVerified_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	email := "verify_me@example.com"
	account := newTestAccount("verify_user", &email)
	require.NoError(t, repo.Create(ctx, account))
	cleanupAccount(t, account.ID)

	require.NoError(t, repo.MarkVerified(ctx, account.ID))

	stored, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	// Marking again is a no-op, not an error.
	require.NoError(t, repo.MarkVerified(ctx, account.ID))

	err = repo.MarkVerified(ctx, ulid.Make())
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
