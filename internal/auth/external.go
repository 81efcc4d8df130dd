// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// lockedPasswordHash marks accounts created through external identity
// linking. It is a syntactically valid argon2id hash that no password
// can verify against, so such accounts are unreachable through
// credential login.
//
//nolint:gosec // G101: Not a credential; an unmatchable marker hash.
const lockedPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$////////////////////AA$//////////////////////////////////////////8"

// ExternalIdentity is the final result of a third-party consent flow.
// The provider has already verified ownership of the email; the core
// never initiates or inspects the flow itself.
type ExternalIdentity struct {
	Email       string
	DisplayName string
}

// LoginExternal resolves or creates an account for an externally
// verified identity and issues a session token through the same signing
// path as credential login, so the claim shape is identical regardless
// of login origin. Accounts created here are verified immediately:
// third-party-verified mailboxes are trusted directly.
func (s *Service) LoginExternal(ctx context.Context, identity ExternalIdentity) (string, error) {
	if identity.Email == "" {
		return "", oops.Code("AUTH_MISSING_FIELD").With("field", "email").Wrap(ErrMissingField)
	}

	account, err := s.accounts.GetByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, ErrNotFound):
		account, err = s.createExternalAccount(ctx, identity)
		if err != nil {
			return "", err
		}
	case err != nil:
		return "", oops.Code("AUTH_EXTERNAL_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	token, err := s.tokens.SignSession(account)
	if err != nil {
		return "", oops.Code("AUTH_EXTERNAL_LOGIN_FAILED").
			With("operation", "sign session token").
			Wrap(err)
	}

	TokensIssued.WithLabelValues(string(PurposeSession)).Inc()
	return token, nil
}

func (s *Service) createExternalAccount(ctx context.Context, identity ExternalIdentity) (*Account, error) {
	now := time.Now()
	email := identity.Email
	account := &Account{
		ID:            ulid.Make(),
		Email:         &email,
		DisplayName:   identity.DisplayName,
		PasswordHash:  lockedPasswordHash,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// A concurrent linking for the same email may have won the
		// race; re-resolve instead of failing the login.
		if errors.Is(err, ErrEmailTaken) {
			existing, getErr := s.accounts.GetByEmail(ctx, identity.Email)
			if getErr == nil {
				return existing, nil
			}
		}
		return nil, oops.Code("AUTH_EXTERNAL_LOGIN_FAILED").
			With("operation", "create account").
			Wrap(err)
	}
	return account, nil
}
