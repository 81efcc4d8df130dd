// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import "errors"

// Domain error kinds. Every core operation fails with exactly one of
// these sentinels (possibly wrapped with structured context); callers
// discriminate with errors.Is and must not parse messages.
var (
	// ErrNotFound is returned by repositories when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingField is returned when a required input is absent or empty.
	ErrMissingField = errors.New("missing required field")

	// ErrAmbiguousIdentifier is returned when both username and email are
	// supplied where exactly one lookup key is required.
	ErrAmbiguousIdentifier = errors.New("ambiguous identifier")

	// ErrUsernameTaken is returned when registering a username that already exists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrEmailTaken is returned when an account with the given email already exists.
	ErrEmailTaken = errors.New("email already taken")

	// ErrAccountNotFound is returned when no account matches the given email.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAlreadyVerified is returned when requesting verification for an
	// account whose email is already confirmed.
	ErrAlreadyVerified = errors.New("account already verified")

	// ErrInvalidCredentials is the unified signal for an unknown account or
	// a wrong password. The two cases are deliberately indistinguishable to
	// prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenRejected is the unified signal for a token with a bad
	// signature, a wrong purpose, or an elapsed expiry. The cases are
	// deliberately indistinguishable to avoid leaking token internals.
	ErrTokenRejected = errors.New("token rejected")

	// ErrDeliveryFailed is returned when the notification dispatcher could
	// not deliver a message.
	ErrDeliveryFailed = errors.New("message delivery failed")

	// ErrAccountLocked is returned when too many failed login attempts have
	// temporarily locked the account.
	ErrAccountLocked = errors.New("account temporarily locked")
)
