// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/keygate/keygate/pkg/errutil"
)

// ResetPath and VerifyPath are the public URL paths embedded in
// dispatched links. The HTTP layer consumes tokens at the same paths.
const (
	ResetPath  = "/auth/password/reset"
	VerifyPath = "/auth/verify/confirm"
)

// dummyPasswordHash is used when an account doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ServiceConfig holds core-level settings that are not collaborator
// dependencies.
type ServiceConfig struct {
	// PublicURL is the externally reachable base URL embedded in
	// reset and verification links.
	PublicURL string
}

// Service orchestrates registration, login, password reset and email
// verification. It holds no mutable state of its own; all durable state
// lives behind AccountRepository, so the service is safe under
// arbitrary concurrent invocation.
type Service struct {
	accounts AccountRepository
	tokens   *TokenService
	hasher   PasswordHasher
	mailer   Mailer
	cfg      ServiceConfig
	logger   *slog.Logger
}

// NewService creates a Service. All collaborators are required.
func NewService(accounts AccountRepository, tokens *TokenService, hasher PasswordHasher, mailer Mailer, cfg ServiceConfig) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("account repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token service is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if mailer == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("mailer is required")
	}
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		mailer:   mailer,
		cfg:      cfg,
		logger:   slog.Default(),
	}, nil
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(accounts AccountRepository, tokens *TokenService, hasher PasswordHasher, mailer Mailer, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	svc, err := NewService(accounts, tokens, hasher, mailer, cfg)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// RegisterInput carries the fields for account registration. Email is
// optional at registration; without one the account cannot use the
// email-login, password-reset or verification flows.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a new unverified account. No session token is issued:
// registration and login are deliberately decoupled.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if in.Password == "" {
		return oops.Code("AUTH_MISSING_FIELD").With("field", "password").Wrap(ErrMissingField)
	}
	if err := ValidateUsername(in.Username); err != nil {
		return err
	}

	_, err := s.accounts.GetByUsername(ctx, in.Username)
	switch {
	case err == nil:
		return oops.Code("AUTH_USERNAME_TAKEN").
			With("username", in.Username).
			Wrap(ErrUsernameTaken)
	case !errors.Is(err, ErrNotFound):
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get account by username").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	var email *string
	if in.Email != "" {
		email = &in.Email
	}

	account, err := NewAccount(in.Username, hash, email)
	if err != nil {
		return err
	}

	// The pre-check above cannot see concurrent registrations; the
	// store's uniqueness constraints are the real guard and surface
	// here as ErrUsernameTaken / ErrEmailTaken.
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) {
			return err
		}
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	return nil
}

// LoginInput carries the credentials for login. Exactly one of Username
// and Email must be set.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Login authenticates an account and returns a signed session token.
// Username lookup accepts unverified accounts; email lookup requires a
// confirmed mailbox and treats unverified accounts as not found.
// Unknown account and wrong password produce the same error, and a dummy
// hash keeps verification time flat for unknown accounts.
func (s *Service) Login(ctx context.Context, in LoginInput) (string, error) {
	lookup := "username"
	if in.Username == "" {
		lookup = "email"
	}

	if in.Password == "" || (in.Username == "" && in.Email == "") {
		return "", oops.Code("AUTH_MISSING_FIELD").Wrap(ErrMissingField)
	}
	if in.Username != "" && in.Email != "" {
		return "", oops.Code("AUTH_AMBIGUOUS_IDENTIFIER").Wrap(ErrAmbiguousIdentifier)
	}

	account, lookupErr := s.resolveForLogin(ctx, in)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	targetHash := dummyPasswordHash
	accountExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			LoginAttempts.WithLabelValues(lookup, ResultError).Inc()
			return "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "resolve account").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
		accountExists = true
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(in.Password, targetHash)
	if verifyErr != nil {
		// For dummy hash verification errors, just treat as invalid
		if !accountExists {
			LoginAttempts.WithLabelValues(lookup, ResultInvalidCredentials).Inc()
			return "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		LoginAttempts.WithLabelValues(lookup, ResultError).Inc()
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// If the account doesn't exist OR the password is wrong, return the same error
	if !accountExists || !valid {
		if accountExists {
			account.RecordFailure()
			if err := s.accounts.Update(ctx, account); err != nil {
				errutil.LogError(s.logger, "failed to record login failure", err)
			}
		}
		LoginAttempts.WithLabelValues(lookup, ResultInvalidCredentials).Inc()
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	// Check lockout AFTER password verification to maintain constant time
	if account.IsLocked() {
		LoginAttempts.WithLabelValues(lookup, ResultLocked).Inc()
		return "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", account.LockedUntil).
			Wrap(ErrAccountLocked)
	}

	account.RecordSuccess()

	// Transparently upgrade hashes produced by an older scheme or
	// weaker parameters.
	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(in.Password); hashErr == nil {
			account.PasswordHash = newHash
		}
	}

	// Login succeeds even if persisting the reset failure count fails.
	if err := s.accounts.Update(ctx, account); err != nil {
		errutil.LogError(s.logger, "failed to update account after login", err)
	}

	token, err := s.tokens.SignSession(account)
	if err != nil {
		LoginAttempts.WithLabelValues(lookup, ResultError).Inc()
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "sign session token").
			Wrap(err)
	}

	LoginAttempts.WithLabelValues(lookup, ResultSuccess).Inc()
	TokensIssued.WithLabelValues(string(PurposeSession)).Inc()
	return token, nil
}

// resolveForLogin applies the lookup policy: username resolves any
// account, email resolves only verified ones.
func (s *Service) resolveForLogin(ctx context.Context, in LoginInput) (*Account, error) {
	if in.Username != "" {
		return s.accounts.GetByUsername(ctx, in.Username)
	}
	account, err := s.accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if !account.EmailVerified {
		// Email login requires a confirmed mailbox; an unverified
		// account is indistinguishable from a missing one.
		return nil, ErrNotFound
	}
	return account, nil
}

// ForgotPassword signs a password-reset token for the account with the
// given email and dispatches a reset link. Reset is allowed for
// unverified accounts too.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return oops.Code("AUTH_MISSING_FIELD").With("field", "email").Wrap(ErrMissingField)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_ACCOUNT_NOT_FOUND").Wrap(ErrAccountNotFound)
		}
		return oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	token, err := s.tokens.SignReset(email)
	if err != nil {
		return oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "sign reset token").
			Wrap(err)
	}
	TokensIssued.WithLabelValues(string(PurposeReset)).Inc()

	msg, err := renderMessage(resetBodyTmpl, email, resetSubject, buildLink(s.cfg.PublicURL, ResetPath, token))
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		DispatchFailures.WithLabelValues(string(PurposeReset)).Inc()
		return oops.Code("AUTH_DELIVERY_FAILED").
			With("kind", "reset").
			Wrap(errors.Join(ErrDeliveryFailed, err))
	}
	return nil
}

// ResetPassword verifies a reset token and persists a new password hash.
// Any token rejection (bad signature, wrong purpose, expired) is
// reported uniformly: the caller cannot distinguish tampered from
// expired.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return oops.Code("AUTH_MISSING_FIELD").With("field", "password").Wrap(ErrMissingField)
	}

	claims, err := s.tokens.Verify(token, PurposeReset)
	if err != nil {
		return oops.Code("AUTH_TOKEN_REJECTED").Wrap(ErrTokenRejected)
	}

	account, err := s.accounts.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Should not normally occur: the token was issued against
			// an existing account.
			return oops.Code("AUTH_ACCOUNT_NOT_FOUND").Wrap(ErrAccountNotFound)
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "update password").
			Wrap(err)
	}
	return nil
}

// RequestVerification signs an email-verification token and dispatches
// a confirmation link.
func (s *Service) RequestVerification(ctx context.Context, email string) error {
	if email == "" {
		return oops.Code("AUTH_MISSING_FIELD").With("field", "email").Wrap(ErrMissingField)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_ACCOUNT_NOT_FOUND").Wrap(ErrAccountNotFound)
		}
		return oops.Code("AUTH_VERIFY_REQUEST_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	if account.EmailVerified {
		return oops.Code("AUTH_ALREADY_VERIFIED").Wrap(ErrAlreadyVerified)
	}

	token, err := s.tokens.SignVerification(email)
	if err != nil {
		return oops.Code("AUTH_VERIFY_REQUEST_FAILED").
			With("operation", "sign verification token").
			Wrap(err)
	}
	TokensIssued.WithLabelValues(string(PurposeVerify)).Inc()

	msg, err := renderMessage(verifyBodyTmpl, email, verifySubject, buildLink(s.cfg.PublicURL, VerifyPath, token))
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		DispatchFailures.WithLabelValues(string(PurposeVerify)).Inc()
		return oops.Code("AUTH_DELIVERY_FAILED").
			With("kind", "verify").
			Wrap(errors.Join(ErrDeliveryFailed, err))
	}
	return nil
}

// ConfirmVerification verifies a verification token and marks the
// account's email as confirmed. First successful confirmation wins;
// repeated confirmation succeeds because MarkVerified is idempotent.
func (s *Service) ConfirmVerification(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token, PurposeVerify)
	if err != nil {
		return oops.Code("AUTH_TOKEN_REJECTED").Wrap(ErrTokenRejected)
	}

	account, err := s.accounts.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_ACCOUNT_NOT_FOUND").Wrap(ErrAccountNotFound)
		}
		return oops.Code("AUTH_VERIFY_CONFIRM_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	if err := s.accounts.MarkVerified(ctx, account.ID); err != nil {
		return oops.Code("AUTH_VERIFY_CONFIRM_FAILED").
			With("operation", "mark verified").
			Wrap(err)
	}
	return nil
}
