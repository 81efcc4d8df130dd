// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Token purposes. Tokens are not interchangeable across purposes: a
// reset token must never authenticate a session, and vice versa. The
// purpose is embedded in the claims and checked at verification.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "reset"
	PurposeVerify  Purpose = "verify"
)

// Default token lifetimes.
const (
	DefaultSessionTTL = 24 * time.Hour
	DefaultResetTTL   = time.Hour
	DefaultVerifyTTL  = 24 * time.Hour
)

// Token verification errors. The core collapses both into
// ErrTokenRejected before they reach a caller; the distinction exists
// only for logging and tests.
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// TokenConfig holds the signing secret and expiry windows. It is
// process-wide configuration injected at construction; there is no
// hidden global lookup.
type TokenConfig struct {
	Secret     []byte
	SessionTTL time.Duration
	ResetTTL   time.Duration
	VerifyTTL  time.Duration
}

// Claims is the closed claim set carried by every token. Session tokens
// fill Subject, Username and Email from the account's public attributes;
// reset and verification tokens carry only Email.
type Claims struct {
	jwt.RegisteredClaims
	Purpose  Purpose `json:"purpose"`
	Username string  `json:"username,omitempty"`
	Email    string  `json:"email,omitempty"`
}

// TokenService signs and verifies purpose-scoped bearer tokens. Signing
// and verification are pure computations with no shared mutable state
// and are safe under arbitrary concurrent use.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenService creates a TokenService. Zero TTLs fall back to the
// package defaults. The secret must be non-empty.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("signing secret is required")
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.VerifyTTL == 0 {
		cfg.VerifyTTL = DefaultVerifyTTL
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

// SignSession signs a session token over the account's public identity
// attributes. The claims are an explicit allow-list projection: the
// password hash, verified flag and timestamps are excluded by
// construction, not by omission.
func (t *TokenService) SignSession(account *Account) (string, error) {
	var email string
	if account.Email != nil {
		email = *account.Email
	}
	return t.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: account.ID.String(),
		},
		Purpose:  PurposeSession,
		Username: account.Username,
		Email:    email,
	}, t.cfg.SessionTTL)
}

// SignReset signs a password-reset token over the email.
func (t *TokenService) SignReset(email string) (string, error) {
	return t.sign(Claims{Purpose: PurposeReset, Email: email}, t.cfg.ResetTTL)
}

// SignVerification signs an email-verification token over the email.
func (t *TokenService) SignVerification(email string) (string, error) {
	return t.sign(Claims{Purpose: PurposeVerify, Email: email}, t.cfg.VerifyTTL)
}

func (t *TokenService) sign(claims Claims, ttl time.Duration) (string, error) {
	now := t.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.Secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").
			With("purpose", string(claims.Purpose)).
			Wrap(err)
	}
	return signed, nil
}

// Verify parses and validates a token and checks that it was issued for
// the given purpose. Returns ErrTokenExpired when the encoded expiry has
// elapsed and ErrTokenInvalid for every other rejection, including a
// purpose mismatch. Expiry is evaluated here, at verification time.
func (t *TokenService) Verify(token string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("TOKEN_EXPIRED").Wrap(ErrTokenExpired)
		}
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrTokenInvalid)
	}
	if !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrTokenInvalid)
	}
	if claims.Purpose != purpose {
		return nil, oops.Code("TOKEN_PURPOSE_MISMATCH").
			With("want", string(purpose)).
			Wrap(ErrTokenInvalid)
	}
	return claims, nil
}
