// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package auth provides the authentication and token-issuance core for
// Keygate.
//
// # Domain Types
//
// Account is the single stored entity; create it with NewAccount so
// username validation runs. Tokens are not stored: they are signed,
// self-contained bearer artifacts produced by TokenService, scoped to a
// purpose (session, reset, verify) that is enforced at verification.
//
// # Services
//
// Service coordinates the flows:
//   - Register / Login - credential-based account lifecycle
//   - ForgotPassword / ResetPassword - time-bounded reset tokens
//   - RequestVerification / ConfirmVerification - email confirmation
//   - LoginExternal - third-party identity linking
//
// Every operation returns a sentinel from errors.go on domain failure;
// collaborator failures propagate as generic wrapped errors distinct
// from the domain kinds. The service never retries a failed store or
// dispatch call.
package auth
