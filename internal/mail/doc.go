// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package mail provides Mailer implementations for delivering
// account notifications over SMTP, plus a log-only mailer for
// local development.
package mail
