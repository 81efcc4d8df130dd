// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package httpapi exposes the account service over a JSON HTTP API.
// Handlers translate request bodies into service calls and map the
// service's error kinds onto HTTP status codes; they hold no state of
// their own.
package httpapi
