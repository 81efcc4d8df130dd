// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for authentication metrics.
const (
	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultLocked             = "locked"
	ResultError              = "error"
)

// LoginAttempts is the counter for login attempts by lookup key and result.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keygate_login_attempts_total",
		Help: "Total number of login attempts",
	},
	[]string{"lookup", "result"},
)

// TokensIssued is the counter for signed tokens by purpose.
// Use RegisterMetrics to register this with a Prometheus registry.
var TokensIssued = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keygate_tokens_issued_total",
		Help: "Total number of tokens issued",
	},
	[]string{"purpose"},
)

// DispatchFailures is the counter for notification delivery failures.
// Use RegisterMetrics to register this with a Prometheus registry.
var DispatchFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keygate_dispatch_failures_total",
		Help: "Total number of notification dispatch failures",
	},
	[]string{"kind"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// This must be called at startup to make metrics available on /metrics.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(TokensIssued)
	reg.MustRegister(DispatchFailures)
}
