// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/keygate/keygate/internal/auth"
)

// LogMailer writes messages to the log instead of delivering them.
// Intended for local development where no SMTP relay exists.
type LogMailer struct {
	logger *slog.Logger
}

var _ auth.Mailer = (*LogMailer)(nil)

// NewLogMailer creates a mailer that logs instead of sending.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message and always succeeds.
func (m *LogMailer) Send(ctx context.Context, msg auth.Message) error {
	m.logger.InfoContext(ctx, "mail delivery skipped",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body),
	)
	return nil
}
