// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/auth"
)

// sendFunc matches smtp.SendMail and is swappable in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig holds connection settings for an SMTP relay.
type SMTPConfig struct {
	Addr     string // host:port
	From     string // sender address
	Username string // empty disables authentication
	Password string
}

// Validate checks that the configuration is usable.
func (cfg SMTPConfig) Validate() error {
	if cfg.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("smtp addr is required")
	}
	if cfg.From == "" {
		return oops.Code("CONFIG_INVALID").Errorf("smtp from address is required")
	}
	return nil
}

// SMTPMailer delivers messages through a single SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send sendFunc
}

var _ auth.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer for the given relay.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}, nil
}

// Send delivers a single message. The context deadline is not plumbed
// into net/smtp; dial timeouts belong to the relay configuration.
func (m *SMTPMailer) Send(ctx context.Context, msg auth.Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("to", msg.To).Wrap(err)
	}
	if msg.To == "" {
		return oops.Code("MAIL_SEND_FAILED").Errorf("recipient is required")
	}

	var relayAuth smtp.Auth
	if m.cfg.Username != "" {
		host := m.cfg.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		relayAuth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	}

	payload := encodeMessage(m.cfg.From, msg)
	if err := m.send(m.cfg.Addr, relayAuth, m.cfg.From, []string{msg.To}, payload); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", msg.To).
			With("relay", m.cfg.Addr).
			Wrap(err)
	}
	return nil
}

// encodeMessage renders an RFC 5322 message body with CRLF line endings.
func encodeMessage(from string, msg auth.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
