// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import "context"

// Message is a templated notification addressed to a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages to users. The core treats dispatch as
// fire-and-forget but a delivery failure must propagate to the caller;
// the core never retries a failed dispatch.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
