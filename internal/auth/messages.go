// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"net/url"
	"strings"
	"text/template"

	"github.com/samber/oops"
)

// Subjects for dispatched notifications.
const (
	resetSubject  = "Reset your password"
	verifySubject = "Confirm your email address"
)

var resetBodyTmpl = template.Must(template.New("reset").Parse(strings.TrimSpace(`
A password reset was requested for this address.

Open the link below to choose a new password. The link expires soon and
can only be used for password reset.

{{.Link}}

If you did not request this, you can ignore this message.
`)))

var verifyBodyTmpl = template.Must(template.New("verify").Parse(strings.TrimSpace(`
Confirm this email address to enable email-based login.

{{.Link}}

If you did not create an account, you can ignore this message.
`)))

// buildLink appends a token query parameter to a path under the public URL.
func buildLink(publicURL, path, token string) string {
	link := strings.TrimSuffix(publicURL, "/") + path
	return link + "?token=" + url.QueryEscape(token)
}

func renderMessage(tmpl *template.Template, to, subject, link string) (Message, error) {
	var body strings.Builder
	if err := tmpl.Execute(&body, struct{ Link string }{Link: link}); err != nil {
		return Message{}, oops.Code("MESSAGE_RENDER_FAILED").
			With("template", tmpl.Name()).
			Wrap(err)
	}
	return Message{To: to, Subject: subject, Body: body.String()}, nil
}
