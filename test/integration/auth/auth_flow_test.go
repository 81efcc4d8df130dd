// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keygate/keygate/internal/auth"
)

// postJSON sends a JSON body and decodes the JSON response, if any.
func postJSON(path string, body map[string]any) (int, map[string]any) {
	payload, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.Post(env.server.URL+path, "application/json", bytes.NewReader(payload))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

// getMe calls /auth/me with a bearer token.
func getMe(token string) (int, map[string]any) {
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/auth/me", nil)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

// mailToken pulls the token query parameter out of the last captured
// message. Token material is URL-safe, so no unescaping is needed.
func mailToken() string {
	msg, ok := env.mailer.last()
	Expect(ok).To(BeTrue(), "expected a captured message")

	idx := strings.Index(msg.Body, "?token=")
	Expect(idx).To(BeNumerically(">=", 0), "message body should carry a token link")
	token := msg.Body[idx+len("?token="):]
	if end := strings.IndexAny(token, " \r\n"); end >= 0 {
		token = token[:end]
	}
	return token
}

var _ = Describe("Account lifecycle", func() {
	BeforeEach(func() {
		_, err := env.pool.Exec(context.Background(), `DELETE FROM accounts`)
		Expect(err).NotTo(HaveOccurred())
		env.mailer.reset()
	})

	Describe("registration and login", func() {
		It("registers and logs in with username", func() {
			status, _ := postJSON("/auth/register", map[string]any{
				"username": "alice",
				"email":    "alice@example.com",
				"password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusCreated))

			status, body := postJSON("/auth/login", map[string]any{
				"username": "alice",
				"password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusOK))
			token, _ := body["token"].(string)
			Expect(token).NotTo(BeEmpty())

			status, me := getMe(token)
			Expect(status).To(Equal(http.StatusOK))
			Expect(me["username"]).To(Equal("alice"))
			Expect(me["email"]).To(Equal("alice@example.com"))
		})

		It("rejects a duplicate username regardless of case", func() {
			status, _ := postJSON("/auth/register", map[string]any{
				"username": "bob", "password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusCreated))

			status, _ = postJSON("/auth/register", map[string]any{
				"username": "BOB", "password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusConflict))
		})

		It("answers wrong password and unknown account identically", func() {
			status, _ := postJSON("/auth/register", map[string]any{
				"username": "carol", "password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusCreated))

			wrongStatus, wrongBody := postJSON("/auth/login", map[string]any{
				"username": "carol", "password": "not-it",
			})
			unknownStatus, unknownBody := postJSON("/auth/login", map[string]any{
				"username": "nobody", "password": "not-it",
			})
			Expect(wrongStatus).To(Equal(http.StatusUnauthorized))
			Expect(unknownStatus).To(Equal(http.StatusUnauthorized))
			Expect(wrongBody).To(Equal(unknownBody))
		})

		It("refuses email login until the address is verified", func() {
			status, _ := postJSON("/auth/register", map[string]any{
				"username": "dave",
				"email":    "dave@example.com",
				"password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusCreated))

			status, _ = postJSON("/auth/login", map[string]any{
				"email": "dave@example.com", "password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusUnauthorized))

			status, _ = postJSON("/auth/verify/request", map[string]any{
				"email": "dave@example.com",
			})
			Expect(status).To(Equal(http.StatusAccepted))

			status, _ = postJSON("/auth/verify/confirm", map[string]any{
				"token": mailToken(),
			})
			Expect(status).To(Equal(http.StatusOK))

			status, body := postJSON("/auth/login", map[string]any{
				"email": "dave@example.com", "password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["token"]).NotTo(BeEmpty())
		})
	})

	Describe("password reset", func() {
		It("rotates the password through an emailed reset link", func() {
			status, _ := postJSON("/auth/register", map[string]any{
				"username": "erin",
				"email":    "erin@example.com",
				"password": "old-password",
			})
			Expect(status).To(Equal(http.StatusCreated))

			status, _ = postJSON("/auth/password/forgot", map[string]any{
				"email": "erin@example.com",
			})
			Expect(status).To(Equal(http.StatusAccepted))

			msg, ok := env.mailer.last()
			Expect(ok).To(BeTrue())
			Expect(msg.To).To(Equal("erin@example.com"))
			Expect(msg.Body).To(ContainSubstring("https://keygate.test" + auth.ResetPath))

			status, _ = postJSON("/auth/password/reset", map[string]any{
				"token":        mailToken(),
				"new_password": "new-password",
			})
			Expect(status).To(Equal(http.StatusNoContent))

			status, _ = postJSON("/auth/login", map[string]any{
				"username": "erin", "password": "old-password",
			})
			Expect(status).To(Equal(http.StatusUnauthorized))

			status, _ = postJSON("/auth/login", map[string]any{
				"username": "erin", "password": "new-password",
			})
			Expect(status).To(Equal(http.StatusOK))
		})

		It("does not accept a verification token for reset", func() {
			status, _ := postJSON("/auth/register", map[string]any{
				"username": "frank",
				"email":    "frank@example.com",
				"password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusCreated))

			status, _ = postJSON("/auth/verify/request", map[string]any{
				"email": "frank@example.com",
			})
			Expect(status).To(Equal(http.StatusAccepted))

			status, _ = postJSON("/auth/password/reset", map[string]any{
				"token":        mailToken(),
				"new_password": "sneaky",
			})
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("reports unknown addresses on forgot", func() {
			status, _ := postJSON("/auth/password/forgot", map[string]any{
				"email": "nobody@example.com",
			})
			Expect(status).To(Equal(http.StatusNotFound))
		})
	})

	Describe("email verification", func() {
		It("rejects a second verification request once verified", func() {
			status, _ := postJSON("/auth/register", map[string]any{
				"username": "grace",
				"email":    "grace@example.com",
				"password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusCreated))

			status, _ = postJSON("/auth/verify/request", map[string]any{
				"email": "grace@example.com",
			})
			Expect(status).To(Equal(http.StatusAccepted))

			token := mailToken()
			status, _ = postJSON("/auth/verify/confirm", map[string]any{"token": token})
			Expect(status).To(Equal(http.StatusOK))

			// Confirming the same token again is idempotent.
			status, _ = postJSON("/auth/verify/confirm", map[string]any{"token": token})
			Expect(status).To(Equal(http.StatusOK))

			status, _ = postJSON("/auth/verify/request", map[string]any{
				"email": "grace@example.com",
			})
			Expect(status).To(Equal(http.StatusConflict))
		})
	})

	Describe("external identity", func() {
		It("provisions on first login and reuses the account afterwards", func() {
			status, body := postJSON("/auth/external", map[string]any{
				"email":        "heidi@example.com",
				"display_name": "Heidi",
			})
			Expect(status).To(Equal(http.StatusOK))
			first, _ := body["token"].(string)
			Expect(first).NotTo(BeEmpty())

			_, me := getMe(first)
			accountID := me["account_id"]
			Expect(accountID).NotTo(BeEmpty())

			status, body = postJSON("/auth/external", map[string]any{
				"email": "heidi@example.com",
			})
			Expect(status).To(Equal(http.StatusOK))
			second, _ := body["token"].(string)

			_, me = getMe(second)
			Expect(me["account_id"]).To(Equal(accountID))
		})

		It("links to an existing credential account by verified email", func() {
			status, _ := postJSON("/auth/register", map[string]any{
				"username": "ivan",
				"email":    "ivan@example.com",
				"password": "opensesame",
			})
			Expect(status).To(Equal(http.StatusCreated))

			status, body := postJSON("/auth/external", map[string]any{
				"email": "ivan@example.com",
			})
			Expect(status).To(Equal(http.StatusOK))

			token, _ := body["token"].(string)
			_, me := getMe(token)
			Expect(me["username"]).To(Equal("ivan"))
		})
	})
})
