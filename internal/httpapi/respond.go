// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keygate/keygate/internal/auth"
)

// errorResponse is the error envelope. Messages are fixed per error
// kind; no internal detail ever reaches the wire.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error kind to an HTTP status. Unknown
// errors are infrastructure failures and map to 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingField):
		return http.StatusBadRequest, "missing required field"
	case errors.Is(err, auth.ErrAmbiguousIdentifier):
		return http.StatusBadRequest, "supply exactly one of username or email"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrTokenRejected):
		return http.StatusUnauthorized, "token rejected"
	case errors.Is(err, auth.ErrAccountLocked):
		return http.StatusLocked, "account temporarily locked"
	case errors.Is(err, auth.ErrAccountNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict, "username already taken"
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, "email already taken"
	case errors.Is(err, auth.ErrAlreadyVerified):
		return http.StatusConflict, "account already verified"
	case errors.Is(err, auth.ErrDeliveryFailed):
		return http.StatusBadGateway, "message delivery failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// respondError writes the error envelope for err. Infrastructure
// failures are logged with full context; client errors are not.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusBadGateway {
		logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
