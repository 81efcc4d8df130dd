// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/keygate/keygate/internal/auth"
)

// Handler wires the account service into a Gin router.
type Handler struct {
	service *auth.Service
	tokens  *auth.TokenService
	logger  *slog.Logger
}

// NewHandler creates a Handler. A nil logger falls back to the default.
func NewHandler(service *auth.Service, tokens *auth.TokenService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, tokens: tokens, logger: logger}
}

// Router builds the engine with all routes and middleware attached.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(requestLogger(h.logger), gin.Recovery())

	grp := engine.Group("/auth")
	grp.POST("/register", h.register)
	grp.POST("/login", h.login)
	grp.POST("/external", h.loginExternal)
	grp.POST("/password/forgot", h.forgotPassword)
	grp.POST("/password/reset", h.resetPassword)
	grp.POST("/verify/request", h.requestVerification)
	grp.POST("/verify/confirm", h.confirmVerification)
	grp.GET("/me", h.me)

	return engine
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	err := h.service.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusCreated)
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	token, err := h.service.Login(c.Request.Context(), auth.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

type externalLoginRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// loginExternal accepts an identity asserted by an upstream OAuth
// callback. The consent flow itself happens outside this service.
func (h *Handler) loginExternal(c *gin.Context) {
	var req externalLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	token, err := h.service.LoginExternal(c.Request.Context(), auth.ExternalIdentity{
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) requestVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	if err := h.service.RequestVerification(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type confirmRequest struct {
	Token string `json:"token"`
}

func (h *Handler) confirmVerification(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	if err := h.service.ConfirmVerification(c.Request.Context(), req.Token); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verified"})
}

type meResponse struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
}

// me resolves the bearer session token to its identity claims.
func (h *Handler) me(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "bearer token required"})
		return
	}

	claims, err := h.tokens.Verify(token, auth.PurposeSession)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "token rejected"})
		return
	}

	c.JSON(http.StatusOK, meResponse{
		AccountID: claims.Subject,
		Username:  claims.Username,
		Email:     claims.Email,
	})
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
