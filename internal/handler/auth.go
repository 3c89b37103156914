// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/authx/internal/middleware"
	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/service"
)

// Error codes returned by the auth endpoints.
const (
	CodeInvalidBody        = "invalid_body"
	CodeValidation         = "validation_error"
	CodeDuplicateEmail     = "duplicate_email"
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountLocked      = "account_locked"
	CodeNotFound           = "not_found"
)

// AuthHandler serves signup, login and the current-user endpoint.
type AuthHandler struct {
	auth     *service.AuthService
	clientIP func(*http.Request) string
}

// NewAuthHandler creates an AuthHandler. clientIP resolves the caller
// address recorded with auth events; nil uses the peer address.
func NewAuthHandler(auth *service.AuthService, clientIP func(*http.Request) string) *AuthHandler {
	if clientIP == nil {
		clientIP = middleware.RemoteIP
	}
	return &AuthHandler{auth: auth, clientIP: clientIP}
}

// authResponse is the body of successful signup and login calls.
type authResponse struct {
	Message string           `json:"message"`
	Token   string           `json:"token"`
	User    model.PublicUser `json:"user"`
}

type userResponse struct {
	User model.PublicUser `json:"user"`
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidBody, "Invalid request body", nil)
		return
	}
	in.IPAddress = h.clientIP(r)
	in.UserAgent = r.UserAgent()

	res, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		if ve, ok := service.IsValidation(err); ok {
			WriteError(w, http.StatusBadRequest, CodeValidation, ve.Message, ve.Fields)
			return
		}
		if errors.Is(err, service.ErrDuplicateEmail) {
			WriteError(w, http.StatusBadRequest, CodeDuplicateEmail, "Email already registered", nil)
			return
		}
		writeInternalError(w, r, "Signup error", err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message: "User created successfully",
		Token:   res.Token,
		User:    res.User.Public(),
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidBody, "Invalid request body", nil)
		return
	}
	in.IPAddress = h.clientIP(r)
	in.UserAgent = r.UserAgent()

	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		var locked *service.LockedError
		switch {
		case errors.As(err, &locked):
			slog.Warn("login attempt on locked account",
				"category", model.EventCategorySecurity,
				"ip", in.IPAddress,
				"retry_after", locked.RetryAfter.String(),
			)
			writeRetryAfter(w, locked.RetryAfter)
			WriteError(w, http.StatusTooManyRequests, CodeAccountLocked,
				"Too many failed login attempts. Please try again later.", nil)
		case errors.Is(err, service.ErrInvalidCredentials):
			WriteError(w, http.StatusBadRequest, CodeInvalidCredentials, "Invalid email or password", nil)
		default:
			if ve, ok := service.IsValidation(err); ok {
				WriteError(w, http.StatusBadRequest, CodeValidation, ve.Message, ve.Fields)
				return
			}
			writeInternalError(w, r, "Login error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message: "Login successful",
		Token:   res.Token,
		User:    res.User.Public(),
	})
}

// Me handles GET /auth/me. It must run behind middleware.RequireAuth.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, middleware.CodeMissingToken, "Authorization token required", nil)
		return
	}

	user, err := h.auth.Me(r.Context(), userID)
	if errors.Is(err, service.ErrUserNotFound) {
		WriteError(w, http.StatusNotFound, CodeNotFound, "User not found", nil)
		return
	}
	if err != nil {
		writeInternalError(w, r, "Error fetching user", err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user.Public()})
}
