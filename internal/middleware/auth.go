// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/service"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for request data.
const (
	ContextKeyUser        ContextKey = "user"
	ContextKeyRequestPath ContextKey = "request_path"
)

// Error codes returned by the authentication middleware.
const (
	CodeMissingToken = "missing_token"
	CodeInvalidToken = "invalid_token"
	CodeTokenExpired = "token_expired"
	CodeForbidden    = "forbidden"
	CodeInternal     = "internal_error"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireAuth creates middleware that requires a valid bearer token.
// The resolved user is stored in the request context.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				WriteAPIError(w, http.StatusUnauthorized, CodeMissingToken, "Authorization token required", nil)
				return
			}

			user, err := a.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, service.ErrTokenExpired):
				WriteAPIError(w, http.StatusUnauthorized, CodeTokenExpired, "Token expired", nil)
				return
			case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrUserNotFound):
				WriteAPIError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid token", nil)
				return
			default:
				slog.Error("authenticating request", "error", err, "path", r.URL.Path)
				WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Authentication error", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser retrieves the current user from the request context.
// Returns nil if no user is in context.
func GetUser(r *http.Request) *model.User {
	user, _ := r.Context().Value(ContextKeyUser).(*model.User)
	return user
}

// GetUserID returns the current user's ID from context, or "" if not found.
func GetUserID(r *http.Request) string {
	if user := GetUser(r); user != nil {
		return user.ID
	}
	return ""
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// RequestPath creates middleware that stores the request path in the context.
// This is used by the logging handler to include the URL in error logs.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKeyRequestPath, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestPath retrieves the request path from the context.
func GetRequestPath(ctx context.Context) string {
	path, ok := ctx.Value(ContextKeyRequestPath).(string)
	if !ok {
		return ""
	}
	return path
}

// RequireRole creates middleware that allows only the given roles.
// It must run after RequireAuth.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return RequireRoleWithEventLog(nil, roles...)
}

// RequireRoleWithEventLog is RequireRole that also records denials in the
// audit trail when eventService is non-nil.
func RequireRoleWithEventLog(eventService *service.EventService, roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				WriteAPIError(w, http.StatusUnauthorized, CodeMissingToken, "Authorization token required", nil)
				return
			}

			if !user.HasRole(roles...) {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", user.ID,
					"user_role", user.Role,
					"required_roles", roles,
				)

				if eventService != nil {
					metadata := map[string]any{
						"method":    r.Method,
						"path":      r.URL.Path,
						"user_role": user.Role,
					}
					_ = eventService.LogSecurityEvent(r.Context(), "Access denied: insufficient permissions", user.ID, r.RemoteAddr, metadata)
				}

				WriteAPIError(w, http.StatusForbidden, CodeForbidden, "Access denied", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin creates middleware that requires the Admin role.
func RequireAdmin(eventService *service.EventService) func(http.Handler) http.Handler {
	return RequireRoleWithEventLog(eventService, model.RoleAdmin)
}
