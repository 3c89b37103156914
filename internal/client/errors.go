// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoToken is returned when no token is stored.
	ErrNoToken = errors.New("not logged in")
	// ErrUnauthorized matches 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden matches 403 responses.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable wraps transport failures.
	ErrUnavailable = errors.New("server unavailable")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string            `json:"message"`
	Code       string            `json:"code,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return e.Message
}

// Is maps auth failures onto ErrUnauthorized and ErrForbidden.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}

// ValidationErrors maps field names to client-side validation messages.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	for _, field := range []string{"name", "email", "password", "confirmPassword", "role"} {
		if msg, ok := v[field]; ok {
			return msg
		}
	}
	for _, msg := range v {
		return msg
	}
	return "invalid input"
}
