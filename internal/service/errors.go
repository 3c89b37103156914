// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/authx/internal/auth"
)

// Errors returned by AuthService. Anything else is unexpected and must be
// reported to clients as a generic server error.
var (
	// ErrDuplicateEmail is returned by Signup when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned by Login for an unknown email and
	// for a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound is returned when a token subject no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountLocked is matched by *LockedError.
	ErrAccountLocked = errors.New("account temporarily locked")

	ErrTokenInvalid = auth.ErrTokenInvalid
	ErrTokenExpired = auth.ErrTokenExpired
)

// ValidationError describes user-correctable input problems.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// LockedError is returned by Login while an account is locked out.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account temporarily locked, retry in %s", e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrAccountLocked) match.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// IsValidation reports whether err is a *ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
