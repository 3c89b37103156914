// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Form limits.
const (
	NameMinLength     = 2
	NameMaxLength     = 50
	PasswordMinLength = 6
	PasswordMaxLength = 100
)

// ValidateSignup checks the signup form before it is sent.
func ValidateSignup(req SignupRequest) ValidationErrors {
	errs := ValidationErrors{}

	name := utf8.RuneCountInString(strings.TrimSpace(req.Name))
	switch {
	case name < NameMinLength:
		errs["name"] = "Name must be at least 2 characters"
	case name > NameMaxLength:
		errs["name"] = "Name must be less than 50 characters"
	}

	if !validEmail(req.Email) {
		errs["email"] = "Invalid email address"
	}

	password := utf8.RuneCountInString(req.Password)
	switch {
	case password < PasswordMinLength:
		errs["password"] = "Password must be at least 6 characters"
	case password > PasswordMaxLength:
		errs["password"] = "Password must be less than 100 characters"
	}

	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		errs["confirmPassword"] = "Passwords do not match"
	}

	if !req.Role.Valid() {
		errs["role"] = "Please select a valid role"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateLogin checks the login form before it is sent.
func ValidateLogin(req LoginRequest) ValidationErrors {
	errs := ValidationErrors{}
	if !validEmail(req.Email) {
		errs["email"] = "Invalid email address"
	}
	if req.Password == "" {
		errs["password"] = "Password is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validEmail accepts a bare address such as a@b.co, without display names.
func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
