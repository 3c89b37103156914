// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olegiv/authx/internal/model"
)

func TestValidateSignup(t *testing.T) {
	valid := SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1", Role: model.RoleUser}

	tests := []struct {
		name      string
		modify    func(*SignupRequest)
		wantField string
		wantMsg   string
	}{
		{"valid", func(*SignupRequest) {}, "", ""},
		{"short name", func(r *SignupRequest) { r.Name = "A" }, "name", "Name must be at least 2 characters"},
		{"blank name", func(r *SignupRequest) { r.Name = "   " }, "name", "Name must be at least 2 characters"},
		{"long name", func(r *SignupRequest) { r.Name = strings.Repeat("a", 51) }, "name", "Name must be less than 50 characters"},
		{"bad email", func(r *SignupRequest) { r.Email = "ada.example.com" }, "email", "Invalid email address"},
		{"display name email", func(r *SignupRequest) { r.Email = "Ada <ada@example.com>" }, "email", "Invalid email address"},
		{"short password", func(r *SignupRequest) { r.Password = "12345" }, "password", "Password must be at least 6 characters"},
		{"long password", func(r *SignupRequest) { r.Password = strings.Repeat("p", 101) }, "password", "Password must be less than 100 characters"},
		{"mismatched confirm", func(r *SignupRequest) { r.ConfirmPassword = "other1" }, "confirmPassword", "Passwords do not match"},
		{"bad role", func(r *SignupRequest) { r.Role = "Root" }, "role", "Please select a valid role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)

			errs := ValidateSignup(req)
			if tt.wantField == "" {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.wantMsg, errs[tt.wantField])
			assert.Equal(t, tt.wantMsg, errs.Error())
		})
	}
}

func TestValidateLogin(t *testing.T) {
	assert.Empty(t, ValidateLogin(LoginRequest{Email: "a@example.com", Password: "x"}))

	errs := ValidateLogin(LoginRequest{})
	assert.Equal(t, "Invalid email address", errs["email"])
	assert.Equal(t, "Password is required", errs["password"])
}
