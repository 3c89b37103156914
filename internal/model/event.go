// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth     = "auth"
	EventCategoryUser     = "user"
	EventCategorySystem   = "system"
	EventCategorySecurity = "security"
)

// Event types published to the message bus and recorded in the audit trail.
const (
	EventUserSignedUp   = "user.signed_up"
	EventUserLoggedIn   = "user.logged_in"
	EventUserLoginFail  = "user.login_failed"
	EventAccountLocked  = "user.account_locked"
	EventPasswordRehash = "user.password_rehashed"
)

// AuthEvent represents an audit trail entry.
type AuthEvent struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Type      string    `json:"type,omitempty"`
	Message   string    `json:"message"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Metadata  string    `json:"metadata"` // JSON string
	CreatedAt time.Time `json:"createdAt"`
}
