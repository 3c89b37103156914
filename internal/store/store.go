// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store persists user credentials and the authentication audit
// trail. SQL-backed stores support SQLite, PostgreSQL and MySQL; memory
// stores implement the same contracts for tests and ephemeral deployments.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/olegiv/authx/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned by Insert when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUnavailable wraps failures of the underlying database.
	ErrUnavailable = errors.New("store unavailable")
)

// UserStore is the credential store.
//
// Insert is atomic-or-conflict: when two inserts race on the same email,
// exactly one succeeds and the other returns ErrDuplicateEmail. The
// uniqueness constraint of the backing storage is the authority; callers
// may pre-check with FindByEmail but must not rely on it.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Insert(ctx context.Context, user *model.User) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	CountByRole(ctx context.Context) (map[model.Role]int, error)
	Ping(ctx context.Context) error
}

// EventStore persists audit events.
type EventStore interface {
	CreateEvent(ctx context.Context, event *model.AuthEvent) error
	ListEvents(ctx context.Context, limit int) ([]model.AuthEvent, error)
	DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

// isUniqueViolation reports whether err is a unique constraint violation
// from any supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	// cgo sqlite3 driver (tests) reports the constraint in the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func prepareInsert(user *model.User, now time.Time, newID func() string) {
	if user.ID == "" {
		user.ID = newID()
	}
	if user.Role == "" {
		user.Role = model.DefaultRole
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
}
