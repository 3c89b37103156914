// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/authx/internal/model"
)

const userColumns = "id, name, email, password_hash, role, created_at, updated_at"

// SQLUserStore is a UserStore backed by database/sql.
type SQLUserStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLUserStore creates a SQLUserStore.
func NewSQLUserStore(db *sql.DB, dialect Dialect) *SQLUserStore {
	return &SQLUserStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// FindByEmail returns the user with the given email.
func (s *SQLUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := s.dialect.Rebind("SELECT " + userColumns + " FROM users WHERE email = ?")
	u, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: finding user by email: %w", ErrUnavailable, err)
	}
	return u, nil
}

// FindByID returns the user with the given id.
func (s *SQLUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := s.dialect.Rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: finding user by id: %w", ErrUnavailable, err)
	}
	return u, nil
}

// Insert stores a new user. Missing id, role and timestamps are filled in.
// A unique violation on email is reported as ErrDuplicateEmail.
func (s *SQLUserStore) Insert(ctx context.Context, user *model.User) (*model.User, error) {
	u := *user
	prepareInsert(&u, s.now(), uuid.NewString)

	query := s.dialect.Rebind("INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: inserting user: %w", ErrUnavailable, err)
	}
	return &u, nil
}

// UpdatePasswordHash replaces the stored hash for a user.
func (s *SQLUserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query := s.dialect.Rebind("UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?")
	res, err := s.db.ExecContext(ctx, query, hash, s.now(), id)
	if err != nil {
		return fmt.Errorf("%w: updating password hash: %w", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: updating password hash: %w", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByRole returns the number of users per role. Every valid role is present.
func (s *SQLUserStore) CountByRole(ctx context.Context) (map[model.Role]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT role, COUNT(*) FROM users GROUP BY role")
	if err != nil {
		return nil, fmt.Errorf("%w: counting users: %w", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.Role]int, len(model.Roles))
	for _, r := range model.Roles {
		counts[r] = 0
	}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("%w: scanning role count: %w", ErrUnavailable, err)
		}
		counts[model.Role(role)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: counting users: %w", ErrUnavailable, err)
	}
	return counts, nil
}

// Ping verifies the database connection.
func (s *SQLUserStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
