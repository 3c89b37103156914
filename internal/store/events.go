// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/authx/internal/model"
)

// SQLEventStore is an EventStore backed by the auth_events table.
type SQLEventStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLEventStore creates a SQLEventStore.
func NewSQLEventStore(db *sql.DB, dialect Dialect) *SQLEventStore {
	return &SQLEventStore{db: db, dialect: dialect}
}

// CreateEvent inserts an audit event.
func (s *SQLEventStore) CreateEvent(ctx context.Context, e *model.AuthEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Metadata == "" {
		e.Metadata = "{}"
	}
	if e.Level == "" {
		e.Level = model.EventLevelInfo
	}

	query := s.dialect.Rebind(`INSERT INTO auth_events
		(level, category, type, message, user_id, email, ip_address, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		e.Level, e.Category, e.Type, e.Message, e.UserID, e.Email, e.IPAddress, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: creating event: %w", ErrUnavailable, err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *SQLEventStore) ListEvents(ctx context.Context, limit int) ([]model.AuthEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.dialect.Rebind(`SELECT id, level, category, type, message, user_id, email, ip_address, metadata, created_at
		FROM auth_events ORDER BY created_at DESC, id DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing events: %w", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.AuthEvent
	for rows.Next() {
		var e model.AuthEvent
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Type, &e.Message,
			&e.UserID, &e.Email, &e.IPAddress, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning event: %w", ErrUnavailable, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing events: %w", ErrUnavailable, err)
	}
	return events, nil
}

// DeleteEventsBefore removes events created before the cutoff and returns
// the number of deleted rows.
func (s *SQLEventStore) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	query := s.dialect.Rebind("DELETE FROM auth_events WHERE created_at < ?")
	res, err := s.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: deleting events: %w", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: deleting events: %w", ErrUnavailable, err)
	}
	return n, nil
}
