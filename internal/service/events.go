// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/store"
)

// EventService reads and writes the audit trail.
type EventService struct {
	store store.EventStore
	now   func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(s store.EventStore) *EventService {
	return &EventService{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent creates a new audit entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message, userID, ipAddress string, metadata map[string]any) error {
	metadataJSON := "{}"
	if metadata != nil {
		jsonBytes, err := json.Marshal(metadata)
		if err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	err := s.store.CreateEvent(ctx, &model.AuthEvent{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    userID,
		IPAddress: ipAddress,
		Metadata:  metadataJSON,
		CreatedAt: s.now(),
	})
	if err != nil {
		slog.Debug("failed to log event", "error", err)
		return err
	}
	return nil
}

// LogSecurityEvent logs a warning in the security category.
func (s *EventService) LogSecurityEvent(ctx context.Context, message, userID, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelWarning, model.EventCategorySecurity, message, userID, ipAddress, metadata)
}

// Recent returns the newest events first.
func (s *EventService) Recent(ctx context.Context, limit int) ([]model.AuthEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.store.ListEvents(ctx, limit)
}

// DeleteOldEvents removes events older than the given retention.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.store.DeleteEventsBefore(ctx, s.now().Add(-olderThan))
}
