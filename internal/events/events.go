// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package events publishes authentication domain events to the audit
// trail and, when configured, to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/store"
)

// Event is an authentication domain event.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	UserID     string         `json:"userId,omitempty"`
	Email      string         `json:"email,omitempty"`
	Role       model.Role     `json:"role,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// New creates an event with a fresh id and timestamp.
func New(eventType string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// Fanout publishes every event to all of its publishers.
type Fanout []Publisher

// Publish delivers to every publisher and joins their errors.
func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AuditPublisher records events in the audit trail.
type AuditPublisher struct {
	store store.EventStore
}

// NewAuditPublisher creates an AuditPublisher.
func NewAuditPublisher(s store.EventStore) *AuditPublisher {
	return &AuditPublisher{store: s}
}

// Publish writes the event as an auth_events row.
func (p *AuditPublisher) Publish(ctx context.Context, e Event) error {
	metadata := "{}"
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			metadata = string(b)
		}
	}

	return p.store.CreateEvent(ctx, &model.AuthEvent{
		Level:     levelFor(e.Type),
		Category:  model.EventCategoryAuth,
		Type:      e.Type,
		Message:   messageFor(e.Type),
		UserID:    e.UserID,
		Email:     e.Email,
		IPAddress: e.IPAddress,
		Metadata:  metadata,
		CreatedAt: e.OccurredAt,
	})
}

// Close does nothing; the store is owned by the caller.
func (p *AuditPublisher) Close() error { return nil }

func levelFor(eventType string) string {
	switch eventType {
	case model.EventUserLoginFail, model.EventAccountLocked:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

func messageFor(eventType string) string {
	switch eventType {
	case model.EventUserSignedUp:
		return "User created successfully"
	case model.EventUserLoggedIn:
		return "Login successful"
	case model.EventUserLoginFail:
		return "Invalid email or password"
	case model.EventAccountLocked:
		return "Account temporarily locked"
	case model.EventPasswordRehash:
		return "Password hash upgraded"
	default:
		return eventType
	}
}
