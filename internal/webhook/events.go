// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook delivers authentication events to HTTP endpoints as
// HMAC-signed JSON POSTs with retry.
package webhook

import (
	"time"

	"github.com/olegiv/authx/internal/events"
)

// Payload is the JSON body posted to an endpoint.
type Payload struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Data      events.Event `json:"data"`
}

// NewPayload wraps an event for delivery.
func NewPayload(e events.Event) Payload {
	ts := e.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Payload{Type: e.Type, Timestamp: ts, Data: e}
}

// Endpoint is a webhook subscriber.
type Endpoint struct {
	URL     string
	Secret  string
	Events  []string // empty subscribes to every event
	Headers map[string]string
}

// HasEvent checks if the endpoint is subscribed to an event type.
func (e Endpoint) HasEvent(eventType string) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, ev := range e.Events {
		if ev == eventType || ev == "*" {
			return true
		}
	}
	return false
}
