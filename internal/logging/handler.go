// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that copies warnings and errors
// into the audit trail.
package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/authx/internal/middleware"
	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/store"
)

// writeTimeout bounds a single audit write.
const writeTimeout = 2 * time.Second

// EventLogHandler is a slog.Handler that wraps another handler and also writes
// WARN and ERROR level logs to the audit trail.
type EventLogHandler struct {
	inner  slog.Handler
	events store.EventStore
	level  slog.Level // Minimum level to forward (default: WARN)
	attrs  []slog.Attr
	group  string
}

// NewEventLogHandler creates a new EventLogHandler that wraps the given handler.
func NewEventLogHandler(inner slog.Handler, events store.EventStore) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, events, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a new EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, events store.EventStore, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner:  inner,
		events: events,
		level:  level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.writeToEventLog(ctx, r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	if name != "" {
		if clone.group != "" {
			clone.group += "."
		}
		clone.group += name
	}
	return &clone
}

func (h *EventLogHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
	}
	return out
}

// writeToEventLog stores a log record as an audit event. The request
// context may already be cancelled, so a detached context is used.
func (h *EventLogHandler) writeToEventLog(ctx context.Context, r slog.Record) {
	attrs := append([]slog.Attr(nil), h.attrs...)
	var recordAttrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		recordAttrs = append(recordAttrs, a)
		return true
	})
	attrs = append(attrs, h.qualify(recordAttrs)...)

	event := &model.AuthEvent{
		Level:     slogLevelToEventLevel(r.Level),
		Category:  model.EventCategorySystem,
		Message:   r.Message,
		CreatedAt: r.Time.UTC(),
	}

	metadata := make(map[string]any, len(attrs)+1)
	for _, a := range attrs {
		switch a.Key {
		case "category":
			event.Category = a.Value.String()
		case "type":
			event.Type = a.Value.String()
		case "user_id":
			event.UserID = a.Value.String()
		case "email":
			event.Email = a.Value.String()
		case "ip", "remote_addr":
			event.IPAddress = a.Value.String()
		default:
			metadata[a.Key] = a.Value.Resolve().Any()
		}
	}
	if event.Category == model.EventCategorySystem {
		event.Category = inferCategory(r.Message)
	}
	if path := middleware.GetRequestPath(ctx); path != "" {
		metadata["path"] = path
	}
	event.Metadata = encodeMetadata(metadata)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	_ = h.events.CreateEvent(writeCtx, event)
}

// slogLevelToEventLevel converts a slog.Level to an audit level.
func slogLevelToEventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// inferCategory guesses a category from the message.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "access denied") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "locked"):
		return model.EventCategorySecurity
	case strings.Contains(msg, "auth") || strings.Contains(msg, "login") || strings.Contains(msg, "token"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "user") || strings.Contains(msg, "signup"):
		return model.EventCategoryUser
	default:
		return model.EventCategorySystem
	}
}

func encodeMetadata(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	for k, v := range m {
		switch v := v.(type) {
		case error:
			m[k] = v.Error()
		case time.Duration:
			m[k] = v.String()
		case []slog.Attr:
			m[k] = slog.GroupValue(v...).String()
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
