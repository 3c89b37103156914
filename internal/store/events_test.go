// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/authx/internal/model"
)

func eventStores(t *testing.T) map[string]EventStore {
	t.Helper()
	return map[string]EventStore{
		"sqlite": NewSQLEventStore(testDB(t), DialectSQLite),
		"memory": NewMemoryEventStore(),
	}
}

func TestEventStore_CreateListPrune(t *testing.T) {
	for name, s := range eventStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()

			old := &model.AuthEvent{
				Category:  model.EventCategoryAuth,
				Type:      model.EventUserLoginFail,
				Level:     model.EventLevelWarning,
				Message:   "Invalid email or password",
				Email:     "a@x.com",
				CreatedAt: now.Add(-48 * time.Hour),
			}
			recent := &model.AuthEvent{
				Category:  model.EventCategoryAuth,
				Type:      model.EventUserLoggedIn,
				Message:   "Login successful",
				UserID:    "u-1",
				Metadata:  `{"browser":"Firefox"}`,
				CreatedAt: now,
			}
			require.NoError(t, s.CreateEvent(ctx, old))
			require.NoError(t, s.CreateEvent(ctx, recent))

			events, err := s.ListEvents(ctx, 10)
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, model.EventUserLoggedIn, events[0].Type)
			assert.Equal(t, model.EventLevelInfo, events[0].Level)
			assert.Equal(t, "{}", events[1].Metadata)

			deleted, err := s.DeleteEventsBefore(ctx, now.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)

			events, err = s.ListEvents(ctx, 10)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, "u-1", events[0].UserID)
		})
	}
}

func TestEventStore_ListLimit(t *testing.T) {
	for name, s := range eventStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				require.NoError(t, s.CreateEvent(ctx, &model.AuthEvent{Category: model.EventCategoryAuth, Message: "m"}))
			}
			events, err := s.ListEvents(ctx, 3)
			require.NoError(t, err)
			assert.Len(t, events, 3)
		})
	}
}
