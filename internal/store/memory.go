// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/authx/internal/model"
)

// MemoryUserStore is an in-process UserStore. It is safe for concurrent use.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string // email -> id
	now     func() time.Time
}

// NewMemoryUserStore creates an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FindByEmail returns a copy of the user with the given email.
func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := *s.byID[id]
	return &u, nil
}

// FindByID returns a copy of the user with the given id.
func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

// Insert stores a new user; the email check and the write happen under one lock.
func (s *MemoryUserStore) Insert(_ context.Context, user *model.User) (*model.User, error) {
	u := *user
	prepareInsert(&u, s.now(), uuid.NewString)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[u.Email]; exists {
		return nil, ErrDuplicateEmail
	}
	if _, exists := s.byID[u.ID]; exists {
		return nil, ErrDuplicateEmail
	}

	stored := u
	s.byID[u.ID] = &stored
	s.byEmail[u.Email] = u.ID
	return &u, nil
}

// UpdatePasswordHash replaces the stored hash for a user.
func (s *MemoryUserStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	return nil
}

// CountByRole returns the number of users per role.
func (s *MemoryUserStore) CountByRole(_ context.Context) (map[model.Role]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[model.Role]int, len(model.Roles))
	for _, r := range model.Roles {
		counts[r] = 0
	}
	for _, u := range s.byID {
		counts[u.Role]++
	}
	return counts, nil
}

// Ping always succeeds.
func (s *MemoryUserStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored users.
func (s *MemoryUserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// MemoryEventStore is an in-process EventStore.
type MemoryEventStore struct {
	mu     sync.Mutex
	events []model.AuthEvent
	nextID int64
}

// NewMemoryEventStore creates an empty MemoryEventStore.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

// CreateEvent appends an event.
func (s *MemoryEventStore) CreateEvent(_ context.Context, e *model.AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e.ID = s.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Metadata == "" {
		e.Metadata = "{}"
	}
	if e.Level == "" {
		e.Level = model.EventLevelInfo
	}
	s.events = append(s.events, *e)
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *MemoryEventStore) ListEvents(_ context.Context, limit int) ([]model.AuthEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.AuthEvent, len(s.events))
	copy(out, s.events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteEventsBefore removes events created before the cutoff.
func (s *MemoryEventStore) DeleteEventsBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, e := range s.events {
		if e.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return deleted, nil
}
