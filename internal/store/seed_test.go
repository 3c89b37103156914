// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"strings"
	"testing"

	"github.com/olegiv/authx/internal/model"
)

type fakeHasher struct{}

func (fakeHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func TestSeed(t *testing.T) {
	users := NewMemoryUserStore()
	ctx := context.Background()

	admin, err := Seed(ctx, users, fakeHasher{}, AdminSeed{Password: "changeme1"})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if admin.Email != DefaultAdminEmail || admin.Role != model.RoleAdmin {
		t.Errorf("seeded admin = %+v", admin)
	}
	if !strings.HasPrefix(admin.PasswordHash, "hashed:") {
		t.Errorf("password not hashed: %q", admin.PasswordHash)
	}

	again, err := Seed(ctx, users, fakeHasher{}, AdminSeed{Password: "other"})
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if again.ID != admin.ID {
		t.Errorf("second Seed created a new admin")
	}
	if users.Len() != 1 {
		t.Errorf("users = %d, want 1", users.Len())
	}
}

func TestSeed_RequiresPassword(t *testing.T) {
	if _, err := Seed(context.Background(), NewMemoryUserStore(), fakeHasher{}, AdminSeed{}); err == nil {
		t.Fatal("Seed without password succeeded")
	}
}
