// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/authx/internal/model"
)

// Default admin credentials
const (
	DefaultAdminEmail = "admin@example.com"
	DefaultAdminName  = "Administrator"
)

// PasswordHasher hashes plaintext passwords for seeding.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// AdminSeed describes the admin account created by Seed.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

// Seed creates the admin account if no user with its email exists.
// It returns the existing or created user.
func Seed(ctx context.Context, users UserStore, hasher PasswordHasher, admin AdminSeed) (*model.User, error) {
	if admin.Email == "" {
		admin.Email = DefaultAdminEmail
	}
	if admin.Name == "" {
		admin.Name = DefaultAdminName
	}
	if admin.Password == "" {
		return nil, errors.New("admin password is required for seeding")
	}

	existing, err := users.FindByEmail(ctx, admin.Email)
	if err == nil {
		slog.Info("admin user already exists, skipping seed", "email", existing.Email)
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := hasher.Hash(admin.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := users.Insert(ctx, &model.User{
		Name:         admin.Name,
		Email:        admin.Email,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
	})
	if errors.Is(err, ErrDuplicateEmail) {
		// Another instance seeded concurrently.
		return users.FindByEmail(ctx, admin.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created admin user", "id", user.ID, "email", user.Email)
	return user, nil
}
