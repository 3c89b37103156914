// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for packages that sit above
// the service layer (client, CLI). Lower packages keep their own fixtures to
// avoid import cycles.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/olegiv/authx/internal/auth"
	"github.com/olegiv/authx/internal/handler"
	"github.com/olegiv/authx/internal/middleware"
	"github.com/olegiv/authx/internal/service"
	"github.com/olegiv/authx/internal/store"
)

// TestSecret signs tokens issued by helpers in this package.
const TestSecret = "testutil-secret-that-is-long-enough"

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB creates a migrated SQLite database in a temp dir.
// It is closed automatically when the test ends.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "authx-test.db")
	db, err := store.Open(context.Background(), store.DialectSQLite, dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db, store.DialectSQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// FastHasher returns an argon2id hasher with minimal cost.
func FastHasher() *auth.Hasher {
	return auth.NewHasher(auth.HasherParams{Time: 1, Memory: 1024})
}

// TokenManager returns a token manager signed with TestSecret.
func TokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: []byte(TestSecret),
		TTL:    time.Hour,
		Issuer: "authx",
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return tokens
}

// AuthService wires an AuthService over users with fast hashing and no cache.
func AuthService(t *testing.T, users store.UserStore) *service.AuthService {
	t.Helper()

	svc, err := service.NewAuthService(service.AuthServiceConfig{
		Store:  users,
		Hasher: FastHasher(),
		Tokens: TokenManager(t),
	})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc
}

// APIServer runs the real router over users, mounted at basePath.
func APIServer(t *testing.T, basePath string, users store.UserStore) *httptest.Server {
	t.Helper()

	svc := AuthService(t, users)
	srv := httptest.NewServer(handler.NewRouter(handler.RouterConfig{
		BasePath: basePath,
		Auth:     svc,
		Health:   handler.NewHealthHandler(users, nil, svc),
		Security: middleware.DefaultSecurityHeadersConfig(true),
	}))
	t.Cleanup(srv.Close)
	return srv
}
