// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/authx/internal/auth"
	"github.com/olegiv/authx/internal/cache"
	"github.com/olegiv/authx/internal/events"
	"github.com/olegiv/authx/internal/middleware"
	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/service"
	"github.com/olegiv/authx/internal/store"
)

const testSecret = "handler-test-secret-that-is-long-enough"

// flakyStore fails selected operations on demand.
type flakyStore struct {
	store.UserStore
	failFind   atomic.Bool
	failInsert atomic.Bool
	failCount  atomic.Bool
}

var errStoreDown = errors.New("connection refused: db.internal:5432")

func (s *flakyStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	if s.failFind.Load() {
		return nil, errStoreDown
	}
	return s.UserStore.FindByID(ctx, id)
}

func (s *flakyStore) Insert(ctx context.Context, u *model.User) (*model.User, error) {
	if s.failInsert.Load() {
		return nil, errStoreDown
	}
	return s.UserStore.Insert(ctx, u)
}

func (s *flakyStore) CountByRole(ctx context.Context) (map[model.Role]int, error) {
	if s.failCount.Load() {
		return nil, errStoreDown
	}
	return s.UserStore.CountByRole(ctx)
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler http.Handler
	users   *flakyStore
	events  *store.MemoryEventStore
	auth    *service.AuthService
}

type serverOption func(*RouterConfig)

func withBasePath(p string) serverOption {
	return func(c *RouterConfig) { c.BasePath = p }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	users := &flakyStore{UserStore: store.NewMemoryUserStore()}
	eventStore := store.NewMemoryEventStore()

	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: []byte(testSecret), TTL: time.Hour, Issuer: "authx"})
	require.NoError(t, err)

	mc := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mc.Close() })

	protection := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit:       1000,
		IPBurst:           1000,
		MaxFailedAttempts: 3,
		LockoutDuration:   time.Minute,
		AttemptWindow:     time.Minute,
	})

	svc, err := service.NewAuthService(service.AuthServiceConfig{
		Store:      users,
		Hasher:     auth.NewHasher(auth.HasherParams{Time: 1, Memory: 1024}),
		Tokens:     tokens,
		Cache:      mc,
		Events:     events.NewAuditPublisher(eventStore),
		Protection: protection,
	})
	require.NoError(t, err)

	cfg := RouterConfig{
		Auth:            svc,
		Events:          service.NewEventService(eventStore),
		Health:          NewHealthHandler(users, mc, svc),
		LoginProtection: protection,
		Security:        middleware.DefaultSecurityHeadersConfig(true),
		RequestTimeout:  5 * time.Second,
	}
	for _, o := range opts {
		o(&cfg)
	}

	return &testServer{
		handler: NewRouter(cfg),
		users:   users,
		events:  eventStore,
		auth:    svc,
	}
}

// do sends a request and returns the recorder.
func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

// signup registers a user and returns its token.
func (s *testServer) signup(t *testing.T, name, email, password string, role model.Role) string {
	t.Helper()

	w := s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": password, "role": string(role),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody(t, w)["token"].(string)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
