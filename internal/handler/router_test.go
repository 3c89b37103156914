// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/authx/internal/middleware"
)

func TestNormalizeBasePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"  ", ""},
		{"api", "/api"},
		{"/api/", "/api"},
		{"/api/v1", "/api/v1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeBasePath(tt.in), "NormalizeBasePath(%q)", tt.in)
	}
}

func TestRouter_BasePath(t *testing.T) {
	srv := newTestServer(t, withBasePath("/api/"))

	body := map[string]string{"name": "Ada", "email": "ada@example.com", "password": "secret1", "role": "User"}

	w := srv.do(t, http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = srv.do(t, http.MethodPost, "/auth/signup", "", body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Probes are not prefixed.
	w = srv.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_JSONErrors(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeBody(t, w)["code"])

	w = srv.do(t, http.MethodGet, "/auth/login", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "method_not_allowed", decodeBody(t, w)["code"])
}

func TestRouter_SecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/health/live", "", nil)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestRouter_CORS(t *testing.T) {
	srv := newTestServer(t, func(c *RouterConfig) {
		c.CORS = middleware.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}
	})

	req := newRequest(http.MethodOptions, "/auth/login")
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(srv.handler, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = newRequest(http.MethodOptions, "/auth/login")
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = serve(srv.handler, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_LoginRateLimit(t *testing.T) {
	srv := newTestServer(t, func(c *RouterConfig) {
		c.LoginProtection = middleware.NewLoginProtection(middleware.LoginProtectionConfig{
			IPRateLimit: 0.001,
			IPBurst:     2,
		})
	})

	creds := map[string]string{"email": "ada@example.com", "password": "secret1"}
	for i := 0; i < 2; i++ {
		w := srv.do(t, http.MethodPost, "/auth/login", "", creds)
		require.NotEqual(t, http.StatusTooManyRequests, w.Code)
	}

	w := srv.do(t, http.MethodPost, "/auth/login", "", creds)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limit_exceeded", decodeBody(t, w)["code"])
}

// TestSignupLoginMeScenario walks the full flow a client goes through.
func TestSignupLoginMeScenario(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Grace", "email": "grace@example.com", "password": "hopper1", "role": "Admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	signupUser := decodeBody(t, w)["user"].(map[string]any)

	w = srv.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Grace Again", "email": "grace@example.com", "password": "hopper2", "role": "User",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", decodeBody(t, w)["message"])

	w = srv.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "grace@example.com", "password": "hopper1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decodeBody(t, w)["token"].(string)

	w = srv.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	meUser := decodeBody(t, w)["user"].(map[string]any)
	assert.Equal(t, signupUser["id"], meUser["id"])
	assert.Equal(t, "Admin", meUser["role"])

	w = srv.do(t, http.MethodGet, "/dashboard/admin", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
