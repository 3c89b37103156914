// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/store"
	"github.com/olegiv/authx/internal/testutil"
)

// newAPIServer runs the real router over an in-memory store.
func newAPIServer(t *testing.T, basePath string) *httptest.Server {
	t.Helper()
	return testutil.APIServer(t, basePath, store.NewMemoryUserStore())
}

func TestClient_SignupLoginMe(t *testing.T) {
	srv := newAPIServer(t, "/api")
	ctx := context.Background()

	c := New(srv.URL+"/api/", NewMemoryTokenStore())

	resp, err := c.Signup(ctx, SignupRequest{
		Name:            "Ada",
		Email:           "ada@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Role:            model.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "User created successfully", resp.Message)

	stored, err := c.Store.Get(TokenKey)
	require.NoError(t, err)
	assert.Equal(t, resp.Token, stored)

	user, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, model.RoleAdmin, user.Role)
	assert.Equal(t, RouteAdminDashboard, DashboardRoute(user.Role))

	require.NoError(t, c.Logout())
	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	resp, err = c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Login successful", resp.Message)

	dash, err := c.Dashboard(ctx, RouteAdminDashboard)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the Admin Dashboard", dash["message"])
}

func TestClient_ServerErrors(t *testing.T) {
	srv := newAPIServer(t, "")
	ctx := context.Background()
	c := New(srv.URL, NewMemoryTokenStore())

	_, err := c.Signup(ctx, SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1", Role: model.RoleUser})
	require.NoError(t, err)

	_, err = c.Signup(ctx, SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1", Role: model.RoleUser})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Email already registered", apiErr.Message)

	_, err = c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid email or password", apiErr.Error())

	_, err = c.Dashboard(ctx, RouteAdminDashboard)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestClient_CheckAuth(t *testing.T) {
	srv := newAPIServer(t, "")
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		c := New(srv.URL, NewMemoryTokenStore())
		_, err := c.CheckAuth(ctx)
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("rejected token is discarded", func(t *testing.T) {
		tokens := NewMemoryTokenStore()
		require.NoError(t, tokens.Set(TokenKey, "forged.token.value"))

		c := New(srv.URL, tokens)
		_, err := c.CheckAuth(ctx)
		assert.ErrorIs(t, err, ErrUnauthorized)

		_, err = tokens.Get(TokenKey)
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("valid token", func(t *testing.T) {
		c := New(srv.URL, NewMemoryTokenStore())
		_, err := c.Signup(ctx, SignupRequest{Name: "Uma", Email: "uma@example.com", Password: "secret1", Role: model.RoleUser})
		require.NoError(t, err)

		user, err := c.CheckAuth(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Uma", user.Name)
	})
}

func TestClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, NewMemoryTokenStore())
	_, err := c.Login(context.Background(), LoginRequest{Email: "a@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, NewMemoryTokenStore())
	_, err := c.Signup(context.Background(), SignupRequest{Name: "A", Email: "bad", Password: "1", Role: "Root"})

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 4)
	assert.False(t, called)
}

func TestAPIError_Message(t *testing.T) {
	assert.Equal(t, "server returned 502", (&APIError{StatusCode: 502}).Error())
	assert.Equal(t, "Login error", (&APIError{StatusCode: 500, Message: "Login error"}).Error())
}
