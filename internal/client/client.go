// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package client is the session client for the authx HTTP API. It keeps the
// issued token in a TokenStore and attaches it to authenticated requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/authx/internal/model"
)

const defaultTimeout = 15 * time.Second

// Client talks to the authx API.
type Client struct {
	BaseURL string // e.g. http://localhost:8080 or http://localhost:8080/api
	HTTP    *http.Client
	Store   TokenStore
}

// New creates a Client with a default HTTP client.
func New(baseURL string, store TokenStore) *Client {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: defaultTimeout},
		Store:   store,
	}
}

// SignupRequest is the signup form.
type SignupRequest struct {
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"-"`
	Role            model.Role `json:"role"`
}

// LoginRequest is the login form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Message string           `json:"message"`
	Token   string           `json:"token"`
	User    model.PublicUser `json:"user"`
}

// Signup validates the form, registers the user and stores the token.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if errs := ValidateSignup(req); len(errs) > 0 {
		return nil, errs
	}

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", false, req, &resp); err != nil {
		return nil, err
	}
	if err := c.Store.Set(TokenKey, resp.Token); err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}
	return &resp, nil
}

// Login validates the form, authenticates and stores the token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if errs := ValidateLogin(req); len(errs) > 0 {
		return nil, errs
	}

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", false, req, &resp); err != nil {
		return nil, err
	}
	if err := c.Store.Set(TokenKey, resp.Token); err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}
	return &resp, nil
}

// Me returns the user the stored token belongs to.
func (c *Client) Me(ctx context.Context) (*model.PublicUser, error) {
	var resp struct {
		User model.PublicUser `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// CheckAuth resolves the current session. Any failure other than a missing
// token discards the stored token.
func (c *Client) CheckAuth(ctx context.Context) (*model.PublicUser, error) {
	user, err := c.Me(ctx)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, ErrNoToken) {
		return nil, err
	}
	if derr := c.Store.Delete(TokenKey); derr != nil {
		return nil, errors.Join(err, fmt.Errorf("removing token: %w", derr))
	}
	return nil, err
}

// Logout forgets the stored token. Tokens are stateless, so the server is
// not contacted.
func (c *Client) Logout() error {
	return c.Store.Delete(TokenKey)
}

// Dashboard fetches a dashboard route with the stored token.
func (c *Client) Dashboard(ctx context.Context, route string) (map[string]any, error) {
	var resp map[string]any
	if err := c.do(ctx, http.MethodGet, route, true, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, err := c.Store.Get(TokenKey)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
