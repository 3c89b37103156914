// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strconv"

	"github.com/olegiv/authx/internal/middleware"
	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/service"
)

// DashboardHandler serves the role-gated dashboards.
type DashboardHandler struct {
	auth   *service.AuthService
	events *service.EventService
}

// NewDashboardHandler creates a DashboardHandler. events may be nil, in
// which case the audit listing reports an empty trail.
func NewDashboardHandler(auth *service.AuthService, events *service.EventService) *DashboardHandler {
	return &DashboardHandler{auth: auth, events: events}
}

type userDashboardResponse struct {
	Message string           `json:"message"`
	User    model.PublicUser `json:"user"`
}

type adminDashboardResponse struct {
	Message string                  `json:"message"`
	User    model.PublicUser        `json:"user"`
	Stats   *service.DashboardStats `json:"stats"`
}

type eventsResponse struct {
	Events []model.AuthEvent `json:"events"`
}

// User handles GET /dashboard/user.
func (h *DashboardHandler) User(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	writeJSON(w, http.StatusOK, userDashboardResponse{
		Message: "Welcome to the User Dashboard",
		User:    user.Public(),
	})
}

// Admin handles GET /dashboard/admin.
func (h *DashboardHandler) Admin(w http.ResponseWriter, r *http.Request) {
	stats, err := h.auth.DashboardStats(r.Context())
	if err != nil {
		writeInternalError(w, r, "Error loading dashboard", err)
		return
	}

	writeJSON(w, http.StatusOK, adminDashboardResponse{
		Message: "Welcome to the Admin Dashboard",
		User:    middleware.GetUser(r).Public(),
		Stats:   stats,
	})
}

// Events handles GET /dashboard/admin/events?limit=N.
func (h *DashboardHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusOK, eventsResponse{Events: []model.AuthEvent{}})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, CodeValidation, "Invalid limit", map[string]string{"limit": "must be a positive integer"})
			return
		}
		limit = n
	}

	list, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		writeInternalError(w, r, "Error fetching events", err)
		return
	}
	if list == nil {
		list = []model.AuthEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: list})
}
