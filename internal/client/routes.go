// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"strings"

	"github.com/olegiv/authx/internal/model"
)

// Client-side routes.
const (
	RouteHome           = "/"
	RouteLogin          = "/login"
	RouteSignup         = "/signup"
	RouteUserDashboard  = "/dashboard/user"
	RouteAdminDashboard = "/dashboard/admin"
)

// DashboardRoute returns the landing dashboard for a role.
func DashboardRoute(role model.Role) string {
	if role == model.RoleAdmin {
		return RouteAdminDashboard
	}
	return RouteUserDashboard
}

// Guard returns where a visitor asking for route should end up. An empty
// role means there is no session. Routing here is advisory; the server
// enforces roles on its own.
func Guard(role model.Role, route string) string {
	protected := strings.HasPrefix(route, "/dashboard")

	if role == "" {
		if protected {
			return RouteLogin
		}
		return route
	}

	switch {
	case route == RouteAdminDashboard && role != model.RoleAdmin:
		return RouteUserDashboard
	case route == RouteLogin, route == RouteSignup:
		// Already signed in.
		return DashboardRoute(role)
	}
	return route
}
