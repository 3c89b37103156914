// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net"
	"net/http"

	"github.com/olegiv/authx/internal/util"
)

// RemoteIP returns the direct peer address without trusting any headers.
func RemoteIP(r *http.Request) string {
	return util.RemoteHost(r)
}

// ClientIPFunc returns a resolver that honors forwarding headers from the
// given trusted proxies.
func ClientIPFunc(trusted []*net.IPNet) func(*http.Request) string {
	if len(trusted) == 0 {
		return RemoteIP
	}
	return func(r *http.Request) string {
		return util.ClientIP(r, trusted)
	}
}
