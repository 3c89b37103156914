// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command authctl is a terminal client for the authx API.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olegiv/authx/internal/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in := bufio.NewReader(os.Stdin)
	app := &App{
		Out:          os.Stdout,
		Err:          os.Stderr,
		In:           in,
		ReadPassword: terminalPassword(os.Stdin, in),
		NewClient:    defaultClient,
	}

	os.Exit(app.Run(ctx, os.Args[1:]))
}

// defaultClient builds a client over the per-user session file.
func defaultClient(server, sessionPath string) (*client.Client, error) {
	if sessionPath == "" {
		p, err := client.DefaultTokenPath()
		if err != nil {
			return nil, err
		}
		sessionPath = p
	}
	if server == "" {
		return nil, fmt.Errorf("no server URL; pass -server or set AUTHX_URL")
	}
	return client.New(server, client.NewFileTokenStore(sessionPath)), nil
}
