// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/olegiv/authx/internal/auth"
	"github.com/olegiv/authx/internal/client"
	"github.com/olegiv/authx/internal/config"
	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/service"
	"github.com/olegiv/authx/internal/store"
	"github.com/olegiv/authx/internal/version"
)

const defaultServer = "http://localhost:8080"

// App holds the CLI's I/O so commands can be tested without a terminal.
type App struct {
	Out          io.Writer
	Err          io.Writer
	In           *bufio.Reader
	ReadPassword func(prompt string) (string, error)
	NewClient    func(server, sessionPath string) (*client.Client, error)

	// CreateAdmin overrides the create-admin store for tests.
	CreateAdmin func(ctx context.Context, seed store.AdminSeed) (*model.User, error)
}

const usage = `authctl - terminal client for authx

Usage:
  authctl [global options] <command> [options]

Commands:
  signup         Create an account and sign in
  login          Sign in and store the session token
  me             Show the signed-in user
  logout         Forget the stored session token
  route          Print the dashboard the session lands on
  dashboard      Fetch the dashboard for the signed-in user
  create-admin   Create an Admin account directly in the configured database
  version        Print version information

Global options:
  -server URL    API base URL, including any base path (env AUTHX_URL, default ` + defaultServer + `)
  -session FILE  Session file (default: user config dir/authx/session.json)
`

// Run executes the command line and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	global := flag.NewFlagSet("authctl", flag.ContinueOnError)
	global.SetOutput(a.Err)
	global.Usage = func() { _, _ = fmt.Fprint(a.Err, usage) }

	server := global.String("server", envOr("AUTHX_URL", defaultServer), "API base URL")
	session := global.String("session", "", "session file")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	cmd, cmdArgs := rest[0], rest[1:]

	var err error
	switch cmd {
	case "version":
		_, _ = fmt.Fprintf(a.Out, "authctl %s\n", version.Get())
		return 0
	case "create-admin":
		err = a.createAdmin(ctx, cmdArgs)
	case "signup", "login", "me", "logout", "route", "dashboard":
		var c *client.Client
		c, err = a.NewClient(*server, *session)
		if err == nil {
			err = a.runClientCommand(ctx, c, cmd, cmdArgs)
		}
	case "help", "-h", "--help":
		global.Usage()
		return 0
	default:
		_, _ = fmt.Fprintf(a.Err, "unknown command %q\n\n", cmd)
		global.Usage()
		return 2
	}

	if err != nil {
		a.printError(err)
		return 1
	}
	return 0
}

func (a *App) runClientCommand(ctx context.Context, c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "signup":
		return a.signup(ctx, c, args)
	case "login":
		return a.login(ctx, c, args)
	case "me":
		return a.me(ctx, c)
	case "logout":
		if err := c.Logout(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.Out, "Logged out.")
		return nil
	case "route":
		return a.route(ctx, c, args)
	case "dashboard":
		return a.dashboard(ctx, c)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *App) signup(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	fs.SetOutput(a.Err)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	role := fs.String("role", string(model.RoleUser), "User or Admin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *name == "" {
		if *name, err = a.prompt("Name"); err != nil {
			return err
		}
	}
	if *email == "" {
		if *email, err = a.prompt("Email"); err != nil {
			return err
		}
	}
	password, err := a.ReadPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := a.ReadPassword("Confirm password: ")
	if err != nil {
		return err
	}

	resp, err := c.Signup(ctx, client.SignupRequest{
		Name:            *name,
		Email:           *email,
		Password:        password,
		ConfirmPassword: confirm,
		Role:            model.Role(*role),
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(a.Out, "%s\n", resp.Message)
	a.printUser(&resp.User)
	return nil
}

func (a *App) login(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.Err)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = a.prompt("Email"); err != nil {
			return err
		}
	}
	password, err := a.ReadPassword("Password: ")
	if err != nil {
		return err
	}

	resp, err := c.Login(ctx, client.LoginRequest{Email: *email, Password: password})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(a.Out, "%s\n", resp.Message)
	a.printUser(&resp.User)
	return nil
}

func (a *App) me(ctx context.Context, c *client.Client) error {
	user, err := c.CheckAuth(ctx)
	if err != nil {
		return err
	}
	a.printUser(user)
	return nil
}

func (a *App) route(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	fs.SetOutput(a.Err)
	want := fs.String("to", "", "requested route, e.g. /dashboard/admin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var role model.Role
	user, err := c.CheckAuth(ctx)
	switch {
	case err == nil:
		role = user.Role
	case errors.Is(err, client.ErrNoToken), errors.Is(err, client.ErrUnauthorized):
	default:
		return err
	}

	target := *want
	if target == "" {
		target = client.DashboardRoute(role)
	}
	_, _ = fmt.Fprintln(a.Out, client.Guard(role, target))
	return nil
}

func (a *App) dashboard(ctx context.Context, c *client.Client) error {
	user, err := c.CheckAuth(ctx)
	if err != nil {
		return err
	}

	data, err := c.Dashboard(ctx, client.DashboardRoute(user.Role))
	if err != nil {
		return err
	}

	if msg, ok := data["message"].(string); ok {
		_, _ = fmt.Fprintln(a.Out, msg)
	}
	a.printUser(user)
	if stats, ok := data["stats"].(map[string]any); ok {
		_, _ = fmt.Fprintf(a.Out, "Total users: %v\n", stats["totalUsers"])
		if byRole, ok := stats["usersByRole"].(map[string]any); ok {
			for _, r := range model.Roles {
				_, _ = fmt.Fprintf(a.Out, "  %-6s %v\n", r, byRole[string(r)])
			}
		}
	}
	return nil
}

func (a *App) createAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(a.Err)
	name := fs.String("name", store.DefaultAdminName, "display name")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = a.prompt("Email"); err != nil {
			return err
		}
	}
	password, err := a.ReadPassword("Password: ")
	if err != nil {
		return err
	}
	if len(password) < config.MinAdminPasswordLength {
		return fmt.Errorf("admin password must be at least %d characters", config.MinAdminPasswordLength)
	}

	create := a.CreateAdmin
	if create == nil {
		create = seedConfiguredStore
	}

	user, err := create(ctx, store.AdminSeed{
		Name:     strings.TrimSpace(*name),
		Email:    service.NormalizeEmail(*email),
		Password: password,
	})
	if err != nil {
		return err
	}

	if user.Role != model.RoleAdmin {
		return fmt.Errorf("%s already exists with role %s", user.Email, user.Role)
	}
	_, _ = fmt.Fprintf(a.Out, "Admin account ready: %s\n", user.Email)
	return nil
}

// seedConfiguredStore creates the admin in the database the server uses.
func seedConfiguredStore(ctx context.Context, seed store.AdminSeed) (*model.User, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.UseMemoryStore() {
		return nil, errors.New("create-admin needs a persistent database; AUTHX_DB_DRIVER is memory")
	}

	dialect, err := store.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, dialect, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(db, dialect); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	hasher := auth.NewHasher(auth.HasherParams{
		Time:    cfg.HashTime,
		Memory:  cfg.HashMemoryKB,
		Threads: cfg.HashThreads,
	})
	return store.Seed(ctx, store.NewSQLUserStore(db, dialect), hasher, seed)
}

func (a *App) prompt(label string) (string, error) {
	_, _ = fmt.Fprintf(a.Out, "%s: ", label)
	line, err := a.In.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *App) printUser(u *model.PublicUser) {
	_, _ = fmt.Fprintf(a.Out, "Name:  %s\nEmail: %s\nRole:  %s\n", u.Name, u.Email, u.Role)
}

func (a *App) printError(err error) {
	var verrs client.ValidationErrors
	var apiErr *client.APIError
	switch {
	case errors.As(err, &verrs):
		for field, msg := range verrs {
			_, _ = fmt.Fprintf(a.Err, "%s: %s\n", field, msg)
		}
	case errors.Is(err, client.ErrNoToken):
		_, _ = fmt.Fprintln(a.Err, "Not logged in. Run: authctl login")
	case errors.As(err, &apiErr):
		_, _ = fmt.Fprintf(a.Err, "error: %s\n", apiErr.Message)
		if errors.Is(err, client.ErrUnauthorized) {
			_, _ = fmt.Fprintln(a.Err, "Session is no longer valid. Run: authctl login")
		}
	default:
		_, _ = fmt.Fprintf(a.Err, "error: %v\n", err)
	}
}

// terminalPassword reads without echo from a terminal and falls back to a
// plain line read for piped input.
func terminalPassword(f *os.File, piped *bufio.Reader) func(prompt string) (string, error) {
	fd := int(f.Fd())
	return func(prompt string) (string, error) {
		if !term.IsTerminal(fd) {
			line, err := piped.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				return "", fmt.Errorf("reading password: %w", err)
			}
			return strings.TrimRight(line, "\r\n"), nil
		}

		_, _ = fmt.Fprint(os.Stderr, prompt)
		pw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
