// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command authx runs the authentication API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/authx/internal/auth"
	"github.com/olegiv/authx/internal/cache"
	"github.com/olegiv/authx/internal/config"
	"github.com/olegiv/authx/internal/events"
	"github.com/olegiv/authx/internal/geoip"
	"github.com/olegiv/authx/internal/handler"
	"github.com/olegiv/authx/internal/logging"
	"github.com/olegiv/authx/internal/middleware"
	"github.com/olegiv/authx/internal/scheduler"
	"github.com/olegiv/authx/internal/service"
	"github.com/olegiv/authx/internal/store"
	"github.com/olegiv/authx/internal/util"
	"github.com/olegiv/authx/internal/version"
	"github.com/olegiv/authx/internal/webhook"
)

// rateLimiterMaxEntries bounds per-IP limiter state between cleanups.
const rateLimiterMaxEntries = 10000

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "authx - role-based authentication service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_JWT_SECRET       Token signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_DB_DRIVER        sqlite|postgres|mysql|memory (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_DB_DSN           Database DSN (default: ./data/authx.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_BASE_PATH        Mount prefix for the API, e.g. /api (default: none)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_ENV              Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_REDIS_URL        Redis URL for the shared user cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_AMQP_URL         RabbitMQ URL for domain events (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_WEBHOOK_URLS     Comma-separated webhook endpoints (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_WEBHOOK_SECRET   HMAC key for webhook signatures\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_GEOIP_DB         GeoLite2-Country database for login audit (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AUTHX_CORS_ORIGINS     Comma-separated browser origins (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("authx %s\n", version.Get())
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()

	users, eventStore, db, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				slog.Error("error closing database connection", "error", err)
			}
		}()
	}

	// Upgrade logger to also write WARN and ERROR logs to the audit trail
	logger := slog.New(logging.NewEventLogHandler(textHandler, eventStore))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	hasher := auth.NewHasher(auth.HasherParams{
		Time:    cfg.HashTime,
		Memory:  cfg.HashMemoryKB,
		Threads: cfg.HashThreads,
	})

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.JWTTTL,
		Issuer: cfg.JWTIssuer,
	})
	if err != nil {
		return fmt.Errorf("creating token manager: %w", err)
	}

	cacheResult, err := cache.New(cache.Config{
		RedisURL:         cfg.RedisURL,
		Prefix:           cfg.CachePrefix,
		DefaultTTL:       cfg.CacheTTL,
		MaxSize:          cfg.CacheMaxSize,
		FallbackToMemory: true,
	})
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() {
		if err := cacheResult.Cache.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	publisher := events.Fanout{events.NewAuditPublisher(eventStore)}
	if cfg.UseAMQP() {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			// Events are best effort; the audit trail still records them.
			slog.Warn("amqp unavailable, domain events will not be published", "error", err)
		} else {
			publisher = append(publisher, amqpPub)
			slog.Info("publishing domain events", "exchange", cfg.AMQPExchange)
		}
	}
	if cfg.UseWebhooks() {
		endpoints := make([]webhook.Endpoint, 0, len(cfg.WebhookURLs))
		for _, u := range cfg.WebhookURLs {
			endpoints = append(endpoints, webhook.Endpoint{
				URL:    strings.TrimSpace(u),
				Secret: cfg.WebhookSecret,
				Events: cfg.WebhookEvents,
			})
		}
		dispatcher := webhook.NewDispatcher(endpoints, logger, webhook.Config{Workers: cfg.WebhookWorkers})
		dispatcher.Start(ctx)
		publisher = append(publisher, dispatcher)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Error("error closing event publisher", "error", err)
		}
	}()

	trusted, err := util.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parsing trusted proxies: %w", err)
	}
	clientIP := middleware.ClientIPFunc(trusted)

	geo := geoip.NewLookup()
	if err := geo.Init(cfg.GeoIPDBPath); err != nil {
		slog.Warn("geoip disabled", "error", err)
	} else if geo.IsEnabled() {
		slog.Info("geoip database loaded", "path", cfg.GeoIPDBPath)
	}
	defer func() { _ = geo.Close() }()

	lpCfg := middleware.DefaultLoginProtectionConfig()
	lpCfg.ClientIP = clientIP
	loginProtection := middleware.NewLoginProtection(lpCfg)

	authService, err := service.NewAuthService(service.AuthServiceConfig{
		Store:      users,
		Hasher:     hasher,
		Tokens:     tokens,
		Cache:      cacheResult.Cache,
		CacheTTL:   cfg.CacheTTL,
		Events:     publisher,
		Protection: loginProtection,
		GeoIP:      geo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}
	eventService := service.NewEventService(eventStore)

	if cfg.SeedAdmin {
		admin, err := store.Seed(ctx, users, hasher, store.AdminSeed{
			Name:     cfg.AdminName,
			Email:    authService.NormalizeEmail(cfg.AdminEmail),
			Password: cfg.AdminPassword,
		})
		if err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
		slog.Info("admin account ready", "email", admin.Email)
	}

	var rateLimiter *middleware.GlobalRateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, clientIP)
	}

	sched := scheduler.New(logger)
	jobs := []scheduler.Job{
		scheduler.PruneEventsJob(eventService, cfg.EventRetention, logger),
		scheduler.LoginCleanupJob(loginProtection, logger),
	}
	if rateLimiter != nil {
		jobs = append(jobs, scheduler.Job{
			Name:     "rate-limiter-cleanup",
			Schedule: scheduler.LoginCleanupSchedule,
			Run: func(context.Context) error {
				if rateLimiter.Cleanup(rateLimiterMaxEntries) {
					logger.Debug("cleared rate limiter state")
				}
				return nil
			},
		})
	}
	if geo.IsEnabled() {
		jobs = append(jobs, scheduler.GeoIPReloadJob(geo))
	}
	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			return fmt.Errorf("scheduling %s: %w", job.Name, err)
		}
	}
	sched.Start()
	defer sched.Stop()

	router := handler.NewRouter(handler.RouterConfig{
		BasePath:        cfg.BasePath,
		Auth:            authService,
		Events:          eventService,
		Health:          handler.NewHealthHandler(users, cacheResult.Cache, authService),
		ClientIP:        clientIP,
		LoginProtection: loginProtection,
		RateLimiter:     rateLimiter,
		Security:        middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment()),
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
		},
		RequestTimeout: 30 * time.Second,
		LogRequests:    cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", cfg.ServerAddr(),
			"env", cfg.Env,
			"base_path", handler.NormalizeBasePath(cfg.BasePath),
			"cache", cacheResult.Backend,
			"version", version.Get().Version,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
	}

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// openStores returns the user and event stores for the configured driver.
// db is nil for the memory driver.
func openStores(ctx context.Context, cfg *config.Config) (store.UserStore, store.EventStore, *sql.DB, error) {
	if cfg.UseMemoryStore() {
		slog.Warn("using in-memory store; all accounts are lost on restart")
		return store.NewMemoryUserStore(), store.NewMemoryEventStore(), nil, nil
	}

	dialect, err := store.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, nil, nil, err
	}

	if dialect == store.DialectSQLite {
		// Ensure data directory exists
		if dir := filepath.Dir(sqlitePath(cfg.DBDSN)); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
	}

	slog.Info("initializing database", "driver", dialect)
	db, err := store.Open(ctx, dialect, cfg.DBDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing database: %w", err)
	}

	slog.Info("running database migrations")
	if err := store.Migrate(db, dialect); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	return store.NewSQLUserStore(db, dialect), store.NewSQLEventStore(db, dialect), db, nil
}

// sqlitePath strips the file: scheme and query from a SQLite DSN.
func sqlitePath(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	return dsn
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
