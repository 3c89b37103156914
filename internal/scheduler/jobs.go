// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// EventPruner deletes audit events older than a retention period.
type EventPruner interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// StaleCleaner drops expired in-memory state.
type StaleCleaner interface {
	CleanupStaleEntries() int
}

// Reloader refreshes a file-backed resource.
type Reloader interface {
	Reload() error
}

// PruneEventsJob removes audit events older than retention.
func PruneEventsJob(pruner EventPruner, retention time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:     "prune-events",
		Schedule: PruneEventsSchedule,
		Run: func(ctx context.Context) error {
			deleted, err := pruner.DeleteOldEvents(ctx, retention)
			if err != nil {
				return err
			}
			if deleted > 0 {
				logger.Info("pruned audit events", "deleted", deleted, "retention", retention)
			}
			return nil
		},
	}
}

// LoginCleanupJob drops expired lockouts and oversized limiter state.
func LoginCleanupJob(cleaner StaleCleaner, logger *slog.Logger) Job {
	return Job{
		Name:     "login-protection-cleanup",
		Schedule: LoginCleanupSchedule,
		Run: func(context.Context) error {
			if removed := cleaner.CleanupStaleEntries(); removed > 0 {
				logger.Debug("cleared stale login attempts", "removed", removed)
			}
			return nil
		},
	}
}

// GeoIPReloadJob reopens the GeoIP database after it is replaced on disk.
func GeoIPReloadJob(r Reloader) Job {
	return Job{
		Name:     "geoip-reload",
		Schedule: GeoIPReloadSchedule,
		Run: func(context.Context) error {
			return r.Reload()
		},
	}
}
