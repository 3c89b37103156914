// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/service"
	"github.com/olegiv/authx/internal/store"
)

func TestNew(t *testing.T) {
	logger := slog.Default()
	s := New(logger)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cron == nil {
		t.Error("New() scheduler has nil cron")
	}
	if s.logger != logger {
		t.Error("New() scheduler has wrong logger")
	}
	if New(nil).logger == nil {
		t.Error("New(nil) should default the logger")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(slog.Default())
	if err := s.Add(Job{Name: "noop", Schedule: "@hourly", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start()
	s.Stop()
}

func TestValidateSchedule(t *testing.T) {
	valid := []string{"@daily", "@every 10m", "*/5 * * * *", "0 3 * * *"}
	for _, spec := range valid {
		if err := ValidateSchedule(spec); err != nil {
			t.Errorf("ValidateSchedule(%q) = %v", spec, err)
		}
	}
	invalid := []string{"", "every day", "* * *", "61 * * * *"}
	for _, spec := range invalid {
		if err := ValidateSchedule(spec); err == nil {
			t.Errorf("ValidateSchedule(%q) succeeded", spec)
		}
	}
}

func TestScheduler_Add(t *testing.T) {
	s := New(slog.Default())
	run := func(context.Context) error { return nil }

	tests := []struct {
		name    string
		job     Job
		wantErr string
	}{
		{"ok", Job{Name: "a", Schedule: "@hourly", Run: run}, ""},
		{"duplicate", Job{Name: "a", Schedule: "@daily", Run: run}, "already registered"},
		{"no name", Job{Schedule: "@daily", Run: run}, "requires a name"},
		{"no func", Job{Name: "b", Schedule: "@daily"}, "requires a name"},
		{"bad schedule", Job{Name: "c", Schedule: "sometimes", Run: run}, "invalid schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(tt.job)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Add() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Add() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_TriggerAndJobs(t *testing.T) {
	s := New(slog.Default())
	boom := errors.New("boom")
	calls := 0

	_ = s.Add(Job{Name: "ok", Schedule: "@daily", Run: func(context.Context) error { calls++; return nil }})
	_ = s.Add(Job{Name: "fails", Schedule: "@hourly", Run: func(context.Context) error { return boom }})

	if err := s.Trigger("ok"); err != nil {
		t.Fatalf("Trigger(ok) = %v", err)
	}
	if err := s.Trigger("fails"); !errors.Is(err, boom) {
		t.Errorf("Trigger(fails) = %v, want boom", err)
	}
	if err := s.Trigger("missing"); err == nil {
		t.Error("Trigger(missing) succeeded")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	jobs := s.Jobs()
	if len(jobs) != 2 || jobs[0].Name != "fails" || jobs[1].Name != "ok" {
		t.Fatalf("Jobs() = %+v", jobs)
	}
	if jobs[0].LastErr != "boom" || jobs[1].LastErr != "" {
		t.Errorf("LastErr = %q / %q", jobs[0].LastErr, jobs[1].LastErr)
	}
	if jobs[1].LastRun.IsZero() {
		t.Error("LastRun not recorded")
	}
}

func TestPruneEventsJob(t *testing.T) {
	events := store.NewMemoryEventStore()
	ctx := context.Background()
	now := time.Now().UTC()
	_ = events.CreateEvent(ctx, &model.AuthEvent{Category: model.EventCategoryAuth, Message: "old", CreatedAt: now.Add(-40 * 24 * time.Hour)})
	_ = events.CreateEvent(ctx, &model.AuthEvent{Category: model.EventCategoryAuth, Message: "new", CreatedAt: now})

	s := New(slog.Default())
	if err := s.Add(PruneEventsJob(service.NewEventService(events), 30*24*time.Hour, slog.Default())); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("prune-events"); err != nil {
		t.Fatalf("Trigger() = %v", err)
	}

	left, _ := events.ListEvents(ctx, 10)
	if len(left) != 1 || left[0].Message != "new" {
		t.Errorf("remaining events = %+v", left)
	}
}

type countingCleaner struct{ calls int }

func (c *countingCleaner) CleanupStaleEntries() int {
	c.calls++
	return 3
}

func TestLoginCleanupJob(t *testing.T) {
	c := &countingCleaner{}
	job := LoginCleanupJob(c, slog.Default())
	if job.Schedule != LoginCleanupSchedule {
		t.Errorf("Schedule = %q", job.Schedule)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.calls != 1 {
		t.Errorf("calls = %d", c.calls)
	}
}

type reloaderFunc func() error

func (f reloaderFunc) Reload() error { return f() }

func TestGeoIPReloadJob(t *testing.T) {
	boom := errors.New("bad database")
	calls := 0
	job := GeoIPReloadJob(reloaderFunc(func() error {
		calls++
		return boom
	}))
	if job.Schedule != GeoIPReloadSchedule {
		t.Errorf("Schedule = %q", job.Schedule)
	}
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}
