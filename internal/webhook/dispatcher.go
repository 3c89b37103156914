// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/authx/internal/events"
)

// ErrQueueFull is returned when a delivery cannot be queued.
var ErrQueueFull = errors.New("webhook: delivery queue full")

// Dispatcher queues events and delivers them to subscribed endpoints.
// It implements events.Publisher.
type Dispatcher struct {
	endpoints []Endpoint
	logger    *slog.Logger
	client    *http.Client
	cfg       Config
	queue     chan *QueuedDelivery
	wg        sync.WaitGroup
	done      chan struct{}
	mu        sync.RWMutex
	running   bool
}

// QueuedDelivery represents a delivery queued for processing.
type QueuedDelivery struct {
	DeliveryID string
	Event      string
	Payload    []byte
	Endpoint   Endpoint
	Attempts   int
}

// Config holds dispatcher configuration.
type Config struct {
	Workers        int // Number of concurrent delivery workers
	QueueSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	HTTPClient     *http.Client
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        3,
		QueueSize:      100,
		MaxAttempts:    MaxAttempts,
		InitialBackoff: InitialBackoff,
		MaxBackoff:     MaxBackoff,
	}
}

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(endpoints []Endpoint, logger *slog.Logger, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpClient
	}

	return &Dispatcher{
		endpoints: endpoints,
		logger:    logger,
		client:    client,
		cfg:       cfg,
		queue:     make(chan *QueuedDelivery, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// Start starts the dispatcher workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.cfg.Workers, "endpoints", len(d.endpoints))

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the dispatcher and waits for workers to finish.
// Queued deliveries and pending retries are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

// Close stops the dispatcher.
func (d *Dispatcher) Close() error {
	d.Stop()
	return nil
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case delivery := <-d.queue:
			d.processDelivery(ctx, delivery)
		}
	}
}

// Publish queues a delivery for every endpoint subscribed to the event type.
func (d *Dispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		d.logger.Warn("dispatcher not running, cannot dispatch event", "event_type", e.Type)
		return nil
	}

	payload, err := json.Marshal(NewPayload(e))
	if err != nil {
		return err
	}

	var errs []error
	for _, ep := range d.endpoints {
		if !ep.HasEvent(e.Type) {
			continue
		}
		qd := &QueuedDelivery{
			DeliveryID: uuid.NewString(),
			Event:      e.Type,
			Payload:    payload,
			Endpoint:   ep,
		}
		if !d.enqueue(qd) {
			d.logger.Warn("delivery queue full, dropping delivery",
				"delivery_id", qd.DeliveryID,
				"event_type", e.Type)
			errs = append(errs, ErrQueueFull)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) enqueue(qd *QueuedDelivery) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return false
	}
	select {
	case d.queue <- qd:
		return true
	default:
		return false
	}
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	expectedSig := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
