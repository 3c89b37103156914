// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Delivery configuration constants
const (
	MaxAttempts    = 5                // Maximum number of delivery attempts
	InitialBackoff = 1 * time.Second  // Initial backoff delay
	MaxBackoff     = 5 * time.Minute  // Maximum backoff delay
	RequestTimeout = 10 * time.Second // HTTP request timeout
	MaxResponseLen = 10 * 1024        // Maximum response body kept for logging
	UserAgent      = "authx-webhook/1.0"
)

// Signature and metadata headers sent with every delivery.
const (
	HeaderSignature  = "X-Webhook-Signature"
	HeaderEvent      = "X-Webhook-Event"
	HeaderDeliveryID = "X-Webhook-Delivery-ID"
)

// DeliveryResult represents the result of a delivery attempt.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        error
	ShouldRetry  bool
}

var httpClient = &http.Client{
	Timeout: RequestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// processDelivery attempts a delivery and schedules a retry on failure.
func (d *Dispatcher) processDelivery(ctx context.Context, delivery *QueuedDelivery) {
	result := d.attemptDelivery(ctx, delivery)
	delivery.Attempts++

	if result.Success {
		d.logger.Info("webhook delivered successfully",
			"delivery_id", delivery.DeliveryID,
			"event", delivery.Event,
			"status_code", result.StatusCode)
		return
	}

	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}

	if !result.ShouldRetry || delivery.Attempts >= d.cfg.MaxAttempts {
		d.logger.Warn("webhook delivery marked as dead",
			"delivery_id", delivery.DeliveryID,
			"event", delivery.Event,
			"attempts", delivery.Attempts,
			"reason", errMsg)
		return
	}

	backoff := calculateBackoff(delivery.Attempts, d.cfg.InitialBackoff, d.cfg.MaxBackoff)
	d.logger.Info("webhook delivery scheduled for retry",
		"delivery_id", delivery.DeliveryID,
		"event", delivery.Event,
		"attempt", delivery.Attempts,
		"backoff", backoff.String(),
		"error", errMsg)

	time.AfterFunc(backoff, func() {
		if !d.enqueue(delivery) {
			d.logger.Warn("webhook retry dropped",
				"delivery_id", delivery.DeliveryID,
				"event", delivery.Event)
		}
	})
}

// attemptDelivery performs the actual HTTP POST request.
func (d *Dispatcher) attemptDelivery(ctx context.Context, delivery *QueuedDelivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.Endpoint.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("failed to create request: %w", err),
			ShouldRetry: false, // Bad URL
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderSignature, GenerateSignature(delivery.Payload, delivery.Endpoint.Secret))
	req.Header.Set(HeaderEvent, delivery.Event)
	req.Header.Set(HeaderDeliveryID, delivery.DeliveryID)

	for key, value := range delivery.Endpoint.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("request failed: %w", err),
			ShouldRetry: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	responseBody := string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return DeliveryResult{
			Success:      true,
			StatusCode:   resp.StatusCode,
			ResponseBody: responseBody,
		}
	}

	// 4xx is final except 408 and 429.
	shouldRetry := resp.StatusCode >= 500 ||
		resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests

	return DeliveryResult{
		StatusCode:   resp.StatusCode,
		ResponseBody: responseBody,
		Error:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		ShouldRetry:  shouldRetry,
	}
}

// calculateBackoff returns initial * 2^(attempt-1), capped at limit.
func calculateBackoff(attempt int, initial, limit time.Duration) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	backoff := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if backoff > limit {
		backoff = limit
	}
	return backoff
}
