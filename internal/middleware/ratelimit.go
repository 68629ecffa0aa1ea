// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether a client identified by key may make a request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// limiterEntry is one client's token bucket.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-process per-client token bucket limiter. Use it when
// a single instance serves the API.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	idle    time.Duration
	stopCh  chan struct{}
}

// NewRateLimiter allows limit requests per window for each client, with
// bursts up to limit. A background goroutine drops idle clients.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*limiterEntry),
		limit:   rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
		idle:    window,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-rl.stopCh:
				return
			}
		}
	}()

	return rl
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Allow implements Limiter. It never fails.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	return rl.allow(key), nil
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	entry, ok := rl.clients[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// cleanup removes clients not seen for a full window.
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-rl.idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// ValkeyLimiter is a fixed-window counter shared by every instance that
// talks to the same Valkey server.
type ValkeyLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewValkeyLimiter allows limit requests per window for each client.
func NewValkeyLimiter(client *redis.Client, limit int, window time.Duration) *ValkeyLimiter {
	return &ValkeyLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "ratelimit:",
	}
}

// Allow implements Limiter.
func (vl *ValkeyLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := time.Now().UnixNano() / int64(vl.window)
	k := fmt.Sprintf("%s%s:%d", vl.prefix, key, slot)

	pipe := vl.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, vl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("valkey rate limit: %w", err)
	}
	return incr.Val() <= vl.limit, nil
}

// RateLimit rejects clients over the limit with 429. When the limiter
// itself fails the request is let through.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				slog.Warn("rate limiter unavailable", "error", err)
				ok = true
			}
			if !ok {
				writeDetail(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client's IP address, checking X-Forwarded-For
// and X-Real-IP headers for proxied requests.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Leftmost entry is the original client.
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
