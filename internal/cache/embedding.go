// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// embedding.go provides a Valkey-backed cache of embedding vectors keyed by
// model and input text. Repeated semantic searches for the same query skip
// the embedding call entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// embeddingKeyPrefix is the Valkey key prefix for cached vectors.
	embeddingKeyPrefix = "embedding:"

	// DefaultEmbeddingTTL is how long a vector stays cached.
	DefaultEmbeddingTTL = 24 * time.Hour
)

// EmbeddingCache stores embedding vectors in Valkey.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewEmbeddingCache creates a cache backed by the given Valkey client.
func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *EmbeddingCache {
	if ttl == 0 {
		ttl = DefaultEmbeddingTTL
	}
	return &EmbeddingCache{client: client, ttl: ttl, prefix: embeddingKeyPrefix}
}

// EmbeddingKey returns the cache key suffix for model and text.
func EmbeddingKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached vector for model and text. Errors count as misses.
func (ec *EmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	key := ec.prefix + EmbeddingKey(model, text)
	val, err := ec.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("embedding cache get error", "key", key, "error", err)
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(val, &vec); err != nil {
		slog.Warn("embedding cache decode error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("embedding cache hit", "model", model)
	return vec, true
}

// Set stores a vector with the configured TTL.
func (ec *EmbeddingCache) Set(ctx context.Context, model, text string, vec []float32) {
	key := ec.prefix + EmbeddingKey(model, text)
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := ec.client.Set(ctx, key, data, ec.ttl).Err(); err != nil {
		slog.Warn("embedding cache set error", "key", key, "error", err)
	}
}

// InvalidateAll removes every cached vector. Call it after switching
// embedding models.
func (ec *EmbeddingCache) InvalidateAll(ctx context.Context) {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := ec.client.Scan(ctx, cursor, ec.prefix+"*", 100).Result()
		if err != nil {
			slog.Warn("embedding cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := ec.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("embedding cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("embedding cache cleared", "deleted", deleted)
	}
}
