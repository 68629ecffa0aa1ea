// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// usage_log.go records model calls in the database for cost tracking and
// debugging. Each entry captures the template, the backend and model that
// answered, the stage the run reached and the tokens spent.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// UsageEntry is one model call.
type UsageEntry struct {
	ID           int64
	Template     string
	Backend      string
	Model        string
	Stage        string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CreatedAt    time.Time
}

// UsageLogStore handles ai_usage_log operations.
type UsageLogStore struct {
	db *sql.DB
}

// NewUsageLogStore creates a new UsageLogStore.
func NewUsageLogStore(db *sql.DB) *UsageLogStore {
	return &UsageLogStore{db: db}
}

// Record stores a usage entry. Failures are logged, never returned: the
// generation it describes has already succeeded or failed on its own.
func (s *UsageLogStore) Record(ctx context.Context, e UsageEntry) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage_log (template, backend, model, stage, input_tokens, output_tokens, total_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.Template, e.Backend, e.Model, e.Stage, e.InputTokens, e.OutputTokens, e.TotalTokens)
	if err != nil {
		slog.Warn("failed to log model usage",
			"template", e.Template,
			"backend", e.Backend,
			"error", err,
		)
		return
	}
	slog.Debug("model usage logged",
		"template", e.Template,
		"backend", e.Backend,
		"total_tokens", e.TotalTokens,
	)
}

// RecentEntries returns the most recent usage entries, newest first.
func (s *UsageLogStore) RecentEntries(ctx context.Context, limit int) ([]UsageEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template, backend, COALESCE(model, ''), stage,
		       input_tokens, output_tokens, total_tokens, created_at
		FROM ai_usage_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query usage log: %w", err)
	}
	defer rows.Close()

	var entries []UsageEntry
	for rows.Next() {
		var e UsageEntry
		if err := rows.Scan(&e.ID, &e.Template, &e.Backend, &e.Model, &e.Stage,
			&e.InputTokens, &e.OutputTokens, &e.TotalTokens, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
