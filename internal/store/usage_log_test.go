// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestUsageLogStoreRecord(t *testing.T) {
	db := testDB(t)
	s := NewUsageLogStore(db)
	ctx := context.Background()

	// A unique template name keeps parallel runs apart.
	tmpl := "test_" + uuid.NewString()
	t.Cleanup(func() {
		db.Exec("DELETE FROM ai_usage_log WHERE template = $1", tmpl)
	})

	s.Record(ctx, UsageEntry{
		Template:     tmpl,
		Backend:      "openai",
		Model:        "gpt-4",
		Stage:        "PERSISTED",
		InputTokens:  10,
		OutputTokens: 20,
		TotalTokens:  30,
	})

	var total int
	err := db.QueryRow("SELECT total_tokens FROM ai_usage_log WHERE template = $1", tmpl).Scan(&total)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 30 {
		t.Errorf("total_tokens: got %d, want 30", total)
	}
}

func TestUsageLogStoreRecentEntries(t *testing.T) {
	db := testDB(t)
	s := NewUsageLogStore(db)
	ctx := context.Background()

	first := "test_" + uuid.NewString()
	second := "test_" + uuid.NewString()
	t.Cleanup(func() {
		db.Exec("DELETE FROM ai_usage_log WHERE template IN ($1, $2)", first, second)
	})

	s.Record(ctx, UsageEntry{Template: first, Backend: "openai", Stage: "PARSED"})
	s.Record(ctx, UsageEntry{Template: second, Backend: "claude", Model: "claude-3-5-sonnet-20241022", Stage: "PERSISTED"})

	entries, err := s.RecentEntries(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEntries: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 entries, got %d", len(entries))
	}
	if entries[0].Template != second {
		t.Errorf("newest entry: got %q, want %q", entries[0].Template, second)
	}
	if entries[1].Model != "" {
		t.Errorf("missing model should scan as empty, got %q", entries[1].Model)
	}
}
