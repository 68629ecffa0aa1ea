package memstore

import (
	"context"
	"errors"
	"testing"

	"verdant/internal/store"
)

func TestInsertGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	row, err := s.Insert(ctx, "leads", store.Row{"first_name": "Ana", "score": 10})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if row.ID() == "" || row["created_at"] == nil {
		t.Fatalf("Insert did not fill generated columns: %v", row)
	}

	got, err := s.Get(ctx, "leads", store.ByID(row.ID()))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.String("first_name") != "Ana" {
		t.Errorf("first_name: got %q, want %q", got.String("first_name"), "Ana")
	}
	if got.Float("score") != 10 {
		t.Errorf("score: got %v, want 10", got["score"])
	}

	// Returned rows are copies.
	got["first_name"] = "changed"
	again, _ := s.Get(ctx, "leads", store.ByID(row.ID()))
	if again.String("first_name") != "Ana" {
		t.Error("mutating a returned row changed the stored row")
	}

	if _, err := s.Get(ctx, "leads", store.ByID("missing")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if s.Writes() != 1 {
		t.Errorf("Writes: got %d, want 1", s.Writes())
	}
}

func TestListFilters(t *testing.T) {
	s := New()
	s.Seed("weather_data",
		store.Row{"zip_code": "62704", "date": "2026-05-01", "precipitation_inches": 0.1},
		store.Row{"zip_code": "62704", "date": "2026-05-03", "precipitation_inches": 0.4},
		store.Row{"zip_code": "62704", "date": "2026-05-02", "precipitation_inches": 0.0},
		store.Row{"zip_code": "10001", "date": "2026-05-03", "precipitation_inches": 2.0},
	)
	s.Seed("neighborhoods",
		store.Row{"name": "Oak Ridge", "zip_codes": []string{"62704", "62711"}},
		store.Row{"name": "River Bend", "zip_codes": []string{"62702"}},
	)
	ctx := context.Background()

	tests := []struct {
		name  string
		table string
		q     store.Query
		want  int
	}{
		{"eq", "weather_data", store.Query{Filters: []store.Filter{store.Eq("zip_code", "62704")}}, 3},
		{"eq and gte", "weather_data", store.Query{Filters: []store.Filter{
			store.Eq("zip_code", "62704"), store.Gte("date", "2026-05-02"),
		}}, 2},
		{"limit", "weather_data", store.Query{Limit: 2}, 2},
		{"in", "weather_data", store.Query{Filters: []store.Filter{store.In("zip_code", []string{"10001", "99999"})}}, 1},
		{"contains", "neighborhoods", store.Query{Filters: []store.Filter{store.Contains("zip_codes", []string{"62711"})}}, 1},
		{"ilike", "neighborhoods", store.Query{Filters: []store.Filter{store.ILike("name", "%ridge%")}}, 1},
		{"numeric eq", "weather_data", store.Query{Filters: []store.Filter{store.Eq("precipitation_inches", 2)}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.List(ctx, tt.table, tt.q)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(rows) != tt.want {
				t.Errorf("got %d rows, want %d", len(rows), tt.want)
			}
		})
	}

	rows, _ := s.List(ctx, "weather_data", store.Query{
		Filters: []store.Filter{store.Eq("zip_code", "62704")},
		OrderBy: "date",
		Desc:    true,
	})
	if rows[0].String("date") != "2026-05-03" || rows[2].String("date") != "2026-05-01" {
		t.Errorf("descending order wrong: %v, %v", rows[0]["date"], rows[2]["date"])
	}
}

func TestUpsertMerges(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.Upsert(ctx, "customer_embeddings", store.Row{
		"customer_id": "c-1", "embedding": []float32{1, 0}, "model": "m1", "embedding_text": "a",
	}, "customer_id")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second, err := s.Upsert(ctx, "customer_embeddings", store.Row{
		"customer_id": "c-1", "embedding": []float32{0, 1}, "embedding_text": "b",
	}, "customer_id")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rows := s.Rows("customer_embeddings")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if first.ID() != second.ID() {
		t.Error("upsert changed the row id")
	}
	if rows[0].String("embedding_text") != "b" || rows[0].String("model") != "m1" {
		t.Errorf("merge wrong: %v", rows[0])
	}

	if _, err := s.Upsert(ctx, "customer_embeddings", store.Row{"customer_id": "c-2"}); err == nil {
		t.Error("Upsert without conflict columns should fail")
	}
}

func TestUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()
	seeded := s.Seed("properties", store.Row{"city": "Springfield"}, store.Row{"city": "Peoria"})

	rows, err := s.Update(ctx, "properties", store.Row{"property_condition": "good"}, store.ByID(seeded[0].ID()))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(rows) != 1 || rows[0].String("property_condition") != "good" {
		t.Errorf("Update returned %v", rows)
	}

	other, _ := s.Get(ctx, "properties", store.ByID(seeded[1].ID()))
	if _, ok := other["property_condition"]; ok {
		t.Error("Update touched a row outside the filter")
	}

	if _, err := s.Update(ctx, "properties", store.Row{"city": "x"}); err == nil {
		t.Error("Update without a filter should be refused")
	}
}

func TestFailOn(t *testing.T) {
	s := New()
	boom := errors.New("disk full")
	s.FailOn("insert", "ad_creatives", boom)

	_, err := s.Insert(context.Background(), "ad_creatives", store.Row{"name": "x"})
	var perr *store.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("got %T, want *store.PersistenceError", err)
	}
	if !errors.Is(err, boom) {
		t.Error("PersistenceError should unwrap to the injected error")
	}
	if len(s.Rows("ad_creatives")) != 0 || s.Writes() != 0 {
		t.Error("failed insert stored a row")
	}
}

func TestMatch(t *testing.T) {
	s := New()
	s.Seed("leads", store.Row{"id": "l-1", "first_name": "Ana"})
	s.RegisterMatch("search_similar_leads", func(tables map[string][]store.Row, args store.Row) []store.Row {
		n := int(args.Float("match_count"))
		rows := tables["leads"]
		if len(rows) > n {
			rows = rows[:n]
		}
		return rows
	})

	rows, err := s.Match(context.Background(), "search_similar_leads", store.Row{"query_embedding": []float32{1}, "match_count": 5})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(rows) != 1 || rows[0].ID() != "l-1" {
		t.Errorf("Match returned %v", rows)
	}

	if _, err := s.Match(context.Background(), "nope", nil); err == nil {
		t.Error("unknown function should fail")
	}
}
