// store_test.go provides the shared test database helper and the
// integration tests for the PostgreSQL datastore. Tests are skipped if
// PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"verdant/internal/database"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "verdant")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "verdant")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", testDSN())
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// cleanRows deletes rows by id. Call in t.Cleanup().
func cleanRows(t *testing.T, db *sql.DB, table string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		db.Exec("DELETE FROM "+quote(table)+" WHERE id = $1", id)
	}
}

func TestPostgresInsertGet(t *testing.T) {
	db := testDB(t)
	s := NewPostgres(db)
	ctx := context.Background()

	row, err := s.Insert(ctx, "neighborhoods", Row{
		"name":               "Test Hollow",
		"zip_codes":          []string{"99901", "99902"},
		"common_grass_types": []any{"Fescue"},
		"avg_home_value":     410000,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	t.Cleanup(func() { cleanRows(t, db, "neighborhoods", row.ID()) })

	if row.ID() == "" {
		t.Fatal("Insert returned no id")
	}
	if row["created_at"] == nil {
		t.Error("Insert did not return created_at")
	}

	got, err := s.Get(ctx, "neighborhoods", ByID(row.ID()))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.String("name") != "Test Hollow" {
		t.Errorf("name: got %q, want %q", got.String("name"), "Test Hollow")
	}

	byZip, err := s.List(ctx, "neighborhoods", Query{Filters: []Filter{Contains("zip_codes", []string{"99902"})}})
	if err != nil {
		t.Fatalf("List contains: %v", err)
	}
	if len(byZip) != 1 {
		t.Errorf("contains filter: got %d rows, want 1", len(byZip))
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	s := NewPostgres(testDB(t))

	_, err := s.Get(context.Background(), "leads", ByID("00000000-0000-0000-0000-000000000000"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestPostgresUnknownTable(t *testing.T) {
	s := NewPostgres(testDB(t))

	_, err := s.Insert(context.Background(), "no_such_table", Row{"x": 1})
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("got %T %v, want *PersistenceError", err, err)
	}
	if perr.Op != "insert" || perr.Table != "no_such_table" {
		t.Errorf("got op=%q table=%q", perr.Op, perr.Table)
	}
}

func TestPostgresUpsertMerges(t *testing.T) {
	db := testDB(t)
	s := NewPostgres(db)
	ctx := context.Background()

	customer, err := s.Insert(ctx, "customers", Row{"first_name": "Upsert", "last_name": "Test"})
	if err != nil {
		t.Fatalf("Insert customer: %v", err)
	}
	t.Cleanup(func() { cleanRows(t, db, "customers", customer.ID()) })

	vec := make([]float32, 1536)
	vec[0] = 1

	first, err := s.Upsert(ctx, "customer_embeddings", Row{
		"customer_id":    customer.ID(),
		"embedding":      vec,
		"embedding_text": "first",
		"model":          "m1",
	}, "customer_id")
	if err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	second, err := s.Upsert(ctx, "customer_embeddings", Row{
		"customer_id":    customer.ID(),
		"embedding":      vec,
		"embedding_text": "second",
	}, "customer_id")
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	if first.ID() != second.ID() {
		t.Errorf("upsert created a second row: %s != %s", first.ID(), second.ID())
	}
	if second.String("embedding_text") != "second" {
		t.Errorf("embedding_text: got %q, want %q", second.String("embedding_text"), "second")
	}
	if second.String("model") != "m1" {
		t.Errorf("model should be kept by a merge upsert, got %q", second.String("model"))
	}

	rows, err := s.Match(ctx, "search_customers_by_embedding", Row{"query_embedding": vec, "match_count": 5})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	found := false
	for _, r := range rows {
		if r.ID() == customer.ID() {
			found = true
		}
	}
	if !found {
		t.Error("search_customers_by_embedding did not return the embedded customer")
	}
}

func TestPostgresUpdate(t *testing.T) {
	db := testDB(t)
	s := NewPostgres(db)
	ctx := context.Background()

	lead, err := s.Insert(ctx, "leads", Row{"first_name": "Update", "services_interested": []string{"mowing"}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	t.Cleanup(func() { cleanRows(t, db, "leads", lead.ID()) })

	updated, err := s.Update(ctx, "leads", Row{
		"score":         82,
		"score_factors": map[string]any{"engagement": 20},
	}, ByID(lead.ID()))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("Update returned %d rows, want 1", len(updated))
	}
	if updated[0].Float("score") != 82 {
		t.Errorf("score: got %v, want 82", updated[0]["score"])
	}

	if _, err := s.Update(ctx, "leads", Row{"score": 1}); err == nil {
		t.Error("Update without a filter should be refused")
	}
}
