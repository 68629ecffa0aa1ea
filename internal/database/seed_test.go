package database

import (
	"testing"
)

func TestSeedIdempotent(t *testing.T) {
	db, err := Connect(testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Seed only writes when neighborhoods is empty, so a second call must be
	// a no-op. Other packages may share the database; nothing is cleared.
	if err := Seed(db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	counts := map[string]string{
		"neighborhoods": "SELECT COUNT(*) FROM neighborhoods",
		"ad_campaigns":  "SELECT COUNT(*) FROM ad_campaigns",
		"weather_data":  "SELECT COUNT(*) FROM weather_data",
	}
	for table, query := range counts {
		var n int
		if err := db.QueryRow(query).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n < 1 {
			t.Errorf("expected at least 1 row in %s, got %d", table, n)
		}
	}

	var oakRidge int
	if err := db.QueryRow("SELECT COUNT(*) FROM neighborhoods WHERE name = 'Oak Ridge'").Scan(&oakRidge); err != nil {
		t.Fatalf("count Oak Ridge: %v", err)
	}
	if oakRidge > 1 {
		t.Errorf("seed ran twice: %d Oak Ridge rows", oakRidge)
	}
}
