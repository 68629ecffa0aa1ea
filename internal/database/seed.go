package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Seed populates the database with development data: one neighborhood, an
// ad campaign, a customer with a property and a lead, plus a week of
// rainfall readings for the neighborhood's first zip code. It does nothing
// when neighborhoods already exist.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM neighborhoods").Scan(&count); err != nil {
		return fmt.Errorf("seed check neighborhoods: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var neighborhoodID string
	err = tx.QueryRow(`
		INSERT INTO neighborhoods (name, city, state, zip_codes, soil_type, usda_hardiness_zone,
		                           common_grass_types, avg_home_value, household_count,
		                           customer_count, penetration_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, "Oak Ridge", "Springfield", "IL", pq.Array([]string{"62704", "62711"}), "clay-loam", "5b",
		pq.Array([]string{"Kentucky Bluegrass", "Tall Fescue"}), 325000, 1840, 46, 2.5,
	).Scan(&neighborhoodID)
	if err != nil {
		return fmt.Errorf("seed insert neighborhood: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO ad_campaigns (name, objective, status, budget)
		VALUES ($1, $2, $3, $4)
	`, "Spring Lawn Kickoff", "lead_generation", "draft", 1500); err != nil {
		return fmt.Errorf("seed insert campaign: %w", err)
	}

	var customerID string
	err = tx.QueryRow(`
		INSERT INTO customers (first_name, last_name, email, billing_address, tags, notes, customer_since)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, "Dana", "Whitfield", "dana@example.com", `{"city": "Springfield", "state": "IL"}`,
		pq.Array([]string{"weekly-mowing", "fertilization"}), "Prefers Friday visits.", "2022-04-01",
	).Scan(&customerID)
	if err != nil {
		return fmt.Errorf("seed insert customer: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO properties (customer_id, neighborhood_id, street_address, city, state, zip_code,
		                        lot_size_sqft, building_area_sqft, tree_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, customerID, neighborhoodID, "418 Birch Ln", "Springfield", "IL", "62704", 9800, 2100, 4); err != nil {
		return fmt.Errorf("seed insert property: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO leads (first_name, last_name, email, source, property_size_sqft, services_interested, property_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, "Marco", "Ellis", "marco@example.com", "website", 12000,
		pq.Array([]string{"mowing", "aeration"}), `{"city": "Springfield", "zip": "62711"}`); err != nil {
		return fmt.Errorf("seed insert lead: %w", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	rain := []float64{0, 0.12, 0, 0.35, 0, 0, 0.05}
	for i, inches := range rain {
		day := today.AddDate(0, 0, -i)
		if _, err := tx.Exec(`
			INSERT INTO weather_data (zip_code, date, temp_high_f, temp_low_f, precipitation_inches)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (zip_code, date) DO NOTHING
		`, "62704", day.Format("2006-01-02"), 78-i, 58-i, inches); err != nil {
			return fmt.Errorf("seed insert weather: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with development data",
		"neighborhood", "Oak Ridge",
		"zip_code", "62704",
	)
	return nil
}
