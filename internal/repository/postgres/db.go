package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/medgrid/dispatch-api/internal/config"
)

func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate applies the idempotent schema. The earthdistance extension backs the
// proximity filter and ordering in the reservation statement.
func migrate(db *sqlx.DB) error {
	schema := `
		CREATE EXTENSION IF NOT EXISTS cube;
		CREATE EXTENSION IF NOT EXISTS earthdistance;

		CREATE TABLE IF NOT EXISTS hospitals (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			address TEXT NOT NULL,
			phone TEXT NOT NULL,
			operating_hours TEXT NOT NULL DEFAULT '24/7',
			total_beds INT NOT NULL CHECK (total_beds >= 0),
			available_beds INT NOT NULL CHECK (available_beds >= 0 AND available_beds <= total_beds),
			total_icu INT NOT NULL DEFAULT 0 CHECK (total_icu >= 0),
			available_icu INT NOT NULL DEFAULT 0 CHECK (available_icu >= 0 AND available_icu <= total_icu),
			total_or INT NOT NULL DEFAULT 0 CHECK (total_or >= 0),
			available_or INT NOT NULL DEFAULT 0 CHECK (available_or >= 0 AND available_or <= total_or),
			specialties TEXT[] NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'Available' CHECK (status IN ('Available', 'Busy', 'Full')),
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_hospitals_location
			ON hospitals USING gist (ll_to_earth(latitude, longitude));

		CREATE TABLE IF NOT EXISTS emergencies (
			id UUID PRIMARY KEY,
			condition TEXT NOT NULL CHECK (condition IN ('MODERATE', 'SEVERE', 'CRITICAL')),
			status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN
				('PENDING', 'ASSIGNED', 'IN_TRANSIT', 'ARRIVED', 'COMPLETED', 'CANCELLED')),
			primary_complaint TEXT NOT NULL,
			additional_details TEXT,
			specialties TEXT[] NOT NULL DEFAULT '{}',
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			address TEXT NOT NULL,
			requires_icu BOOLEAN NOT NULL DEFAULT FALSE,
			requires_or BOOLEAN NOT NULL DEFAULT FALSE,
			assigned_hospital_id UUID NOT NULL REFERENCES hospitals(id),
			eta_minutes INT,
			distance_km DOUBLE PRECISION,
			match_score DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_emergencies_created_at ON emergencies(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_emergencies_hospital ON emergencies(assigned_hospital_id);
	`

	_, err := db.Exec(schema)
	return err
}
