package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medgrid/dispatch-api/internal/model"
	"github.com/medgrid/dispatch-api/internal/repository"
)

const emergencyColumns = `
	id, condition, status, primary_complaint, additional_details, specialties,
	latitude, longitude, address, requires_icu, requires_or,
	assigned_hospital_id, eta_minutes, distance_km, match_score,
	created_at, updated_at
`

// Create inserts the emergency inside the caller's transaction so the record
// and the capacity decrement commit or roll back together.
func (r *emergencyRepository) Create(ctx context.Context, tx *sqlx.Tx, emergency *model.Emergency) error {
	query := `
		INSERT INTO emergencies (
			id, condition, status, primary_complaint, additional_details, specialties,
			latitude, longitude, address, requires_icu, requires_or,
			assigned_hospital_id, eta_minutes, distance_km, match_score,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	emergency.ID = uuid.New()
	emergency.CreatedAt = time.Now()
	emergency.UpdatedAt = time.Now()

	_, err := tx.ExecContext(ctx, query,
		emergency.ID,
		emergency.Condition,
		emergency.Status,
		emergency.PrimaryComplaint,
		emergency.AdditionalDetails,
		emergency.Specialties,
		emergency.Latitude,
		emergency.Longitude,
		emergency.Address,
		emergency.RequiresICU,
		emergency.RequiresOR,
		emergency.AssignedHospitalID,
		emergency.ETAMinutes,
		emergency.DistanceKm,
		emergency.MatchScore,
		emergency.CreatedAt,
		emergency.UpdatedAt,
	)
	if err != nil {
		mapped := classifyError(err)
		if errors.Is(mapped, repository.ErrConflict) || errors.Is(mapped, repository.ErrInvalid) {
			return mapped
		}
		return fmt.Errorf("failed to create emergency: %w", err)
	}
	return nil
}

func (r *emergencyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Emergency, error) {
	query := `SELECT ` + emergencyColumns + ` FROM emergencies WHERE id = $1`

	var emergency model.Emergency
	err := r.db.GetContext(ctx, &emergency, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get emergency: %w", err)
	}

	if err := r.populate(ctx, []*model.Emergency{&emergency}); err != nil {
		return nil, err
	}
	return &emergency, nil
}

func (r *emergencyRepository) List(ctx context.Context) ([]*model.Emergency, error) {
	query := `SELECT ` + emergencyColumns + ` FROM emergencies ORDER BY created_at DESC`

	var emergencies []*model.Emergency
	if err := r.db.SelectContext(ctx, &emergencies, query); err != nil {
		return nil, fmt.Errorf("failed to list emergencies: %w", err)
	}

	if err := r.populate(ctx, emergencies); err != nil {
		return nil, err
	}
	return emergencies, nil
}

func (r *emergencyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.EmergencyStatus) (*model.Emergency, error) {
	query := `UPDATE emergencies SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update emergency status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, repository.ErrNotFound
	}

	return r.Get(ctx, id)
}

// populate attaches the assigned hospital to each emergency with one query.
func (r *emergencyRepository) populate(ctx context.Context, emergencies []*model.Emergency) error {
	if len(emergencies) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(emergencies))
	seen := make(map[uuid.UUID]bool, len(emergencies))
	for _, e := range emergencies {
		if !seen[e.AssignedHospitalID] {
			seen[e.AssignedHospitalID] = true
			ids = append(ids, e.AssignedHospitalID)
		}
	}

	query := `SELECT ` + hospitalColumns + ` FROM hospitals WHERE id = ANY($1)`

	var hospitals []*model.Hospital
	if err := r.db.SelectContext(ctx, &hospitals, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to load assigned hospitals: %w", err)
	}

	byID := make(map[uuid.UUID]*model.Hospital, len(hospitals))
	for _, h := range hospitals {
		byID[h.ID] = h
	}
	for _, e := range emergencies {
		e.AssignedHospital = byID[e.AssignedHospitalID]
	}
	return nil
}
