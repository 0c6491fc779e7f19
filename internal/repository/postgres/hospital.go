package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jmoiron/sqlx"

	"github.com/medgrid/dispatch-api/internal/model"
	"github.com/medgrid/dispatch-api/internal/repository"
)

const hospitalColumns = `
	id, name, address, phone, operating_hours,
	total_beds, available_beds, total_icu, available_icu, total_or, available_or,
	specialties, status, latitude, longitude, created_at, updated_at
`

func (r *hospitalRepository) Create(ctx context.Context, hospital *model.Hospital) error {
	query := `
		INSERT INTO hospitals (
			id, name, address, phone, operating_hours,
			total_beds, available_beds, total_icu, available_icu, total_or, available_or,
			specialties, status, latitude, longitude, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	hospital.ID = uuid.New()
	hospital.CreatedAt = time.Now()
	hospital.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		hospital.ID,
		hospital.Name,
		hospital.Address,
		hospital.Phone,
		hospital.OperatingHours,
		hospital.TotalBeds,
		hospital.AvailableBeds,
		hospital.TotalICU,
		hospital.AvailableICU,
		hospital.TotalOR,
		hospital.AvailableOR,
		hospital.Specialties,
		hospital.Status,
		hospital.Latitude,
		hospital.Longitude,
		hospital.CreatedAt,
		hospital.UpdatedAt,
	)
	if err != nil {
		if mapped := classifyError(err); errors.Is(mapped, repository.ErrInvalid) {
			return mapped
		}
		return fmt.Errorf("failed to create hospital: %w", err)
	}
	return nil
}

func (r *hospitalRepository) Get(ctx context.Context, id uuid.UUID) (*model.Hospital, error) {
	query := `SELECT ` + hospitalColumns + ` FROM hospitals WHERE id = $1`

	var hospital model.Hospital
	err := r.db.GetContext(ctx, &hospital, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	return &hospital, nil
}

func (r *hospitalRepository) List(ctx context.Context) ([]*model.Hospital, error) {
	query := `SELECT ` + hospitalColumns + ` FROM hospitals ORDER BY name`

	var hospitals []*model.Hospital
	if err := r.db.SelectContext(ctx, &hospitals, query); err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}
	return hospitals, nil
}

// Update applies a partial update as one conditional statement. Capacity
// bounds are enforced by the table constraints, so a patch that would push an
// available counter above its total fails atomically with no partial write.
func (r *hospitalRepository) Update(ctx context.Context, id uuid.UUID, patch *model.UpdateHospitalRequest) (*model.Hospital, error) {
	set := "updated_at = $1"
	args := []interface{}{time.Now()}
	argCount := 2

	add := func(column string, value interface{}) {
		set += fmt.Sprintf(", %s = $%d", column, argCount)
		args = append(args, value)
		argCount++
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.OperatingHours != nil {
		add("operating_hours", *patch.OperatingHours)
	}
	if patch.TotalBeds != nil {
		add("total_beds", *patch.TotalBeds)
	}
	if patch.AvailableBeds != nil {
		add("available_beds", *patch.AvailableBeds)
	}
	if patch.TotalICU != nil {
		add("total_icu", *patch.TotalICU)
	}
	if patch.AvailableICU != nil {
		add("available_icu", *patch.AvailableICU)
	}
	if patch.TotalOR != nil {
		add("total_or", *patch.TotalOR)
	}
	if patch.AvailableOR != nil {
		add("available_or", *patch.AvailableOR)
	}
	if patch.Specialties != nil {
		add("specialties", pq.StringArray(*patch.Specialties))
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}

	query := fmt.Sprintf(
		`UPDATE hospitals SET %s WHERE id = $%d RETURNING %s`,
		set, argCount, hospitalColumns,
	)
	args = append(args, id)

	var hospital model.Hospital
	err := r.db.GetContext(ctx, &hospital, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		if mapped := classifyError(err); errors.Is(mapped, repository.ErrInvalid) {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update hospital: %w", err)
	}
	return &hospital, nil
}

// ReserveNearest is the load-bearing correctness primitive: one statement
// selects the winner, locks it, decrements the required counters and returns
// the post-update row. SKIP LOCKED steps over a candidate another reservation
// holds, so concurrent requests fall through to the next eligible hospital
// instead of both claiming the same bed.
//
// Ordering: specialty-intersecting hospitals first (when any specialties were
// requested), then ascending distance, then id for determinism.
func (r *hospitalRepository) ReserveNearest(ctx context.Context, tx *sqlx.Tx, filter repository.ReservationFilter) (*model.Hospital, error) {
	query := `
		WITH candidate AS (
			SELECT id
			FROM hospitals
			WHERE status <> 'Full'
			  AND available_beds > 0
			  AND (NOT $3 OR available_icu > 0)
			  AND (NOT $4 OR available_or > 0)
			  AND earth_box(ll_to_earth($1, $2), $5) @> ll_to_earth(latitude, longitude)
			  AND earth_distance(ll_to_earth($1, $2), ll_to_earth(latitude, longitude)) <= $5
			ORDER BY
				CASE WHEN cardinality($6::text[]) > 0 AND specialties && $6::text[] THEN 0 ELSE 1 END,
				earth_distance(ll_to_earth($1, $2), ll_to_earth(latitude, longitude)),
				id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE hospitals h
		SET available_beds = h.available_beds - 1,
		    available_icu  = h.available_icu  - CASE WHEN $3 THEN 1 ELSE 0 END,
		    available_or   = h.available_or   - CASE WHEN $4 THEN 1 ELSE 0 END,
		    updated_at     = now()
		FROM candidate
		WHERE h.id = candidate.id
		RETURNING ` + prefixedHospitalColumns("h")

	specialties := filter.Specialties
	if specialties == nil {
		specialties = []string{}
	}

	var hospital model.Hospital
	err := tx.GetContext(ctx, &hospital, query,
		filter.Latitude,
		filter.Longitude,
		filter.RequiresICU,
		filter.RequiresOR,
		filter.RadiusMeters,
		pq.StringArray(specialties),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNoEligibleHospital
	}
	if err != nil {
		mapped := classifyError(err)
		if errors.Is(mapped, repository.ErrConflict) || errors.Is(mapped, repository.ErrInvalid) {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to reserve hospital: %w", err)
	}
	return &hospital, nil
}

func prefixedHospitalColumns(alias string) string {
	return fmt.Sprintf(`
		%[1]s.id, %[1]s.name, %[1]s.address, %[1]s.phone, %[1]s.operating_hours,
		%[1]s.total_beds, %[1]s.available_beds, %[1]s.total_icu, %[1]s.available_icu,
		%[1]s.total_or, %[1]s.available_or,
		%[1]s.specialties, %[1]s.status, %[1]s.latitude, %[1]s.longitude,
		%[1]s.created_at, %[1]s.updated_at`, alias)
}
