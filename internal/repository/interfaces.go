package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medgrid/dispatch-api/internal/model"
)

// Sentinel errors the store implementations translate driver errors into.
var (
	ErrNotFound = errors.New("record not found")
	// ErrNoEligibleHospital means no hospital satisfied the reservation filter.
	ErrNoEligibleHospital = errors.New("no eligible hospital")
	// ErrConflict means the store aborted the transaction; the caller may retry.
	ErrConflict = errors.New("persistence conflict")
	// ErrInvalid means a constraint rejected the write (capacity bounds, duplicates).
	ErrInvalid = errors.New("constraint violation")
)

// ReservationFilter describes the eligibility criteria for one reservation.
type ReservationFilter struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	RequiresICU  bool
	RequiresOR   bool
	Specialties  []string
}

// TxRunner executes a function inside a store transaction, rolling back on error.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type HospitalRepository interface {
	Create(ctx context.Context, hospital *model.Hospital) error
	Get(ctx context.Context, id uuid.UUID) (*model.Hospital, error)
	List(ctx context.Context) ([]*model.Hospital, error)
	// Update applies a partial update as a single conditional statement and
	// returns the post-update record.
	Update(ctx context.Context, id uuid.UUID, patch *model.UpdateHospitalRequest) (*model.Hospital, error)
	// ReserveNearest atomically selects the winning candidate for the filter,
	// decrements the required capacity counters and returns the post-update
	// hospital. It is a single read-modify-write statement; two concurrent
	// callers can never both claim the last unit.
	ReserveNearest(ctx context.Context, tx *sqlx.Tx, filter ReservationFilter) (*model.Hospital, error)
}

type EmergencyRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, emergency *model.Emergency) error
	Get(ctx context.Context, id uuid.UUID) (*model.Emergency, error)
	List(ctx context.Context) ([]*model.Emergency, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.EmergencyStatus) (*model.Emergency, error)
}
