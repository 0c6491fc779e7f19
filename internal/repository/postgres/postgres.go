package postgres

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medgrid/dispatch-api/internal/repository"
)

type hospitalRepository struct {
	db *sqlx.DB
}

type emergencyRepository struct {
	db *sqlx.DB
}

func NewHospitalRepository(db *sqlx.DB) repository.HospitalRepository {
	return &hospitalRepository{db: db}
}

func NewEmergencyRepository(db *sqlx.DB) repository.EmergencyRepository {
	return &emergencyRepository{db: db}
}

// TxRunner wraps the database handle for transaction orchestration.
type TxRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// WithTx executes fn within a transaction, rolling back on error or panic.
func (r *TxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyError(err)
	}
	return nil
}

// classifyError maps driver errors onto repository sentinels.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return repository.ErrConflict
		case "23514", "23505", "23503": // check, unique, foreign key violations
			return repository.ErrInvalid
		}
	}
	return err
}
