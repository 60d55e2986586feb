package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SequenceRepository allocates monotonically increasing per-school serial
// numbers. Allocation takes a row lock so concurrent writers serialize
// instead of racing a read-then-increment; a naive read/increment here
// would hand out duplicate admission or PIN serials under load.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository creates a new sequence repository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next returns the next value of the named per-school sequence, creating
// the counter row on first use.
func (r *SequenceRepository) Next(ctx context.Context, schoolID, name string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	var current int64
	err = tx.GetContext(ctx, &current, `SELECT value FROM sequences WHERE school_id = $1 AND name = $2 FOR UPDATE`, schoolID, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `INSERT INTO sequences (school_id, name, value) VALUES ($1, $2, 1)`, schoolID, name); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("create sequence %s: %w", name, err)
		}
		current = 0
	case err != nil:
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("lock sequence %s: %w", name, err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE sequences SET value = value + 1 WHERE school_id = $1 AND name = $2`, schoolID, name); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("advance sequence %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sequence %s: %w", name, err)
	}
	return current + 1, nil
}
