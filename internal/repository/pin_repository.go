package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

// PinRepository handles result-check PIN persistence.
type PinRepository struct {
	db *sqlx.DB
}

// NewPinRepository creates a new pin repository.
func NewPinRepository(db *sqlx.DB) *PinRepository {
	return &PinRepository{db: db}
}

// Create inserts a new pin.
func (r *PinRepository) Create(ctx context.Context, pin *models.ResultPin) error {
	if pin.ID == "" {
		pin.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	pin.CreatedAt = now
	pin.UpdatedAt = now
	const query = `INSERT INTO result_pins (id, school_id, student_id, serial, pin, usage_count, max_usage, session_id, term_id, created_at, updated_at)
        VALUES (:id, :school_id, :student_id, :serial, :pin, :usage_count, :max_usage, :session_id, :term_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, pin); err != nil {
		return fmt.Errorf("create pin: %w", err)
	}
	return nil
}

// FindBySerial returns a pin by its serial, scoped by school.
func (r *PinRepository) FindBySerial(ctx context.Context, schoolID, serial string) (*models.ResultPin, error) {
	const query = `SELECT id, school_id, student_id, serial, pin, usage_count, max_usage, session_id, term_id, created_at, updated_at
        FROM result_pins WHERE school_id = $1 AND serial = $2`
	var pin models.ResultPin
	if err := r.db.GetContext(ctx, &pin, query, schoolID, serial); err != nil {
		return nil, err
	}
	return &pin, nil
}

// IncrementUsage bumps the usage counter.
func (r *PinRepository) IncrementUsage(ctx context.Context, id string) error {
	const query = `UPDATE result_pins SET usage_count = usage_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment pin usage: %w", err)
	}
	return nil
}
