package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

// SessionRepository handles academic session persistence.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID returns a session scoped by school.
func (r *SessionRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Session, error) {
	const query = `SELECT id, school_id, name, is_current, created_at, updated_at
        FROM sessions WHERE school_id = $1 AND id = $2`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, schoolID, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns all sessions for a school, newest first.
func (r *SessionRepository) List(ctx context.Context, schoolID string) ([]models.Session, error) {
	const query = `SELECT id, school_id, name, is_current, created_at, updated_at
        FROM sessions WHERE school_id = $1 ORDER BY name DESC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, schoolID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO sessions (id, school_id, name, is_current, created_at, updated_at)
        VALUES (:id, :school_id, :name, :is_current, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update persists session changes.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET name = :name, is_current = :is_current, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// CountTerms returns the number of terms referencing the session.
func (r *SessionRepository) CountTerms(ctx context.Context, sessionID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM terms WHERE session_id = $1`, sessionID); err != nil {
		return 0, fmt.Errorf("count terms: %w", err)
	}
	return count, nil
}

// Delete removes a session. Callers must verify no terms reference it.
func (r *SessionRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
