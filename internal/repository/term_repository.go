package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

// TermRepository handles academic term persistence.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository creates a new term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// FindByID returns a term scoped by school.
func (r *TermRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Term, error) {
	const query = `SELECT id, school_id, session_id, name, start_date, end_date, status, created_at, updated_at
        FROM terms WHERE school_id = $1 AND id = $2`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, schoolID, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindByIDs returns the requested terms keyed by id.
func (r *TermRepository) FindByIDs(ctx context.Context, schoolID string, ids []string) (map[string]models.Term, error) {
	result := make(map[string]models.Term, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT id, school_id, session_id, name, start_date, end_date, status, created_at, updated_at
        FROM terms WHERE school_id = ? AND id IN (?)`, schoolID, ids)
	if err != nil {
		return nil, fmt.Errorf("build terms query: %w", err)
	}
	query = r.db.Rebind(query)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch terms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var term models.Term
		if err := rows.StructScan(&term); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		result[term.ID] = term
	}
	return result, rows.Err()
}

// ListBySession returns a session's terms ordered by start date.
func (r *TermRepository) ListBySession(ctx context.Context, schoolID, sessionID string) ([]models.Term, error) {
	const query = `SELECT id, school_id, session_id, name, start_date, end_date, status, created_at, updated_at
        FROM terms WHERE school_id = $1 AND session_id = $2 ORDER BY start_date ASC`
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, schoolID, sessionID); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// EarliestBySession returns the session's earliest term by start date.
// sql.ErrNoRows signals a session with no terms.
func (r *TermRepository) EarliestBySession(ctx context.Context, schoolID, sessionID string) (*models.Term, error) {
	const query = `SELECT id, school_id, session_id, name, start_date, end_date, status, created_at, updated_at
        FROM terms WHERE school_id = $1 AND session_id = $2 ORDER BY start_date ASC LIMIT 1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, schoolID, sessionID); err != nil {
		return nil, err
	}
	return &term, nil
}

// CountOverlapping counts sibling terms whose date window intersects the
// given one, excluding the term itself on update.
func (r *TermRepository) CountOverlapping(ctx context.Context, schoolID, sessionID string, start, end time.Time, excludeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM terms
        WHERE school_id = $1 AND session_id = $2 AND id <> $3 AND start_date <= $5 AND end_date >= $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, sessionID, excludeID, start, end); err != nil {
		return 0, fmt.Errorf("count overlapping terms: %w", err)
	}
	return count, nil
}

// Create inserts a new term.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	if term.Status == "" {
		term.Status = models.TermStatusActive
	}
	now := time.Now().UTC()
	term.CreatedAt = now
	term.UpdatedAt = now
	const query = `INSERT INTO terms (id, school_id, session_id, name, start_date, end_date, status, created_at, updated_at)
        VALUES (:id, :school_id, :session_id, :name, :start_date, :end_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update persists term changes.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE terms SET name = :name, start_date = :start_date, end_date = :end_date, status = :status, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}
