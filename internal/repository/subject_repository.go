package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

// SubjectRepository handles subject lookups.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID returns a subject scoped by school.
func (r *SubjectRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Subject, error) {
	const query = `SELECT id, school_id, name, code, created_at, updated_at
        FROM subjects WHERE school_id = $1 AND id = $2`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, schoolID, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindByIDs returns the requested subjects keyed by id. Missing ids are
// simply absent from the map so callers can report them collectively.
func (r *SubjectRepository) FindByIDs(ctx context.Context, schoolID string, ids []string) (map[string]models.Subject, error) {
	result := make(map[string]models.Subject, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT id, school_id, name, code, created_at, updated_at
        FROM subjects WHERE school_id = ? AND id IN (?)`, schoolID, ids)
	if err != nil {
		return nil, fmt.Errorf("build subjects query: %w", err)
	}
	query = r.db.Rebind(query)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch subjects: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var subject models.Subject
		if err := rows.StructScan(&subject); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		result[subject.ID] = subject
	}
	return result, rows.Err()
}
