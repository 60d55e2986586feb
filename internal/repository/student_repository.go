package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

const studentColumns = `id, school_id, admission_no, full_name, school_class_id, class_arm_id, class_section_id, current_session_id, current_term_id, active, created_at, updated_at`

// StudentRepository handles student lookups for the core pipelines.
// Promotion-state writes live in PromotionRepository so the whole batch
// commits atomically with its log rows.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student scoped by school.
func (r *StudentRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE school_id = $1 AND id = $2`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, schoolID, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByIDs returns the requested students keyed by id. Missing ids are
// absent from the map so callers can report them collectively.
func (r *StudentRepository) FindByIDs(ctx context.Context, schoolID string, ids []string) (map[string]models.Student, error) {
	result := make(map[string]models.Student, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM students WHERE school_id = ? AND id IN (?)`, studentColumns), schoolID, ids)
	if err != nil {
		return nil, fmt.Errorf("build students query: %w", err)
	}
	query = r.db.Rebind(query)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch students: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var student models.Student
		if err := rows.StructScan(&student); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		result[student.ID] = student
	}
	return result, rows.Err()
}

// ListByClass returns active students currently placed in the class.
func (r *StudentRepository) ListByClass(ctx context.Context, schoolID, classID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE school_id = $1 AND school_class_id = $2 AND active ORDER BY full_name ASC`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, schoolID, classID); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}
