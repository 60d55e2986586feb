package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

const resultColumns = `id, school_id, student_id, subject_id, session_id, term_id, component_id, component_slot, total_score, remarks, grade_id, position_in_subject, class_average, created_at, updated_at`

// ResultRepository handles result persistence.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// FindByKeys returns existing results matching any of the upsert keys,
// keyed for O(1) lookup by the batch pipeline.
func (r *ResultRepository) FindByKeys(ctx context.Context, schoolID string, keys []models.ResultKey) (map[models.ResultKey]models.Result, error) {
	result := make(map[models.ResultKey]models.Result, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	clauses := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)*5+1)
	args = append(args, schoolID)
	for _, key := range keys {
		base := len(args)
		clauses = append(clauses, fmt.Sprintf("(student_id = $%d AND subject_id = $%d AND session_id = $%d AND term_id = $%d AND component_slot = $%d)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, key.StudentID, key.SubjectID, key.SessionID, key.TermID, key.ComponentSlot)
	}
	query := fmt.Sprintf(`SELECT %s FROM results WHERE school_id = $1 AND (%s)`, resultColumns, strings.Join(clauses, " OR "))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var row models.Result
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		result[row.Key()] = row
	}
	return result, rows.Err()
}

// ApplyBatch inserts and updates result rows in one transaction. Any
// failure rolls back every write performed for the batch.
func (r *ResultRepository) ApplyBatch(ctx context.Context, inserts, updates []models.Result) error {
	if len(inserts) == 0 && len(updates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	for i := range inserts {
		if inserts[i].ID == "" {
			inserts[i].ID = uuid.NewString()
		}
		inserts[i].CreatedAt = now
		inserts[i].UpdatedAt = now
		const query = `INSERT INTO results (id, school_id, student_id, subject_id, session_id, term_id, component_id, component_slot, total_score, remarks, grade_id, created_at, updated_at)
            VALUES (:id, :school_id, :student_id, :subject_id, :session_id, :term_id, :component_id, :component_slot, :total_score, :remarks, :grade_id, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, inserts[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert result: %w", err)
		}
	}

	for i := range updates {
		updates[i].UpdatedAt = now
		const query = `UPDATE results SET total_score = :total_score, remarks = :remarks, grade_id = :grade_id, updated_at = :updated_at
            WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, query, updates[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update result %s: %w", updates[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

// List returns results matching the filter, newest first.
func (r *ResultRepository) List(ctx context.Context, schoolID string, filter models.ResultFilter) ([]models.Result, int, error) {
	where := "WHERE school_id = $1"
	args := []interface{}{schoolID}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		where += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		where += fmt.Sprintf(" AND session_id = $%d", len(args))
	}
	if filter.TermID != "" {
		args = append(args, filter.TermID)
		where += fmt.Sprintf(" AND term_id = $%d", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM results "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM results %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		resultColumns, where, pageSize, (page-1)*pageSize)
	var results []models.Result
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	return results, total, nil
}

// ListByStudentTerm returns a student's results for one term joined with
// subject names, feeding the export pipeline.
func (r *ResultRepository) ListByStudentTerm(ctx context.Context, schoolID, studentID, termID string) ([]models.ResultExportRow, error) {
	const query = `SELECT r.subject_id, s.name AS subject_name, r.total_score, COALESCE(gr.grade_label, '') AS grade_label, COALESCE(r.remarks, '') AS remarks
        FROM results r
        JOIN subjects s ON s.id = r.subject_id
        LEFT JOIN grade_ranges gr ON gr.id = r.grade_id
        WHERE r.school_id = $1 AND r.student_id = $2 AND r.term_id = $3
        ORDER BY s.name ASC`
	var rows []models.ResultExportRow
	if err := r.db.SelectContext(ctx, &rows, query, schoolID, studentID, termID); err != nil {
		return nil, fmt.Errorf("list student results: %w", err)
	}
	return rows, nil
}
