package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

const importColumns = `id, school_id, link_id, student_id, raw_score, converted_score, status, reason, approved_by, approved_at, synced_at, created_at, updated_at`

// CbtRepository handles CBT link and score import persistence.
type CbtRepository struct {
	db *sqlx.DB
}

// NewCbtRepository creates a new CBT repository.
func NewCbtRepository(db *sqlx.DB) *CbtRepository {
	return &CbtRepository{db: db}
}

// FindQuiz returns a quiz scoped by school.
func (r *CbtRepository) FindQuiz(ctx context.Context, schoolID, id string) (*models.Quiz, error) {
	const query = `SELECT id, school_id, subject_id, title, total_marks, created_at
        FROM quizzes WHERE school_id = $1 AND id = $2`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, schoolID, id); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListQuizResults returns all raw CBT outcomes for a quiz.
func (r *CbtRepository) ListQuizResults(ctx context.Context, quizID string) ([]models.QuizResult, error) {
	const query = `SELECT id, quiz_id, student_id, score, taken_at
        FROM quiz_results WHERE quiz_id = $1 ORDER BY taken_at ASC`
	var results []models.QuizResult
	if err := r.db.SelectContext(ctx, &results, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz results: %w", err)
	}
	return results, nil
}

// FindLink returns a link scoped by school.
func (r *CbtRepository) FindLink(ctx context.Context, schoolID, id string) (*models.CbtAssessmentLink, error) {
	const query = `SELECT id, school_id, quiz_id, component_id, subject_id, class_id, session_id, term_id, mapping_type, max_score_override, auto_sync, created_at, updated_at
        FROM cbt_assessment_links WHERE school_id = $1 AND id = $2`
	var link models.CbtAssessmentLink
	if err := r.db.GetContext(ctx, &link, query, schoolID, id); err != nil {
		return nil, err
	}
	return &link, nil
}

// CreateLink inserts a new link.
func (r *CbtRepository) CreateLink(ctx context.Context, link *models.CbtAssessmentLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	const query = `INSERT INTO cbt_assessment_links (id, school_id, quiz_id, component_id, subject_id, class_id, session_id, term_id, mapping_type, max_score_override, auto_sync, created_at, updated_at)
        VALUES (:id, :school_id, :quiz_id, :component_id, :subject_id, :class_id, :session_id, :term_id, :mapping_type, :max_score_override, :auto_sync, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

// CountSyncedImports returns the number of synced imports under a link.
func (r *CbtRepository) CountSyncedImports(ctx context.Context, linkID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM cbt_score_imports WHERE link_id = $1 AND status = $2`, linkID, models.ImportStatusSynced); err != nil {
		return 0, fmt.Errorf("count synced imports: %w", err)
	}
	return count, nil
}

// DeleteLink removes a link and its non-synced imports in one transaction.
// Callers must first verify the link has no synced imports.
func (r *CbtRepository) DeleteLink(ctx context.Context, schoolID, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cbt_score_imports WHERE link_id = $1`, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete link imports: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cbt_assessment_links WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete link: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit link delete: %w", err)
	}
	return nil
}

// ListImports returns a link's imports, optionally filtered by status.
func (r *CbtRepository) ListImports(ctx context.Context, linkID string, status models.ImportStatus) ([]models.CbtScoreImport, error) {
	query := fmt.Sprintf(`SELECT %s FROM cbt_score_imports WHERE link_id = $1`, importColumns)
	args := []interface{}{linkID}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at ASC"
	var imports []models.CbtScoreImport
	if err := r.db.SelectContext(ctx, &imports, query, args...); err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return imports, nil
}

// FindImportsByIDs returns the requested imports under a link, keyed by id.
func (r *CbtRepository) FindImportsByIDs(ctx context.Context, linkID string, ids []string) (map[string]models.CbtScoreImport, error) {
	result := make(map[string]models.CbtScoreImport, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM cbt_score_imports WHERE link_id = ? AND id IN (?)`, importColumns), linkID, ids)
	if err != nil {
		return nil, fmt.Errorf("build imports query: %w", err)
	}
	query = r.db.Rebind(query)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch imports: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var imp models.CbtScoreImport
		if err := rows.StructScan(&imp); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		result[imp.ID] = imp
	}
	return result, rows.Err()
}

// UpdateStatuses moves the given imports to a new status in one statement,
// stamping the approver when one is given.
func (r *CbtRepository) UpdateStatuses(ctx context.Context, linkID string, ids []string, status models.ImportStatus, reason *string, approvedBy *string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	var approvedAt *time.Time
	if approvedBy != nil {
		approvedAt = &now
	}
	query, args, err := sqlx.In(`UPDATE cbt_score_imports SET status = ?, reason = ?, approved_by = COALESCE(?, approved_by), approved_at = COALESCE(?, approved_at), updated_at = ? WHERE link_id = ? AND id IN (?)`,
		status, reason, approvedBy, approvedAt, now, linkID, ids)
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}
	query = r.db.Rebind(query)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update import statuses: %w", err)
	}
	return nil
}

// ApplyImportBatch upserts score import rows and, for auto-sync links,
// applies the already-approved rows to results within the same
// transaction. Each import row is keyed on (link_id, student_id).
func (r *CbtRepository) ApplyImportBatch(ctx context.Context, imports []models.CbtScoreImport, synced []models.SyncedImport) error {
	if len(imports) == 0 && len(synced) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	for i := range imports {
		if err := upsertImport(ctx, tx, &imports[i], now); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := applySynced(ctx, tx, synced, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import batch: %w", err)
	}
	return nil
}

// ApplySync writes converted scores into results and marks their imports
// synced, all within one transaction.
func (r *CbtRepository) ApplySync(ctx context.Context, synced []models.SyncedImport) error {
	if len(synced) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := applySynced(ctx, tx, synced, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync: %w", err)
	}
	return nil
}

func upsertImport(ctx context.Context, tx *sqlx.Tx, imp *models.CbtScoreImport, now time.Time) error {
	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	if imp.CreatedAt.IsZero() {
		imp.CreatedAt = now
	}
	imp.UpdatedAt = now
	const query = `INSERT INTO cbt_score_imports (id, school_id, link_id, student_id, raw_score, converted_score, status, reason, approved_by, approved_at, synced_at, created_at, updated_at)
        VALUES (:id, :school_id, :link_id, :student_id, :raw_score, :converted_score, :status, :reason, :approved_by, :approved_at, :synced_at, :created_at, :updated_at)
        ON CONFLICT (link_id, student_id)
        DO UPDATE SET raw_score = EXCLUDED.raw_score, converted_score = EXCLUDED.converted_score, status = EXCLUDED.status, reason = EXCLUDED.reason, updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, query, imp); err != nil {
		return fmt.Errorf("upsert import: %w", err)
	}
	return nil
}

func applySynced(ctx context.Context, tx *sqlx.Tx, synced []models.SyncedImport, now time.Time) error {
	for i := range synced {
		result := &synced[i].Result
		if result.ID == "" {
			result.ID = uuid.NewString()
		}
		if result.CreatedAt.IsZero() {
			result.CreatedAt = now
		}
		result.UpdatedAt = now
		const resultQuery = `INSERT INTO results (id, school_id, student_id, subject_id, session_id, term_id, component_id, component_slot, total_score, remarks, grade_id, created_at, updated_at)
            VALUES (:id, :school_id, :student_id, :subject_id, :session_id, :term_id, :component_id, :component_slot, :total_score, :remarks, :grade_id, :created_at, :updated_at)
            ON CONFLICT (student_id, subject_id, session_id, term_id, component_slot)
            DO UPDATE SET total_score = EXCLUDED.total_score, grade_id = EXCLUDED.grade_id, updated_at = EXCLUDED.updated_at`
		if _, err := tx.NamedExecContext(ctx, resultQuery, result); err != nil {
			return fmt.Errorf("upsert synced result: %w", err)
		}

		imp := &synced[i].Import
		imp.UpdatedAt = now
		const importQuery = `UPDATE cbt_score_imports SET status = :status, approved_by = :approved_by, approved_at = :approved_at, synced_at = :synced_at, updated_at = :updated_at
            WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, importQuery, imp); err != nil {
			return fmt.Errorf("mark import synced: %w", err)
		}
	}
	return nil
}
