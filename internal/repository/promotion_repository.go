package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

// PromotionRepository persists promotion batches: every student mutation
// and its log row commit in one transaction, or none do.
type PromotionRepository struct {
	db *sqlx.DB
}

// NewPromotionRepository creates a new promotion repository.
func NewPromotionRepository(db *sqlx.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// ApplyBatch updates each student's placement and appends its promotion
// log within a single transaction.
func (r *PromotionRepository) ApplyBatch(ctx context.Context, promotions []models.StudentPromotion) error {
	if len(promotions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	for i := range promotions {
		student := &promotions[i].Student
		student.UpdatedAt = now
		const studentQuery = `UPDATE students SET school_class_id = :school_class_id, class_arm_id = :class_arm_id, class_section_id = :class_section_id,
            current_session_id = :current_session_id, current_term_id = :current_term_id, updated_at = :updated_at
            WHERE id = :id AND school_id = :school_id`
		if _, err := tx.NamedExecContext(ctx, studentQuery, student); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update student %s: %w", student.ID, err)
		}

		log := &promotions[i].Log
		if log.ID == "" {
			log.ID = uuid.NewString()
		}
		log.CreatedAt = now
		const logQuery = `INSERT INTO promotion_logs (id, school_id, student_id, from_session_id, from_term_id, from_class_id, from_arm_id, from_section_id,
            to_session_id, to_term_id, to_class_id, to_arm_id, to_section_id, performed_by, meta, created_at)
            VALUES (:id, :school_id, :student_id, :from_session_id, :from_term_id, :from_class_id, :from_arm_id, :from_section_id,
            :to_session_id, :to_term_id, :to_class_id, :to_arm_id, :to_section_id, :performed_by, :meta, :created_at)`
		if _, err := tx.NamedExecContext(ctx, logQuery, log); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert promotion log for %s: %w", log.StudentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit promotions: %w", err)
	}
	return nil
}

// ListLogs returns a student's promotion history, newest first.
func (r *PromotionRepository) ListLogs(ctx context.Context, schoolID, studentID string) ([]models.PromotionLog, error) {
	const query = `SELECT id, school_id, student_id, from_session_id, from_term_id, from_class_id, from_arm_id, from_section_id,
        to_session_id, to_term_id, to_class_id, to_arm_id, to_section_id, performed_by, meta, created_at
        FROM promotion_logs WHERE school_id = $1 AND student_id = $2 ORDER BY created_at DESC`
	var logs []models.PromotionLog
	if err := r.db.SelectContext(ctx, &logs, query, schoolID, studentID); err != nil {
		return nil, fmt.Errorf("list promotion logs: %w", err)
	}
	return logs, nil
}
