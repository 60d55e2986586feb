package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

const gradeRangeColumns = `id, scale_id, min_score, max_score, grade_label, description, grade_point, created_at, updated_at`

// GradingRepository handles grading scale and grade range persistence.
type GradingRepository struct {
	db *sqlx.DB
}

// NewGradingRepository creates a new grading repository.
func NewGradingRepository(db *sqlx.DB) *GradingRepository {
	return &GradingRepository{db: db}
}

// FindScale returns a scale scoped by school.
func (r *GradingRepository) FindScale(ctx context.Context, schoolID, id string) (*models.GradingScale, error) {
	const query = `SELECT id, school_id, name, is_default, created_at, updated_at
        FROM grading_scales WHERE school_id = $1 AND id = $2`
	var scale models.GradingScale
	if err := r.db.GetContext(ctx, &scale, query, schoolID, id); err != nil {
		return nil, err
	}
	return &scale, nil
}

// DefaultScale returns the school's default scale with ranges hydrated.
func (r *GradingRepository) DefaultScale(ctx context.Context, schoolID string) (*models.GradingScale, error) {
	const query = `SELECT id, school_id, name, is_default, created_at, updated_at
        FROM grading_scales WHERE school_id = $1 AND is_default LIMIT 1`
	var scale models.GradingScale
	if err := r.db.GetContext(ctx, &scale, query, schoolID); err != nil {
		return nil, err
	}
	ranges, err := r.ListRanges(ctx, scale.ID)
	if err != nil {
		return nil, err
	}
	scale.Ranges = ranges
	return &scale, nil
}

// ListScales returns all scales for a school.
func (r *GradingRepository) ListScales(ctx context.Context, schoolID string) ([]models.GradingScale, error) {
	const query = `SELECT id, school_id, name, is_default, created_at, updated_at
        FROM grading_scales WHERE school_id = $1 ORDER BY name ASC`
	var scales []models.GradingScale
	if err := r.db.SelectContext(ctx, &scales, query, schoolID); err != nil {
		return nil, fmt.Errorf("list scales: %w", err)
	}
	return scales, nil
}

// CreateScale inserts a new grading scale.
func (r *GradingRepository) CreateScale(ctx context.Context, scale *models.GradingScale) error {
	if scale.ID == "" {
		scale.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	scale.CreatedAt = now
	scale.UpdatedAt = now
	const query = `INSERT INTO grading_scales (id, school_id, name, is_default, created_at, updated_at)
        VALUES (:id, :school_id, :name, :is_default, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, scale); err != nil {
		return fmt.Errorf("create scale: %w", err)
	}
	return nil
}

// ListRanges returns a scale's ranges ordered by min score.
func (r *GradingRepository) ListRanges(ctx context.Context, scaleID string) ([]models.GradeRange, error) {
	query := fmt.Sprintf(`SELECT %s FROM grade_ranges WHERE scale_id = $1 ORDER BY min_score ASC`, gradeRangeColumns)
	var ranges []models.GradeRange
	if err := r.db.SelectContext(ctx, &ranges, query, scaleID); err != nil {
		return nil, fmt.Errorf("list ranges: %w", err)
	}
	return ranges, nil
}

// CountResultsByRanges returns how many results reference each range id.
func (r *GradingRepository) CountResultsByRanges(ctx context.Context, rangeIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(rangeIDs))
	if len(rangeIDs) == 0 {
		return counts, nil
	}
	query, args, err := sqlx.In(`SELECT grade_id, COUNT(*) AS n FROM results WHERE grade_id IN (?) GROUP BY grade_id`, rangeIDs)
	if err != nil {
		return nil, fmt.Errorf("build range usage query: %w", err)
	}
	query = r.db.Rebind(query)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count range usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan range usage: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// ApplyRangeChanges deletes, updates and inserts grade ranges in one
// transaction. A delete that matches no row surfaces sql.ErrNoRows so the
// service can roll the whole operation into a not-found failure.
func (r *GradingRepository) ApplyRangeChanges(ctx context.Context, scaleID string, deleteIDs []string, updates, inserts []models.GradeRange) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	for _, id := range deleteIDs {
		res, err := tx.ExecContext(ctx, `DELETE FROM grade_ranges WHERE scale_id = $1 AND id = $2`, scaleID, id)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete range %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete range %s: %w", id, err)
		}
		if affected == 0 {
			tx.Rollback() //nolint:errcheck
			return sql.ErrNoRows
		}
	}

	for i := range updates {
		updates[i].ScaleID = scaleID
		updates[i].UpdatedAt = now
		const query = `UPDATE grade_ranges SET min_score = :min_score, max_score = :max_score, grade_label = :grade_label, description = :description, grade_point = :grade_point, updated_at = :updated_at
            WHERE id = :id AND scale_id = :scale_id`
		res, err := tx.NamedExecContext(ctx, query, updates[i])
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update range %s: %w", updates[i].ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update range %s: %w", updates[i].ID, err)
		}
		if affected == 0 {
			tx.Rollback() //nolint:errcheck
			return sql.ErrNoRows
		}
	}

	for i := range inserts {
		if inserts[i].ID == "" {
			inserts[i].ID = uuid.NewString()
		}
		inserts[i].ScaleID = scaleID
		inserts[i].CreatedAt = now
		inserts[i].UpdatedAt = now
		const query = `INSERT INTO grade_ranges (id, scale_id, min_score, max_score, grade_label, description, grade_point, created_at, updated_at)
            VALUES (:id, :scale_id, :min_score, :max_score, :grade_label, :description, :grade_point, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, inserts[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert range: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit range changes: %w", err)
	}
	return nil
}
