package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

// ComponentRepository handles assessment component persistence.
type ComponentRepository struct {
	db *sqlx.DB
}

// NewComponentRepository creates a new component repository.
func NewComponentRepository(db *sqlx.DB) *ComponentRepository {
	return &ComponentRepository{db: db}
}

// FindByID returns a component with its subject attachments hydrated.
func (r *ComponentRepository) FindByID(ctx context.Context, schoolID, id string) (*models.AssessmentComponent, error) {
	const query = `SELECT id, school_id, name, label, weight, max_score, order_index, created_at, updated_at
        FROM assessment_components WHERE school_id = $1 AND id = $2`
	var component models.AssessmentComponent
	if err := r.db.GetContext(ctx, &component, query, schoolID, id); err != nil {
		return nil, err
	}
	subjectIDs, err := r.SubjectIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	component.SubjectIDs = subjectIDs
	return &component, nil
}

// FindByName returns a component by its school-unique name.
func (r *ComponentRepository) FindByName(ctx context.Context, schoolID, name string) (*models.AssessmentComponent, error) {
	const query = `SELECT id, school_id, name, label, weight, max_score, order_index, created_at, updated_at
        FROM assessment_components WHERE school_id = $1 AND LOWER(name) = LOWER($2)`
	var component models.AssessmentComponent
	if err := r.db.GetContext(ctx, &component, query, schoolID, name); err != nil {
		return nil, err
	}
	return &component, nil
}

// List returns a school's components ordered for display.
func (r *ComponentRepository) List(ctx context.Context, schoolID string) ([]models.AssessmentComponent, error) {
	const query = `SELECT id, school_id, name, label, weight, max_score, order_index, created_at, updated_at
        FROM assessment_components WHERE school_id = $1 ORDER BY order_index ASC, name ASC`
	var components []models.AssessmentComponent
	if err := r.db.SelectContext(ctx, &components, query, schoolID); err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	return components, nil
}

// SubjectIDs returns the ids of subjects attached to the component.
func (r *ComponentRepository) SubjectIDs(ctx context.Context, componentID string) ([]string, error) {
	var ids []string
	const query = `SELECT subject_id FROM component_subjects WHERE component_id = $1 ORDER BY subject_id`
	if err := r.db.SelectContext(ctx, &ids, query, componentID); err != nil {
		return nil, fmt.Errorf("list component subjects: %w", err)
	}
	return ids, nil
}

// Create inserts a component and its subject attachments in one transaction.
func (r *ComponentRepository) Create(ctx context.Context, component *models.AssessmentComponent) error {
	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	component.CreatedAt = now
	component.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO assessment_components (id, school_id, name, label, weight, max_score, order_index, created_at, updated_at)
        VALUES (:id, :school_id, :name, :label, :weight, :max_score, :order_index, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, component); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create component: %w", err)
	}
	if err := replaceSubjects(ctx, tx, component.ID, component.SubjectIDs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit component: %w", err)
	}
	return nil
}

// Update persists component changes and replaces subject attachments.
func (r *ComponentRepository) Update(ctx context.Context, component *models.AssessmentComponent) error {
	component.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `UPDATE assessment_components SET name = :name, label = :label, weight = :weight, max_score = :max_score, order_index = :order_index, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	if _, err := tx.NamedExecContext(ctx, query, component); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update component: %w", err)
	}
	if err := replaceSubjects(ctx, tx, component.ID, component.SubjectIDs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit component: %w", err)
	}
	return nil
}

// Delete removes a component. Dependent results keep their rows: the
// component reference is cleared and the slot reset to the null sentinel
// so the uniqueness key stays intact.
func (r *ComponentRepository) Delete(ctx context.Context, schoolID, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE results SET component_id = NULL, component_slot = $2, updated_at = NOW() WHERE component_id = $1`, id, models.NullComponentSlot); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("detach results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM component_subjects WHERE component_id = $1`, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("detach subjects: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assessment_components WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete component: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit component delete: %w", err)
	}
	return nil
}

// ListStructures returns the component's active max-score overrides.
func (r *ComponentRepository) ListStructures(ctx context.Context, componentID string) ([]models.AssessmentComponentStructure, error) {
	const query = `SELECT id, school_id, component_id, class_id, term_id, max_score, is_active, created_at, updated_at
        FROM assessment_component_structures WHERE component_id = $1 AND is_active ORDER BY created_at ASC`
	var structures []models.AssessmentComponentStructure
	if err := r.db.SelectContext(ctx, &structures, query, componentID); err != nil {
		return nil, fmt.Errorf("list structures: %w", err)
	}
	return structures, nil
}

// CreateStructure inserts a max-score override.
func (r *ComponentRepository) CreateStructure(ctx context.Context, structure *models.AssessmentComponentStructure) error {
	if structure.ID == "" {
		structure.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	structure.CreatedAt = now
	structure.UpdatedAt = now
	const query = `INSERT INTO assessment_component_structures (id, school_id, component_id, class_id, term_id, max_score, is_active, created_at, updated_at)
        VALUES (:id, :school_id, :component_id, :class_id, :term_id, :max_score, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, structure); err != nil {
		return fmt.Errorf("create structure: %w", err)
	}
	return nil
}

func replaceSubjects(ctx context.Context, tx *sqlx.Tx, componentID string, subjectIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM component_subjects WHERE component_id = $1`, componentID); err != nil {
		return fmt.Errorf("clear component subjects: %w", err)
	}
	for _, subjectID := range subjectIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO component_subjects (component_id, subject_id) VALUES ($1, $2)`, componentID, subjectID); err != nil {
			return fmt.Errorf("attach subject %s: %w", subjectID, err)
		}
	}
	return nil
}
