package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/sms-api/internal/models"
)

// ClassRepository handles class topology lookups.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class scoped by school.
func (r *ClassRepository) FindByID(ctx context.Context, schoolID, id string) (*models.SchoolClass, error) {
	const query = `SELECT id, school_id, name, order_rank, created_at, updated_at
        FROM school_classes WHERE school_id = $1 AND id = $2`
	var class models.SchoolClass
	if err := r.db.GetContext(ctx, &class, query, schoolID, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindArmByID returns a class arm scoped by school.
func (r *ClassRepository) FindArmByID(ctx context.Context, schoolID, id string) (*models.ClassArm, error) {
	const query = `SELECT id, school_id, class_id, name, created_at, updated_at
        FROM class_arms WHERE school_id = $1 AND id = $2`
	var arm models.ClassArm
	if err := r.db.GetContext(ctx, &arm, query, schoolID, id); err != nil {
		return nil, err
	}
	return &arm, nil
}

// FindSectionByID returns a class section scoped by school.
func (r *ClassRepository) FindSectionByID(ctx context.Context, schoolID, id string) (*models.ClassSection, error) {
	const query = `SELECT id, school_id, name, created_at, updated_at
        FROM class_sections WHERE school_id = $1 AND id = $2`
	var section models.ClassSection
	if err := r.db.GetContext(ctx, &section, query, schoolID, id); err != nil {
		return nil, err
	}
	return &section, nil
}
