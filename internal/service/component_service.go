package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

type componentStore interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.AssessmentComponent, error)
	FindByName(ctx context.Context, schoolID, name string) (*models.AssessmentComponent, error)
	List(ctx context.Context, schoolID string) ([]models.AssessmentComponent, error)
	Create(ctx context.Context, component *models.AssessmentComponent) error
	Update(ctx context.Context, component *models.AssessmentComponent) error
	Delete(ctx context.Context, schoolID, id string) error
	ListStructures(ctx context.Context, componentID string) ([]models.AssessmentComponentStructure, error)
	CreateStructure(ctx context.Context, structure *models.AssessmentComponentStructure) error
}

type componentCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ComponentRequest creates or updates an assessment component.
type ComponentRequest struct {
	Name       string   `json:"name" validate:"required"`
	Label      string   `json:"label"`
	Weight     float64  `json:"weight" validate:"gte=0"`
	MaxScore   float64  `json:"max_score" validate:"gt=0"`
	OrderIndex int      `json:"order_index" validate:"gte=0"`
	SubjectIDs []string `json:"subject_ids" validate:"omitempty,dive,uuid4"`
}

// StructureRequest adds a max-score override for a component, scoped
// optionally by class and/or term.
type StructureRequest struct {
	ClassID  *string `json:"class_id" validate:"omitempty,uuid4"`
	TermID   *string `json:"term_id" validate:"omitempty,uuid4"`
	MaxScore float64 `json:"max_score" validate:"gt=0"`
}

// ComponentService manages assessment components, their subject
// attachments and max-score overrides.
type ComponentService struct {
	components componentStore
	subjects   subjectBulkReader
	cache      componentCache

	maxScoreTTL time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewComponentService constructs ComponentService.
func NewComponentService(components componentStore, subjects subjectBulkReader, cache componentCache, maxScoreTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ComponentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComponentService{
		components:  components,
		subjects:    subjects,
		cache:       cache,
		maxScoreTTL: maxScoreTTL,
		validator:   validate,
		logger:      logger,
	}
}

// List returns a school's components.
func (s *ComponentService) List(ctx context.Context, schoolID string) ([]models.AssessmentComponent, error) {
	components, err := s.components.List(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list components")
	}
	return components, nil
}

// Get returns a component with subject attachments.
func (s *ComponentService) Get(ctx context.Context, schoolID, componentID string) (*models.AssessmentComponent, error) {
	component, err := s.components.FindByID(ctx, schoolID, componentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component")
	}
	return component, nil
}

// Create validates and stores a component. Names are unique per school.
func (s *ComponentService) Create(ctx context.Context, schoolID string, req ComponentRequest) (*models.AssessmentComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}
	name := strings.TrimSpace(req.Name)

	if _, err := s.components.FindByName(ctx, schoolID, name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("component %s already exists", name))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check component name")
	}

	if err := s.checkSubjects(ctx, schoolID, req.SubjectIDs); err != nil {
		return nil, err
	}

	component := &models.AssessmentComponent{
		SchoolID:   schoolID,
		Name:       name,
		Label:      strings.TrimSpace(req.Label),
		Weight:     req.Weight,
		MaxScore:   req.MaxScore,
		OrderIndex: req.OrderIndex,
		SubjectIDs: req.SubjectIDs,
	}
	if err := s.components.Create(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create component")
	}
	return component, nil
}

// Update replaces a component's fields and subject attachments.
func (s *ComponentService) Update(ctx context.Context, schoolID, componentID string, req ComponentRequest) (*models.AssessmentComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}
	component, err := s.Get(ctx, schoolID, componentID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)

	if other, err := s.components.FindByName(ctx, schoolID, name); err == nil {
		if other.ID != componentID {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("component %s already exists", name))
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check component name")
	}

	if err := s.checkSubjects(ctx, schoolID, req.SubjectIDs); err != nil {
		return nil, err
	}

	component.Name = name
	component.Label = strings.TrimSpace(req.Label)
	component.Weight = req.Weight
	component.MaxScore = req.MaxScore
	component.OrderIndex = req.OrderIndex
	component.SubjectIDs = req.SubjectIDs
	if err := s.components.Update(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update component")
	}

	s.invalidateMaxScores(ctx, schoolID, componentID)
	return component, nil
}

// Delete removes a component. Results that referenced it survive with
// the reference cleared.
func (s *ComponentService) Delete(ctx context.Context, schoolID, componentID string) error {
	if _, err := s.Get(ctx, schoolID, componentID); err != nil {
		return err
	}
	if err := s.components.Delete(ctx, schoolID, componentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete component")
	}
	s.invalidateMaxScores(ctx, schoolID, componentID)
	return nil
}

// AddStructure records a max-score override for the component.
func (s *ComponentService) AddStructure(ctx context.Context, schoolID, componentID string, req StructureRequest) (*models.AssessmentComponentStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid structure payload")
	}
	if _, err := s.Get(ctx, schoolID, componentID); err != nil {
		return nil, err
	}

	structure := &models.AssessmentComponentStructure{
		SchoolID:    schoolID,
		ComponentID: componentID,
		ClassID:     req.ClassID,
		TermID:      req.TermID,
		MaxScore:    req.MaxScore,
		IsActive:    true,
	}
	if err := s.components.CreateStructure(ctx, structure); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create structure")
	}

	s.invalidateMaxScores(ctx, schoolID, componentID)
	return structure, nil
}

// ResolveMaxScore returns the effective maximum score of a component for
// a class and term. Active overrides win by specificity: class and term,
// then class only, then term only, then the component default.
func (s *ComponentService) ResolveMaxScore(ctx context.Context, schoolID, componentID, classID, termID string) (float64, error) {
	key := fmt.Sprintf("maxscore:%s:%s:%s:%s", schoolID, componentID, classID, termID)
	if s.cache != nil {
		var cached float64
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("max score cache read failed", zap.String("component_id", componentID), zap.Error(err))
		}
	}

	component, err := s.Get(ctx, schoolID, componentID)
	if err != nil {
		return 0, err
	}
	structures, err := s.components.ListStructures(ctx, componentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load structures")
	}

	max := component.MaxScore
	bestRank := 0
	for _, structure := range structures {
		rank := structureRank(&structure, classID, termID)
		if rank > bestRank {
			bestRank = rank
			max = structure.MaxScore
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, max, s.maxScoreTTL); err != nil {
			s.logger.Warn("max score cache write failed", zap.String("component_id", componentID), zap.Error(err))
		}
	}
	return max, nil
}

// structureRank scores an override's specificity for the given class and
// term; zero means the override does not apply.
func structureRank(structure *models.AssessmentComponentStructure, classID, termID string) int {
	classMatch := structure.ClassID != nil && classID != "" && *structure.ClassID == classID
	termMatch := structure.TermID != nil && termID != "" && *structure.TermID == termID

	switch {
	case structure.ClassID != nil && structure.TermID != nil:
		if classMatch && termMatch {
			return 4
		}
	case structure.ClassID != nil:
		if classMatch {
			return 3
		}
	case structure.TermID != nil:
		if termMatch {
			return 2
		}
	default:
		// A fully unscoped override beats only the component default.
		return 1
	}
	return 0
}

func (s *ComponentService) checkSubjects(ctx context.Context, schoolID string, subjectIDs []string) error {
	if len(subjectIDs) == 0 {
		return nil
	}
	subjects, err := s.subjects.FindByIDs(ctx, schoolID, subjectIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	if missing := missingIDs(subjectIDs, func(id string) bool { _, ok := subjects[id]; return ok }); len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "subjects not found: "+strings.Join(missing, ", "))
	}
	return nil
}

func (s *ComponentService) invalidateMaxScores(ctx context.Context, schoolID, componentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("maxscore:%s:%s:*", schoolID, componentID)); err != nil {
		s.logger.Warn("failed to invalidate max score cache", zap.String("component_id", componentID), zap.Error(err))
	}
}
