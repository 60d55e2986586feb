package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

type gradingStore interface {
	FindScale(ctx context.Context, schoolID, id string) (*models.GradingScale, error)
	DefaultScale(ctx context.Context, schoolID string) (*models.GradingScale, error)
	ListScales(ctx context.Context, schoolID string) ([]models.GradingScale, error)
	CreateScale(ctx context.Context, scale *models.GradingScale) error
	ListRanges(ctx context.Context, scaleID string) ([]models.GradeRange, error)
	CountResultsByRanges(ctx context.Context, rangeIDs []string) (map[string]int, error)
	ApplyRangeChanges(ctx context.Context, scaleID string, deleteIDs []string, updates, inserts []models.GradeRange) error
}

type gradingCache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GradeRangeInput is a single range within an update-ranges payload.
// Entries with an id update the existing row; entries without insert.
type GradeRangeInput struct {
	ID          string   `json:"id"`
	MinScore    float64  `json:"min_score"`
	MaxScore    float64  `json:"max_score"`
	GradeLabel  string   `json:"grade_label" validate:"required"`
	Description *string  `json:"description"`
	GradePoint  *float64 `json:"grade_point"`
}

// UpdateRangesRequest replaces a scale's range set.
type UpdateRangesRequest struct {
	Ranges     []GradeRangeInput `json:"ranges" validate:"required,min=1,dive"`
	DeletedIDs []string          `json:"deleted_ids"`
}

// CreateScaleRequest creates a grading scale.
type CreateScaleRequest struct {
	Name      string `json:"name" validate:"required"`
	IsDefault bool   `json:"is_default"`
}

// GradingService manages grading scales and their range sets.
type GradingService struct {
	scales    gradingStore
	cache     gradingCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradingService constructs GradingService.
func NewGradingService(scales gradingStore, cache gradingCache, validate *validator.Validate, logger *zap.Logger) *GradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{scales: scales, cache: cache, validator: validate, logger: logger}
}

// CreateScale registers a new grading scale for the school.
func (s *GradingService) CreateScale(ctx context.Context, schoolID string, req CreateScaleRequest) (*models.GradingScale, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scale payload")
	}
	scale := &models.GradingScale{SchoolID: schoolID, Name: strings.TrimSpace(req.Name), IsDefault: req.IsDefault}
	if err := s.scales.CreateScale(ctx, scale); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create scale")
	}
	return scale, nil
}

// ListScales returns the school's grading scales.
func (s *GradingService) ListScales(ctx context.Context, schoolID string) ([]models.GradingScale, error) {
	scales, err := s.scales.ListScales(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scales")
	}
	return scales, nil
}

// GetScale returns a scale with its ranges hydrated.
func (s *GradingService) GetScale(ctx context.Context, schoolID, scaleID string) (*models.GradingScale, error) {
	scale, err := s.scales.FindScale(ctx, schoolID, scaleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grading scale not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scale")
	}
	ranges, err := s.scales.ListRanges(ctx, scale.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ranges")
	}
	scale.Ranges = ranges
	return scale, nil
}

// UpdateRanges validates and applies a full range-set edit. The accepted
// set must carry unique labels, no overlaps, and integer-contiguous
// coverage of exactly 0-100. Deletions blocked by existing results or
// referencing unknown ids fail the whole operation; nothing commits
// unless everything does.
func (s *GradingService) UpdateRanges(ctx context.Context, schoolID, scaleID string, req UpdateRangesRequest) (*models.GradingScale, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ranges payload")
	}

	if _, err := s.scales.FindScale(ctx, schoolID, scaleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grading scale not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scale")
	}

	normalized := normalizeRanges(req.Ranges)
	if err := validateRangeSet(normalized); err != nil {
		return nil, err
	}

	existing, err := s.scales.ListRanges(ctx, scaleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ranges")
	}
	existingIDs := make(map[string]bool, len(existing))
	for _, r := range existing {
		existingIDs[r.ID] = true
	}

	for _, id := range req.DeletedIDs {
		if !existingIDs[id] {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("grade range %s not found", id))
		}
	}
	usage, err := s.scales.CountResultsByRanges(ctx, req.DeletedIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check range usage")
	}
	for id, count := range usage {
		if count > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("grade range %s is still referenced by results", id))
		}
	}

	var updates, inserts []models.GradeRange
	for _, r := range normalized {
		if r.ID != "" {
			if !existingIDs[r.ID] {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("grade range %s not found", r.ID))
			}
			updates = append(updates, r)
		} else {
			inserts = append(inserts, r)
		}
	}

	if err := s.scales.ApplyRangeChanges(ctx, scaleID, req.DeletedIDs, updates, inserts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade range not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply range changes")
	}

	s.invalidate(ctx, schoolID)
	return s.GetScale(ctx, schoolID, scaleID)
}

func (s *GradingService) invalidate(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("grading:%s:*", schoolID)); err != nil {
		s.logger.Warn("failed to invalidate grading cache", zap.String("school_id", schoolID), zap.Error(err))
	}
}

func normalizeRanges(inputs []GradeRangeInput) []models.GradeRange {
	now := time.Now().UTC()
	ranges := make([]models.GradeRange, 0, len(inputs))
	for _, in := range inputs {
		ranges = append(ranges, models.GradeRange{
			ID:          in.ID,
			MinScore:    round2(in.MinScore),
			MaxScore:    round2(in.MaxScore),
			GradeLabel:  strings.ToUpper(strings.TrimSpace(in.GradeLabel)),
			Description: in.Description,
			GradePoint:  in.GradePoint,
			UpdatedAt:   now,
		})
	}
	return ranges
}

// validateRangeSet enforces the range-set invariants on normalized input:
// unique labels, ascending non-overlapping bands, and integer-contiguous
// coverage from 0 to 100.
func validateRangeSet(ranges []models.GradeRange) error {
	labels := make(map[string]bool, len(ranges))
	for _, r := range ranges {
		if r.MinScore > r.MaxScore {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("range %s has min above max", r.GradeLabel))
		}
		if labels[r.GradeLabel] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate grade label %s", r.GradeLabel))
		}
		labels[r.GradeLabel] = true
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].MinScore < ranges[j].MinScore })

	for i := 1; i < len(ranges); i++ {
		if ranges[i-1].MaxScore >= ranges[i].MinScore {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("ranges %s and %s overlap", ranges[i-1].GradeLabel, ranges[i].GradeLabel))
		}
	}

	if roundInt(ranges[0].MinScore) != 0 {
		return appErrors.Clone(appErrors.ErrValidation, "range set must start at 0")
	}
	if roundInt(ranges[len(ranges)-1].MaxScore) != 100 {
		return appErrors.Clone(appErrors.ErrValidation, "range set must end at 100")
	}

	for i := 1; i < len(ranges); i++ {
		if roundInt(ranges[i].MinScore) != roundInt(ranges[i-1].MaxScore)+1 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("gap between %s and %s", ranges[i-1].GradeLabel, ranges[i].GradeLabel))
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
