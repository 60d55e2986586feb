package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

type promotionStore interface {
	ApplyBatch(ctx context.Context, promotions []models.StudentPromotion) error
	ListLogs(ctx context.Context, schoolID, studentID string) ([]models.PromotionLog, error)
}

type classStructureReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.SchoolClass, error)
	FindArmByID(ctx context.Context, schoolID, id string) (*models.ClassArm, error)
	FindSectionByID(ctx context.Context, schoolID, id string) (*models.ClassSection, error)
}

type promotionTermReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Term, error)
	EarliestBySession(ctx context.Context, schoolID, sessionID string) (*models.Term, error)
}

type promotionMetrics interface {
	AddStudentsPromoted(n int)
}

// PromoteStudentsRequest moves a batch of students into a new placement.
// When term_id is omitted the earliest term of the target session by
// start date is used.
type PromoteStudentsRequest struct {
	StudentIDs     []string `json:"student_ids" validate:"required,min=1,dive,uuid4"`
	ToClassID      string   `json:"to_class_id" validate:"required,uuid4"`
	ToArmID        string   `json:"to_arm_id" validate:"omitempty,uuid4"`
	ToSectionID    string   `json:"to_section_id" validate:"omitempty,uuid4"`
	ToSessionID    string   `json:"to_session_id" validate:"required,uuid4"`
	TermID         string   `json:"term_id" validate:"omitempty,uuid4"`
	RetainSubjects bool     `json:"retain_subjects"`
}

// PromotionResult pairs a moved student with the log row recording the move.
type PromotionResult struct {
	StudentID string `json:"student_id"`
	LogID     string `json:"log_id"`
}

// PromotionSummary reports how many students moved and the log row
// written for each of them.
type PromotionSummary struct {
	Promoted int               `json:"promoted"`
	Results  []PromotionResult `json:"results"`
}

// PromotionService runs the batch promotion pipeline. Every target
// reference is resolved before any write, and the batch commits as a
// whole or not at all.
type PromotionService struct {
	promotions promotionStore
	students   studentBulkReader
	classes    classStructureReader
	sessions   sessionReader
	terms      promotionTermReader
	audit      auditSink
	metrics    promotionMetrics

	validator *validator.Validate
	logger    *zap.Logger
}

// NewPromotionService constructs PromotionService.
func NewPromotionService(
	promotions promotionStore,
	students studentBulkReader,
	classes classStructureReader,
	sessions sessionReader,
	terms promotionTermReader,
	audit auditSink,
	metrics promotionMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
) *PromotionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{
		promotions: promotions,
		students:   students,
		classes:    classes,
		sessions:   sessions,
		terms:      terms,
		audit:      audit,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// PromoteStudents validates the target placement, snapshots each
// student's current placement into an append-only log, and applies every
// move in one transaction.
func (s *PromotionService) PromoteStudents(ctx context.Context, schoolID, performedBy string, req PromoteStudentsRequest) (*PromotionSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promotion payload")
	}

	if _, err := s.classes.FindByID(ctx, schoolID, req.ToClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target class")
	}
	if _, err := s.sessions.FindByID(ctx, schoolID, req.ToSessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target session")
	}

	// An arm is only valid inside the target class; students keep their
	// current arm when none is given.
	if req.ToArmID != "" {
		arm, err := s.classes.FindArmByID(ctx, schoolID, req.ToArmID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "target arm not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target arm")
		}
		if arm.ClassID != req.ToClassID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "target arm does not belong to the target class")
		}
	}
	if req.ToSectionID != "" {
		if _, err := s.classes.FindSectionByID(ctx, schoolID, req.ToSectionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "target section not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target section")
		}
	}

	term, err := s.resolveTargetTerm(ctx, schoolID, req.ToSessionID, req.TermID)
	if err != nil {
		return nil, err
	}

	students, err := s.students.FindByIDs(ctx, schoolID, req.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	var missing []string
	for _, id := range req.StudentIDs {
		if _, ok := students[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "students not found: "+strings.Join(missing, ", "))
	}

	meta := auditPayload(models.PromotionMeta{RetainSubjects: req.RetainSubjects})
	promotions := make([]models.StudentPromotion, 0, len(req.StudentIDs))
	for _, id := range req.StudentIDs {
		student := students[id]
		log := models.PromotionLog{
			ID:            uuid.NewString(),
			SchoolID:      schoolID,
			StudentID:     student.ID,
			FromSessionID: student.SessionID,
			FromTermID:    student.TermID,
			FromClassID:   student.SchoolClassID,
			FromArmID:     student.ClassArmID,
			FromSectionID: student.ClassSectionID,
			ToSessionID:   models.UUIDRef(req.ToSessionID),
			ToTermID:      models.UUIDRef(term.ID),
			ToClassID:     models.UUIDRef(req.ToClassID),
			PerformedBy:   performedBy,
			Meta:          meta,
		}

		student.SchoolClassID = models.UUIDRef(req.ToClassID)
		if req.ToArmID != "" {
			student.ClassArmID = models.UUIDRef(req.ToArmID)
		}
		if req.ToSectionID != "" {
			student.ClassSectionID = models.UUIDRef(req.ToSectionID)
		}
		student.SessionID = models.UUIDRef(req.ToSessionID)
		student.TermID = models.UUIDRef(term.ID)

		log.ToArmID = student.ClassArmID
		log.ToSectionID = student.ClassSectionID

		promotions = append(promotions, models.StudentPromotion{Student: student, Log: log})
	}

	if err := s.promotions.ApplyBatch(ctx, promotions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply promotions")
	}

	if s.metrics != nil {
		s.metrics.AddStudentsPromoted(len(promotions))
	}
	recordAudit(s.audit, s.logger, models.AuditLog{
		SchoolID: schoolID,
		UserID:   &performedBy,
		Action:   models.AuditActionPromotion,
		Resource: "students",
		NewValues: auditPayload(map[string]interface{}{
			"promoted":      len(promotions),
			"to_class_id":   req.ToClassID,
			"to_session_id": req.ToSessionID,
			"to_term_id":    term.ID,
		}),
	})
	results := make([]PromotionResult, 0, len(promotions))
	for _, p := range promotions {
		results = append(results, PromotionResult{StudentID: p.Student.ID, LogID: p.Log.ID})
	}
	return &PromotionSummary{Promoted: len(promotions), Results: results}, nil
}

// History returns a student's promotion log, newest first.
func (s *PromotionService) History(ctx context.Context, schoolID, studentID string) ([]models.PromotionLog, error) {
	if _, err := s.students.FindByID(ctx, schoolID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	logs, err := s.promotions.ListLogs(ctx, schoolID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list promotion logs")
	}
	return logs, nil
}

func (s *PromotionService) resolveTargetTerm(ctx context.Context, schoolID, sessionID, termID string) (*models.Term, error) {
	if termID != "" {
		term, err := s.terms.FindByID(ctx, schoolID, termID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "target term not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target term")
		}
		if term.SessionID != sessionID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "target term does not belong to the target session")
		}
		return term, nil
	}

	term, err := s.terms.EarliestBySession(ctx, schoolID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "target session has no terms")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve target term")
	}
	return term, nil
}
