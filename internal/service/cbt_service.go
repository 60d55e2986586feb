package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

type cbtStore interface {
	FindQuiz(ctx context.Context, schoolID, id string) (*models.Quiz, error)
	ListQuizResults(ctx context.Context, quizID string) ([]models.QuizResult, error)
	FindLink(ctx context.Context, schoolID, id string) (*models.CbtAssessmentLink, error)
	CreateLink(ctx context.Context, link *models.CbtAssessmentLink) error
	CountSyncedImports(ctx context.Context, linkID string) (int, error)
	DeleteLink(ctx context.Context, schoolID, id string) error
	ListImports(ctx context.Context, linkID string, status models.ImportStatus) ([]models.CbtScoreImport, error)
	FindImportsByIDs(ctx context.Context, linkID string, ids []string) (map[string]models.CbtScoreImport, error)
	UpdateStatuses(ctx context.Context, linkID string, ids []string, status models.ImportStatus, reason *string, approvedBy *string) error
	ApplyImportBatch(ctx context.Context, imports []models.CbtScoreImport, synced []models.SyncedImport) error
	ApplySync(ctx context.Context, synced []models.SyncedImport) error
}

type sessionReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Session, error)
}

type schoolClassReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.SchoolClass, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Subject, error)
}

type cbtMetrics interface {
	AddImportsSynced(n int)
}

// ConvertScore maps a raw CBT score into a result score. A non-positive
// quiz maximum yields 0 for every mapping instead of propagating
// infinities. Output is rounded to two decimal places.
func ConvertScore(raw, quizMax float64, mapping models.ScoreMappingType, override *float64) float64 {
	if quizMax <= 0 {
		return 0
	}
	switch mapping {
	case models.MappingPercentage:
		return round2(raw / quizMax * 100)
	case models.MappingScaled:
		target := quizMax
		if override != nil {
			target = *override
		}
		return round2(raw / quizMax * target)
	default:
		return round2(raw)
	}
}

// CreateLinkRequest binds a quiz to an assessment component.
type CreateLinkRequest struct {
	QuizID           string                  `json:"quiz_id" validate:"required,uuid4"`
	ComponentID      string                  `json:"component_id" validate:"required,uuid4"`
	SubjectID        string                  `json:"subject_id" validate:"omitempty,uuid4"`
	ClassID          string                  `json:"class_id" validate:"omitempty,uuid4"`
	SessionID        string                  `json:"session_id" validate:"omitempty,uuid4"`
	TermID           string                  `json:"term_id" validate:"omitempty,uuid4"`
	MappingType      models.ScoreMappingType `json:"mapping_type" validate:"required,oneof=direct percentage scaled"`
	MaxScoreOverride *float64                `json:"max_score_override" validate:"omitempty,gt=0"`
	AutoSync         bool                    `json:"auto_sync"`
}

// ImportSummary reports what a score import touched.
type ImportSummary struct {
	Imported          int `json:"imported"`
	Synced            int `json:"synced"`
	SkippedSynced     int `json:"skipped_synced"`
	SkippedUnknown    int `json:"skipped_unknown"`
	SkippedOutOfScope int `json:"skipped_out_of_scope"`
}

// SyncSummary reports how many approved imports landed in results.
type SyncSummary struct {
	Synced int `json:"synced"`
}

// syncTarget is the resolved destination of a link's converted scores.
type syncTarget struct {
	SubjectID   string
	SessionID   string
	TermID      string
	ComponentID string
}

// CbtService bridges the CBT engine's raw quiz outcomes into the result
// store through an explicit import, approve, sync lifecycle.
type CbtService struct {
	cbt        cbtStore
	components componentReader
	terms      termBulkReader
	sessions   sessionReader
	classes    schoolClassReader
	subjects   subjectReader
	students   studentBulkReader
	scales     defaultScaleReader
	cache      lookupCache
	audit      auditSink
	metrics    cbtMetrics

	scaleCacheTTL time.Duration
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewCbtService constructs CbtService.
func NewCbtService(
	cbt cbtStore,
	components componentReader,
	terms termBulkReader,
	sessions sessionReader,
	classes schoolClassReader,
	subjects subjectReader,
	students studentBulkReader,
	scales defaultScaleReader,
	cache lookupCache,
	audit auditSink,
	metrics cbtMetrics,
	scaleCacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *CbtService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CbtService{
		cbt:           cbt,
		components:    components,
		terms:         terms,
		sessions:      sessions,
		classes:       classes,
		subjects:      subjects,
		students:      students,
		scales:        scales,
		cache:         cache,
		audit:         audit,
		metrics:       metrics,
		scaleCacheTTL: scaleCacheTTL,
		validator:     validate,
		logger:        logger,
	}
}

// CreateLink validates every reference in the payload and stores the
// binding. The resolved subject (the link's, falling back to the quiz's)
// must be attached to the component.
func (s *CbtService) CreateLink(ctx context.Context, schoolID string, req CreateLinkRequest) (*models.CbtAssessmentLink, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid link payload")
	}
	if req.MaxScoreOverride != nil && req.MappingType != models.MappingScaled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_score_override only applies to scaled mapping")
	}

	quiz, err := s.cbt.FindQuiz(ctx, schoolID, req.QuizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	component, err := s.components.FindByID(ctx, schoolID, req.ComponentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component")
	}

	subjectID := req.SubjectID
	if subjectID == "" {
		subjectID = quiz.SubjectID
	}
	if subjectID != "" {
		if _, err := s.subjects.FindByID(ctx, schoolID, subjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
		}
		if !component.AppliesToSubject(subjectID) {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("component %s is not attached to subject %s", component.Name, subjectID))
		}
	}

	if req.ClassID != "" {
		if _, err := s.classes.FindByID(ctx, schoolID, req.ClassID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
	}
	if req.SessionID != "" {
		if _, err := s.sessions.FindByID(ctx, schoolID, req.SessionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		}
	}
	if req.TermID != "" {
		term, err := s.terms.FindByID(ctx, schoolID, req.TermID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
		}
		if req.SessionID != "" && term.SessionID != req.SessionID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "term does not belong to the given session")
		}
	}

	link := &models.CbtAssessmentLink{
		SchoolID:         schoolID,
		QuizID:           req.QuizID,
		ComponentID:      req.ComponentID,
		SubjectID:        models.UUIDRef(req.SubjectID),
		ClassID:          models.UUIDRef(req.ClassID),
		SessionID:        models.UUIDRef(req.SessionID),
		TermID:           models.UUIDRef(req.TermID),
		MappingType:      req.MappingType,
		MaxScoreOverride: req.MaxScoreOverride,
		AutoSync:         req.AutoSync,
	}
	if err := s.cbt.CreateLink(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create link")
	}
	return link, nil
}

// GetLink returns a link by id.
func (s *CbtService) GetLink(ctx context.Context, schoolID, linkID string) (*models.CbtAssessmentLink, error) {
	link, err := s.cbt.FindLink(ctx, schoolID, linkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "link not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load link")
	}
	return link, nil
}

// DeleteLink removes a link and its non-synced imports. Links with
// synced imports are kept so the result provenance trail survives.
func (s *CbtService) DeleteLink(ctx context.Context, schoolID, linkID string) error {
	if _, err := s.GetLink(ctx, schoolID, linkID); err != nil {
		return err
	}
	synced, err := s.cbt.CountSyncedImports(ctx, linkID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count synced imports")
	}
	if synced > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "link has synced imports and cannot be deleted")
	}
	if err := s.cbt.DeleteLink(ctx, schoolID, linkID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete link")
	}
	return nil
}

// ListImports returns a link's imports, optionally filtered by status.
func (s *CbtService) ListImports(ctx context.Context, schoolID, linkID string, status models.ImportStatus) ([]models.CbtScoreImport, error) {
	if _, err := s.GetLink(ctx, schoolID, linkID); err != nil {
		return nil, err
	}
	imports, err := s.cbt.ListImports(ctx, linkID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list imports")
	}
	return imports, nil
}

// ImportScores pulls the quiz's raw outcomes into pending import rows.
// Outcomes whose student falls outside the link's class/session/term
// scope are skipped, as are students whose import already synced; every
// other row is overwritten and reset to pending. On auto-sync links the
// fresh rows are approved and written to results inside the same
// transaction.
func (s *CbtService) ImportScores(ctx context.Context, schoolID, actorID, linkID string) (*ImportSummary, error) {
	link, err := s.GetLink(ctx, schoolID, linkID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.cbt.FindQuiz(ctx, schoolID, link.QuizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	outcomes, err := s.cbt.ListQuizResults(ctx, quiz.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz results")
	}
	if len(outcomes) == 0 {
		return &ImportSummary{}, nil
	}

	existing, err := s.cbt.ListImports(ctx, linkID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load imports")
	}
	existingByStudent := make(map[string]models.CbtScoreImport, len(existing))
	for _, imp := range existing {
		existingByStudent[imp.StudentID] = imp
	}

	studentIDs := uniqueStrings(func(yield func(string)) {
		for _, o := range outcomes {
			yield(o.StudentID)
		}
	})
	students, err := s.students.FindByIDs(ctx, schoolID, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	summary := &ImportSummary{}
	var imports []models.CbtScoreImport
	for _, outcome := range outcomes {
		student, ok := students[outcome.StudentID]
		if !ok {
			summary.SkippedUnknown++
			continue
		}
		if !studentInLinkScope(student, link) {
			summary.SkippedOutOfScope++
			continue
		}
		if prev, ok := existingByStudent[outcome.StudentID]; ok && prev.Status == models.ImportStatusSynced {
			summary.SkippedSynced++
			continue
		}
		imp := models.CbtScoreImport{
			SchoolID:       schoolID,
			LinkID:         linkID,
			StudentID:      outcome.StudentID,
			RawScore:       outcome.Score,
			ConvertedScore: ConvertScore(outcome.Score, quiz.TotalMarks, link.MappingType, link.MaxScoreOverride),
			Status:         models.ImportStatusPending,
		}
		// Reuse the stored row id so auto-sync status updates hit the
		// row the upsert actually kept. Fresh rows get their id up
		// front for the same reason.
		if prev, ok := existingByStudent[outcome.StudentID]; ok {
			imp.ID = prev.ID
			imp.CreatedAt = prev.CreatedAt
		} else {
			imp.ID = uuid.NewString()
		}
		imports = append(imports, imp)
	}
	summary.Imported = len(imports)

	var synced []models.SyncedImport
	if link.AutoSync && len(imports) > 0 {
		synced, err = s.buildSyncBatch(ctx, schoolID, actorID, link, quiz, imports)
		if err != nil {
			return nil, err
		}
		summary.Synced = len(synced)
	}

	if len(imports) > 0 {
		if err := s.cbt.ApplyImportBatch(ctx, imports, synced); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply import batch")
		}
	}

	if s.metrics != nil && len(synced) > 0 {
		s.metrics.AddImportsSynced(len(synced))
	}
	recordAudit(s.audit, s.logger, models.AuditLog{
		SchoolID:   schoolID,
		UserID:     &actorID,
		Action:     models.AuditActionCbtImport,
		Resource:   "cbt_score_imports",
		ResourceID: &linkID,
		NewValues:  auditPayload(summary),
	})
	return summary, nil
}

// Approve moves pending imports to approved and hands the link straight
// to the sync pipeline. The batch is all-or-nothing: one unknown or
// non-pending id rejects the whole request.
func (s *CbtService) Approve(ctx context.Context, schoolID, approverID, linkID string, ids []string) error {
	if len(ids) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no import ids given")
	}
	if _, err := s.GetLink(ctx, schoolID, linkID); err != nil {
		return err
	}
	if err := s.requireStatus(ctx, linkID, ids, models.ImportStatusPending); err != nil {
		return err
	}
	if err := s.cbt.UpdateStatuses(ctx, linkID, ids, models.ImportStatusApproved, nil, &approverID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve imports")
	}
	if _, err := s.SyncApprovedScores(ctx, schoolID, approverID, linkID); err != nil {
		return err
	}
	return nil
}

// Reject moves pending imports to rejected with a reason.
func (s *CbtService) Reject(ctx context.Context, schoolID, linkID string, ids []string, reason string) error {
	if len(ids) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no import ids given")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	if _, err := s.GetLink(ctx, schoolID, linkID); err != nil {
		return err
	}
	if err := s.requireStatus(ctx, linkID, ids, models.ImportStatusPending); err != nil {
		return err
	}
	if err := s.cbt.UpdateStatuses(ctx, linkID, ids, models.ImportStatusRejected, &reason, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject imports")
	}
	return nil
}

// SyncApprovedScores writes every approved import's converted score into
// results and marks the imports synced, atomically. The link's targets
// are re-validated at sync time since components, terms and subjects may
// have changed since import.
func (s *CbtService) SyncApprovedScores(ctx context.Context, schoolID, actorID, linkID string) (*SyncSummary, error) {
	link, err := s.GetLink(ctx, schoolID, linkID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.cbt.FindQuiz(ctx, schoolID, link.QuizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	approved, err := s.cbt.ListImports(ctx, linkID, models.ImportStatusApproved)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved imports")
	}
	if len(approved) == 0 {
		return &SyncSummary{}, nil
	}

	synced, err := s.buildSyncBatch(ctx, schoolID, actorID, link, quiz, approved)
	if err != nil {
		return nil, err
	}

	if err := s.cbt.ApplySync(ctx, synced); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync imports")
	}

	if s.metrics != nil {
		s.metrics.AddImportsSynced(len(synced))
	}
	recordAudit(s.audit, s.logger, models.AuditLog{
		SchoolID:   schoolID,
		UserID:     &actorID,
		Action:     models.AuditActionCbtSync,
		Resource:   "cbt_score_imports",
		ResourceID: &linkID,
		NewValues:  auditPayload(map[string]int{"synced": len(synced)}),
	})
	return &SyncSummary{Synced: len(synced)}, nil
}

func (s *CbtService) requireStatus(ctx context.Context, linkID string, ids []string, want models.ImportStatus) error {
	imports, err := s.cbt.FindImportsByIDs(ctx, linkID, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load imports")
	}
	var missing []string
	for _, id := range ids {
		imp, ok := imports[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if imp.Status != want {
			return appErrors.Clone(appErrors.ErrInvalidState,
				fmt.Sprintf("import %s is %s, expected %s", id, imp.Status, want))
		}
	}
	if len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "imports not found: "+strings.Join(missing, ", "))
	}
	return nil
}

// resolveSyncTarget determines where a link's converted scores land,
// naming the first mismatched reference when the link no longer lines up.
func (s *CbtService) resolveSyncTarget(ctx context.Context, schoolID string, link *models.CbtAssessmentLink, quiz *models.Quiz) (*syncTarget, error) {
	subjectID := link.SubjectID.String()
	if subjectID == "" {
		subjectID = quiz.SubjectID
	}
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "link resolves to no subject")
	}

	component, err := s.components.FindByID(ctx, schoolID, link.ComponentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component")
	}
	if !component.AppliesToSubject(subjectID) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("component %s is not attached to subject %s", component.Name, subjectID))
	}

	termID := link.TermID.String()
	if termID == "" {
		// No pinned term; the batch derives one per student from their
		// current placement.
		return &syncTarget{
			SubjectID:   subjectID,
			SessionID:   link.SessionID.String(),
			ComponentID: link.ComponentID,
		}, nil
	}
	term, err := s.terms.FindByID(ctx, schoolID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.Locked() {
		return nil, appErrors.Clone(appErrors.ErrTermLocked, fmt.Sprintf("term %s is archived", termID))
	}
	if sess := link.SessionID.String(); sess != "" && sess != term.SessionID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "link session does not match the term's session")
	}

	return &syncTarget{
		SubjectID:   subjectID,
		SessionID:   term.SessionID,
		TermID:      termID,
		ComponentID: link.ComponentID,
	}, nil
}

// buildSyncBatch turns imports into synced entries aimed at the link's
// resolved target. Links that pin no term fall back to each student's
// current term and session.
func (s *CbtService) buildSyncBatch(ctx context.Context, schoolID, actorID string, link *models.CbtAssessmentLink, quiz *models.Quiz, imports []models.CbtScoreImport) ([]models.SyncedImport, error) {
	target, err := s.resolveSyncTarget(ctx, schoolID, link, quiz)
	if err != nil {
		return nil, err
	}
	var perStudent map[string]*syncTarget
	if target.TermID == "" {
		perStudent, err = s.studentTargets(ctx, schoolID, target, imports)
		if err != nil {
			return nil, err
		}
	}
	scale, err := loadDefaultScale(ctx, s.scales, s.cache, s.scaleCacheTTL, s.logger, schoolID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	synced := make([]models.SyncedImport, 0, len(imports))
	for _, imp := range imports {
		tgt := target
		if perStudent != nil {
			tgt = perStudent[imp.StudentID]
		}
		synced = append(synced, buildSyncedEntry(schoolID, tgt, scale, imp, actorID, now))
	}
	return synced, nil
}

// studentTargets derives a sync target per student from their current
// term. The link's session, when set, must agree with each derived term.
func (s *CbtService) studentTargets(ctx context.Context, schoolID string, base *syncTarget, imports []models.CbtScoreImport) (map[string]*syncTarget, error) {
	ids := uniqueStrings(func(yield func(string)) {
		for _, imp := range imports {
			yield(imp.StudentID)
		}
	})
	students, err := s.students.FindByIDs(ctx, schoolID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	termIDs := uniqueStrings(func(yield func(string)) {
		for _, student := range students {
			yield(student.TermID.String())
		}
	})
	terms, err := s.terms.FindByIDs(ctx, schoolID, termIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load terms")
	}

	targets := make(map[string]*syncTarget, len(ids))
	for _, id := range ids {
		student, ok := students[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", id))
		}
		termID := student.TermID.String()
		if termID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("student %s has no current term to sync into", id))
		}
		term, ok := terms[termID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("term %s not found", termID))
		}
		if term.Locked() {
			return nil, appErrors.Clone(appErrors.ErrTermLocked, fmt.Sprintf("term %s is archived", termID))
		}
		if base.SessionID != "" && base.SessionID != term.SessionID {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("link session does not match student %s's current term", id))
		}
		targets[id] = &syncTarget{
			SubjectID:   base.SubjectID,
			SessionID:   term.SessionID,
			TermID:      termID,
			ComponentID: base.ComponentID,
		}
	}
	return targets, nil
}

// studentInLinkScope reports whether the student falls inside the link's
// class, session and term scoping. Unset link fields match everyone.
func studentInLinkScope(student models.Student, link *models.CbtAssessmentLink) bool {
	if id := link.ClassID.String(); id != "" && student.SchoolClassID.String() != id {
		return false
	}
	if id := link.SessionID.String(); id != "" && student.SessionID.String() != id {
		return false
	}
	if id := link.TermID.String(); id != "" && student.TermID.String() != id {
		return false
	}
	return true
}

func buildSyncedEntry(schoolID string, target *syncTarget, scale *models.GradingScale, imp models.CbtScoreImport, actorID string, now time.Time) models.SyncedImport {
	imp.Status = models.ImportStatusSynced
	imp.SyncedAt = &now
	if imp.ApprovedBy == nil {
		imp.ApprovedBy = &actorID
		imp.ApprovedAt = &now
	}
	componentID := target.ComponentID
	return models.SyncedImport{
		Import: imp,
		Result: models.Result{
			SchoolID:      schoolID,
			StudentID:     imp.StudentID,
			SubjectID:     target.SubjectID,
			SessionID:     target.SessionID,
			TermID:        target.TermID,
			ComponentID:   &componentID,
			ComponentSlot: componentID,
			TotalScore:    imp.ConvertedScore,
			GradeID:       resolveGradeID(scale, imp.ConvertedScore),
		},
	}
}
