package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
	"github.com/schoolcore/sms-api/pkg/export"
)

type resultStore interface {
	FindByKeys(ctx context.Context, schoolID string, keys []models.ResultKey) (map[models.ResultKey]models.Result, error)
	ApplyBatch(ctx context.Context, inserts, updates []models.Result) error
	List(ctx context.Context, schoolID string, filter models.ResultFilter) ([]models.Result, int, error)
	ListByStudentTerm(ctx context.Context, schoolID, studentID, termID string) ([]models.ResultExportRow, error)
}

type studentBulkReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Student, error)
	FindByIDs(ctx context.Context, schoolID string, ids []string) (map[string]models.Student, error)
}

type subjectBulkReader interface {
	FindByIDs(ctx context.Context, schoolID string, ids []string) (map[string]models.Subject, error)
}

type termBulkReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Term, error)
	FindByIDs(ctx context.Context, schoolID string, ids []string) (map[string]models.Term, error)
}

type componentReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.AssessmentComponent, error)
}

type defaultScaleReader interface {
	DefaultScale(ctx context.Context, schoolID string) (*models.GradingScale, error)
}

type lookupCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type resultMetrics interface {
	AddResultsUpserted(n int)
}

// ResultEntry is one row of a batch upsert. Entry-level session/term
// override the batch defaults; the effective term is mandatory and the
// session always derives from it.
type ResultEntry struct {
	StudentID   string  `json:"student_id" validate:"required,uuid4"`
	SubjectID   string  `json:"subject_id" validate:"required,uuid4"`
	SessionID   string  `json:"session_id" validate:"omitempty,uuid4"`
	TermID      string  `json:"term_id" validate:"omitempty,uuid4"`
	ComponentID *string `json:"component_id" validate:"omitempty,uuid4"`
	TotalScore  float64 `json:"total_score" validate:"gte=0,lte=100"`
	Remarks     *string `json:"remarks"`
}

// BatchUpsertRequest carries a result batch and its defaults.
type BatchUpsertRequest struct {
	SessionID string        `json:"session_id" validate:"omitempty,uuid4"`
	TermID    string        `json:"term_id" validate:"omitempty,uuid4"`
	Results   []ResultEntry `json:"results" validate:"required,min=1,dive"`
}

// BatchUpsertResponse reports what the batch changed and echoes the
// stored rows, insert rows first. Entries whose stored values already
// match count as unchanged, not updated.
type BatchUpsertResponse struct {
	Created   int             `json:"created"`
	Updated   int             `json:"updated"`
	Unchanged int             `json:"unchanged"`
	Rows      []models.Result `json:"rows"`
}

// ResultService runs the result batch pipeline: referential validation
// up front, then a single atomic write of the surviving rows.
type ResultService struct {
	results    resultStore
	students   studentBulkReader
	subjects   subjectBulkReader
	terms      termBulkReader
	components componentReader
	scales     defaultScaleReader
	cache      lookupCache
	audit      auditSink
	metrics    resultMetrics

	maxBatchSize  int
	scaleCacheTTL time.Duration
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewResultService constructs ResultService.
func NewResultService(
	results resultStore,
	students studentBulkReader,
	subjects subjectBulkReader,
	terms termBulkReader,
	components componentReader,
	scales defaultScaleReader,
	cache lookupCache,
	audit auditSink,
	metrics resultMetrics,
	maxBatchSize int,
	scaleCacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *ResultService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 500
	}
	return &ResultService{
		results:       results,
		students:      students,
		subjects:      subjects,
		terms:         terms,
		components:    components,
		scales:        scales,
		cache:         cache,
		audit:         audit,
		metrics:       metrics,
		maxBatchSize:  maxBatchSize,
		scaleCacheTTL: scaleCacheTTL,
		validator:     validate,
		logger:        logger,
	}
}

// BatchUpsert validates and applies a batch of result rows. All
// referential checks run before any write; a batch that fails any check
// writes nothing. Re-submitting an identical batch reports every entry
// unchanged.
func (s *ResultService) BatchUpsert(ctx context.Context, schoolID, userID string, req BatchUpsertRequest) (*BatchUpsertResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result batch")
	}
	if len(req.Results) > s.maxBatchSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch exceeds %d entries", s.maxBatchSize))
	}

	entries, err := s.resolveEntries(req)
	if err != nil {
		return nil, err
	}

	terms, err := s.fetchTerms(ctx, schoolID, entries)
	if err != nil {
		return nil, err
	}
	if err := s.checkStudentsAndSubjects(ctx, schoolID, entries); err != nil {
		return nil, err
	}
	if err := s.checkComponents(ctx, schoolID, entries); err != nil {
		return nil, err
	}

	// Entry-level session ids must agree with the term's session.
	for i := range entries {
		term := terms[entries[i].TermID]
		if entries[i].SessionID != "" && entries[i].SessionID != term.SessionID {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("session %s does not match term %s", entries[i].SessionID, entries[i].TermID))
		}
		entries[i].SessionID = term.SessionID
	}

	keys := make([]models.ResultKey, 0, len(entries))
	seen := make(map[models.ResultKey]bool, len(entries))
	for _, e := range entries {
		key := models.ResultKey{
			StudentID:     e.StudentID,
			SubjectID:     e.SubjectID,
			SessionID:     e.SessionID,
			TermID:        e.TermID,
			ComponentSlot: models.ComponentSlot(e.ComponentID),
		}
		if seen[key] {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("duplicate entry for student %s subject %s", e.StudentID, e.SubjectID))
		}
		seen[key] = true
		keys = append(keys, key)
	}

	existing, err := s.results.FindByKeys(ctx, schoolID, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing results")
	}

	scale, err := s.defaultScale(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	var inserts, updates, untouched []models.Result
	for i, e := range entries {
		gradeID := resolveGradeID(scale, e.TotalScore)
		current, ok := existing[keys[i]]
		if !ok {
			inserts = append(inserts, models.Result{
				SchoolID:      schoolID,
				StudentID:     e.StudentID,
				SubjectID:     e.SubjectID,
				SessionID:     e.SessionID,
				TermID:        e.TermID,
				ComponentID:   e.ComponentID,
				ComponentSlot: keys[i].ComponentSlot,
				TotalScore:    e.TotalScore,
				Remarks:       e.Remarks,
				GradeID:       gradeID,
			})
			continue
		}
		if resultUnchanged(&current, e.TotalScore, e.Remarks, gradeID) {
			untouched = append(untouched, current)
			continue
		}
		current.TotalScore = e.TotalScore
		current.Remarks = e.Remarks
		current.GradeID = gradeID
		updates = append(updates, current)
	}

	// ApplyBatch stamps ids and timestamps in place, so the rows are
	// collected after it returns.
	if err := s.results.ApplyBatch(ctx, inserts, updates); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply result batch")
	}
	rows := make([]models.Result, 0, len(entries))
	rows = append(rows, inserts...)
	rows = append(rows, updates...)
	rows = append(rows, untouched...)

	if s.metrics != nil {
		s.metrics.AddResultsUpserted(len(inserts) + len(updates))
	}
	recordAudit(s.audit, s.logger, models.AuditLog{
		SchoolID: schoolID,
		UserID:   &userID,
		Action:   models.AuditActionResultBatchUpsert,
		Resource: "results",
		NewValues: auditPayload(map[string]int{
			"created": len(inserts), "updated": len(updates), "unchanged": len(untouched),
		}),
	})

	return &BatchUpsertResponse{
		Created:   len(inserts),
		Updated:   len(updates),
		Unchanged: len(untouched),
		Rows:      rows,
	}, nil
}

// List returns results matching the filter with pagination metadata.
func (s *ResultService) List(ctx context.Context, schoolID string, filter models.ResultFilter) ([]models.Result, *models.Pagination, error) {
	results, total, err := s.results.List(ctx, schoolID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Export renders a student's term results as CSV or PDF.
func (s *ResultService) Export(ctx context.Context, schoolID, studentID, termID, format string) ([]byte, string, error) {
	student, err := s.students.FindByID(ctx, schoolID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	term, err := s.terms.FindByID(ctx, schoolID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	rows, err := s.results.ListByStudentTerm(ctx, schoolID, studentID, termID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("%s - %s", student.FullName, term.Name),
		Headers: []string{"Subject", "Score", "Grade", "Remarks"},
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Subject": row.SubjectName,
			"Score":   fmt.Sprintf("%.2f", row.TotalScore),
			"Grade":   row.GradeLabel,
			"Remarks": row.Remarks,
		})
	}

	var exporter export.Exporter
	var contentType string
	switch strings.ToLower(format) {
	case "pdf":
		exporter = export.NewPDFExporter()
		contentType = "application/pdf"
	case "", "csv":
		exporter = export.NewCSVExporter()
		contentType = "text/csv"
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}

	payload, err := exporter.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, contentType, nil
}

func (s *ResultService) resolveEntries(req BatchUpsertRequest) ([]ResultEntry, error) {
	entries := make([]ResultEntry, len(req.Results))
	copy(entries, req.Results)
	for i := range entries {
		if entries[i].TermID == "" {
			entries[i].TermID = req.TermID
		}
		if entries[i].SessionID == "" {
			entries[i].SessionID = req.SessionID
		}
		if entries[i].TermID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %d has no term", i))
		}
	}
	return entries, nil
}

func (s *ResultService) fetchTerms(ctx context.Context, schoolID string, entries []ResultEntry) (map[string]models.Term, error) {
	ids := uniqueStrings(func(yield func(string)) {
		for _, e := range entries {
			yield(e.TermID)
		}
	})
	terms, err := s.terms.FindByIDs(ctx, schoolID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load terms")
	}
	var missing []string
	for _, id := range ids {
		term, ok := terms[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if term.Locked() {
			return nil, appErrors.Clone(appErrors.ErrTermLocked, fmt.Sprintf("term %s is archived", id))
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "terms not found: "+strings.Join(missing, ", "))
	}
	return terms, nil
}

func (s *ResultService) checkStudentsAndSubjects(ctx context.Context, schoolID string, entries []ResultEntry) error {
	studentIDs := uniqueStrings(func(yield func(string)) {
		for _, e := range entries {
			yield(e.StudentID)
		}
	})
	subjectIDs := uniqueStrings(func(yield func(string)) {
		for _, e := range entries {
			yield(e.SubjectID)
		}
	})

	students, err := s.students.FindByIDs(ctx, schoolID, studentIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	if missing := missingIDs(studentIDs, func(id string) bool { _, ok := students[id]; return ok }); len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "students not found: "+strings.Join(missing, ", "))
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

func (s *ResultService) checkComponents(ctx context.Context, schoolID string, entries []ResultEntry) error {
	components := make(map[string]*models.AssessmentComponent)
	for _, e := range entries {
		if e.ComponentID == nil || *e.ComponentID == "" {
			continue
		}
		component, ok := components[*e.ComponentID]
		if !ok {
			var err error
			component, err = s.components.FindByID(ctx, schoolID, *e.ComponentID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("component %s not found", *e.ComponentID))
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component")
			}
			components[*e.ComponentID] = component
		}
		if !component.AppliesToSubject(e.SubjectID) {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("component %s is not attached to subject %s", component.Name, e.SubjectID))
		}
		if component.MaxScore > 0 && e.TotalScore > component.MaxScore {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("score %.2f exceeds component %s max score %.2f", e.TotalScore, component.Name, component.MaxScore))
		}
	}
	return nil
}

func (s *ResultService) defaultScale(ctx context.Context, schoolID string) (*models.GradingScale, error) {
	return loadDefaultScale(ctx, s.scales, s.cache, s.scaleCacheTTL, s.logger, schoolID)
}

// loadDefaultScale loads the school's default grading scale through the
// cache. A school without a default scale grades nothing; writes still
// apply with nil grade ids.
func loadDefaultScale(ctx context.Context, scales defaultScaleReader, cache lookupCache, ttl time.Duration, logger *zap.Logger, schoolID string) (*models.GradingScale, error) {
	key := fmt.Sprintf("grading:%s:default", schoolID)
	if cache != nil {
		var cached models.GradingScale
		if err := cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			logger.Warn("grading cache read failed", zap.String("school_id", schoolID), zap.Error(err))
		}
	}

	scale, err := scales.DefaultScale(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load default scale")
	}

	if cache != nil {
		if err := cache.Set(ctx, key, scale, ttl); err != nil {
			logger.Warn("grading cache write failed", zap.String("school_id", schoolID), zap.Error(err))
		}
	}
	return scale, nil
}

func resolveGradeID(scale *models.GradingScale, score float64) *string {
	if scale == nil {
		return nil
	}
	for i := range scale.Ranges {
		if scale.Ranges[i].Covers(score) {
			id := scale.Ranges[i].ID
			return &id
		}
	}
	return nil
}

func resultUnchanged(current *models.Result, score float64, remarks *string, gradeID *string) bool {
	if current.TotalScore != score {
		return false
	}
	if !equalStringPtr(current.Remarks, remarks) {
		return false
	}
	return equalStringPtr(current.GradeID, gradeID)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func uniqueStrings(each func(yield func(string))) []string {
	seen := make(map[string]bool)
	var out []string
	each(func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	})
	sort.Strings(out)
	return out
}

func missingIDs(ids []string, found func(string) bool) []string {
	var missing []string
	for _, id := range ids {
		if !found(id) {
			missing = append(missing, id)
		}
	}
	return missing
}
