package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

type sessionStore interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Session, error)
	List(ctx context.Context, schoolID string) ([]models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	CountTerms(ctx context.Context, sessionID string) (int, error)
	Delete(ctx context.Context, schoolID, id string) error
}

type termStore interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Term, error)
	ListBySession(ctx context.Context, schoolID, sessionID string) ([]models.Term, error)
	CountOverlapping(ctx context.Context, schoolID, sessionID string, start, end time.Time, excludeID string) (int, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
}

// SessionRequest creates or updates an academic session.
type SessionRequest struct {
	Name      string `json:"name" validate:"required"`
	IsCurrent bool   `json:"is_current"`
}

// TermRequest creates or updates a term inside a session.
type TermRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// CalendarService manages academic sessions and terms.
type CalendarService struct {
	sessions sessionStore
	terms    termStore

	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs CalendarService.
func NewCalendarService(sessions sessionStore, terms termStore, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{sessions: sessions, terms: terms, validator: validate, logger: logger}
}

// ListSessions returns a school's sessions.
func (s *CalendarService) ListSessions(ctx context.Context, schoolID string) ([]models.Session, error) {
	sessions, err := s.sessions.List(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// GetSession returns one session.
func (s *CalendarService) GetSession(ctx context.Context, schoolID, sessionID string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, schoolID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// CreateSession stores a new session.
func (s *CalendarService) CreateSession(ctx context.Context, schoolID string, req SessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	session := &models.Session{SchoolID: schoolID, Name: strings.TrimSpace(req.Name), IsCurrent: req.IsCurrent}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

// UpdateSession persists session changes.
func (s *CalendarService) UpdateSession(ctx context.Context, schoolID, sessionID string, req SessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	session, err := s.GetSession(ctx, schoolID, sessionID)
	if err != nil {
		return nil, err
	}
	session.Name = strings.TrimSpace(req.Name)
	session.IsCurrent = req.IsCurrent
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// DeleteSession removes a session that has no terms.
func (s *CalendarService) DeleteSession(ctx context.Context, schoolID, sessionID string) error {
	if _, err := s.GetSession(ctx, schoolID, sessionID); err != nil {
		return err
	}
	count, err := s.sessions.CountTerms(ctx, sessionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count terms")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "session still has terms")
	}
	if err := s.sessions.Delete(ctx, schoolID, sessionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}

// ListTerms returns a session's terms ordered by start date.
func (s *CalendarService) ListTerms(ctx context.Context, schoolID, sessionID string) ([]models.Term, error) {
	if _, err := s.GetSession(ctx, schoolID, sessionID); err != nil {
		return nil, err
	}
	terms, err := s.terms.ListBySession(ctx, schoolID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return terms, nil
}

// CreateTerm stores a term after checking its date window against every
// sibling in the session.
func (s *CalendarService) CreateTerm(ctx context.Context, schoolID, sessionID string, req TermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if _, err := s.GetSession(ctx, schoolID, sessionID); err != nil {
		return nil, err
	}
	if err := s.checkTermWindow(ctx, schoolID, sessionID, req, ""); err != nil {
		return nil, err
	}

	term := &models.Term{
		SchoolID:  schoolID,
		SessionID: sessionID,
		Name:      strings.TrimSpace(req.Name),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    models.TermStatusActive,
	}
	if err := s.terms.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// UpdateTerm persists term changes with the same window checks as create.
func (s *CalendarService) UpdateTerm(ctx context.Context, schoolID, termID string, req TermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	term, err := s.GetTerm(ctx, schoolID, termID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTermWindow(ctx, schoolID, term.SessionID, req, termID); err != nil {
		return nil, err
	}

	term.Name = strings.TrimSpace(req.Name)
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate
	if err := s.terms.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

// GetTerm returns one term.
func (s *CalendarService) GetTerm(ctx context.Context, schoolID, termID string) (*models.Term, error) {
	term, err := s.terms.FindByID(ctx, schoolID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// ArchiveTerm locks a term so dependent writes are rejected.
func (s *CalendarService) ArchiveTerm(ctx context.Context, schoolID, termID string) (*models.Term, error) {
	return s.setTermStatus(ctx, schoolID, termID, models.TermStatusArchived)
}

// ReopenTerm unlocks an archived term.
func (s *CalendarService) ReopenTerm(ctx context.Context, schoolID, termID string) (*models.Term, error) {
	return s.setTermStatus(ctx, schoolID, termID, models.TermStatusActive)
}

func (s *CalendarService) setTermStatus(ctx context.Context, schoolID, termID string, status models.TermStatus) (*models.Term, error) {
	term, err := s.GetTerm(ctx, schoolID, termID)
	if err != nil {
		return nil, err
	}
	if term.Status == status {
		return term, nil
	}
	term.Status = status
	if err := s.terms.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

func (s *CalendarService) checkTermWindow(ctx context.Context, schoolID, sessionID string, req TermRequest, excludeID string) error {
	if !req.StartDate.Before(req.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}
	overlapping, err := s.terms.CountOverlapping(ctx, schoolID, sessionID, req.StartDate, req.EndDate, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term overlap")
	}
	if overlapping > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "term dates overlap an existing term")
	}
	return nil
}
