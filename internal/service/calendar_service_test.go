package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

type mockSessionStore struct {
	sessions    map[string]models.Session
	termCount   int
	deleteCalls int
	updated     *models.Session
}

func (m *mockSessionStore) FindByID(_ context.Context, _, id string) (*models.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockSessionStore) List(_ context.Context, _ string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSessionStore) Create(_ context.Context, session *models.Session) error {
	session.ID = "sess-new"
	return nil
}

func (m *mockSessionStore) Update(_ context.Context, session *models.Session) error {
	m.updated = session
	return nil
}

func (m *mockSessionStore) CountTerms(_ context.Context, _ string) (int, error) {
	return m.termCount, nil
}

func (m *mockSessionStore) Delete(_ context.Context, _, _ string) error {
	m.deleteCalls++
	return nil
}

type mockTermRepo struct {
	terms       map[string]models.Term
	overlapping int
	created     *models.Term
	updated     *models.Term
}

func (m *mockTermRepo) FindByID(_ context.Context, _, id string) (*models.Term, error) {
	t, ok := m.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *mockTermRepo) ListBySession(_ context.Context, _, _ string) ([]models.Term, error) {
	var out []models.Term
	for _, t := range m.terms {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTermRepo) CountOverlapping(_ context.Context, _, _ string, _, _ time.Time, _ string) (int, error) {
	return m.overlapping, nil
}

func (m *mockTermRepo) Create(_ context.Context, term *models.Term) error {
	term.ID = "term-new"
	m.created = term
	return nil
}

func (m *mockTermRepo) Update(_ context.Context, term *models.Term) error {
	m.updated = term
	return nil
}

func newCalendarFixture() (*CalendarService, *mockSessionStore, *mockTermRepo) {
	sessions := &mockSessionStore{sessions: map[string]models.Session{
		tSession1: {ID: tSession1, SchoolID: tSchool, Name: "2025/2026"},
	}}
	terms := &mockTermRepo{terms: map[string]models.Term{
		tTerm1: {
			ID: tTerm1, SchoolID: tSchool, SessionID: tSession1, Name: "First Term",
			StartDate: time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 12, 12, 0, 0, 0, 0, time.UTC),
			Status:    models.TermStatusActive,
		},
	}}
	return NewCalendarService(sessions, terms, nil, zap.NewNop()), sessions, terms
}

func TestCalendarCreateTermWindow(t *testing.T) {
	svc, _, terms := newCalendarFixture()
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	term, err := svc.CreateTerm(ctx, tSchool, tSession1, TermRequest{Name: "Second Term", StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusActive, term.Status)
	assert.Equal(t, tSession1, term.SessionID)

	t.Run("start after end", func(t *testing.T) {
		_, err := svc.CreateTerm(ctx, tSchool, tSession1, TermRequest{Name: "Bad", StartDate: end, EndDate: start})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})

	t.Run("start equals end", func(t *testing.T) {
		_, err := svc.CreateTerm(ctx, tSchool, tSession1, TermRequest{Name: "Bad", StartDate: start, EndDate: start})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})

	t.Run("overlapping sibling", func(t *testing.T) {
		terms.overlapping = 1
		defer func() { terms.overlapping = 0 }()
		_, err := svc.CreateTerm(ctx, tSchool, tSession1, TermRequest{Name: "Clash", StartDate: start, EndDate: end})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := svc.CreateTerm(ctx, tSchool, "missing", TermRequest{Name: "Orphan", StartDate: start, EndDate: end})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})
}

func TestCalendarArchiveAndReopenTerm(t *testing.T) {
	svc, _, terms := newCalendarFixture()
	ctx := context.Background()

	term, err := svc.ArchiveTerm(ctx, tSchool, tTerm1)
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusArchived, term.Status)
	assert.True(t, term.Locked())
	require.NotNil(t, terms.updated)

	// Archiving an already archived term is a no-op.
	terms.terms[tTerm1] = *term
	terms.updated = nil
	term, err = svc.ArchiveTerm(ctx, tSchool, tTerm1)
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusArchived, term.Status)
	assert.Nil(t, terms.updated)

	term, err = svc.ReopenTerm(ctx, tSchool, tTerm1)
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusActive, term.Status)
	assert.False(t, term.Locked())
}

func TestCalendarDeleteSessionGuard(t *testing.T) {
	svc, sessions, _ := newCalendarFixture()
	ctx := context.Background()

	sessions.termCount = 2
	err := svc.DeleteSession(ctx, tSchool, tSession1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, sessions.deleteCalls)

	sessions.termCount = 0
	require.NoError(t, svc.DeleteSession(ctx, tSchool, tSession1))
	assert.Equal(t, 1, sessions.deleteCalls)
}

func TestCalendarUpdateSessionTrimsName(t *testing.T) {
	svc, sessions, _ := newCalendarFixture()

	session, err := svc.UpdateSession(context.Background(), tSchool, tSession1, SessionRequest{Name: "  2025/2026  ", IsCurrent: true})
	require.NoError(t, err)
	assert.Equal(t, "2025/2026", session.Name)
	assert.True(t, session.IsCurrent)
	require.NotNil(t, sessions.updated)
}
