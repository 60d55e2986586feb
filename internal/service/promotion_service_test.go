package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

type mockPromotionStore struct {
	applyCalls int
	applyErr   error
	applied    []models.StudentPromotion
	logs       []models.PromotionLog
}

func (m *mockPromotionStore) ApplyBatch(_ context.Context, promotions []models.StudentPromotion) error {
	m.applyCalls++
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = promotions
	return nil
}

func (m *mockPromotionStore) ListLogs(_ context.Context, _, _ string) ([]models.PromotionLog, error) {
	return m.logs, nil
}

func newPromotionFixture(store *mockPromotionStore, terms *mockTermStore) (*PromotionService, *metricsRecorder) {
	metrics := &metricsRecorder{}
	svc := NewPromotionService(
		store,
		&mockStudentStore{students: map[string]models.Student{
			tStudent1: {
				ID: tStudent1, SchoolID: tSchool, FullName: "Ada Obi",
				SchoolClassID: models.UUIDRef(tClass1),
				ClassArmID:    models.UUIDRef(tArm1),
				SessionID:     models.UUIDRef(tSession1),
				TermID:        models.UUIDRef(tTerm1),
			},
			tStudent2: {
				ID: tStudent2, SchoolID: tSchool, FullName: "Ben Eze",
				SchoolClassID: models.UUIDRef(tClass1),
				SessionID:     models.UUIDRef(tSession1),
			},
		}},
		&mockClassStore{
			classes: map[string]models.SchoolClass{
				tClass1: {ID: tClass1, SchoolID: tSchool, Name: "JSS1", OrderRank: 1},
				tClass2: {ID: tClass2, SchoolID: tSchool, Name: "JSS2", OrderRank: 2},
			},
			arms: map[string]models.ClassArm{
				tArm1: {ID: tArm1, SchoolID: tSchool, ClassID: tClass1, Name: "Gold"},
				tArm2: {ID: tArm2, SchoolID: tSchool, ClassID: tClass2, Name: "Gold"},
			},
		},
		&mockSessionReader{sessions: map[string]models.Session{
			tSession2: {ID: tSession2, SchoolID: tSchool, Name: "2026/2027"},
		}},
		terms,
		nil,
		metrics,
		nil,
		zap.NewNop(),
	)
	return svc, metrics
}

func promotionTerms() *mockTermStore {
	return &mockTermStore{
		terms: map[string]models.Term{
			tTerm1: {ID: tTerm1, SchoolID: tSchool, SessionID: tSession2, Name: "First Term", Status: models.TermStatusActive},
			tTerm2: {ID: tTerm2, SchoolID: tSchool, SessionID: tSession1, Name: "Old Term", Status: models.TermStatusActive},
		},
		earliest: &models.Term{ID: tTerm1, SchoolID: tSchool, SessionID: tSession2, Name: "First Term"},
	}
}

func promoteRequest() PromoteStudentsRequest {
	return PromoteStudentsRequest{
		StudentIDs:  []string{tStudent1, tStudent2},
		ToClassID:   tClass2,
		ToSessionID: tSession2,
	}
}

func TestPromoteStudentsDefaultsToEarliestTerm(t *testing.T) {
	store := &mockPromotionStore{}
	svc, metrics := newPromotionFixture(store, promotionTerms())

	summary, err := svc.PromoteStudents(context.Background(), tSchool, "admin-1", promoteRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Promoted)
	assert.Equal(t, 2, metrics.studentsPromoted)

	require.Len(t, store.applied, 2)
	for _, p := range store.applied {
		assert.Equal(t, models.UUIDRef(tClass2), p.Student.SchoolClassID)
		assert.Equal(t, models.UUIDRef(tSession2), p.Student.SessionID)
		assert.Equal(t, models.UUIDRef(tTerm1), p.Student.TermID)
		assert.Equal(t, models.UUIDRef(tTerm1), p.Log.ToTermID)
		assert.Equal(t, "admin-1", p.Log.PerformedBy)
	}

	// Each moved student is reported with the log row recording the move.
	require.Len(t, summary.Results, 2)
	for i, r := range summary.Results {
		assert.Equal(t, store.applied[i].Student.ID, r.StudentID)
		assert.NotEmpty(t, r.LogID)
		assert.Equal(t, store.applied[i].Log.ID, r.LogID)
	}
}

func TestPromoteStudentsKeepsArmWhenAbsent(t *testing.T) {
	store := &mockPromotionStore{}
	svc, _ := newPromotionFixture(store, promotionTerms())

	_, err := svc.PromoteStudents(context.Background(), tSchool, "admin-1", promoteRequest())
	require.NoError(t, err)

	byStudent := make(map[string]models.StudentPromotion, len(store.applied))
	for _, p := range store.applied {
		byStudent[p.Student.ID] = p
	}

	// Student 1 keeps the Gold arm; student 2 never had one.
	assert.Equal(t, models.UUIDRef(tArm1), byStudent[tStudent1].Student.ClassArmID)
	assert.Equal(t, models.UUIDRef(tArm1), byStudent[tStudent1].Log.ToArmID)
	assert.False(t, byStudent[tStudent2].Student.ClassArmID.Valid())

	// The log snapshots the placement before the move.
	assert.Equal(t, models.UUIDRef(tClass1), byStudent[tStudent1].Log.FromClassID)
	assert.Equal(t, models.UUIDRef(tSession1), byStudent[tStudent1].Log.FromSessionID)
}

func TestPromoteStudentsExplicitArm(t *testing.T) {
	store := &mockPromotionStore{}
	svc, _ := newPromotionFixture(store, promotionTerms())

	req := promoteRequest()
	req.ToArmID = tArm2

	_, err := svc.PromoteStudents(context.Background(), tSchool, "admin-1", req)
	require.NoError(t, err)
	for _, p := range store.applied {
		assert.Equal(t, models.UUIDRef(tArm2), p.Student.ClassArmID)
		assert.Equal(t, models.UUIDRef(tArm2), p.Log.ToArmID)
	}
}

func TestPromoteStudentsArmMustBelongToClass(t *testing.T) {
	store := &mockPromotionStore{}
	svc, _ := newPromotionFixture(store, promotionTerms())

	req := promoteRequest()
	req.ToArmID = tArm1 // belongs to the source class, not the target

	_, err := svc.PromoteStudents(context.Background(), tSchool, "admin-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)
}

func TestPromoteStudentsExplicitTermOverride(t *testing.T) {
	store := &mockPromotionStore{}
	svc, _ := newPromotionFixture(store, promotionTerms())

	req := promoteRequest()
	req.TermID = tTerm2 // belongs to the old session

	_, err := svc.PromoteStudents(context.Background(), tSchool, "admin-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)
}

func TestPromoteStudentsSessionWithoutTerms(t *testing.T) {
	store := &mockPromotionStore{}
	terms := promotionTerms()
	terms.earliest = nil
	svc, _ := newPromotionFixture(store, terms)

	_, err := svc.PromoteStudents(context.Background(), tSchool, "admin-1", promoteRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)
}

func TestPromoteStudentsMissingStudentsCollective(t *testing.T) {
	store := &mockPromotionStore{}
	svc, _ := newPromotionFixture(store, promotionTerms())

	ghost := "88888888-8888-4888-8888-888888888888"
	req := promoteRequest()
	req.StudentIDs = append(req.StudentIDs, ghost)

	_, err := svc.PromoteStudents(context.Background(), tSchool, "admin-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), ghost)
	assert.Equal(t, 0, store.applyCalls)
}

func TestPromoteStudentsBatchFailurePropagates(t *testing.T) {
	store := &mockPromotionStore{applyErr: assert.AnError}
	svc, metrics := newPromotionFixture(store, promotionTerms())

	_, err := svc.PromoteStudents(context.Background(), tSchool, "admin-1", promoteRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, metrics.studentsPromoted)
}

func TestPromotionHistory(t *testing.T) {
	store := &mockPromotionStore{logs: []models.PromotionLog{{ID: "log-1", StudentID: tStudent1}}}
	svc, _ := newPromotionFixture(store, promotionTerms())

	logs, err := svc.History(context.Background(), tSchool, tStudent1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	_, err = svc.History(context.Background(), tSchool, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
