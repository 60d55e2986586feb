package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

// Fixture identifiers; payload validation requires well-formed v4 UUIDs.
const (
	tSchool   = "school-1"
	tStudent1 = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	tStudent2 = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
	tSubject1 = "cccccccc-cccc-4ccc-8ccc-cccccccccccc"
	tSubject2 = "dddddddd-dddd-4ddd-8ddd-dddddddddddd"
	tTerm1    = "eeeeeeee-eeee-4eee-8eee-eeeeeeeeeeee"
	tTerm2    = "efefefef-efef-4fef-8fef-efefefefefef"
	tSession1 = "ffffffff-ffff-4fff-8fff-ffffffffffff"
	tSession2 = "12121212-1212-4121-8121-121212121212"
	tClass1   = "cdcdcdcd-cdcd-4dcd-8dcd-cdcdcdcdcdcd"
	tClass2   = "dcdcdcdc-dcdc-4cdc-8cdc-dcdcdcdcdcdc"
	tArm1     = "34343434-3434-4343-8343-343434343434"
	tArm2     = "43434343-4343-4434-8434-434343434343"
	tComp1    = "abababab-abab-4bab-8bab-abababababab"
	tQuiz1    = "56565656-5656-4565-8565-565656565656"
	tLink1    = "65656565-6565-4656-8656-656565656565"
)

func strRef(s string) *string { return &s }

type mockResultStore struct {
	existing map[models.ResultKey]models.Result

	applyCalls int
	applyErr   error
	inserts    []models.Result
	updates    []models.Result

	listRows   []models.Result
	listTotal  int
	exportRows []models.ResultExportRow
}

func (m *mockResultStore) FindByKeys(_ context.Context, _ string, keys []models.ResultKey) (map[models.ResultKey]models.Result, error) {
	found := make(map[models.ResultKey]models.Result)
	for _, key := range keys {
		if r, ok := m.existing[key]; ok {
			found[key] = r
		}
	}
	return found, nil
}

func (m *mockResultStore) ApplyBatch(_ context.Context, inserts, updates []models.Result) error {
	m.applyCalls++
	if m.applyErr != nil {
		return m.applyErr
	}
	// The repository stamps ids on insert; mirror that so callers see
	// hydrated rows.
	for i := range inserts {
		if inserts[i].ID == "" {
			inserts[i].ID = "res-" + inserts[i].StudentID
		}
	}
	m.inserts = inserts
	m.updates = updates
	return nil
}

func (m *mockResultStore) List(_ context.Context, _ string, _ models.ResultFilter) ([]models.Result, int, error) {
	return m.listRows, m.listTotal, nil
}

func (m *mockResultStore) ListByStudentTerm(_ context.Context, _, _, _ string) ([]models.ResultExportRow, error) {
	return m.exportRows, nil
}

type mockStudentStore struct {
	students map[string]models.Student
}

func (m *mockStudentStore) FindByID(_ context.Context, _, id string) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockStudentStore) FindByIDs(_ context.Context, _ string, ids []string) (map[string]models.Student, error) {
	found := make(map[string]models.Student)
	for _, id := range ids {
		if s, ok := m.students[id]; ok {
			found[id] = s
		}
	}
	return found, nil
}

type mockSubjectStore struct {
	subjects map[string]models.Subject
}

func (m *mockSubjectStore) FindByID(_ context.Context, _, id string) (*models.Subject, error) {
	s, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockSubjectStore) FindByIDs(_ context.Context, _ string, ids []string) (map[string]models.Subject, error) {
	found := make(map[string]models.Subject)
	for _, id := range ids {
		if s, ok := m.subjects[id]; ok {
			found[id] = s
		}
	}
	return found, nil
}

type mockTermStore struct {
	terms    map[string]models.Term
	earliest *models.Term
}

func (m *mockTermStore) FindByID(_ context.Context, _, id string) (*models.Term, error) {
	t, ok := m.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *mockTermStore) FindByIDs(_ context.Context, _ string, ids []string) (map[string]models.Term, error) {
	found := make(map[string]models.Term)
	for _, id := range ids {
		if t, ok := m.terms[id]; ok {
			found[id] = t
		}
	}
	return found, nil
}

func (m *mockTermStore) EarliestBySession(_ context.Context, _, _ string) (*models.Term, error) {
	if m.earliest == nil {
		return nil, sql.ErrNoRows
	}
	return m.earliest, nil
}

type mockComponentReader struct {
	components map[string]*models.AssessmentComponent
}

func (m *mockComponentReader) FindByID(_ context.Context, _, id string) (*models.AssessmentComponent, error) {
	c, ok := m.components[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

type mockScaleStore struct {
	scale *models.GradingScale
}

func (m *mockScaleStore) DefaultScale(_ context.Context, _ string) (*models.GradingScale, error) {
	if m.scale == nil {
		return nil, sql.ErrNoRows
	}
	return m.scale, nil
}

type metricsRecorder struct {
	resultsUpserted  int
	importsSynced    int
	studentsPromoted int
}

func (m *metricsRecorder) AddResultsUpserted(n int)  { m.resultsUpserted += n }
func (m *metricsRecorder) AddImportsSynced(n int)    { m.importsSynced += n }
func (m *metricsRecorder) AddStudentsPromoted(n int) { m.studentsPromoted += n }

func activeTermFixture() *mockTermStore {
	return &mockTermStore{terms: map[string]models.Term{
		tTerm1: {ID: tTerm1, SchoolID: tSchool, SessionID: tSession1, Name: "First Term", Status: models.TermStatusActive},
		tTerm2: {ID: tTerm2, SchoolID: tSchool, SessionID: tSession1, Name: "Second Term", Status: models.TermStatusArchived},
	}}
}

func newResultFixture() (*ResultService, *mockResultStore, *metricsRecorder) {
	store := &mockResultStore{}
	metrics := &metricsRecorder{}
	svc := NewResultService(
		store,
		&mockStudentStore{students: map[string]models.Student{
			tStudent1: {ID: tStudent1, SchoolID: tSchool, FullName: "Ada Obi"},
			tStudent2: {ID: tStudent2, SchoolID: tSchool, FullName: "Ben Eze"},
		}},
		&mockSubjectStore{subjects: map[string]models.Subject{
			tSubject1: {ID: tSubject1, SchoolID: tSchool, Name: "Mathematics"},
			tSubject2: {ID: tSubject2, SchoolID: tSchool, Name: "English"},
		}},
		activeTermFixture(),
		&mockComponentReader{components: map[string]*models.AssessmentComponent{
			tComp1: {ID: tComp1, SchoolID: tSchool, Name: "Exam", MaxScore: 100},
		}},
		&mockScaleStore{},
		nil,
		nil,
		metrics,
		10,
		0,
		nil,
		zap.NewNop(),
	)
	return svc, store, metrics
}

func twoEntryBatch() BatchUpsertRequest {
	return BatchUpsertRequest{
		TermID: tTerm1,
		Results: []ResultEntry{
			{StudentID: tStudent1, SubjectID: tSubject1, TotalScore: 72},
			{StudentID: tStudent2, SubjectID: tSubject1, TotalScore: 55},
		},
	}
}

func TestResultBatchUpsertIdempotent(t *testing.T) {
	svc, store, metrics := newResultFixture()
	ctx := context.Background()

	summary, err := svc.BatchUpsert(ctx, tSchool, "user-1", twoEntryBatch())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Unchanged)
	assert.Equal(t, 2, metrics.resultsUpserted)

	// The response echoes the saved rows with their stamped ids.
	require.Len(t, summary.Rows, 2)
	for _, r := range summary.Rows {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, tSession1, r.SessionID)
		assert.Equal(t, models.NullComponentSlot, r.ComponentSlot)
	}

	// Resubmitting the identical batch changes nothing.
	store.existing = make(map[models.ResultKey]models.Result, len(store.inserts))
	for _, r := range store.inserts {
		store.existing[r.Key()] = r
	}
	summary, err = svc.BatchUpsert(ctx, tSchool, "user-1", twoEntryBatch())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 2, summary.Unchanged)
	assert.Len(t, summary.Rows, 2)
	assert.Empty(t, store.inserts)
	assert.Empty(t, store.updates)
	assert.Equal(t, 2, metrics.resultsUpserted)
}

func TestResultBatchUpsertUpdatesChangedScores(t *testing.T) {
	svc, store, _ := newResultFixture()
	ctx := context.Background()

	_, err := svc.BatchUpsert(ctx, tSchool, "user-1", twoEntryBatch())
	require.NoError(t, err)

	store.existing = make(map[models.ResultKey]models.Result, len(store.inserts))
	for _, r := range store.inserts {
		store.existing[r.Key()] = r
	}

	req := twoEntryBatch()
	req.Results[0].TotalScore = 88

	summary, err := svc.BatchUpsert(ctx, tSchool, "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Len(t, summary.Rows, 2)
	require.Len(t, store.updates, 1)
	assert.Equal(t, 88.0, store.updates[0].TotalScore)
}

func TestResultBatchUpsertMissingStudentsCollective(t *testing.T) {
	svc, store, _ := newResultFixture()

	ghost := "99999999-9999-4999-8999-999999999999"
	req := BatchUpsertRequest{
		TermID: tTerm1,
		Results: []ResultEntry{
			{StudentID: ghost, SubjectID: tSubject1, TotalScore: 40},
			{StudentID: tStudent1, SubjectID: tSubject1, TotalScore: 50},
		},
	}
	_, err := svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), ghost)
	assert.Equal(t, 0, store.applyCalls)
}

func TestResultBatchUpsertSessionMustMatchTerm(t *testing.T) {
	svc, store, _ := newResultFixture()

	req := twoEntryBatch()
	req.SessionID = tSession2

	_, err := svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)
}

func TestResultBatchUpsertLockedTerm(t *testing.T) {
	svc, store, _ := newResultFixture()

	req := twoEntryBatch()
	req.TermID = tTerm2

	_, err := svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTermLocked.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)
}

func TestResultBatchUpsertRejectsDuplicates(t *testing.T) {
	svc, store, _ := newResultFixture()

	req := twoEntryBatch()
	req.Results[1] = req.Results[0]

	_, err := svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)
}

func TestResultBatchUpsertEnforcesBatchSize(t *testing.T) {
	svc, store, _ := newResultFixture()
	svc.maxBatchSize = 1

	_, err := svc.BatchUpsert(context.Background(), tSchool, "user-1", twoEntryBatch())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)
}

func TestResultBatchUpsertRejectsOutOfRangeScores(t *testing.T) {
	svc, store, _ := newResultFixture()

	req := twoEntryBatch()
	req.Results[0].TotalScore = 250

	_, err := svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)

	req.Results[0].TotalScore = -1
	_, err = svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)
}

func TestResultBatchUpsertComponentMaxScoreCeiling(t *testing.T) {
	svc, store, _ := newResultFixture()
	svc.components = &mockComponentReader{components: map[string]*models.AssessmentComponent{
		tComp1: {ID: tComp1, SchoolID: tSchool, Name: "CA Test", MaxScore: 60},
	}}

	req := BatchUpsertRequest{
		TermID: tTerm1,
		Results: []ResultEntry{
			{StudentID: tStudent1, SubjectID: tSubject1, ComponentID: strRef(tComp1), TotalScore: 72},
		},
	}
	_, err := svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)

	req.Results[0].TotalScore = 60
	_, err = svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.NoError(t, err)
	require.Len(t, store.inserts, 1)
}

func TestResultBatchUpsertComponentSubjectScope(t *testing.T) {
	svc, store, _ := newResultFixture()
	svc.components = &mockComponentReader{components: map[string]*models.AssessmentComponent{
		tComp1: {ID: tComp1, SchoolID: tSchool, Name: "Exam", SubjectIDs: []string{tSubject2}},
	}}

	req := BatchUpsertRequest{
		TermID: tTerm1,
		Results: []ResultEntry{
			{StudentID: tStudent1, SubjectID: tSubject1, ComponentID: strRef(tComp1), TotalScore: 30},
		},
	}
	_, err := svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.applyCalls)

	// An attached subject passes; the component id lands in the slot.
	req.Results[0].SubjectID = tSubject2
	_, err = svc.BatchUpsert(context.Background(), tSchool, "user-1", req)
	require.NoError(t, err)
	require.Len(t, store.inserts, 1)
	assert.Equal(t, tComp1, store.inserts[0].ComponentSlot)
}

func TestResultBatchUpsertGradesAgainstDefaultScale(t *testing.T) {
	svc, store, _ := newResultFixture()
	svc.scales = &mockScaleStore{scale: &models.GradingScale{
		ID: "scale-1", SchoolID: tSchool, IsDefault: true,
		Ranges: []models.GradeRange{
			{ID: "r-f", MinScore: 0, MaxScore: 39, GradeLabel: "F"},
			{ID: "r-c", MinScore: 40, MaxScore: 69, GradeLabel: "C"},
			{ID: "r-a", MinScore: 70, MaxScore: 100, GradeLabel: "A"},
		},
	}}

	_, err := svc.BatchUpsert(context.Background(), tSchool, "user-1", twoEntryBatch())
	require.NoError(t, err)
	require.Len(t, store.inserts, 2)

	grades := make(map[string]string)
	for _, r := range store.inserts {
		require.NotNil(t, r.GradeID)
		grades[r.StudentID] = *r.GradeID
	}
	assert.Equal(t, "r-a", grades[tStudent1])
	assert.Equal(t, "r-c", grades[tStudent2])
}

func TestResultExport(t *testing.T) {
	svc, store, _ := newResultFixture()
	store.exportRows = []models.ResultExportRow{
		{SubjectID: tSubject1, SubjectName: "Mathematics", TotalScore: 72.5, GradeLabel: "A", Remarks: "good"},
	}

	payload, contentType, err := svc.Export(context.Background(), tSchool, tStudent1, tTerm1, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Mathematics")
	assert.Contains(t, string(payload), "72.50")

	_, _, err = svc.Export(context.Background(), tSchool, "missing", tTerm1, "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Export(context.Background(), tSchool, tStudent1, tTerm1, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
