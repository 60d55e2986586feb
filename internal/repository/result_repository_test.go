package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/sms-api/internal/models"
)

var resultRowColumns = []string{
	"id", "school_id", "student_id", "subject_id", "session_id", "term_id",
	"component_id", "component_slot", "total_score", "remarks", "grade_id",
	"position_in_subject", "class_average", "created_at", "updated_at",
}

func TestResultFindByKeys(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM results WHERE school_id = $1 AND (")).
		WithArgs("school-1", "stu-1", "sub-1", "sess-1", "term-1", models.NullComponentSlot).
		WillReturnRows(sqlmock.NewRows(resultRowColumns).
			AddRow("res-1", "school-1", "stu-1", "sub-1", "sess-1", "term-1",
				nil, models.NullComponentSlot, 72.5, nil, nil, nil, nil, now, now))

	key := models.ResultKey{
		StudentID: "stu-1", SubjectID: "sub-1", SessionID: "sess-1",
		TermID: "term-1", ComponentSlot: models.NullComponentSlot,
	}
	found, err := repo.FindByKeys(context.Background(), "school-1", []models.ResultKey{key})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "res-1", found[key].ID)
	assert.Equal(t, 72.5, found[key].TotalScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultFindByKeysEmpty(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	found, err := repo.FindByKeys(context.Background(), "school-1", nil)
	require.NoError(t, err)
	assert.Empty(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultApplyBatch(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO results")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE results SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserts := []models.Result{{
		SchoolID: "school-1", StudentID: "stu-1", SubjectID: "sub-1",
		SessionID: "sess-1", TermID: "term-1",
		ComponentSlot: models.NullComponentSlot, TotalScore: 72.5,
	}}
	updates := []models.Result{{
		ID: "res-2", SchoolID: "school-1", StudentID: "stu-2", SubjectID: "sub-1",
		SessionID: "sess-1", TermID: "term-1",
		ComponentSlot: models.NullComponentSlot, TotalScore: 55,
	}}
	require.NoError(t, repo.ApplyBatch(context.Background(), inserts, updates))
	assert.NotEmpty(t, inserts[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultApplyBatchRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO results")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ApplyBatch(context.Background(), []models.Result{{
		SchoolID: "school-1", StudentID: "stu-1", SubjectID: "sub-1",
		SessionID: "sess-1", TermID: "term-1",
		ComponentSlot: models.NullComponentSlot, TotalScore: 72.5,
	}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultApplyBatchEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	require.NoError(t, repo.ApplyBatch(context.Background(), nil, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultList(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM results")).
		WithArgs("school-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM results WHERE school_id = $1 AND student_id = $2 ORDER BY updated_at DESC")).
		WithArgs("school-1", "stu-1").
		WillReturnRows(sqlmock.NewRows(resultRowColumns).
			AddRow("res-1", "school-1", "stu-1", "sub-1", "sess-1", "term-1",
				nil, models.NullComponentSlot, 72.5, nil, nil, nil, nil, now, now))

	results, total, err := repo.List(context.Background(), "school-1", models.ResultFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "res-1", results[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultListByStudentTerm(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN subjects s ON s.id = r.subject_id")).
		WithArgs("school-1", "stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"subject_id", "subject_name", "total_score", "grade_label", "remarks"}).
			AddRow("sub-1", "Mathematics", 72.5, "B", "Good work"))

	rows, err := repo.ListByStudentTerm(context.Background(), "school-1", "stu-1", "term-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mathematics", rows[0].SubjectName)
	require.NoError(t, mock.ExpectationsWereMet())
}
