package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/sms-api/internal/models"
)

func syncedImportFixture() models.SyncedImport {
	return models.SyncedImport{
		Result: models.Result{
			SchoolID: "school-1", StudentID: "stu-1", SubjectID: "sub-1",
			SessionID: "sess-1", TermID: "term-1",
			ComponentSlot: "comp-1", TotalScore: 75,
		},
		Import: models.CbtScoreImport{
			ID: "imp-1", SchoolID: "school-1", LinkID: "link-1", StudentID: "stu-1",
			Status: models.ImportStatusSynced,
		},
	}
}

func TestCbtApplySync(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewCbtRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO results")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cbt_score_imports SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplySync(context.Background(), []models.SyncedImport{syncedImportFixture()}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCbtApplySyncRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewCbtRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO results")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ApplySync(context.Background(), []models.SyncedImport{syncedImportFixture()})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCbtApplyImportBatch(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewCbtRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cbt_score_imports")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO results")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cbt_score_imports SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	imports := []models.CbtScoreImport{{
		SchoolID: "school-1", LinkID: "link-1", StudentID: "stu-2",
		RawScore: 30, ConvertedScore: 75, Status: models.ImportStatusPending,
	}}
	require.NoError(t, repo.ApplyImportBatch(context.Background(), imports, []models.SyncedImport{syncedImportFixture()}))
	assert.NotEmpty(t, imports[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCbtDeleteLinkRemovesImportsFirst(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewCbtRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cbt_score_imports WHERE link_id = $1")).
		WithArgs("link-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cbt_assessment_links WHERE school_id = $1 AND id = $2")).
		WithArgs("school-1", "link-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteLink(context.Background(), "school-1", "link-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCbtUpdateStatusesEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewCbtRepository(db)

	require.NoError(t, repo.UpdateStatuses(context.Background(), "link-1", nil, models.ImportStatusApproved, nil, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
