package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/sms-api/internal/models"
)

func newRepoTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradingApplyRangeChanges(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewGradingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grade_ranges")).
		WithArgs("scale-1", "range-del").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grade_ranges SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_ranges")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ApplyRangeChanges(context.Background(), "scale-1",
		[]string{"range-del"},
		[]models.GradeRange{{ID: "range-upd", MinScore: 40, MaxScore: 59, GradeLabel: "C"}},
		[]models.GradeRange{{MinScore: 60, MaxScore: 100, GradeLabel: "A"}},
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradingApplyRangeChangesDeleteMiss(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewGradingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grade_ranges")).
		WithArgs("scale-1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyRangeChanges(context.Background(), "scale-1", []string{"ghost"}, nil, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradingApplyRangeChangesUpdateMiss(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewGradingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grade_ranges SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyRangeChanges(context.Background(), "scale-1", nil,
		[]models.GradeRange{{ID: "ghost", MinScore: 0, MaxScore: 100, GradeLabel: "A"}}, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradingCountResultsByRanges(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewGradingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT grade_id, COUNT(*) AS n FROM results")).
		WithArgs("range-a", "range-b").
		WillReturnRows(sqlmock.NewRows([]string{"grade_id", "n"}).AddRow("range-a", 7))

	counts, err := repo.CountResultsByRanges(context.Background(), []string{"range-a", "range-b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"range-a": 7}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradingCountResultsByRangesEmpty(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewGradingRepository(db)

	counts, err := repo.CountResultsByRanges(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradingDefaultScaleHydratesRanges(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewGradingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM grading_scales WHERE school_id = $1 AND is_default")).
		WithArgs("school-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_id", "name", "is_default"}).
			AddRow("scale-1", "school-1", "Default", true))
	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_ranges WHERE scale_id = $1")).
		WithArgs("scale-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "scale_id", "min_score", "max_score", "grade_label"}).
			AddRow("range-f", "scale-1", 0.0, 39.0, "F").
			AddRow("range-a", "scale-1", 40.0, 100.0, "A"))

	scale, err := repo.DefaultScale(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, "scale-1", scale.ID)
	require.Len(t, scale.Ranges, 2)
	assert.Equal(t, "F", scale.Ranges[0].GradeLabel)
	require.NoError(t, mock.ExpectationsWereMet())
}
