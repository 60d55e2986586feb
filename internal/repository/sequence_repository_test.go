package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceNextFirstUse(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM sequences")).
		WithArgs("school-1", "result_pin").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sequences")).
		WithArgs("school-1", "result_pin").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	value, err := repo.Next(context.Background(), "school-1", "result_pin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceNextAdvances(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM sequences")).
		WithArgs("school-1", "result_pin").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(41))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sequences SET value = value + 1")).
		WithArgs("school-1", "result_pin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	value, err := repo.Next(context.Background(), "school-1", "result_pin")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceNextLockFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoTestDB(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM sequences")).
		WithArgs("school-1", "result_pin").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Next(context.Background(), "school-1", "result_pin")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}
