package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func jobColumns() []string {
	return []string{"id", "attempt_id", "video_url", "status", "retry_count", "max_retries", "started_at", "completed_at", "error_message"}
}

func TestJobRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectQuery("SELECT id, attempt_id, video_url").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobColumns()).
			AddRow("job-1", "attempt-1", "recordings/a.mp4", domain.StatusPending, 1, 3, nil, nil, "transient blip"))

	job, err := repo.Get(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "attempt-1", job.AttemptID)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, 3, job.MaxRetries)
	assert.Equal(t, "transient blip", job.ErrorMessage)
	assert.True(t, job.CanRetry())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectQuery("SELECT id, attempt_id, video_url").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(jobColumns()))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobRepository_Claim(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectExec("UPDATE assessment_jobs").
		WithArgs("job-1", domain.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.Claim(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestJobRepository_ClaimAlreadyProcessing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectExec("UPDATE assessment_jobs").
		WithArgs("job-1", domain.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.Claim(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestJobRepository_SetFailedPersistsMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectExec("UPDATE assessment_jobs").
		WithArgs("job-1", domain.StatusFailed, "video object not found in storage: recordings/a.mp4").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetFailed(context.Background(), "job-1", "video object not found in storage: recordings/a.mp4")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_SetPendingRetry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectExec("UPDATE assessment_jobs").
		WithArgs("job-1", domain.StatusPending, 2, "transcriber timeout").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetPendingRetry(context.Background(), "job-1", "transcriber timeout", 2)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_GetQueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectQuery("SELECT id, attempt_id, video_url").
		WithArgs("job-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Get(context.Background(), "job-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrJobNotFound)
}
