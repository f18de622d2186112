package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

func TestAttemptRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttemptRepository(db)

	columns := []string{"id", "station_ids", "transcript", "scores", "metrics", "feedback", "recommended_articles", "updated_at"}
	mock.ExpectQuery("SELECT id, station_ids").
		WithArgs("attempt-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"attempt-1",
			"{station-1}",
			"hello there",
			[]byte(`{"Overall": 70, "Ethics": 60}`),
			[]byte(`{"wordsPerMinute": 130, "fillerWordCount": 2, "eyeContactPct": null}`),
			[]byte(`[{"ts": "00:10", "note": "good opening"}]`),
			"{art-1}",
			time.Now(),
		))

	attempt, err := repo.Get(context.Background(), "attempt-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"station-1"}, attempt.StationIDs)
	assert.Equal(t, "hello there", attempt.Transcript)
	assert.Equal(t, 70, attempt.Scores[domain.CategoryOverall])
	assert.Equal(t, 130.0, attempt.Metrics.WordsPerMinute)
	assert.Nil(t, attempt.Metrics.EyeContactPct)
	require.Len(t, attempt.Feedback, 1)
	assert.Equal(t, "00:10", attempt.Feedback[0].Timestamp)
}

func TestAttemptRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttemptRepository(db)

	columns := []string{"id", "station_ids", "transcript", "scores", "metrics", "feedback", "recommended_articles", "updated_at"}
	mock.ExpectQuery("SELECT id, station_ids").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestAttemptRepository_SaveResults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttemptRepository(db)

	mock.ExpectExec("UPDATE attempts").
		WithArgs("attempt-1", "the transcript",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			pq.StringArray{"art-1", "art-2"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveResults(context.Background(), "attempt-1", &domain.AttemptResults{
		Transcript:          "the transcript",
		Scores:              domain.NewZeroScoreSet(),
		Feedback:            []domain.FeedbackItem{{Timestamp: "00:00", Note: "note"}},
		RecommendedArticles: []string{"art-1", "art-2"},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepository_SaveResultsNilSlices(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttemptRepository(db)

	// Nil feedback and articles are stored as empty JSON, never SQL null.
	mock.ExpectExec("UPDATE attempts").
		WithArgs("attempt-1", "t", sqlmock.AnyArg(), sqlmock.AnyArg(),
			[]byte(`[]`), pq.StringArray{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveResults(context.Background(), "attempt-1", &domain.AttemptResults{
		Transcript: "t",
		Scores:     domain.NewZeroScoreSet(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepository_SaveResultsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttemptRepository(db)

	mock.ExpectExec("UPDATE attempts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveResults(context.Background(), "missing", &domain.AttemptResults{
		Scores: domain.NewZeroScoreSet(),
	})
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}
