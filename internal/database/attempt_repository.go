package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

// ErrAttemptNotFound is returned when no attempt exists for the requested id.
var ErrAttemptNotFound = errors.New("attempt not found")

// AttemptRepository manages attempt records in PostgreSQL. Scores, metrics
// and feedback are stored as JSONB columns.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository creates a new attempt repository.
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

type attemptRow struct {
	ID                  string         `db:"id"`
	StationIDs          pq.StringArray `db:"station_ids"`
	Transcript          string         `db:"transcript"`
	Scores              []byte         `db:"scores"`
	Metrics             []byte         `db:"metrics"`
	Feedback            []byte         `db:"feedback"`
	RecommendedArticles pq.StringArray `db:"recommended_articles"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

// Get loads an attempt by id.
func (r *AttemptRepository) Get(ctx context.Context, id string) (*domain.Attempt, error) {
	var row attemptRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, station_ids, COALESCE(transcript, '') AS transcript,
		       COALESCE(scores, '{}') AS scores,
		       COALESCE(metrics, '{}') AS metrics,
		       COALESCE(feedback, '[]') AS feedback,
		       recommended_articles, updated_at
		FROM attempts
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAttemptNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt %s: %w", id, err)
	}
	return row.toDomain()
}

func (row *attemptRow) toDomain() (*domain.Attempt, error) {
	attempt := &domain.Attempt{
		ID:                  row.ID,
		StationIDs:          row.StationIDs,
		Transcript:          row.Transcript,
		RecommendedArticles: row.RecommendedArticles,
		UpdatedAt:           row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Scores, &attempt.Scores); err != nil {
		return nil, fmt.Errorf("decode attempt %s scores: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Metrics, &attempt.Metrics); err != nil {
		return nil, fmt.Errorf("decode attempt %s metrics: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Feedback, &attempt.Feedback); err != nil {
		return nil, fmt.Errorf("decode attempt %s feedback: %w", row.ID, err)
	}
	return attempt, nil
}

// SaveResults overwrites the analysis output of an attempt. This is a full
// overwrite of every result field, not a merge.
func (r *AttemptRepository) SaveResults(ctx context.Context, id string, results *domain.AttemptResults) error {
	scores, err := json.Marshal(results.Scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	metrics, err := json.Marshal(results.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	feedback := results.Feedback
	if feedback == nil {
		feedback = []domain.FeedbackItem{}
	}
	feedbackJSON, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	articles := results.RecommendedArticles
	if articles == nil {
		articles = []string{}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE attempts
		SET transcript = $2, scores = $3, metrics = $4, feedback = $5,
		    recommended_articles = $6, updated_at = NOW()
		WHERE id = $1`,
		id, results.Transcript, scores, metrics, feedbackJSON, pq.StringArray(articles))
	if err != nil {
		return fmt.Errorf("save attempt %s results: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save attempt %s results: rows affected: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrAttemptNotFound, id)
	}
	return nil
}
