package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

// ErrJobNotFound is returned when no job exists for the requested id.
var ErrJobNotFound = errors.New("job not found")

// JobRepository manages assessment jobs in PostgreSQL.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Get loads a job by id.
func (r *JobRepository) Get(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.GetContext(ctx, &job, `
		SELECT id, attempt_id, video_url, status, retry_count, max_retries,
		       started_at, completed_at, COALESCE(error_message, '') AS error_message
		FROM assessment_jobs
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// Claim conditionally marks a job as processing. It succeeds only when the
// job is not already processing, making re-entrant dispatch a no-op.
func (r *JobRepository) Claim(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE assessment_jobs
		SET status = $2
		WHERE id = $1 AND status <> $2`, id, domain.StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job %s: rows affected: %w", id, err)
	}
	return rows > 0, nil
}

// SetProcessing transitions a job to processing and records the start time.
func (r *JobRepository) SetProcessing(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE assessment_jobs
		SET status = $2, started_at = NOW(), error_message = NULL
		WHERE id = $1`, id, domain.StatusProcessing)
	if err != nil {
		return fmt.Errorf("set job %s processing: %w", id, err)
	}
	return nil
}

// SetCompleted transitions a job to completed with a completion timestamp.
func (r *JobRepository) SetCompleted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE assessment_jobs
		SET status = $2, completed_at = NOW()
		WHERE id = $1`, id, domain.StatusCompleted)
	if err != nil {
		return fmt.Errorf("set job %s completed: %w", id, err)
	}
	return nil
}

// SetFailed transitions a job to the terminal failed state. The error message
// is persisted verbatim for operator visibility.
func (r *JobRepository) SetFailed(ctx context.Context, id, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE assessment_jobs
		SET status = $2, completed_at = NOW(), error_message = $3
		WHERE id = $1`, id, domain.StatusFailed, errMsg)
	if err != nil {
		return fmt.Errorf("set job %s failed: %w", id, err)
	}
	return nil
}

// SetPendingRetry requeues a job for another attempt with an updated retry
// count. The external scheduler re-dispatches pending jobs.
func (r *JobRepository) SetPendingRetry(ctx context.Context, id, errMsg string, retryCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE assessment_jobs
		SET status = $2, retry_count = $3, error_message = $4
		WHERE id = $1`, id, domain.StatusPending, retryCount, errMsg)
	if err != nil {
		return fmt.Errorf("requeue job %s: %w", id, err)
	}
	return nil
}
