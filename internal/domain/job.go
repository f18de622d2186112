// Package domain defines the core types shared across the assessment worker.
package domain

import "time"

// Job status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job is a queued unit of work: analyze one recorded attempt.
// A job is created by the upload workflow with status "pending" and is owned
// by the state machine for the duration of a run.
type Job struct {
	ID           string     `db:"id"            json:"id"`
	AttemptID    string     `db:"attempt_id"    json:"attempt_id"`
	VideoURL     string     `db:"video_url"     json:"video_url"`
	Status       string     `db:"status"        json:"status"`
	RetryCount   int        `db:"retry_count"   json:"retry_count"`
	MaxRetries   int        `db:"max_retries"   json:"max_retries"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
}

// CanRetry reports whether the job still has retry budget left.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}
