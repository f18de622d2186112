// Package pipeline contains the job processing pipeline: the state machine
// driving one job from pending to a terminal state, the speech-quality gate,
// the score post-processing policy, and the dispatch worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mmiprep/assessment-worker/internal/blobstore"
	"github.com/mmiprep/assessment-worker/internal/domain"
	"github.com/mmiprep/assessment-worker/internal/logging"
	"github.com/mmiprep/assessment-worker/internal/recommend"
	"github.com/mmiprep/assessment-worker/internal/telemetry"
)

// JobStore persists job state transitions.
type JobStore interface {
	Get(ctx context.Context, id string) (*domain.Job, error)
	SetProcessing(ctx context.Context, id string) error
	SetCompleted(ctx context.Context, id string) error
	SetFailed(ctx context.Context, id, errMsg string) error
	SetPendingRetry(ctx context.Context, id, errMsg string, retryCount int) error
}

// AttemptStore reads and overwrites attempt records.
type AttemptStore interface {
	Get(ctx context.Context, id string) (*domain.Attempt, error)
	SaveResults(ctx context.Context, id string, results *domain.AttemptResults) error
}

// CatalogStore provides read-only station and article lookups.
type CatalogStore interface {
	GetStation(ctx context.Context, id string) (*domain.Station, error)
	ListArticles(ctx context.Context) ([]domain.Article, error)
}

// BlobStore confirms and downloads recording objects.
type BlobStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Download(ctx context.Context, objectPath string) ([]byte, error)
}

// Transcriber converts recording bytes into a timestamped transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (*domain.Transcription, error)
}

// Assessor scores a timestamped transcript.
type Assessor interface {
	Assess(ctx context.Context, stampedTranscript string) (*domain.Assessment, error)
}

// Options bounds the state machine's external calls.
type Options struct {
	BlobTimeout        time.Duration
	TranscriberTimeout time.Duration
	TranscriberRPS     int
	AssessorTimeout    time.Duration
	AssessorRPS        int
}

func (o *Options) setDefaults() {
	if o.BlobTimeout == 0 {
		o.BlobTimeout = 2 * time.Minute
	}
	if o.TranscriberTimeout == 0 {
		o.TranscriberTimeout = 5 * time.Minute
	}
	if o.TranscriberRPS <= 0 {
		o.TranscriberRPS = 2
	}
	if o.AssessorTimeout == 0 {
		o.AssessorTimeout = 5 * time.Minute
	}
	if o.AssessorRPS <= 0 {
		o.AssessorRPS = 2
	}
}

// StateMachine drives a single job end to end: load records, transcribe,
// gate, assess, post-process, recommend, persist, and manage retry or
// terminal transitions on failure.
type StateMachine struct {
	jobs        JobStore
	attempts    AttemptStore
	catalog     CatalogStore
	blobs       BlobStore
	transcriber Transcriber
	assessor    Assessor
	metrics     *telemetry.Metrics
	logger      logging.Logger
	opts        Options

	transcriberLimit *rate.Limiter
	assessorLimit    *rate.Limiter
}

// NewStateMachine wires the pipeline's collaborators together.
func NewStateMachine(
	jobs JobStore,
	attempts AttemptStore,
	catalog CatalogStore,
	blobs BlobStore,
	transcriber Transcriber,
	assessor Assessor,
	metrics *telemetry.Metrics,
	logger logging.Logger,
	opts Options,
) *StateMachine {
	opts.setDefaults()
	return &StateMachine{
		jobs:             jobs,
		attempts:         attempts,
		catalog:          catalog,
		blobs:            blobs,
		transcriber:      transcriber,
		assessor:         assessor,
		metrics:          metrics,
		logger:           logger,
		opts:             opts,
		transcriberLimit: rate.NewLimiter(rate.Limit(opts.TranscriberRPS), opts.TranscriberRPS),
		assessorLimit:    rate.NewLimiter(rate.Limit(opts.AssessorRPS), opts.AssessorRPS),
	}
}

// Run processes one job to a terminal state or a retry requeue. It returns
// an error only when the job record itself cannot be loaded; every other
// failure is recorded on the job.
func (sm *StateMachine) Run(ctx context.Context, jobID string) error {
	started := time.Now()
	log := sm.logger.With("job_id", jobID)

	job, err := sm.jobs.Get(ctx, jobID)
	if err != nil {
		// No job record exists to update, so there is nothing to persist.
		log.Error("Failed to load job", "error", err)
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if job.RetryCount >= job.MaxRetries {
		msg := fmt.Sprintf("max retries (%d) exceeded", job.MaxRetries)
		log.Warn("Job exhausted its retry budget", "retry_count", job.RetryCount)
		if ferr := sm.jobs.SetFailed(ctx, jobID, msg); ferr != nil {
			log.Error("Failed to record retry exhaustion", "error", ferr)
		}
		sm.metrics.JobProcessed(telemetry.OutcomeFailed, time.Since(started))
		return nil
	}

	if err := sm.jobs.SetProcessing(ctx, jobID); err != nil {
		sm.handleFailure(ctx, log, jobID, started, err)
		return nil
	}
	log.Info("Job processing started", "attempt_id", job.AttemptID, "retry_count", job.RetryCount)

	err = sm.process(ctx, log, job)
	switch {
	case err == nil:
		if cerr := sm.jobs.SetCompleted(ctx, jobID); cerr != nil {
			sm.handleFailure(ctx, log, jobID, started, cerr)
			return nil
		}
		log.Info("Job completed", "duration", time.Since(started).String())
		sm.metrics.JobProcessed(telemetry.OutcomeCompleted, time.Since(started))
	case IsTerminal(err):
		// Never retried: the input can never succeed, and the retry budget
		// stays untouched so the message reflects the real cause.
		log.Warn("Job failed terminally", "error", err)
		if ferr := sm.jobs.SetFailed(ctx, jobID, err.Error()); ferr != nil {
			log.Error("Failed to record terminal failure", "error", ferr)
		}
		sm.metrics.JobProcessed(telemetry.OutcomeFailed, time.Since(started))
	default:
		sm.handleFailure(ctx, log, jobID, started, err)
	}
	return nil
}

// process performs the pipeline work for one job. A nil return means the
// attempt's results were persisted and the job may complete.
func (sm *StateMachine) process(ctx context.Context, log logging.Logger, job *domain.Job) error {
	attempt, err := sm.attempts.Get(ctx, job.AttemptID)
	if err != nil {
		return fmt.Errorf("load attempt %s: %w", job.AttemptID, err)
	}

	data, err := sm.fetchRecording(ctx, job.VideoURL)
	if err != nil {
		return err
	}

	transcription, err := sm.transcribe(ctx, data, path.Base(job.VideoURL))
	if err != nil {
		return err
	}

	verdict := EvaluateQuality(transcription.Text, transcription.Segments)
	log.Info("Quality gate evaluated",
		"usable", verdict.Usable,
		"word_count", verdict.WordCount,
		"total_duration", verdict.TotalDuration,
	)
	if !verdict.Usable {
		sm.metrics.GateRejected()
		if err := sm.attempts.SaveResults(ctx, attempt.ID, NotUsableResults(transcription.Text)); err != nil {
			return fmt.Errorf("save gate results: %w", err)
		}
		return nil
	}

	assessment, err := sm.assess(ctx, transcription.Segments)
	if err != nil {
		return err
	}

	scores := assessment.Scores.Normalize()
	feedback := assessment.Feedback
	if feedback == nil {
		feedback = []domain.FeedbackItem{}
	}
	metrics := domain.Metrics{}
	if assessment.Metrics != nil {
		metrics = *assessment.Metrics
	}

	scores, feedback = ApplyDurationCap(scores, feedback, verdict.TotalDuration)

	articles, err := sm.catalog.ListArticles(ctx)
	if err != nil {
		return fmt.Errorf("list articles: %w", err)
	}
	recommended := recommend.Recommend(scores, articles, sm.stationContext(ctx, log, attempt))

	results := &domain.AttemptResults{
		Transcript:          transcription.Text,
		Scores:              scores,
		Metrics:             metrics,
		Feedback:            feedback,
		RecommendedArticles: recommended,
	}
	if err := sm.attempts.SaveResults(ctx, attempt.ID, results); err != nil {
		return fmt.Errorf("save attempt results: %w", err)
	}
	return nil
}

// fetchRecording validates the video reference and downloads its bytes.
// Oversized objects are terminal; everything else is retried.
func (sm *StateMachine) fetchRecording(ctx context.Context, videoURL string) ([]byte, error) {
	if strings.TrimSpace(videoURL) == "" {
		return nil, fmt.Errorf("job has no video_url")
	}
	if !blobstore.IsSupportedExtension(videoURL) {
		return nil, fmt.Errorf("unsupported container extension: %s", path.Ext(videoURL))
	}

	ctx, cancel := context.WithTimeout(ctx, sm.opts.BlobTimeout)
	defer cancel()

	// List-then-confirm instead of download-and-hope: a missing object gets
	// a precise error message and a clean retry.
	prefix := path.Dir(videoURL)
	if prefix == "." {
		prefix = ""
	}
	names, err := sm.blobs.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	if !containsName(names, path.Base(videoURL)) {
		return nil, fmt.Errorf("video object not found in storage: %s", videoURL)
	}

	data, err := sm.blobs.Download(ctx, videoURL)
	if err != nil {
		if errors.Is(err, blobstore.ErrTooLarge) {
			return nil, Terminalf("your recording exceeds the 25 MiB processing limit; please upload a shorter or more compressed recording")
		}
		return nil, fmt.Errorf("download recording: %w", err)
	}
	return data, nil
}

func (sm *StateMachine) transcribe(ctx context.Context, data []byte, filename string) (*domain.Transcription, error) {
	if err := sm.transcriberLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("transcriber rate limit: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, sm.opts.TranscriberTimeout)
	defer cancel()

	started := time.Now()
	transcription, err := sm.transcriber.Transcribe(ctx, data, filename)
	sm.metrics.TranscriberCall(time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("transcribe recording: %w", err)
	}
	return transcription, nil
}

func (sm *StateMachine) assess(ctx context.Context, segments []domain.TranscriptSegment) (*domain.Assessment, error) {
	if err := sm.assessorLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("assessor rate limit: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, sm.opts.AssessorTimeout)
	defer cancel()

	started := time.Now()
	assessment, err := sm.assessor.Assess(ctx, StampTranscript(segments))
	sm.metrics.AssessorCall(time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("assess transcript: %w", err)
	}
	return assessment, nil
}

// stationContext resolves the attempt's first station for recommendation
// biasing. Station context is optional; lookup failures only lose the bias.
func (sm *StateMachine) stationContext(ctx context.Context, log logging.Logger, attempt *domain.Attempt) *domain.Station {
	if len(attempt.StationIDs) == 0 {
		return nil
	}
	station, err := sm.catalog.GetStation(ctx, attempt.StationIDs[0])
	if err != nil {
		log.Warn("Station lookup failed, recommending without station context",
			"station_id", attempt.StationIDs[0],
			"error", err,
		)
		return nil
	}
	return station
}

// handleFailure runs the retry bookkeeping: reload the job's counters,
// increment, and requeue or fail. A failure here is logged and swallowed so
// the worker keeps serving other jobs.
func (sm *StateMachine) handleFailure(ctx context.Context, log logging.Logger, jobID string, started time.Time, cause error) {
	log.Error("Job processing failed", "error", cause)

	job, err := sm.jobs.Get(ctx, jobID)
	if err != nil {
		log.Error("Failed to reload job for retry bookkeeping", "error", err)
		return
	}

	retryCount := job.RetryCount + 1
	if retryCount < job.MaxRetries {
		if err := sm.jobs.SetPendingRetry(ctx, jobID, cause.Error(), retryCount); err != nil {
			log.Error("Failed to requeue job", "error", err)
			return
		}
		log.Info("Job requeued for retry", "retry_count", retryCount, "max_retries", job.MaxRetries)
		sm.metrics.JobProcessed(telemetry.OutcomeRequeued, time.Since(started))
		return
	}

	if err := sm.jobs.SetFailed(ctx, jobID, cause.Error()); err != nil {
		log.Error("Failed to record job failure", "error", err)
		return
	}
	sm.metrics.JobProcessed(telemetry.OutcomeFailed, time.Since(started))
}

// StampTranscript renders segments as "[mm:ss] text" lines in chronological
// order, the representation the assessor prompt expects.
func StampTranscript(segments []domain.TranscriptSegment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("[%s] %s", FormatTimestamp(seg.Start), strings.TrimSpace(seg.Text)))
	}
	return strings.Join(lines, "\n")
}

// FormatTimestamp renders seconds as mm:ss.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name || path.Base(n) == name {
			return true
		}
	}
	return false
}

