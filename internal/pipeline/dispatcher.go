package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mmiprep/assessment-worker/internal/logging"
	"github.com/mmiprep/assessment-worker/internal/telemetry"
)

var (
	// ErrAlreadyClaimed means another run for this job id is active.
	ErrAlreadyClaimed = errors.New("job is already being processed")
	// ErrQueueFull means the dispatch queue is at capacity.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrStopped means the dispatcher is no longer accepting work.
	ErrStopped = errors.New("dispatcher is stopped")
)

// Runner processes a single job to completion.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// DispatcherConfig holds worker pool sizing.
type DispatcherConfig struct {
	Concurrency int
	QueueSize   int
	JobTimeout  time.Duration
}

// Dispatcher accepts job ids and hands them to a bounded worker pool. The
// caller gets an immediate accept/reject answer; processing outcome is
// recorded on the job itself.
type Dispatcher struct {
	runner  Runner
	lease   Lease
	metrics *telemetry.Metrics
	logger  logging.Logger

	jobTimeout time.Duration
	queue      chan string

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher with a bounded queue and worker pool.
func NewDispatcher(runner Runner, lease Lease, metrics *telemetry.Metrics, logger logging.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 15 * time.Minute
	}

	d := &Dispatcher{
		runner:     runner,
		lease:      lease,
		metrics:    metrics,
		logger:     logger,
		jobTimeout: cfg.JobTimeout,
		queue:      make(chan string, cfg.QueueSize),
	}

	for i := 0; i < cfg.Concurrency; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	logger.Info("Dispatcher started", "concurrency", cfg.Concurrency, "queue_size", cfg.QueueSize)
	return d
}

// Dispatch claims the job and enqueues it. It returns immediately:
// ErrAlreadyClaimed when another run holds the job, ErrQueueFull when the
// pool is saturated, nil when the job is accepted.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID string) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	d.mu.Unlock()

	acquired, err := d.lease.Acquire(ctx, jobID)
	if err != nil {
		return err
	}
	if !acquired {
		d.metrics.DispatchRejected("claimed")
		return ErrAlreadyClaimed
	}

	select {
	case d.queue <- jobID:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
		d.lease.Release(ctx, jobID)
		d.metrics.DispatchRejected("queue_full")
		return ErrQueueFull
	}
}

// Stop drains the queue and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.queue)
	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")
}

// Stats reports queue occupancy for the stats endpoint.
func (d *Dispatcher) Stats() map[string]any {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	return map[string]any{
		"queue_depth":    len(d.queue),
		"queue_capacity": cap(d.queue),
		"stopped":        stopped,
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for jobID := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		d.runOne(jobID)
	}
}

// runOne executes a single job with a bounded timeout. Run never panics the
// worker: all failures are recorded on the job or logged.
func (d *Dispatcher) runOne(jobID string) {
	d.metrics.WorkerStarted()
	defer d.metrics.WorkerFinished()

	ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
	defer cancel()
	defer d.lease.Release(context.WithoutCancel(ctx), jobID)

	if err := d.runner.Run(ctx, jobID); err != nil {
		d.logger.Error("Job run aborted", "job_id", jobID, "error", err)
	}
}
