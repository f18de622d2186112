package pipeline

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmiprep/assessment-worker/internal/logging"
)

// Lease is a per-job mutual-exclusion token. At most one run per job id may
// be active; a dispatch that cannot acquire the lease is rejected.
type Lease interface {
	Acquire(ctx context.Context, jobID string) (bool, error)
	Release(ctx context.Context, jobID string)
}

const leaseKeyPrefix = "assessment:job:claim:"

// RedisLease implements Lease with SET NX and a TTL so a crashed worker
// cannot hold a claim forever.
type RedisLease struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisLease creates a Redis-backed lease.
func NewRedisLease(client *redis.Client, ttl time.Duration, logger logging.Logger) *RedisLease {
	if ttl <= 0 {
		ttl = 20 * time.Minute
	}
	return &RedisLease{client: client, ttl: ttl, logger: logger}
}

// Acquire attempts to claim the job id.
func (l *RedisLease) Acquire(ctx context.Context, jobID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, leaseKeyPrefix+jobID, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release drops the claim. Best effort: the TTL reclaims leaked leases.
func (l *RedisLease) Release(ctx context.Context, jobID string) {
	if err := l.client.Del(ctx, leaseKeyPrefix+jobID).Err(); err != nil {
		l.logger.Warn("Failed to release job lease", "job_id", jobID, "error", err)
	}
}

// JobClaimer is the conditional-update claim offered by the job store.
type JobClaimer interface {
	Claim(ctx context.Context, id string) (bool, error)
}

// StoreLease implements Lease with the store's conditional status update.
// Used when Redis is not configured; the status transition itself releases
// the claim, so Release is a no-op.
type StoreLease struct {
	claimer JobClaimer
}

// NewStoreLease creates a store-backed lease.
func NewStoreLease(claimer JobClaimer) *StoreLease {
	return &StoreLease{claimer: claimer}
}

// Acquire claims the job via a conditional status update.
func (l *StoreLease) Acquire(ctx context.Context, jobID string) (bool, error) {
	return l.claimer.Claim(ctx, jobID)
}

// Release is a no-op; the terminal status transition ends the claim.
func (l *StoreLease) Release(context.Context, string) {}
