package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// Broker-level retry: 3 attempts with 2s, 4s, 8s backoff, independent of
	// the judge-call retry inside a single attempt.
	maxJobAttempts = 3
	baseRetryDelay = 2 * time.Second

	leaseWait = 2 * time.Second

	// A lease older than this is presumed orphaned by a crashed worker and is
	// reclaimed through the normal retry path. Must comfortably exceed the
	// worst-case layer timeouts of a single job.
	leaseTimeout = 5 * time.Minute
)

// ErrQueueEmpty is returned by Lease when no job became available within the
// lease wait window.
var ErrQueueEmpty = errors.New("no job available")

// Stats exposes queue depth for operational visibility.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// JobQueue is the durable broker boundary for analysis jobs. Delivery is
// at-least-once with leases and broker-level retry.
type JobQueue interface {
	Enqueue(ctx context.Context, job model.AnalysisJob) error
	Lease(ctx context.Context) (*model.AnalysisJob, error)
	Ack(ctx context.Context, job *model.AnalysisJob) error
	Nack(ctx context.Context, job *model.AnalysisJob) error
	Stats(ctx context.Context) (Stats, error)
}

type RedisJobQueue struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

func NewRedisJobQueue(client *redis.Client, logger *zap.Logger) *RedisJobQueue {
	return &RedisJobQueue{
		client:    client,
		keyPrefix: "observa:analysis:",
		logger:    logger,
	}
}

func (q *RedisJobQueue) highKey() string      { return q.keyPrefix + "queue:high" }
func (q *RedisJobQueue) normalKey() string    { return q.keyPrefix + "queue:normal" }
func (q *RedisJobQueue) activeKey() string    { return q.keyPrefix + "active" }
func (q *RedisJobQueue) leaseKey() string     { return q.keyPrefix + "lease" }
func (q *RedisJobQueue) retryKey() string     { return q.keyPrefix + "retry" }
func (q *RedisJobQueue) failedKey() string    { return q.keyPrefix + "failed" }
func (q *RedisJobQueue) completedKey() string { return q.keyPrefix + "counter:completed" }
func (q *RedisJobQueue) failedCountKey() string {
	return q.keyPrefix + "counter:failed"
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, job model.AnalysisJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis job: %w", err)
	}
	key := q.normalKey()
	if job.HighPriority() {
		key = q.highKey()
	}
	if err := q.client.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue analysis job: %w", err)
	}
	return nil
}

// Lease reclaims orphaned leases and promotes due retries, then blocks
// briefly on both priority tiers. High priority drains first.
func (q *RedisJobQueue) Lease(ctx context.Context) (*model.AnalysisJob, error) {
	if err := q.reclaimExpiredLeases(ctx); err != nil {
		q.logger.Warn("Failed to reclaim expired leases", zap.Error(err))
	}
	if err := q.promoteDueRetries(ctx); err != nil {
		q.logger.Warn("Failed to promote due retries", zap.Error(err))
	}

	result, err := q.client.BRPop(ctx, leaseWait, q.highKey(), q.normalKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lease analysis job: %w", err)
	}
	// BRPop returns [key, value].
	payload := result[1]

	var job model.AnalysisJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal leased job: %w", err)
	}
	deadline := time.Now().Add(leaseTimeout)
	pipe := q.client.Pipeline()
	pipe.HSet(ctx, q.activeKey(), job.ID, payload)
	pipe.ZAdd(ctx, q.leaseKey(), redis.Z{
		Score:  float64(deadline.UnixMilli()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark job active: %w", err)
	}
	return &job, nil
}

func (q *RedisJobQueue) Ack(ctx context.Context, job *model.AnalysisJob) error {
	pipe := q.client.Pipeline()
	pipe.HDel(ctx, q.activeKey(), job.ID)
	pipe.ZRem(ctx, q.leaseKey(), job.ID)
	pipe.Incr(ctx, q.completedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack returns a failed job to the broker: it is rescheduled with exponential
// backoff until the attempt limit, then parked on the failed list for
// alerted follow-up, never silently dropped.
func (q *RedisJobQueue) Nack(ctx context.Context, job *model.AnalysisJob) error {
	pipe := q.client.Pipeline()
	pipe.HDel(ctx, q.activeKey(), job.ID)
	pipe.ZRem(ctx, q.leaseKey(), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear active job: %w", err)
	}

	job.Attempts++
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job for retry: %w", err)
	}

	if job.Attempts >= maxJobAttempts {
		q.logger.Error(
			"Analysis job exhausted its attempts",
			zap.String("job_id", job.ID),
			zap.String("trace_id", job.TraceID),
			zap.Int("attempts", job.Attempts),
		)
		pipe := q.client.Pipeline()
		pipe.LPush(ctx, q.failedKey(), payload)
		pipe.Incr(ctx, q.failedCountKey())
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to park exhausted job: %w", err)
		}
		return nil
	}

	delay := time.Duration(float64(baseRetryDelay) * math.Pow(2, float64(job.Attempts-1)))
	due := time.Now().Add(delay)
	if err := q.client.ZAdd(ctx, q.retryKey(), redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule job retry: %w", err)
	}
	return nil
}

// reclaimExpiredLeases returns jobs whose lease deadline passed, presumably
// held by a crashed worker, to the broker through the normal retry path so
// they are retried or parked as failed, never lost in the active hash.
func (q *RedisJobQueue) reclaimExpiredLeases(ctx context.Context) error {
	now := time.Now().UnixMilli()
	expired, err := q.client.ZRangeByScore(ctx, q.leaseKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return err
	}
	for _, jobID := range expired {
		payload, err := q.client.HGet(ctx, q.activeKey(), jobID).Result()
		if errors.Is(err, redis.Nil) {
			// Already acked or nacked elsewhere; the lease entry is stale.
			q.client.ZRem(ctx, q.leaseKey(), jobID)
			continue
		}
		if err != nil {
			return err
		}
		var job model.AnalysisJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			q.logger.Error("Dropping unparseable active payload", zap.Error(err))
			pipe := q.client.Pipeline()
			pipe.HDel(ctx, q.activeKey(), jobID)
			pipe.ZRem(ctx, q.leaseKey(), jobID)
			pipe.Exec(ctx)
			continue
		}
		q.logger.Warn(
			"Reclaiming analysis job from an expired lease",
			zap.String("job_id", job.ID),
			zap.String("trace_id", job.TraceID),
		)
		if err := q.Nack(ctx, &job); err != nil {
			return err
		}
	}
	return nil
}

func (q *RedisJobQueue) promoteDueRetries(ctx context.Context) error {
	now := time.Now().UnixMilli()
	due, err := q.client.ZRangeByScore(ctx, q.retryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return err
	}
	for _, payload := range due {
		var job model.AnalysisJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			q.logger.Error("Dropping unparseable retry payload", zap.Error(err))
			q.client.ZRem(ctx, q.retryKey(), payload)
			continue
		}
		key := q.normalKey()
		if job.HighPriority() {
			key = q.highKey()
		}
		pipe := q.client.Pipeline()
		pipe.LPush(ctx, key, payload)
		pipe.ZRem(ctx, q.retryKey(), payload)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (q *RedisJobQueue) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	high, err := q.client.LLen(ctx, q.highKey()).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to read queue stats: %w", err)
	}
	normal, err := q.client.LLen(ctx, q.normalKey()).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to read queue stats: %w", err)
	}
	delayed, err := q.client.ZCard(ctx, q.retryKey()).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to read queue stats: %w", err)
	}
	active, err := q.client.HLen(ctx, q.activeKey()).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to read queue stats: %w", err)
	}
	stats.Waiting = high + normal + delayed
	stats.Active = active
	stats.Completed, _ = q.client.Get(ctx, q.completedKey()).Int64()
	stats.Failed, _ = q.client.Get(ctx, q.failedCountKey()).Int64()
	return stats, nil
}
