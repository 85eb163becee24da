package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Redis key prefixes
const (
	queuePrefix   = "queue:"
	delayedPrefix = "delayed:"
	failedPrefix  = "failed:"
)

// RedisClient pushes and pops jobs on Redis lists. Jobs waiting for a retry
// sit in a sorted set scored by the time they become due.
type RedisClient struct {
	client  *redis.Client
	backoff func(retry int) time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client, backoff: calculateBackoff}
}

// Close closes the Redis client
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Enqueue adds a job to the queue
func (r *RedisClient) Enqueue(ctx context.Context, queueName string, payload interface{}, opts ...EnqueueOption) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := &Job{
		ID:         uuid.New().String(),
		Queue:      queueName,
		Payload:    payloadBytes,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(job)
	}

	if err := r.push(ctx, queuePrefix+queueName, job); err != nil {
		return "", fmt.Errorf("failed to add job to queue: %w", err)
	}
	return job.ID, nil
}

// Dequeue pops the oldest job from the queue, waiting up to timeout.
// It returns nil when the queue stayed empty.
func (r *RedisClient) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := r.client.BRPop(ctx, timeout, queuePrefix+queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("error popping job from queue %s: %w", queueName, err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("invalid result from BRPOP for queue %s", queueName)
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job data: %w", err)
	}
	return &job, nil
}

// Retry schedules a failed job for another attempt after a backoff, or parks
// it on the failed list once it has used up its retries. It reports whether
// the job was rescheduled.
func (r *RedisClient) Retry(ctx context.Context, job *Job, cause error) (bool, error) {
	job.LastError = cause.Error()
	if job.RetryCount >= job.MaxRetries {
		if err := r.push(ctx, failedPrefix+job.Queue, job); err != nil {
			return false, fmt.Errorf("failed to park job %s: %w", job.ID, err)
		}
		return false, nil
	}

	processAt := time.Now().Add(r.backoff(job.RetryCount))
	job.RetryCount++
	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := r.client.ZAdd(ctx, delayedPrefix+job.Queue, &redis.Z{
		Score:  float64(processAt.Unix()),
		Member: data,
	}).Err(); err != nil {
		return false, fmt.Errorf("failed to schedule retry of job %s: %w", job.ID, err)
	}
	return true, nil
}

// PromoteDelayed moves retries that are due at now back onto the queue. It
// returns how many jobs were moved.
func (r *RedisClient) PromoteDelayed(ctx context.Context, queueName string, now time.Time) (int, error) {
	delayedQueue := delayedPrefix + queueName
	due, err := r.client.ZRangeByScore(ctx, delayedQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("error getting delayed jobs: %w", err)
	}

	moved := 0
	for _, data := range due {
		// only the worker that removes the entry requeues it
		removed, err := r.client.ZRem(ctx, delayedQueue, data).Result()
		if err != nil {
			return moved, fmt.Errorf("failed to remove job from delayed queue: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, queuePrefix+queueName, data).Err(); err != nil {
			return moved, fmt.Errorf("failed to requeue delayed job: %w", err)
		}
		moved++
	}
	return moved, nil
}

// Stats reports how many jobs of a queue are waiting, scheduled for a retry
// and parked after exhausting their retries
func (r *RedisClient) Stats(ctx context.Context, queueName string) (*Stats, error) {
	stats := &Stats{Queue: queueName}

	waiting, err := r.client.LLen(ctx, queuePrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting count: %w", err)
	}
	stats.Waiting = waiting

	delayed, err := r.client.ZCard(ctx, delayedPrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get delayed count: %w", err)
	}
	stats.Delayed = delayed

	failed, err := r.client.LLen(ctx, failedPrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed count: %w", err)
	}
	stats.Failed = failed

	return stats, nil
}

func (r *RedisClient) push(ctx context.Context, key string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return r.client.LPush(ctx, key, data).Err()
}
