package queue

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"
)

// Queue names
const (
	QueueNotifications = "notifications"

	// DefaultMaxRetries is how often a failing job is put back before it is parked
	DefaultMaxRetries = 3
)

// Job is a unit of work stored on a Redis list
type Job struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Stats counts the jobs of one queue by state
type Stats struct {
	Queue   string `json:"queue"`
	Waiting int64  `json:"waiting"`
	Delayed int64  `json:"delayed"`
	Failed  int64  `json:"failed"`
}

// JobHandler processes one job
type JobHandler func(ctx context.Context, job Job) error

// EnqueueOption modifies a job before it is pushed
type EnqueueOption func(*Job)

// WithMaxRetries sets the maximum number of retries for a job
func WithMaxRetries(maxRetries int) EnqueueOption {
	return func(j *Job) {
		j.MaxRetries = maxRetries
	}
}

// calculateBackoff returns the delay before retry number retry+1: exponential
// from 5 seconds, capped at 1 hour, with 20% jitter
func calculateBackoff(retry int) time.Duration {
	base := 5.0
	maxSeconds := 3600.0

	seconds := math.Min(maxSeconds, base*math.Pow(2, float64(retry)))

	jitter := seconds * 0.2
	seconds = seconds - jitter + (rand.Float64() * jitter * 2)

	return time.Duration(seconds * float64(time.Second))
}
