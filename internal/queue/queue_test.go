package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmailSender is a mock implementation of EmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, subject, body string, recipients []string) error {
	args := m.Called(ctx, subject, body, recipients)
	return args.Error(0)
}

func setupRedis(t *testing.T) *RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisClient(client)
}

func TestEnqueueDequeue(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()

	firstID, err := r.Enqueue(ctx, "test", map[string]string{"n": "1"})
	require.NoError(t, err)
	_, err = r.Enqueue(ctx, "test", map[string]string{"n": "2"}, WithMaxRetries(7))
	require.NoError(t, err)

	stats, err := r.Stats(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Waiting)

	job, err := r.Dequeue(ctx, "test", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, firstID, job.ID)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)
	assert.JSONEq(t, `{"n":"1"}`, string(job.Payload))

	job, err = r.Dequeue(ctx, "test", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, job.MaxRetries)
}

func TestDequeueEmpty(t *testing.T) {
	r := setupRedis(t)

	job, err := r.Dequeue(context.Background(), "empty", time.Second)

	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryWaitsForBackoff(t *testing.T) {
	r := setupRedis(t)
	r.backoff = func(int) time.Duration { return time.Minute }
	ctx := context.Background()
	job := &Job{ID: "j1", Queue: "test", Payload: json.RawMessage(`{}`), MaxRetries: 1}

	requeued, err := r.Retry(ctx, job, errors.New("boom"))
	require.NoError(t, err)
	assert.True(t, requeued)
	assert.Equal(t, 1, job.RetryCount)

	stats, err := r.Stats(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)
	assert.Equal(t, int64(1), stats.Delayed)

	// not due yet
	moved, err := r.PromoteDelayed(ctx, "test", time.Now())
	require.NoError(t, err)
	assert.Zero(t, moved)

	moved, err = r.PromoteDelayed(ctx, "test", time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	retried, err := r.Dequeue(ctx, "test", time.Second)
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, "j1", retried.ID)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, "boom", retried.LastError)
}

func TestRetryParksExhaustedJob(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()
	job := &Job{ID: "j1", Queue: "test", Payload: json.RawMessage(`{}`), MaxRetries: 1, RetryCount: 1}

	requeued, err := r.Retry(ctx, job, errors.New("boom"))
	require.NoError(t, err)
	assert.False(t, requeued)

	stats, err := r.Stats(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)
	assert.Equal(t, int64(0), stats.Delayed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestCalculateBackoffGrows(t *testing.T) {
	first := calculateBackoff(0)
	assert.GreaterOrEqual(t, first, 4*time.Second)
	assert.LessOrEqual(t, first, 6*time.Second)

	third := calculateBackoff(2)
	assert.GreaterOrEqual(t, third, 16*time.Second)
	assert.LessOrEqual(t, third, 24*time.Second)

	assert.LessOrEqual(t, calculateBackoff(20), 72*time.Minute)
}

func TestNotificationWorkerDeliversEmail(t *testing.T) {
	r := setupRedis(t)
	sender := new(MockEmailSender)
	delivered := make(chan struct{})
	sender.On("SendEmail", mock.Anything, "Your complaint was approved", "body", []string{"ada@example.com"}).
		Run(func(mock.Arguments) { close(delivered) }).
		Return(nil).Once()

	worker := NewWorker(r, QueueNotifications, EmailHandler(sender), 1)
	worker.Start()
	defer worker.Stop()

	notifications := NewNotificationQueue(r, DefaultMaxRetries)
	require.NoError(t, notifications.SendEmail(context.Background(), "Your complaint was approved", "body", []string{"ada@example.com"}))

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("email was not delivered")
	}
	sender.AssertExpectations(t)
}

func TestNotificationWorkerParksUndeliverableEmail(t *testing.T) {
	r := setupRedis(t)
	r.backoff = func(int) time.Duration { return 0 }
	ctx := context.Background()
	sender := new(MockEmailSender)
	sender.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("ses down"))

	require.NoError(t, NewNotificationQueue(r, 1).SendEmail(ctx, "s", "b", []string{"a@example.com"}))

	worker := NewWorker(r, QueueNotifications, EmailHandler(sender), 1)
	worker.promoteInterval = 20 * time.Millisecond
	worker.Start()
	defer worker.Stop()

	assert.Eventually(t, func() bool {
		stats, err := r.Stats(ctx, QueueNotifications)
		return err == nil && stats.Failed == 1
	}, 5*time.Second, 50*time.Millisecond)
	sender.AssertNumberOfCalls(t, "SendEmail", 2)
}
