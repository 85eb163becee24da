package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// EmailPayload is the body of a notification job
type EmailPayload struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// EmailSender delivers an email synchronously
type EmailSender interface {
	SendEmail(ctx context.Context, subject, body string, recipients []string) error
}

// NotificationQueue hands emails to the notification workers instead of
// sending them inside the request
type NotificationQueue struct {
	redis      *RedisClient
	maxRetries int
}

// NewNotificationQueue creates a new notification queue. Each email is
// retried up to maxRetries times before it is parked.
func NewNotificationQueue(redis *RedisClient, maxRetries int) *NotificationQueue {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &NotificationQueue{redis: redis, maxRetries: maxRetries}
}

// SendEmail enqueues an email for delivery
func (q *NotificationQueue) SendEmail(ctx context.Context, subject, body string, recipients []string) error {
	_, err := q.redis.Enqueue(ctx, QueueNotifications, EmailPayload{
		Subject:    subject,
		Body:       body,
		Recipients: recipients,
	}, WithMaxRetries(q.maxRetries))
	return err
}

// EmailHandler returns a handler that delivers notification jobs through sender
func EmailHandler(sender EmailSender) JobHandler {
	return func(ctx context.Context, job Job) error {
		var payload EmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("error unmarshaling email payload: %w", err)
		}
		return sender.SendEmail(ctx, payload.Subject, payload.Body, payload.Recipients)
	}
}
