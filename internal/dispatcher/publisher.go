package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher sends a message to the job queue.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// QueueScheduler schedules jobs by publishing {"job_id": ...} for the worker service.
type QueueScheduler struct {
	publisher Publisher
}

// NewQueueScheduler creates a QueueScheduler.
func NewQueueScheduler(publisher Publisher) *QueueScheduler {
	return &QueueScheduler{publisher: publisher}
}

type jobMessage struct {
	JobID string `json:"job_id"`
}

// Schedule publishes the job id.
func (q *QueueScheduler) Schedule(ctx context.Context, jobID string) error {
	body, err := json.Marshal(jobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}
	if err := q.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish job message: %w", err)
	}
	return nil
}
