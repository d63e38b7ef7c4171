package worker

import "errors"

var (
	// ErrQueueFull is returned by Schedule when every pool slot and queue entry is taken.
	ErrQueueFull = errors.New("worker queue is full")

	// ErrStopped is returned by Schedule after Stop has been called.
	ErrStopped = errors.New("worker is stopped")

	// ErrInvalidMessage is returned for queue messages that can never be processed.
	ErrInvalidMessage = errors.New("invalid job message")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// JobMessage is one unit of work handed to the pool.
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`

	// fromBroker marks messages that must be acked or nacked on the broker
	fromBroker bool
}
