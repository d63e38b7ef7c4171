package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop drains jobsChan until it is closed.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for msg := range w.jobsChan {
		w.logger.Debug("Worker received job",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
			slog.Uint64("delivery_tag", msg.DeliveryTag),
		)

		err := w.processJob(ctx, msg)
		if err != nil {
			w.logger.Error("Job processing failed",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
				slog.Any("error", err),
			)
		}

		if msg.fromBroker {
			w.settle(msg, err)
		}
	}

	w.logger.Debug("Worker goroutine stopping - jobsChan closed",
		slog.String("worker_name", workerName),
	)
}

// settle acks or nacks a broker delivery based on the processing result.
func (w *Worker) settle(msg *JobMessage, err error) {
	if err == nil {
		if ackErr := w.broker.Ack(msg.DeliveryTag); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("job_id", msg.JobID),
				slog.Any("error", ackErr),
			)
		}
		return
	}

	requeue := w.shouldRequeueJob(err)
	if nackErr := w.broker.Nack(msg.DeliveryTag, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("job_id", msg.JobID),
			slog.Any("error", nackErr),
		)
		return
	}

	w.logger.Info("Message NACKed",
		slog.String("job_id", msg.JobID),
		slog.Bool("requeue", requeue),
	)
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func (w *Worker) shouldRequeueJob(err error) bool {
	if errors.Is(err, ErrInvalidMessage) {
		return false
	}

	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}

// Schedule queues a job without blocking. It satisfies the dispatcher's
// scheduler contract for the in-process mode.
func (w *Worker) Schedule(_ context.Context, jobID string) error {
	return w.enqueue(&JobMessage{JobID: jobID})
}

func (w *Worker) enqueue(msg *JobMessage) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrStopped
	}

	select {
	case w.jobsChan <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// enqueueWait blocks until the pool accepts msg or ctx ends.
func (w *Worker) enqueueWait(ctx context.Context, msg *JobMessage) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrStopped
	}

	select {
	case w.jobsChan <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
