package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker is the queue the worker service consumes from.
type Broker interface {
	Consume(consumerTag string, prefetchCount int) (<-chan amqp.Delivery, error)
	Ack(deliveryTag uint64) error
	Nack(deliveryTag uint64, requeue bool) error
}

// Consume feeds broker deliveries into the pool until ctx ends or the
// delivery channel closes. Start must have been called.
func (w *Worker) Consume(ctx context.Context, broker Broker, prefetchCount int) error {
	w.broker = broker

	deliveries, err := broker.Consume(w.workerID, prefetchCount)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.Int("prefetch_count", prefetchCount),
	)

	w.dispatchDeliveries(ctx, deliveries)
	return nil
}

// dispatchDeliveries listens to deliveries and dispatches jobs to the worker pool
func (w *Worker) dispatchDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg JobMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				w.logger.Error("Failed to parse message JSON",
					slog.Any("error", err),
					slog.String("body", string(delivery.Body)),
				)
				w.reject(delivery.DeliveryTag)
				continue
			}

			if _, err := uuid.Parse(msg.JobID); err != nil {
				w.logger.Error("Invalid job_id format - not a UUID",
					slog.String("job_id", msg.JobID),
					slog.Any("error", err),
				)
				w.reject(delivery.DeliveryTag)
				continue
			}

			msg.DeliveryTag = delivery.DeliveryTag
			msg.fromBroker = true

			if err := w.enqueueWait(ctx, &msg); err != nil {
				w.logger.Info("Message dispatcher stopped while dispatching job",
					slog.String("job_id", msg.JobID),
				)
				// put it back for another consumer
				if nackErr := w.broker.Nack(delivery.DeliveryTag, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.Any("error", nackErr),
					)
				}
				return
			}

			w.logger.Debug("Job dispatched to worker pool",
				slog.String("job_id", msg.JobID),
				slog.Uint64("delivery_tag", delivery.DeliveryTag),
			)
		}
	}
}

// reject drops a message that can never be processed.
func (w *Worker) reject(deliveryTag uint64) {
	if err := w.broker.Nack(deliveryTag, false); err != nil {
		w.logger.Error("Failed to NACK malformed message",
			slog.Any("error", err),
		)
	}
}
