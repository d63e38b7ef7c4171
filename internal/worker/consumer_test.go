package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/trendrider/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	deliveries chan amqp.Delivery

	mu     sync.Mutex
	acked  []uint64
	nacked map[uint64]bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{deliveries: make(chan amqp.Delivery, 10), nacked: map[uint64]bool{}}
}

func (b *fakeBroker) Consume(string, int) (<-chan amqp.Delivery, error) {
	return b.deliveries, nil
}

func (b *fakeBroker) Ack(tag uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acked = append(b.acked, tag)
	return nil
}

func (b *fakeBroker) Nack(tag uint64, requeue bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nacked[tag] = requeue
	return nil
}

func (b *fakeBroker) settled() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.acked) + len(b.nacked)
}

func TestWorker_Consume(t *testing.T) {
	f := newFixture(t, Config{Concurrency: 2})
	job := f.admitJob(t, "")
	broker := newFakeBroker()

	body, err := json.Marshal(JobMessage{JobID: job.ID})
	require.NoError(t, err)

	broker.deliveries <- amqp.Delivery{DeliveryTag: 1, Body: body}
	broker.deliveries <- amqp.Delivery{DeliveryTag: 2, Body: []byte("not json")}
	broker.deliveries <- amqp.Delivery{DeliveryTag: 3, Body: []byte(`{"job_id":"not-a-uuid"}`)}
	broker.deliveries <- amqp.Delivery{DeliveryTag: 4, Body: []byte(`{"job_id":"6f1c1f0e-8d5b-4b8e-9a55-0d6f7f1f2a3b"}`)}
	close(broker.deliveries)

	f.worker.Start(context.Background())
	require.NoError(t, f.worker.Consume(context.Background(), broker, 4))

	require.Eventually(t, func() bool { return broker.settled() == 4 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, f.worker.Stop(context.Background()))

	broker.mu.Lock()
	defer broker.mu.Unlock()
	assert.Equal(t, []uint64{1}, broker.acked)
	assert.Equal(t, map[uint64]bool{2: false, 3: false, 4: false}, broker.nacked)

	assert.Equal(t, domain.JobStatusCompleted, f.job(t, job.ID).Status)
}

func TestWorker_ConsumeRequeuesOnShutdown(t *testing.T) {
	f := newFixture(t, Config{Concurrency: 1, QueueSize: 1})
	broker := newFakeBroker()
	job := f.admitJob(t, "")
	body, err := json.Marshal(JobMessage{JobID: job.ID})
	require.NoError(t, err)

	// pool not started: first message fills the queue, second blocks
	broker.deliveries <- amqp.Delivery{DeliveryTag: 1, Body: body}
	broker.deliveries <- amqp.Delivery{DeliveryTag: 2, Body: body}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, f.worker.Consume(ctx, broker, 1))

	broker.mu.Lock()
	assert.Equal(t, map[uint64]bool{2: true}, broker.nacked)
	broker.mu.Unlock()
}
