package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cuongbtq/trendrider/internal/blob"
	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/cuongbtq/trendrider/internal/generation"
	"github.com/google/uuid"
)

// Store is the job persistence the worker needs.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	GetEffect(ctx context.Context, effectID string) (*domain.Effect, error)
	GetUpload(ctx context.Context, uploadID string) (*domain.Upload, error)
	CompleteJob(ctx context.Context, jobID string, duration time.Duration, resultKey string, metadata domain.Metadata) (bool, error)
	FailJob(ctx context.Context, jobID string, duration time.Duration, detail string) (bool, error)
	MarkJobStarted(ctx context.Context, jobID string) (bool, error)
	ListStaleJobs(ctx context.Context, cutoff time.Time, limit int) ([]domain.Job, error)
}

// Ledger records usage once a job reaches its terminal state.
type Ledger interface {
	Commit(ctx context.Context, job *domain.Job, effect *domain.Effect) error
	Release(ctx context.Context, job *domain.Job) error
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Store       Store
	Ledger      Ledger
	Blobs       blob.Store
	Generator   generation.Client
	WorkerID    string
	Concurrency int
	QueueSize   int
	JobTimeout  time.Duration

	// MaxAttempts bounds provider calls per job; only provider_unavailable is retried.
	MaxAttempts  int
	RetryBackoff time.Duration

	SweepInterval time.Duration
	StaleAfter    time.Duration
}

// Worker executes effect jobs on a bounded pool of goroutines fed by jobsChan.
type Worker struct {
	logger       *slog.Logger
	store        Store
	ledger       Ledger
	blobs        blob.Store
	generator    generation.Client
	workerID     string
	concurrency  int
	jobTimeout   time.Duration
	maxAttempts  int
	retryBackoff time.Duration

	sweepInterval time.Duration
	staleAfter    time.Duration

	broker Broker

	jobsChan chan *JobMessage
	mu       sync.RWMutex
	started  bool
	closed   bool
	wg       sync.WaitGroup
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = concurrency * 4
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = time.Second
	}
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = defaultWorkerID()
	}

	return &Worker{
		logger:        cfg.Logger.With(slog.String("worker_id", workerID)),
		store:         cfg.Store,
		ledger:        cfg.Ledger,
		blobs:         cfg.Blobs,
		generator:     cfg.Generator,
		workerID:      workerID,
		concurrency:   concurrency,
		jobTimeout:    jobTimeout,
		maxAttempts:   maxAttempts,
		retryBackoff:  retryBackoff,
		sweepInterval: cfg.SweepInterval,
		staleAfter:    cfg.StaleAfter,
		jobsChan:      make(chan *JobMessage, queueSize),
	}
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// Start spawns the pool and, when configured, the stale-job sweeper. Jobs run
// under a context that outlives ctx so in-flight work can drain on Stop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.baseCtx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	w.mu.Unlock()

	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Int("queue_size", cap(w.jobsChan)),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Int("max_attempts", w.maxAttempts),
	)

	w.spawnWorkerPool(w.baseCtx)

	if w.sweepInterval > 0 && w.staleAfter > 0 {
		go w.runSweeper(ctx)
	}
}

// Stop closes the queue and waits for queued and in-flight jobs. When ctx
// expires first, running jobs are canceled and fail.
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("Stopping worker...")

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.jobsChan)
	started := w.started
	w.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		w.logger.Info("Worker stopped")
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		w.logger.Warn("Worker stopped before draining, in-flight jobs were canceled")
		return fmt.Errorf("worker drain interrupted: %w", ctx.Err())
	}
}
