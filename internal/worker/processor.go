package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cuongbtq/trendrider/internal/blob"
	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/cuongbtq/trendrider/internal/generation"
	"github.com/cuongbtq/trendrider/internal/prompt"
)

const (
	// DetailWorkerShutdown is recorded for in-process jobs dropped during shutdown.
	DetailWorkerShutdown = "worker_shutdown"

	terminalWriteTimeout = 10 * time.Second
	commitAttempts       = 3
)

// outcome is what execute produced for one job.
type outcome struct {
	effect    *domain.Effect
	resultKey string
	metadata  domain.Metadata
}

// processJob runs one job to a terminal state. A returned error means the
// job was left untouched and the message may be retried; job failures are
// recorded on the job itself and return nil.
func (w *Worker) processJob(ctx context.Context, msg *JobMessage) error {
	// terminal writes and ledger updates must land even while shutting down
	persistCtx := context.WithoutCancel(ctx)

	job, err := w.store.GetJob(persistCtx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return fmt.Errorf("%w: job %s does not exist", ErrInvalidMessage, msg.JobID)
		}
		return NewRetryableError(fmt.Errorf("failed to load job: %w", err))
	}

	if job.Status.IsTerminal() {
		w.logger.Warn("Job already terminal, skipping redelivery",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	if ctx.Err() != nil {
		if msg.fromBroker {
			return NewRetryableError(fmt.Errorf("worker stopping: %w", ctx.Err()))
		}
		return w.finishFailed(persistCtx, job, 0, DetailWorkerShutdown)
	}

	started, err := w.store.MarkJobStarted(persistCtx, job.ID)
	if err != nil {
		return NewRetryableError(fmt.Errorf("failed to mark job started: %w", err))
	}
	if !started {
		return nil
	}

	w.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("effect_id", job.EffectID),
		slog.String("upload_id", job.UploadID),
	)

	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	res, execErr := w.safeExecute(jobCtx, job)
	cancel()
	duration := time.Since(start)

	if execErr != nil {
		w.logger.Error("Job execution failed",
			slog.String("job_id", job.ID),
			slog.Duration("duration", duration),
			slog.Any("error", execErr),
		)
		return w.finishFailed(persistCtx, job, duration, execErr.Error())
	}

	writeCtx, cancelWrite := context.WithTimeout(persistCtx, terminalWriteTimeout)
	defer cancelWrite()

	applied, err := w.store.CompleteJob(writeCtx, job.ID, duration, res.resultKey, res.metadata)
	if err != nil {
		return NewRetryableError(fmt.Errorf("failed to complete job: %w", err))
	}
	if !applied {
		return nil
	}

	w.commitUsage(persistCtx, job, res.effect)

	w.logger.Info("Job completed successfully",
		slog.String("job_id", job.ID),
		slog.String("result_key", res.resultKey),
		slog.Duration("duration", duration),
	)
	return nil
}

// finishFailed records the failure and releases the job's quota reservation.
func (w *Worker) finishFailed(ctx context.Context, job *domain.Job, duration time.Duration, detail string) error {
	writeCtx, cancel := context.WithTimeout(ctx, terminalWriteTimeout)
	defer cancel()

	applied, err := w.store.FailJob(writeCtx, job.ID, duration, detail)
	if err != nil {
		return NewRetryableError(fmt.Errorf("failed to mark job failed: %w", err))
	}
	if !applied {
		return nil
	}

	if err := w.ledger.Release(writeCtx, job); err != nil {
		w.logger.Error("Failed to release usage reservation",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
	return nil
}

// commitUsage charges the completed job, retrying with backoff. When every
// attempt fails the reservation is released so the slot is not held forever;
// the job then goes uncharged.
func (w *Worker) commitUsage(ctx context.Context, job *domain.Job, effect *domain.Effect) {
	delay := w.retryBackoff

	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		writeCtx, cancel := context.WithTimeout(ctx, terminalWriteTimeout)
		err = w.ledger.Commit(writeCtx, job, effect)
		cancel()
		if err == nil {
			return
		}

		w.logger.Warn("Failed to commit usage",
			slog.String("job_id", job.ID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if attempt < commitAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}

	w.logger.Error("Giving up on usage commit, releasing reservation",
		slog.String("job_id", job.ID),
		slog.Any("error", err),
	)

	writeCtx, cancel := context.WithTimeout(ctx, terminalWriteTimeout)
	defer cancel()
	if err := w.ledger.Release(writeCtx, job); err != nil {
		w.logger.Error("Failed to release usage reservation",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
}

// safeExecute converts a panic inside execute into an ordinary error so one
// job cannot take the pool down.
func (w *Worker) safeExecute(ctx context.Context, job *domain.Job) (res *outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Recovered panic while executing job",
				slog.String("job_id", job.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			res = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.execute(ctx, job)
}

func (w *Worker) execute(ctx context.Context, job *domain.Job) (*outcome, error) {
	effect, err := w.store.GetEffect(ctx, job.EffectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load effect: %w", err)
	}

	upload, err := w.store.GetUpload(ctx, job.UploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load upload: %w", err)
	}

	data, err := w.blobs.Get(ctx, upload.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload bytes: %w", err)
	}

	instruction := prompt.ForEffect(effect)

	result, attempts, err := w.generate(ctx, job.ID, data, upload.MimeType, instruction)
	if err != nil {
		return nil, err
	}

	key, err := w.blobs.Put(ctx, blob.ResultKey(job.ID, result.MimeType), result.Data, result.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}

	return &outcome{
		effect:    effect,
		resultKey: key,
		metadata: domain.Metadata{
			domain.MetaProviderResponse: result.Raw,
			domain.MetaProviderText:     result.Text,
			domain.MetaPromptUsed:       instruction,
			domain.MetaEffectType:       effect.TypeTag(),
			domain.MetaProvider:         result.Provider,
			domain.MetaModel:            result.Model,
			domain.MetaMock:             result.Mock,
			domain.MetaMimeType:         result.MimeType,
			domain.MetaAttempts:         attempts,
		},
	}, nil
}

// generate calls the provider, retrying with exponential backoff while the
// failure is a retryable provider_unavailable.
func (w *Worker) generate(ctx context.Context, jobID string, data []byte, mimeType, instruction string) (*generation.Result, int, error) {
	delay := w.retryBackoff

	for attempt := 1; ; attempt++ {
		result, err := w.generator.EditImage(ctx, data, mimeType, instruction)
		if err == nil {
			return result, attempt, nil
		}

		genErr, ok := generation.AsError(err)
		if !ok || !genErr.Retryable() || attempt >= w.maxAttempts {
			return nil, attempt, err
		}

		w.logger.Warn("Provider unavailable, retrying",
			slog.String("job_id", jobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", w.maxAttempts),
			slog.Duration("retry_after", delay),
			slog.Any("error", err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, attempt, fmt.Errorf("%w (retry aborted: %v)", err, ctx.Err())
		}
		delay *= 2
	}
}
