package worker

import (
	"context"
	"log/slog"
	"time"
)

// DetailWorkerLost is recorded for jobs that stayed processing past the stale threshold.
const DetailWorkerLost = "worker_lost"

const sweepBatchSize = 100

// runSweeper periodically fails jobs abandoned by a crashed worker.
func (w *Worker) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.logger.Info("Stale job sweeper started",
		slog.Duration("interval", w.sweepInterval),
		slog.Duration("stale_after", w.staleAfter),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stale job sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.SweepStale(ctx, time.Now()); err != nil {
				w.logger.Error("Stale job sweep failed", slog.Any("error", err))
			}
		}
	}
}

// SweepStale fails every job still processing whose execution started more
// than staleAfter before now, and returns how many it failed. Jobs waiting in
// the queue are left alone.
func (w *Worker) SweepStale(ctx context.Context, now time.Time) (int, error) {
	jobs, err := w.store.ListStaleJobs(ctx, now.Add(-w.staleAfter), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range jobs {
		job := &jobs[i]
		var duration time.Duration
		if job.StartedAt != nil {
			duration = now.Sub(*job.StartedAt)
		}
		applied, err := w.store.FailJob(ctx, job.ID, duration, DetailWorkerLost)
		if err != nil {
			return swept, err
		}
		if !applied {
			continue
		}
		swept++

		if err := w.ledger.Release(ctx, job); err != nil {
			w.logger.Error("Failed to release usage reservation",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
		}
	}

	if swept > 0 {
		w.logger.Warn("Failed stale jobs",
			slog.Int("count", swept),
			slog.Duration("stale_after", w.staleAfter),
		)
	}
	return swept, nil
}
