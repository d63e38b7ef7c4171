package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/trendrider/internal/domain"
)

const jobColumns = `id, upload_id, effect_id, user_id, status, processing_time, error_detail,
	result_key, result_metadata, quota_month, quota_reserved, created_at, updated_at, started_at, completed_at`

// CreateJob inserts a new job. Jobs always start in the processing state.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	now := s.now()
	job.Status = domain.JobStatusProcessing
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.ResultMetadata == nil {
		job.ResultMetadata = domain.Metadata{}
	}

	query := s.q(`
		INSERT INTO jobs (
			id, upload_id, effect_id, user_id, status, processing_time,
			result_metadata, quota_month, quota_reserved, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.UploadID,
		job.EffectID,
		job.UserID,
		job.Status,
		job.ResultMetadata,
		job.QuotaMonth,
		job.QuotaReserved,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by its ID
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	err := s.db.GetContext(ctx, &job, s.q(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// CompleteJob moves a processing job to completed. It reports false, without
// error, when the job had already reached a terminal state.
func (s *Storage) CompleteJob(ctx context.Context, jobID string, duration time.Duration, resultKey string, metadata domain.Metadata) (bool, error) {
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	return s.terminalWrite(ctx, jobID, domain.JobStatusCompleted, duration, nil, &resultKey, metadata)
}

// FailJob moves a processing job to failed. Like CompleteJob it is a no-op on
// terminal jobs.
func (s *Storage) FailJob(ctx context.Context, jobID string, duration time.Duration, detail string) (bool, error) {
	return s.terminalWrite(ctx, jobID, domain.JobStatusFailed, duration, &detail, nil, nil)
}

func (s *Storage) terminalWrite(
	ctx context.Context,
	jobID string,
	status domain.JobStatus,
	duration time.Duration,
	errorDetail *string,
	resultKey *string,
	metadata domain.Metadata,
) (bool, error) {
	now := s.now()

	// result_metadata keeps its stored value when no metadata is supplied
	query := s.q(`
		UPDATE jobs
		SET status = ?,
			processing_time = ?,
			error_detail = ?,
			result_key = ?,
			result_metadata = COALESCE(?, result_metadata),
			updated_at = ?,
			completed_at = ?
		WHERE id = ? AND status = ?
	`)

	var metaArg any
	if metadata != nil {
		v, err := metadata.Value()
		if err != nil {
			return false, err
		}
		metaArg = v
	}

	result, err := s.db.ExecContext(ctx, query,
		status,
		duration.Seconds(),
		errorDetail,
		resultKey,
		metaArg,
		now,
		now,
		jobID,
		domain.JobStatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		current, err := s.GetJob(ctx, jobID)
		if err != nil {
			return false, err
		}
		s.logger.Warn("Terminal write ignored, job already terminal",
			slog.String("job_id", jobID),
			slog.String("current_status", string(current.Status)),
			slog.String("requested_status", string(status)),
		)
		return false, nil
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
		slog.Float64("processing_time", duration.Seconds()),
	)

	return true, nil
}

// MarkJobStarted stamps the moment a worker begins executing a processing
// job. A redelivered job gets a fresh stamp. It reports false when the job
// is already terminal.
func (s *Storage) MarkJobStarted(ctx context.Context, jobID string) (bool, error) {
	now := s.now()
	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE jobs SET started_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`), now, now, jobID, domain.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to mark job started: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// ListStaleJobs returns processing jobs whose execution started before
// cutoff, oldest first. Jobs still waiting in a queue are never stale.
func (s *Storage) ListStaleJobs(ctx context.Context, cutoff time.Time, limit int) ([]domain.Job, error) {
	query := s.q(`
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = ? AND started_at IS NOT NULL AND started_at < ?
		ORDER BY started_at ASC
		LIMIT ?
	`)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, domain.JobStatusProcessing, cutoff.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	return jobs, nil
}

// CountJobsByStatus returns how many jobs the user has per status.
func (s *Storage) CountJobsByStatus(ctx context.Context, userID string) (map[domain.JobStatus]int, error) {
	rows, err := s.db.QueryxContext(ctx, s.q(`SELECT status, COUNT(*) FROM jobs WHERE user_id = ? GROUP BY status`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := map[domain.JobStatus]int{}
	for rows.Next() {
		var (
			status domain.JobStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// JobCursor marks the last job of a page when listing newest first.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListUserJobs returns up to limit jobs of the user, newest first, strictly
// after cursor when one is given.
func (s *Storage) ListUserJobs(ctx context.Context, userID string, cursor *JobCursor, limit int) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = ?`
	args := []interface{}{userID}

	if cursor != nil {
		createdAt := cursor.CreatedAt.UTC()
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, createdAt, createdAt, cursor.JobID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
