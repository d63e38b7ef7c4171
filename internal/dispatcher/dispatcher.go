// Package dispatcher admits effect requests, creates jobs and hands them to a scheduler.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/trendrider/internal/blob"
	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/cuongbtq/trendrider/internal/quota"
	"github.com/google/uuid"
)

// DetailSchedulingFailed is recorded on jobs that were created but could not be scheduled.
const DetailSchedulingFailed = "scheduling_failed"

// Store is the persistence the dispatcher needs.
type Store interface {
	GetActiveEffect(ctx context.Context, effectID string) (*domain.Effect, error)
	GetEffect(ctx context.Context, effectID string) (*domain.Effect, error)
	GetUpload(ctx context.Context, uploadID string) (*domain.Upload, error)
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	FailJob(ctx context.Context, jobID string, duration time.Duration, detail string) (bool, error)
}

// Admitter makes the admission decision and undoes reservations.
type Admitter interface {
	Admit(ctx context.Context, identity domain.Identity, effect *domain.Effect) (*quota.Admission, error)
	Release(ctx context.Context, job *domain.Job) error
}

// Scheduler hands a created job to whatever will execute it. It must not
// wait for the job to run.
type Scheduler interface {
	Schedule(ctx context.Context, jobID string) error
}

// Service is the entry point for submitting effects and polling jobs.
type Service struct {
	store     Store
	admitter  Admitter
	scheduler Scheduler
	blobs     blob.Store
	logger    *slog.Logger
}

// NewService creates a dispatcher service
func NewService(store Store, admitter Admitter, scheduler Scheduler, blobs blob.Store, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		admitter:  admitter,
		scheduler: scheduler,
		blobs:     blobs,
		logger:    logger,
	}
}

// Submit admits the request and schedules a job without waiting for it.
// Admission denials are returned as *domain.AdmissionDeniedError and create no job.
func (s *Service) Submit(ctx context.Context, uploadID, effectID string, identity domain.Identity) (*domain.JobHandle, error) {
	effect, err := s.store.GetActiveEffect(ctx, effectID)
	if err != nil {
		return nil, err
	}

	upload, err := s.store.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if upload.UserID != nil && *upload.UserID != identity.UserID {
		return nil, domain.ErrUploadNotFound
	}

	admission, err := s.admitter.Admit(ctx, identity, effect)
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:            uuid.New().String(),
		UploadID:      upload.ID,
		EffectID:      effect.ID,
		QuotaReserved: admission.Reserved,
	}
	if !identity.Anonymous() {
		userID := identity.UserID
		job.UserID = &userID
	}
	if admission.Month != "" {
		month := admission.Month
		job.QuotaMonth = &month
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		s.releaseQuietly(ctx, job)
		return nil, err
	}

	if err := s.scheduler.Schedule(ctx, job.ID); err != nil {
		s.logger.Error("Failed to schedule job",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)

		persistCtx := context.WithoutCancel(ctx)
		applied, failErr := s.store.FailJob(persistCtx, job.ID, 0, DetailSchedulingFailed+": "+err.Error())
		if failErr != nil {
			s.logger.Error("Failed to mark unscheduled job failed",
				slog.String("job_id", job.ID),
				slog.Any("error", failErr),
			)
		} else if applied {
			s.releaseQuietly(persistCtx, job)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSchedulingFailed, err)
	}

	s.logger.Info("Job submitted",
		slog.String("job_id", job.ID),
		slog.String("effect_id", effect.ID),
		slog.String("upload_id", upload.ID),
		slog.Bool("anonymous", identity.Anonymous()),
		slog.Bool("quota_reserved", job.QuotaReserved),
	)

	return &domain.JobHandle{JobID: job.ID, Status: domain.JobStatusProcessing}, nil
}

func (s *Service) releaseQuietly(ctx context.Context, job *domain.Job) {
	if err := s.admitter.Release(ctx, job); err != nil {
		s.logger.Error("Failed to release usage reservation",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
}

// GetJobStatus returns the caller-visible view of a job.
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*domain.JobStatusView, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &domain.JobStatusView{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}

	// the effect may have been deactivated since admission
	effect, err := s.store.GetEffect(ctx, job.EffectID)
	switch {
	case err == nil:
		view.EffectName = effect.Name
	case errors.Is(err, domain.ErrEffectNotFound):
	default:
		return nil, err
	}

	if !job.Status.IsTerminal() {
		return view, nil
	}

	seconds := job.ProcessingTime
	view.ProcessingTimeSeconds = &seconds

	switch job.Status {
	case domain.JobStatusCompleted:
		if job.ResultKey != nil {
			url, err := s.blobs.URL(ctx, *job.ResultKey)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve result URL: %w", err)
			}
			view.ResultURL = url
		}
	case domain.JobStatusFailed:
		if job.ErrorDetail != nil {
			view.ErrorDetail = *job.ErrorDetail
		}
	}

	return view, nil
}
