package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/trendrider/internal/blob"
	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/cuongbtq/trendrider/internal/storage"
)

// Store is the persistence the HTTP handlers read and write directly.
type Store interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListActiveEffects(ctx context.Context, categorySlug string) ([]domain.Effect, error)
	GetActiveEffect(ctx context.Context, effectID string) (*domain.Effect, error)
	CreateUpload(ctx context.Context, upload *domain.Upload) error
	ListUserJobs(ctx context.Context, userID string, cursor *storage.JobCursor, limit int) ([]domain.Job, error)
}

// JobService submits effects and reports job status.
type JobService interface {
	Submit(ctx context.Context, uploadID, effectID string, identity domain.Identity) (*domain.JobHandle, error)
	GetJobStatus(ctx context.Context, jobID string) (*domain.JobStatusView, error)
}

// UsageReader exposes the caller's monthly counter.
type UsageReader interface {
	Usage(ctx context.Context, userID string) (*domain.UsageCounter, error)
	Limit() int
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Store          Store
	Jobs           JobService
	Usage          UsageReader
	Blobs          blob.Store
	Health         HealthChecker
	Queue          HealthChecker
	MaxUploadBytes int64
	ServiceName    string
}

// Handler serves the public API.
type Handler struct {
	logger         *slog.Logger
	store          Store
	jobs           JobService
	usage          UsageReader
	blobs          blob.Store
	health         HealthChecker
	queue          HealthChecker
	maxUploadBytes int64
	serviceName    string
}

// NewHandler creates a new Handler instance
func NewHandler(deps *Dependencies) *Handler {
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	name := deps.ServiceName
	if name == "" {
		name = "trendrider-api"
	}
	return &Handler{
		logger:         deps.Logger,
		store:          deps.Store,
		jobs:           deps.Jobs,
		usage:          deps.Usage,
		blobs:          deps.Blobs,
		health:         deps.Health,
		queue:          deps.Queue,
		maxUploadBytes: maxUpload,
		serviceName:    name,
	}
}
