package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/trendrider/internal/api/dto"
	"github.com/cuongbtq/trendrider/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ApplyEffect handles POST /api/v1/uploads/:upload_id/apply-effect
// Returns 202 with the job handle; the effect runs asynchronously.
func (h *Handler) ApplyEffect(c *gin.Context) {
	uploadID := c.Param("upload_id")
	if _, err := uuid.Parse(uploadID); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "upload_id must be a valid UUID"})
		return
	}

	var req dto.ApplyEffectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "effect_id is required"})
		return
	}
	if _, err := uuid.Parse(req.EffectID); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "effect_id must be a valid UUID"})
		return
	}

	handle, err := h.jobs.Submit(c.Request.Context(), uploadID, req.EffectID, IdentityFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, handle)
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *Handler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "job_id must be a valid UUID"})
		return
	}

	view, err := h.jobs.GetJobStatus(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListJobs handles GET /api/v1/jobs
// Lists the caller's jobs newest first with cursor pagination.
func (h *Handler) ListJobs(c *gin.Context) {
	identity := IdentityFrom(c)
	if identity.Anonymous() {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid query parameters"})
		return
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid cursor"})
		return
	}

	// one extra row tells us whether another page exists
	jobs, err := h.store.ListUserJobs(c.Request.Context(), identity.UserID, cursor, req.PageSize+1)
	if err != nil {
		h.respondError(c, err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	out := make([]dto.JobSummaryDTO, len(jobs))
	for i, job := range jobs {
		out[i] = dto.JobSummaryDTO{
			JobID:       job.ID,
			EffectID:    job.EffectID,
			UploadID:    job.UploadID,
			Status:      string(job.Status),
			CreatedAt:   job.CreatedAt,
			CompletedAt: job.CompletedAt,
		}
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{CreatedAt: last.CreatedAt, JobID: last.ID})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{Jobs: out, NextCursor: nextCursor})
}
