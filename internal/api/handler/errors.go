package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/trendrider/internal/api/dto"
	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/gin-gonic/gin"
)

var deniedMessages = map[domain.DenialReason]string{
	domain.DenialQuotaExceeded:   "Usage limit exceeded. Please upgrade your plan.",
	domain.DenialPremiumRequired: "This effect requires a premium subscription.",
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	if reason, ok := domain.IsAdmissionDenied(err); ok {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: deniedMessages[reason], Reason: string(reason)})
		return
	}

	switch {
	case errors.Is(err, domain.ErrEffectNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Effect not found", Reason: "effect_not_found"})
	case errors.Is(err, domain.ErrUploadNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Upload not found", Reason: "upload_not_found"})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found", Reason: "job_not_found"})
	case errors.Is(err, domain.ErrSchedulingFailed):
		h.logger.Error("Job scheduling failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Job could not be scheduled, try again later"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
	}
}
