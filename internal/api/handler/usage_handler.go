package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cuongbtq/trendrider/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// GetMyUsage handles GET /api/v1/usage/me
// Premium callers have no monthly limit, so limit and remaining are null.
func (h *Handler) GetMyUsage(c *gin.Context) {
	identity := IdentityFrom(c)
	if identity.Anonymous() {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Authentication required"})
		return
	}

	counter, err := h.usage.Usage(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.UsageDTO{
		UserID:             identity.UserID,
		Month:              counter.Month,
		IsPremium:          identity.IsPremium,
		EffectsUsed:        counter.EffectsUsed,
		PremiumEffectsUsed: counter.PremiumEffectsUsed,
		EffectsInFlight:    counter.EffectsReserved,
	}
	if !identity.IsPremium {
		limit := h.usage.Limit()
		remaining := max(limit-counter.EffectsUsed-counter.EffectsReserved, 0)
		resp.MonthlyLimit = &limit
		resp.Remaining = &remaining
	}

	c.JSON(http.StatusOK, resp)
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "healthy", "service": h.serviceName}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := []struct {
		name    string
		checker HealthChecker
	}{
		{name: "database", checker: h.health},
		{name: "queue", checker: h.queue},
	}
	for _, check := range checks {
		if check.checker == nil {
			continue
		}
		if err := check.checker.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body[check.name] = err.Error()
		}
	}

	c.JSON(status, body)
}
