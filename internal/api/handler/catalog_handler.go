package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/trendrider/internal/api/dto"
	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.store.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// ListEffects handles GET /api/v1/effects
// Only active effects are listed, optionally narrowed to one category slug.
func (h *Handler) ListEffects(c *gin.Context) {
	var req dto.ListEffectsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid query parameters"})
		return
	}

	effects, err := h.store.ListActiveEffects(c.Request.Context(), req.Category)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]domain.PublicEffect, len(effects))
	for i := range effects {
		out[i] = effects[i].Public()
	}
	c.JSON(http.StatusOK, gin.H{"effects": out})
}

// GetEffect handles GET /api/v1/effects/:effect_id
func (h *Handler) GetEffect(c *gin.Context) {
	effectID := c.Param("effect_id")
	if _, err := uuid.Parse(effectID); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "effect_id must be a valid UUID"})
		return
	}

	effect, err := h.store.GetActiveEffect(c.Request.Context(), effectID)
	if err != nil {
		if !errors.Is(err, domain.ErrEffectNotFound) {
			h.logger.Error("Failed to load effect", slog.String("effect_id", effectID), slog.Any("error", err))
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, effect.Public())
}
