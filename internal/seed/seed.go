// Package seed installs the built-in catalog entries.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/trendrider/internal/domain"
)

// Store is the catalog persistence used for seeding.
type Store interface {
	GetOrCreateCategory(ctx context.Context, category *domain.Category) (bool, error)
	GetOrCreateEffect(ctx context.Context, effect *domain.Effect) (bool, error)
	SetEffectActive(ctx context.Context, effectID string, active bool) error
}

const centerStagePrompt = `Transform this image so the main subject becomes the center of attention at an epic performance venue:

SCENE TRANSFORMATION:
- Put the subject on a professional stage or arena floor
- Fill the background with a huge crowd of enthusiastic fans
- Use dramatic stage lighting with spotlights on the subject
- Add confetti, sparkles or light effects falling from above
- Show large screens displaying the subject behind the stage
- Arena architecture with several tiers of seating

SUBJECT ENHANCEMENT:
- The subject looks confident and charismatic
- Posture of a performer or celebrity
- Flattering stage light on face and body
- Sharp focus on the subject with professional photo quality
- Keep natural facial features and expressions

ATMOSPHERE:
- Crowd holding signs and phones, cheering
- Concert energy and excitement
- Several professional light sources
- Slight motion blur on the crowd to suggest movement
- An epic, larger-than-life feeling

TECHNICAL REQUIREMENTS:
- Very high resolution and detail
- Dramatic composition with the subject as the clear focal point
- Keep the subject's clothing and general appearance
- Photorealistic style, not a cartoon or painterly interpretation`

// CelebrityCategory groups the celebrity-style effects.
func CelebrityCategory() *domain.Category {
	return &domain.Category{
		Name:        "Celebrity & Fame",
		Slug:        "celebrity",
		Description: "Transform yourself into a star with celebrity-style effects",
	}
}

// CenterStageEffect is the built-in premium effect composed with the specialized wrapper.
func CenterStageEffect(categoryID string) *domain.Effect {
	return &domain.Effect{
		Name:            "Center Stage",
		Slug:            domain.CenterStageSlug,
		CategoryID:      categoryID,
		UserDescription: "Put yourself in the spotlight! Turn any photo into an epic moment with you as the star performer in front of a cheering crowd.",
		HiddenPrompt:    centerStagePrompt,
		Strength:        0.8,
		PreserveFaces:   true,
		MaxResolution:   "2048x2048",
		OutputFormat:    "jpeg",
		IsPremium:       true,
		IsActive:        true,
	}
}

// Run creates the built-in category and effect. Existing rows are left untouched.
func Run(ctx context.Context, store Store, logger *slog.Logger) error {
	category := CelebrityCategory()
	created, err := store.GetOrCreateCategory(ctx, category)
	if err != nil {
		return fmt.Errorf("failed to seed category: %w", err)
	}
	logger.Info("Category ready", slog.String("slug", category.Slug), slog.Bool("created", created))

	effect := CenterStageEffect(category.ID)
	created, err = store.GetOrCreateEffect(ctx, effect)
	if err != nil {
		return fmt.Errorf("failed to seed effect: %w", err)
	}
	logger.Info("Effect ready",
		slog.String("slug", effect.Slug),
		slog.String("effect_id", effect.ID),
		slog.Bool("created", created),
	)
	return nil
}

// SetActive shows or hides an effect. Hidden effects stay readable for
// existing jobs but cannot be applied.
func SetActive(ctx context.Context, store Store, effectID string, active bool, logger *slog.Logger) error {
	if err := store.SetEffectActive(ctx, effectID, active); err != nil {
		return fmt.Errorf("failed to set effect %s active=%t: %w", effectID, active, err)
	}
	logger.Info("Effect visibility updated",
		slog.String("effect_id", effectID),
		slog.Bool("active", active),
	)
	return nil
}
