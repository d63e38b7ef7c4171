package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/google/uuid"
)

const effectSelect = `
	SELECT e.id, e.name, e.slug, e.category_id, c.name AS category_name, e.user_description,
		e.hidden_prompt, e.thumbnail_url, e.strength, e.preserve_faces, e.max_resolution,
		e.output_format, e.is_active, e.is_premium, e.created_at, e.updated_at
	FROM effects e
	JOIN categories c ON c.id = e.category_id
`

// GetActiveEffect returns an effect only if it is active.
func (s *Storage) GetActiveEffect(ctx context.Context, effectID string) (*domain.Effect, error) {
	effect, err := s.GetEffect(ctx, effectID)
	if err != nil {
		return nil, err
	}
	if !effect.IsActive {
		return nil, domain.ErrEffectNotFound
	}
	return effect, nil
}

// GetEffect returns an effect regardless of its active flag. Workers use it
// because an effect may be deactivated after a job was admitted.
func (s *Storage) GetEffect(ctx context.Context, effectID string) (*domain.Effect, error) {
	var effect domain.Effect
	err := s.db.GetContext(ctx, &effect, s.q(effectSelect+` WHERE e.id = ?`), effectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEffectNotFound
		}
		return nil, fmt.Errorf("failed to get effect: %w", err)
	}
	return &effect, nil
}

// ListActiveEffects lists active effects, optionally restricted to a category slug.
func (s *Storage) ListActiveEffects(ctx context.Context, categorySlug string) ([]domain.Effect, error) {
	query := effectSelect + ` WHERE e.is_active = ?`
	args := []interface{}{true}
	if categorySlug != "" {
		query += ` AND c.slug = ?`
		args = append(args, categorySlug)
	}
	query += ` ORDER BY e.created_at DESC, e.id DESC`

	var effects []domain.Effect
	if err := s.db.SelectContext(ctx, &effects, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list effects: %w", err)
	}
	return effects, nil
}

// ListCategories returns every category ordered by name.
func (s *Storage) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := s.db.SelectContext(ctx, &categories, `SELECT id, name, slug, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// GetOrCreateCategory looks a category up by slug and inserts it when missing.
func (s *Storage) GetOrCreateCategory(ctx context.Context, category *domain.Category) (bool, error) {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	category.CreatedAt = s.now()

	result, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO categories (id, name, slug, description, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO NOTHING
	`), category.ID, category.Name, category.Slug, category.Description, category.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create category: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := s.db.GetContext(ctx, category, s.q(`SELECT id, name, slug, description, created_at FROM categories WHERE slug = ?`), category.Slug); err != nil {
		return false, fmt.Errorf("failed to load category: %w", err)
	}
	return n == 1, nil
}

// GetOrCreateEffect looks an effect up by slug and inserts it when missing.
func (s *Storage) GetOrCreateEffect(ctx context.Context, effect *domain.Effect) (bool, error) {
	if effect.ID == "" {
		effect.ID = uuid.New().String()
	}
	now := s.now()
	effect.CreatedAt = now
	effect.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO effects (
			id, name, slug, category_id, user_description, hidden_prompt, thumbnail_url,
			strength, preserve_faces, max_resolution, output_format, is_active, is_premium,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO NOTHING
	`),
		effect.ID, effect.Name, effect.Slug, effect.CategoryID, effect.UserDescription,
		effect.HiddenPrompt, effect.ThumbnailURL, effect.Strength, effect.PreserveFaces,
		effect.MaxResolution, effect.OutputFormat, effect.IsActive, effect.IsPremium,
		effect.CreatedAt, effect.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create effect: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := s.db.GetContext(ctx, effect, s.q(effectSelect+` WHERE e.slug = ?`), effect.Slug); err != nil {
		return false, fmt.Errorf("failed to load effect: %w", err)
	}
	return n == 1, nil
}

// SetEffectActive toggles whether new jobs may reference the effect.
func (s *Storage) SetEffectActive(ctx context.Context, effectID string, active bool) error {
	result, err := s.db.ExecContext(ctx, s.q(`UPDATE effects SET is_active = ?, updated_at = ? WHERE id = ?`), active, s.now(), effectID)
	if err != nil {
		return fmt.Errorf("failed to update effect: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrEffectNotFound
	}
	return nil
}
