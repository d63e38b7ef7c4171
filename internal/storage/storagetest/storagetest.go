// Package storagetest opens migrated in-memory SQLite storage for tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/cuongbtq/trendrider/internal/storage"
	"github.com/cuongbtq/trendrider/shared/database"
	"github.com/cuongbtq/trendrider/shared/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// New returns a Storage backed by a private in-memory database.
func New(t *testing.T) *storage.Storage {
	t.Helper()

	client, err := database.NewClient(&database.Config{
		Driver:   database.DriverSQLite,
		Database: ":memory:",
	}, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s := storage.NewStorage(client.GetDB(), logger.NewDiscard())
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// EffectOption mutates an effect before it is inserted.
type EffectOption func(*domain.Effect)

// Premium marks the effect as premium.
func Premium() EffectOption {
	return func(e *domain.Effect) { e.IsPremium = true }
}

// Inactive marks the effect as inactive.
func Inactive() EffectOption {
	return func(e *domain.Effect) { e.IsActive = false }
}

// WithSlug overrides the generated slug.
func WithSlug(slug string) EffectOption {
	return func(e *domain.Effect) { e.Slug = slug }
}

// SeedEffect inserts a category and an active standard effect.
func SeedEffect(t *testing.T, s *storage.Storage, opts ...EffectOption) *domain.Effect {
	t.Helper()
	ctx := context.Background()

	category := &domain.Category{Name: "Artistic", Slug: "artistic"}
	_, err := s.GetOrCreateCategory(ctx, category)
	require.NoError(t, err)

	effect := &domain.Effect{
		Name:          "Vintage Film",
		Slug:          "vintage-" + uuid.NewString()[:8],
		CategoryID:    category.ID,
		HiddenPrompt:  "Give the photo a warm 1970s film look.",
		Strength:      0.7,
		PreserveFaces: true,
		MaxResolution: "2048x2048",
		OutputFormat:  "jpeg",
		IsActive:      true,
	}
	for _, opt := range opts {
		opt(effect)
	}

	_, err = s.GetOrCreateEffect(ctx, effect)
	require.NoError(t, err)
	return effect
}

// SeedUpload records an upload whose bytes live under key.
func SeedUpload(t *testing.T, s *storage.Storage, key, mimeType string) *domain.Upload {
	t.Helper()

	upload := &domain.Upload{
		ID:               uuid.NewString(),
		StorageKey:       key,
		OriginalFilename: "photo.jpg",
		MimeType:         mimeType,
		FileSize:         3,
	}
	require.NoError(t, s.CreateUpload(context.Background(), upload))
	return upload
}
