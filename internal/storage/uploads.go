package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/trendrider/internal/domain"
)

// CreateUpload records an upload whose bytes are already in the blob store.
func (s *Storage) CreateUpload(ctx context.Context, upload *domain.Upload) error {
	upload.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO uploads (id, user_id, storage_key, original_filename, mime_type, file_size, image_width, image_height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		upload.ID, upload.UserID, upload.StorageKey, upload.OriginalFilename, upload.MimeType,
		upload.FileSize, upload.Width, upload.Height, upload.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

// GetUpload retrieves upload metadata by ID
func (s *Storage) GetUpload(ctx context.Context, uploadID string) (*domain.Upload, error) {
	var upload domain.Upload
	err := s.db.GetContext(ctx, &upload, s.q(`
		SELECT id, user_id, storage_key, original_filename, mime_type, file_size, image_width, image_height, created_at
		FROM uploads WHERE id = ?
	`), uploadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUploadNotFound
		}
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return &upload, nil
}
