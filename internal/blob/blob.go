// Package blob stores upload and result image bytes.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("blob not found")

// Store reads and writes opaque objects by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	URL(ctx context.Context, key string) (string, error)
}

// ResultKey is where the edited image of a job is written.
func ResultKey(jobID, contentType string) string {
	return path.Join("results", jobID+Extension(contentType))
}

// UploadKey is where the original bytes of an upload are written.
func UploadKey(uploadID, contentType string) string {
	return path.Join("uploads", uploadID+Extension(contentType))
}

// Extension maps a MIME type to a file extension, ".bin" when unknown.
func Extension(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("blob: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("blob: invalid key")
	}
	return cleaned, nil
}
