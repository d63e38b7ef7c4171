package handler

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/cuongbtq/trendrider/internal/storage"
	"github.com/google/uuid"
)

var errInvalidCursor = errors.New("invalid cursor format")

// DecodeJobCursor parses an opaque next_cursor value. An empty string means the first page.
func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, errInvalidCursor
	}

	createdAt, jobID, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, errInvalidCursor
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, errInvalidCursor
	}
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, errInvalidCursor
	}

	return &storage.JobCursor{CreatedAt: ts.UTC(), JobID: jobID}, nil
}

// EncodeJobCursor renders the position after the given job.
func EncodeJobCursor(cursor *storage.JobCursor) string {
	cs := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.JobID
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}
