package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/trendrider/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCursorRoundTrip(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	in := &storage.JobCursor{
		CreatedAt: time.Date(2026, 3, 4, 12, 30, 5, 123456789, loc),
		JobID:     uuid.NewString(),
	}

	out, err := DecodeJobCursor(EncodeJobCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, time.UTC, out.CreatedAt.Location())
	assert.Equal(t, in.JobID, out.JobID)
}

func TestDecodeJobCursor(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name    string
		cursor  string
		wantNil bool
		wantErr bool
	}{
		{"empty means first page", "", true, false},
		{"not base64", "%%%", false, true},
		{"missing separator", enc("2026-01-01T00:00:00Z"), false, true},
		{"bad timestamp", enc("yesterday|" + uuid.NewString()), false, true},
		{"bad job id", enc("2026-01-01T00:00:00Z|42"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeJobCursor(tt.cursor)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, c == nil)
		})
	}
}
