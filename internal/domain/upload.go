package domain

import "time"

// Upload is an image stored by the blob collaborator. The pipeline reads its
// bytes once per job attempt and never mutates it.
type Upload struct {
	ID               string    `db:"id"`
	UserID           *string   `db:"user_id"`
	StorageKey       string    `db:"storage_key"`
	OriginalFilename string    `db:"original_filename"`
	MimeType         string    `db:"mime_type"`
	FileSize         int64     `db:"file_size"`
	Width            int       `db:"image_width"`
	Height           int       `db:"image_height"`
	CreatedAt        time.Time `db:"created_at"`
}
