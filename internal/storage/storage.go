package storage

import (
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations of the effect pipeline.
// Queries are written with '?' placeholders and rebound for the active driver.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Storage) q(query string) string {
	return s.db.Rebind(query)
}
