package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/trendrider/internal/domain"
)

const usageColumns = `user_id, month, effects_used, premium_effects_used, effects_reserved, created_at, updated_at`

// EnsureUsageCounter lazily creates the (user, month) counter and returns it.
func (s *Storage) EnsureUsageCounter(ctx context.Context, userID, month string) (*domain.UsageCounter, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO usage_counters (user_id, month, effects_used, premium_effects_used, effects_reserved, created_at, updated_at)
		VALUES (?, ?, 0, 0, 0, ?, ?)
		ON CONFLICT (user_id, month) DO NOTHING
	`), userID, month, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage counter: %w", err)
	}

	return s.GetUsageCounter(ctx, userID, month)
}

// GetUsageCounter returns the counter for the key, or a zero counter when none exists yet.
func (s *Storage) GetUsageCounter(ctx context.Context, userID, month string) (*domain.UsageCounter, error) {
	var counter domain.UsageCounter
	err := s.db.GetContext(ctx, &counter, s.q(`SELECT `+usageColumns+` FROM usage_counters WHERE user_id = ? AND month = ?`), userID, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.UsageCounter{UserID: userID, Month: month}, nil
		}
		return nil, fmt.Errorf("failed to get usage counter: %w", err)
	}
	return &counter, nil
}

// ReserveUsageSlot atomically claims one in-flight slot while
// effects_used + effects_reserved stays below limit. It reports whether the
// slot was claimed. The counter row must exist.
func (s *Storage) ReserveUsageSlot(ctx context.Context, userID, month string, limit int) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE usage_counters
		SET effects_reserved = effects_reserved + 1,
			updated_at = ?
		WHERE user_id = ? AND month = ? AND effects_used + effects_reserved < ?
	`), s.now(), userID, month, limit)
	if err != nil {
		return false, fmt.Errorf("failed to reserve usage slot: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// CommitUsage records one completed effect in a single upsert. When reserved
// is set the in-flight reservation taken at admission is converted.
func (s *Storage) CommitUsage(ctx context.Context, userID, month string, premium, reserved bool) error {
	premiumInc := 0
	if premium {
		premiumInc = 1
	}
	reservedDec := 0
	if reserved {
		reservedDec = 1
	}
	now := s.now()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO usage_counters (user_id, month, effects_used, premium_effects_used, effects_reserved, created_at, updated_at)
		VALUES (?, ?, 1, ?, 0, ?, ?)
		ON CONFLICT (user_id, month) DO UPDATE
		SET effects_used = usage_counters.effects_used + 1,
			premium_effects_used = usage_counters.premium_effects_used + excluded.premium_effects_used,
			effects_reserved = CASE
				WHEN usage_counters.effects_reserved > 0 THEN usage_counters.effects_reserved - ?
				ELSE 0
			END,
			updated_at = excluded.updated_at
	`), userID, month, premiumInc, now, now, reservedDec)
	if err != nil {
		return fmt.Errorf("failed to commit usage: %w", err)
	}
	return nil
}

// ReleaseUsageSlot drops one in-flight reservation, never going below zero.
func (s *Storage) ReleaseUsageSlot(ctx context.Context, userID, month string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE usage_counters
		SET effects_reserved = CASE WHEN effects_reserved > 0 THEN effects_reserved - 1 ELSE 0 END,
			updated_at = ?
		WHERE user_id = ? AND month = ?
	`), s.now(), userID, month)
	if err != nil {
		return fmt.Errorf("failed to release usage slot: %w", err)
	}
	return nil
}
