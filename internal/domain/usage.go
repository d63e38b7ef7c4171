package domain

import "time"

// FreeTierMonthlyLimit is the number of effects a free user may apply per calendar month.
const FreeTierMonthlyLimit = 5

// UsageCounter tracks effect usage for one user in one calendar month.
// EffectsReserved counts admitted jobs that have not reached a terminal state.
type UsageCounter struct {
	UserID             string    `db:"user_id" json:"user_id"`
	Month              string    `db:"month" json:"month"`
	EffectsUsed        int       `db:"effects_used" json:"effects_used"`
	PremiumEffectsUsed int       `db:"premium_effects_used" json:"premium_effects_used"`
	EffectsReserved    int       `db:"effects_reserved" json:"effects_reserved"`
	CreatedAt          time.Time `db:"created_at" json:"-"`
	UpdatedAt          time.Time `db:"updated_at" json:"-"`
}

// MonthKey returns the first day of t's month in UTC, formatted YYYY-MM-DD.
func MonthKey(t time.Time) string {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}
