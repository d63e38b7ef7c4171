// Package quota decides whether a caller may start an effect job and records
// usage once a job completes.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/trendrider/internal/domain"
)

// Store is the persistence the ledger needs.
type Store interface {
	EnsureUsageCounter(ctx context.Context, userID, month string) (*domain.UsageCounter, error)
	GetUsageCounter(ctx context.Context, userID, month string) (*domain.UsageCounter, error)
	ReserveUsageSlot(ctx context.Context, userID, month string, limit int) (bool, error)
	CommitUsage(ctx context.Context, userID, month string, premium, reserved bool) error
	ReleaseUsageSlot(ctx context.Context, userID, month string) error
}

// Admission is the outcome of a successful admission check. The dispatcher
// copies it onto the job so commit and release hit the same counter row.
type Admission struct {
	Month    string
	Reserved bool
}

// Ledger enforces the per-user monthly ceiling for free users.
type Ledger struct {
	store  Store
	limit  int
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a ledger. A non-positive limit falls back to the free tier default.
func NewLedger(store Store, limit int, logger *slog.Logger) *Ledger {
	if limit <= 0 {
		limit = domain.FreeTierMonthlyLimit
	}
	return &Ledger{
		store:  store,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
}

// Limit returns the monthly ceiling for free users.
func (l *Ledger) Limit() int {
	return l.limit
}

// Admit checks whether identity may run effect now. Anonymous callers are
// always admitted. A free user is denied quota_exceeded at the ceiling and
// premium_required for premium effects; otherwise one slot is reserved
// atomically so concurrent admissions cannot pass the ceiling together.
func (l *Ledger) Admit(ctx context.Context, identity domain.Identity, effect *domain.Effect) (*Admission, error) {
	if identity.Anonymous() {
		return &Admission{}, nil
	}

	month := domain.MonthKey(l.now())
	counter, err := l.store.EnsureUsageCounter(ctx, identity.UserID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage counter: %w", err)
	}

	if identity.IsPremium {
		return &Admission{Month: month}, nil
	}

	if counter.EffectsUsed >= l.limit {
		l.deny(identity, effect, counter, domain.DenialQuotaExceeded)
		return nil, &domain.AdmissionDeniedError{Reason: domain.DenialQuotaExceeded}
	}

	if effect.IsPremium {
		l.deny(identity, effect, counter, domain.DenialPremiumRequired)
		return nil, &domain.AdmissionDeniedError{Reason: domain.DenialPremiumRequired}
	}

	reserved, err := l.store.ReserveUsageSlot(ctx, identity.UserID, month, l.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve usage slot: %w", err)
	}
	if !reserved {
		// remaining slots are held by in-flight jobs
		l.deny(identity, effect, counter, domain.DenialQuotaExceeded)
		return nil, &domain.AdmissionDeniedError{Reason: domain.DenialQuotaExceeded}
	}

	return &Admission{Month: month, Reserved: true}, nil
}

func (l *Ledger) deny(identity domain.Identity, effect *domain.Effect, counter *domain.UsageCounter, reason domain.DenialReason) {
	l.logger.Info("Effect admission denied",
		slog.String("user_id", identity.UserID),
		slog.String("effect_id", effect.ID),
		slog.String("reason", string(reason)),
		slog.Int("effects_used", counter.EffectsUsed),
		slog.Int("effects_reserved", counter.EffectsReserved),
		slog.Int("limit", l.limit),
	)
}

// Commit records a completed job against the month it was admitted in.
func (l *Ledger) Commit(ctx context.Context, job *domain.Job, effect *domain.Effect) error {
	if job.UserID == nil || job.QuotaMonth == nil {
		return nil
	}

	if err := l.store.CommitUsage(ctx, *job.UserID, *job.QuotaMonth, effect.IsPremium, job.QuotaReserved); err != nil {
		return err
	}

	l.logger.Info("Usage committed",
		slog.String("job_id", job.ID),
		slog.String("user_id", *job.UserID),
		slog.String("month", *job.QuotaMonth),
		slog.Bool("premium", effect.IsPremium),
	)
	return nil
}

// Release returns the slot reserved for a job that will never complete.
func (l *Ledger) Release(ctx context.Context, job *domain.Job) error {
	if job.UserID == nil || job.QuotaMonth == nil || !job.QuotaReserved {
		return nil
	}

	if err := l.store.ReleaseUsageSlot(ctx, *job.UserID, *job.QuotaMonth); err != nil {
		return err
	}

	l.logger.Debug("Usage reservation released",
		slog.String("job_id", job.ID),
		slog.String("user_id", *job.UserID),
	)
	return nil
}

// Usage returns the caller's counter for the current month.
func (l *Ledger) Usage(ctx context.Context, userID string) (*domain.UsageCounter, error) {
	return l.store.GetUsageCounter(ctx, userID, domain.MonthKey(l.now()))
}
