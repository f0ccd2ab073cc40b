package fx

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
)

// Service is the rate-lock and drift-detection engine. Rates are quoted as
// 1 source = rate target; amounts are integer minor units.
type Service struct {
	oracle Oracle
	locks  repository.RateLockRepository
	logger *slog.Logger
}

func NewService(oracle Oracle, locks repository.RateLockRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{oracle: oracle, locks: locks, logger: logger}
}

// CurrentRate never fails: identical currencies are 1.0, and an oracle
// failure falls back to a cross rate through the static USD table so the
// flow can always proceed.
func (s *Service) CurrentRate(ctx context.Context, source, target string) float64 {
	src := strings.ToLower(source)
	tgt := strings.ToLower(target)
	if src == tgt {
		return 1.0
	}

	rate, err := s.oracle.Rate(ctx, src, tgt)
	if err == nil && rate > 0 {
		return rate
	}
	if err != nil {
		s.logger.Warn("fx oracle unavailable, using fallback table",
			slog.String("pair", src+"/"+tgt),
			slog.String("error", err.Error()))
	}

	return fallbackTo(src) / fallbackTo(tgt)
}

func fallbackTo(currency string) float64 {
	if rate, ok := fallbackRatesToUSD[currency]; ok {
		return rate
	}
	return 1.0
}

// LockRate freezes the current rate for the pair and derives the source
// amount once: amount_source = round(amount_target / rate).
func (s *Service) LockRate(ctx context.Context, source, target string, amountTarget int64, duration time.Duration, maxDriftPct float64) (*domain.RateLock, error) {
	rate := s.CurrentRate(ctx, source, target)
	if rate == 0 {
		rate = 1.0
	}

	amountSource := decimal.NewFromInt(amountTarget).
		Div(decimal.NewFromFloat(rate)).
		Round(0).
		IntPart()

	now := time.Now().UTC()
	lock := &domain.RateLock{
		ID:             domain.NewID("rate"),
		Object:         "rate_lock",
		SourceCurrency: strings.ToLower(source),
		TargetCurrency: strings.ToLower(target),
		Rate:           rate,
		AmountTarget:   amountTarget,
		AmountSource:   amountSource,
		MaxDriftPct:    maxDriftPct,
		LockedAt:       now,
		ExpiresAt:      now.Add(duration),
		Status:         domain.RateLockActive,
	}
	if err := s.locks.Save(ctx, lock); err != nil {
		return nil, err
	}

	s.logger.Info("fx rate locked",
		slog.String("lock_id", lock.ID),
		slog.String("pair", lock.SourceCurrency+"/"+lock.TargetCurrency),
		slog.Float64("rate", rate),
		slog.Int64("amount_source", amountSource))
	return lock, nil
}

func (s *Service) GetLock(ctx context.Context, lockID string) (*domain.RateLock, error) {
	lock, err := s.locks.GetByID(ctx, lockID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, "rate_lock_not_found", "rate lock not found").With("lock_id", lockID)
		}
		return nil, err
	}
	return lock, nil
}

// CheckDrift compares the live rate against the locked one. Pure: the lock
// is never mutated. The drift decision uses the unrounded percentage with a
// strict comparison, so drift exactly at the tolerance is not drifted; the
// reported percentage is rounded to 4 decimals.
func (s *Service) CheckDrift(ctx context.Context, lockID string) (*domain.DriftReport, error) {
	lock, err := s.GetLock(ctx, lockID)
	if err != nil {
		return nil, err
	}

	current := s.CurrentRate(ctx, lock.SourceCurrency, lock.TargetCurrency)
	driftPct := math.Abs(current-lock.Rate) / lock.Rate * 100

	return &domain.DriftReport{
		LockID:      lock.ID,
		LockedRate:  lock.Rate,
		CurrentRate: current,
		DriftPct:    decimal.NewFromFloat(driftPct).Round(4).InexactFloat64(),
		MaxDriftPct: lock.MaxDriftPct,
		Drifted:     driftPct > lock.MaxDriftPct,
	}, nil
}

// MarkLock moves a lock to a terminal status.
func (s *Service) MarkLock(ctx context.Context, lockID string, status domain.RateLockStatus) error {
	lock, err := s.GetLock(ctx, lockID)
	if err != nil {
		return err
	}
	lock.Status = status
	return s.locks.Update(ctx, lock)
}

// ExpireOverdue sweeps active locks whose window has passed. Returns how
// many were transitioned.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	active, err := s.locks.ListByStatus(ctx, domain.RateLockActive)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	expired := 0
	for _, lock := range active {
		if now.After(lock.ExpiresAt) {
			lock.Status = domain.RateLockExpired
			if err := s.locks.Update(ctx, lock); err != nil {
				return expired, err
			}
			expired++
		}
	}
	return expired, nil
}

// Convert applies a rate to a minor-unit amount with half-up rounding.
func Convert(amountMinor int64, rate float64) int64 {
	return decimal.NewFromInt(amountMinor).
		Mul(decimal.NewFromFloat(rate)).
		Round(0).
		IntPart()
}
