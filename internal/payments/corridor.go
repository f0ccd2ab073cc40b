package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"flowpay/internal/domain"
	"flowpay/internal/fx"
	"flowpay/internal/ledger"
	"flowpay/internal/repository"
	"flowpay/pkg/validator"
)

const (
	defaultLockDuration = 30 * time.Minute
	defaultMaxDriftPct  = 2.0
)

// CorridorService executes cross-border remittances at a rate frozen when
// the corridor is created. The drift guard re-checks the live rate at remit
// time; a breach cancels the corridor instead of settling at a stale rate.
type CorridorService struct {
	repo          repository.CorridorRepository
	gateway       ledger.Gateway
	fx            *fx.Service
	events        EventSink
	validator     *validator.RequestValidator
	locks         *aggregateLocks
	lockDuration  time.Duration
	maxDriftPct   float64
	assumeBalance bool
	logger        *slog.Logger
}

func NewCorridorService(repo repository.CorridorRepository, gateway ledger.Gateway, fxService *fx.Service, events EventSink, lockDuration time.Duration, maxDriftPct float64, assumeBalanceOnError bool, logger *slog.Logger) *CorridorService {
	if logger == nil {
		logger = slog.Default()
	}
	if lockDuration <= 0 {
		lockDuration = defaultLockDuration
	}
	if maxDriftPct <= 0 {
		maxDriftPct = defaultMaxDriftPct
	}
	return &CorridorService{
		repo:          repo,
		gateway:       gateway,
		fx:            fxService,
		events:        events,
		validator:     validator.New(),
		locks:         newAggregateLocks(),
		lockDuration:  lockDuration,
		maxDriftPct:   maxDriftPct,
		assumeBalance: assumeBalanceOnError,
		logger:        logger,
	}
}

type CreateCorridorInput struct {
	SourceCurrency  string
	TargetCurrency  string
	SourceAccountID string
	TargetAccountID string
	AmountTarget    int64
	Description     string
	LockDuration    time.Duration
	MaxDriftPct     float64
}

// Create locks the rate first, then records the corridor referencing the
// lock. AmountSource comes from the lock and is never recomputed.
func (s *CorridorService) Create(ctx context.Context, in CreateCorridorInput) (*domain.Corridor, *domain.RateLock, error) {
	if err := s.validator.Amount("amount_target", in.AmountTarget); err != nil {
		return nil, nil, err
	}
	if err := s.validator.Currency(in.SourceCurrency); err != nil {
		return nil, nil, err
	}
	if err := s.validator.Currency(in.TargetCurrency); err != nil {
		return nil, nil, err
	}
	if err := s.validator.AccountID("source_account_id", in.SourceAccountID); err != nil {
		return nil, nil, err
	}
	if err := s.validator.AccountID("target_account_id", in.TargetAccountID); err != nil {
		return nil, nil, err
	}
	if in.MaxDriftPct != 0 {
		if err := s.validator.DriftPct(in.MaxDriftPct); err != nil {
			return nil, nil, err
		}
	}

	duration := in.LockDuration
	if duration <= 0 {
		duration = s.lockDuration
	}
	maxDrift := in.MaxDriftPct
	if maxDrift == 0 {
		maxDrift = s.maxDriftPct
	}

	lock, err := s.fx.LockRate(ctx, in.SourceCurrency, in.TargetCurrency, in.AmountTarget, duration, maxDrift)
	if err != nil {
		return nil, nil, err
	}

	corridor := domain.NewCorridor(in.SourceCurrency, in.TargetCurrency, in.SourceAccountID, in.TargetAccountID, in.AmountTarget, in.Description, lock)
	if err := s.repo.Save(ctx, corridor); err != nil {
		return nil, nil, err
	}
	s.events.Dispatch("corridor.rate_locked", corridor)

	s.logger.Info("corridor created",
		slog.String("corridor_id", corridor.ID),
		slog.String("pair", corridor.SourceCurrency+"/"+corridor.TargetCurrency),
		slog.Float64("rate", lock.Rate))
	return corridor, lock, nil
}

func (s *CorridorService) Get(ctx context.Context, id string) (*domain.Corridor, error) {
	corridor, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("corridor", id)
		}
		return nil, err
	}
	return corridor, nil
}

func (s *CorridorService) List(ctx context.Context) ([]*domain.Corridor, error) {
	return s.repo.List(ctx)
}

// RateCheck reports live drift against the corridor's lock without mutating
// anything.
func (s *CorridorService) RateCheck(ctx context.Context, id string) (*domain.DriftReport, error) {
	corridor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.fx.CheckDrift(ctx, corridor.RateLockID)
}

// Remit settles the corridor at the locked rate. Ordering is fixed: lock
// expiry first, then drift, then the transfer. An expired lock or a drift
// breach moves the corridor to its terminal failure state before the error
// returns.
func (s *CorridorService) Remit(ctx context.Context, id string) (*domain.Corridor, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	corridor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if corridor.Status != domain.CorridorRateLocked {
		return nil, domain.NewError(domain.ErrInvalidState, "corridor_not_rate_locked", "cannot remit corridor in "+string(corridor.Status)+" status").
			With("status", string(corridor.Status))
	}

	lock, err := s.fx.GetLock(ctx, corridor.RateLockID)
	if err != nil {
		return nil, err
	}
	if lock.Status != domain.RateLockActive || time.Now().After(lock.ExpiresAt) {
		corridor.Status = domain.CorridorExpired
		if err := s.repo.Update(ctx, corridor); err != nil {
			return nil, err
		}
		if lock.Status == domain.RateLockActive {
			_ = s.fx.MarkLock(ctx, lock.ID, domain.RateLockExpired)
		}
		s.events.Dispatch("corridor.rate_expired", corridor)
		return nil, domain.NewError(domain.ErrLockExpired, "rate_lock_expired", "the locked rate window has expired").
			With("lock_id", lock.ID).
			With("expired_at", lock.ExpiresAt)
	}

	report, err := s.fx.CheckDrift(ctx, corridor.RateLockID)
	if err != nil {
		return nil, err
	}
	if report.Drifted {
		corridor.Status = domain.CorridorDriftCancelled
		if err := s.repo.Update(ctx, corridor); err != nil {
			return nil, err
		}
		_ = s.fx.MarkLock(ctx, lock.ID, domain.RateLockDrifted)
		s.events.Dispatch("corridor.drift_cancelled", struct {
			*domain.Corridor
			Drift *domain.DriftReport `json:"drift"`
		}{corridor, report})
		return nil, domain.NewError(domain.ErrDriftExceeded, "rate_drift_exceeded", "live rate drifted beyond the locked tolerance").
			With("locked_rate", report.LockedRate).
			With("current_rate", report.CurrentRate).
			With("drift_pct", report.DriftPct).
			With("max_drift_pct", report.MaxDriftPct)
	}

	if err := checkPayerBalance(ctx, s.gateway, corridor.SourceAccountID, corridor.AmountSource, s.assumeBalance); err != nil {
		return nil, err
	}

	transferID, err := s.gateway.Transfer(ctx, corridor.SourceAccountID, corridor.TargetAccountID, corridor.AmountSource, "flowpay corridor "+corridor.ID)
	if err != nil {
		return nil, domain.NewError(domain.ErrUpstream, "ledger_transfer_failed", "ledger transfer failed").
			With("corridor_id", corridor.ID)
	}

	now := time.Now().UTC()
	corridor.Status = domain.CorridorRemitted
	corridor.RemittedAt = &now
	corridor.LedgerTransferID = transferID
	if err := s.repo.Update(ctx, corridor); err != nil {
		return nil, err
	}
	_ = s.fx.MarkLock(ctx, lock.ID, domain.RateLockUsed)
	s.events.Dispatch("corridor.settled", corridor)

	s.logger.Info("corridor remitted",
		slog.String("corridor_id", corridor.ID),
		slog.String("transfer_id", transferID),
		slog.Int64("amount_source", corridor.AmountSource))
	return corridor, nil
}
