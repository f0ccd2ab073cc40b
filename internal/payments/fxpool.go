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

// FXPoolService owns multi-currency pools aggregated in USD. Every
// contribution locks its own rate until the pool deadline; when the goal is
// reached all locks are drift-checked before settlement, and a breach
// refunds every participant in their original currency.
type FXPoolService struct {
	repo      repository.FXPoolRepository
	gateway   ledger.Gateway
	fx        *fx.Service
	events    EventSink
	validator *validator.RequestValidator
	locks     *aggregateLocks
	logger    *slog.Logger
}

func NewFXPoolService(repo repository.FXPoolRepository, gateway ledger.Gateway, fxService *fx.Service, events EventSink, logger *slog.Logger) *FXPoolService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FXPoolService{
		repo:      repo,
		gateway:   gateway,
		fx:        fxService,
		events:    events,
		validator: validator.New(),
		locks:     newAggregateLocks(),
		logger:    logger,
	}
}

type CreateFXPoolInput struct {
	OrganizerAccountID string
	PayeeAccountID     string
	GoalAmountUSD      int64
	Description        string
	Deadline           time.Time
	MaxDriftPct        float64
	OnDeadlineMiss     string
}

func (s *FXPoolService) Create(ctx context.Context, in CreateFXPoolInput) (*domain.FXPool, error) {
	if err := s.validator.Amount("goal_amount_usd", in.GoalAmountUSD); err != nil {
		return nil, err
	}
	if err := s.validator.AccountID("organizer_account_id", in.OrganizerAccountID); err != nil {
		return nil, err
	}
	if err := s.validator.AccountID("payee_account_id", in.PayeeAccountID); err != nil {
		return nil, err
	}
	if err := s.validator.FutureTime("deadline", in.Deadline); err != nil {
		return nil, err
	}
	if in.MaxDriftPct != 0 {
		if err := s.validator.DriftPct(in.MaxDriftPct); err != nil {
			return nil, err
		}
	}

	pool := domain.NewFXPool(in.OrganizerAccountID, in.PayeeAccountID, in.GoalAmountUSD, in.Description, in.Deadline, in.MaxDriftPct, in.OnDeadlineMiss)
	if err := s.repo.Save(ctx, pool); err != nil {
		return nil, err
	}

	s.logger.Info("fx pool created",
		slog.String("fxpool_id", pool.ID),
		slog.Int64("goal_amount_usd", pool.GoalAmountUSD))
	return pool, nil
}

func (s *FXPoolService) Get(ctx context.Context, id string) (*domain.FXPool, error) {
	pool, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("fxpool", id)
		}
		return nil, err
	}
	return pool, nil
}

func (s *FXPoolService) List(ctx context.Context) ([]*domain.FXPool, error) {
	return s.repo.List(ctx)
}

func (s *FXPoolService) Contributions(ctx context.Context, id string) ([]domain.FXContribution, error) {
	pool, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return pool.Contributions, nil
}

// Contribute converts the local amount to USD at the live rate, locks that
// rate until the pool deadline and escrows the local amount with the
// organizer. When the goal is reached every contribution lock is re-checked
// for drift before settlement.
func (s *FXPoolService) Contribute(ctx context.Context, id, payerAccountID, currency string, amountLocal int64) (*domain.FXPool, error) {
	if err := s.validator.Amount("amount", amountLocal); err != nil {
		return nil, err
	}
	if err := s.validator.AccountID("payer_account_id", payerAccountID); err != nil {
		return nil, err
	}
	if err := s.validator.Currency(currency); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	pool, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pool.Status != domain.FXPoolCollecting {
		return nil, domain.NewError(domain.ErrInvalidState, "fxpool_not_collecting", "cannot contribute to fx pool in "+string(pool.Status)+" status").
			With("status", string(pool.Status))
	}
	if time.Now().After(pool.Deadline) {
		return nil, domain.NewError(domain.ErrExpired, "fxpool_expired", "fx pool deadline has passed").
			With("deadline", pool.Deadline)
	}

	rate := s.fx.CurrentRate(ctx, currency, "usd")
	amountUSD := fx.Convert(amountLocal, rate)

	lock, err := s.fx.LockRate(ctx, currency, "usd", amountUSD, time.Until(pool.Deadline), pool.MaxDriftPct)
	if err != nil {
		return nil, err
	}

	transferID, err := s.gateway.Transfer(ctx, payerAccountID, pool.OrganizerAccountID, amountLocal, "flowpay fxpool contribution "+pool.ID)
	if err != nil {
		return nil, domain.NewError(domain.ErrUpstream, "ledger_transfer_failed", "ledger transfer failed").
			With("fxpool_id", pool.ID)
	}

	pool.AddContribution(domain.FXContribution{
		ID:               domain.NewID("fxc"),
		PayerAccountID:   payerAccountID,
		Currency:         currency,
		AmountLocal:      amountLocal,
		AmountUSD:        amountUSD,
		Rate:             rate,
		RateLockID:       lock.ID,
		LedgerTransferID: transferID,
		ContributedAt:    time.Now().UTC(),
	})

	if pool.CollectedUSD < pool.GoalAmountUSD {
		if err := s.repo.Update(ctx, pool); err != nil {
			return nil, err
		}
		s.events.Dispatch("fxpool.contribution_received", pool)
		return pool, nil
	}

	drifted, report := s.anyLockDrifted(ctx, pool)
	if drifted {
		s.refund(ctx, pool, "rate_drift")
		if err := s.repo.Update(ctx, pool); err != nil {
			return nil, err
		}
		s.events.Dispatch("fxpool.rate_drifted", struct {
			*domain.FXPool
			Drift *domain.DriftReport `json:"drift"`
		}{pool, report})
		return pool, nil
	}

	s.settle(ctx, pool)
	if err := s.repo.Update(ctx, pool); err != nil {
		return nil, err
	}
	s.events.Dispatch("fxpool.goal_reached", pool)
	return pool, nil
}

// anyLockDrifted re-checks every contribution's lock against the live rate.
// Returns the first breaching report.
func (s *FXPoolService) anyLockDrifted(ctx context.Context, pool *domain.FXPool) (bool, *domain.DriftReport) {
	for _, c := range pool.Contributions {
		report, err := s.fx.CheckDrift(ctx, c.RateLockID)
		if err != nil {
			s.logger.Warn("fx pool drift check failed",
				slog.String("fxpool_id", pool.ID),
				slog.String("lock_id", c.RateLockID),
				slog.String("error", err.Error()))
			continue
		}
		if report.Drifted {
			return true, report
		}
	}
	return false, nil
}

// settle transfers the collected USD total organizer -> payee. A ledger
// failure parks the pool in settlement_pending.
func (s *FXPoolService) settle(ctx context.Context, pool *domain.FXPool) {
	transferID, err := s.gateway.Transfer(ctx, pool.OrganizerAccountID, pool.PayeeAccountID, pool.CollectedUSD, "flowpay fxpool settlement "+pool.ID)
	if err != nil {
		pool.Status = domain.FXPoolSettlementPending
		s.logger.Error("fx pool settlement transfer failed",
			slog.String("fxpool_id", pool.ID),
			slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	pool.Status = domain.FXPoolFunded
	pool.FundedAt = &now
	pool.SettlementTransferID = transferID
	for _, c := range pool.Contributions {
		_ = s.fx.MarkLock(ctx, c.RateLockID, domain.RateLockUsed)
	}
	s.logger.Info("fx pool funded",
		slog.String("fxpool_id", pool.ID),
		slog.Int64("collected_usd", pool.CollectedUSD))
}

// refund reissues every contribution's local amount in its original
// currency. Failures are recorded and do not stop the batch.
func (s *FXPoolService) refund(ctx context.Context, pool *domain.FXPool, reason string) {
	refunds := make([]domain.Refund, 0, len(pool.Contributions))
	for _, c := range pool.Contributions {
		refund := domain.Refund{
			PayerAccountID: c.PayerAccountID,
			Currency:       c.Currency,
			Amount:         c.AmountLocal,
		}
		transferID, err := s.gateway.Transfer(ctx, pool.OrganizerAccountID, c.PayerAccountID, c.AmountLocal, "flowpay fxpool refund "+pool.ID)
		if err != nil {
			refund.Error = err.Error()
			s.logger.Error("fx pool refund transfer failed",
				slog.String("fxpool_id", pool.ID),
				slog.String("payer_account_id", c.PayerAccountID),
				slog.String("error", err.Error()))
		} else {
			refund.LedgerTransferID = transferID
		}
		refunds = append(refunds, refund)
		_ = s.fx.MarkLock(ctx, c.RateLockID, domain.RateLockExpired)
	}

	pool.Refunds = refunds
	pool.RefundReason = reason
	if reason == "organizer_cancelled" || reason == "deadline_missed" {
		pool.Status = domain.FXPoolCancelled
	} else {
		pool.Status = domain.FXPoolDriftRefunded
	}
}

// Cancel refunds all participants; only a collecting pool can be cancelled.
func (s *FXPoolService) Cancel(ctx context.Context, id string) (*domain.FXPool, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	pool, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pool.Status != domain.FXPoolCollecting {
		return nil, domain.NewError(domain.ErrInvalidState, "fxpool_not_collecting", "only a collecting fx pool can be cancelled").
			With("status", string(pool.Status))
	}

	s.refund(ctx, pool, "organizer_cancelled")
	if err := s.repo.Update(ctx, pool); err != nil {
		return nil, err
	}
	s.events.Dispatch("fxpool.cancelled", pool)
	return pool, nil
}

// ForceDrift triggers the drift-refund path without waiting for a live rate
// move. Intended for demos and drills against the sandbox ledger.
func (s *FXPoolService) ForceDrift(ctx context.Context, id string) (*domain.FXPool, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	pool, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pool.Status != domain.FXPoolCollecting {
		return nil, domain.NewError(domain.ErrInvalidState, "fxpool_not_collecting", "drift can only be forced on a collecting fx pool").
			With("status", string(pool.Status))
	}

	s.refund(ctx, pool, "rate_drift_simulated")
	if err := s.repo.Update(ctx, pool); err != nil {
		return nil, err
	}
	s.events.Dispatch("fxpool.rate_drifted", pool)
	return pool, nil
}

// Settle retries settlement for a pool stuck in settlement_pending.
func (s *FXPoolService) Settle(ctx context.Context, id string) (*domain.FXPool, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	pool, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pool.Status != domain.FXPoolSettlementPending {
		return nil, domain.NewError(domain.ErrInvalidState, "fxpool_not_settlement_pending", "fx pool is not awaiting settlement").
			With("status", string(pool.Status))
	}

	s.settle(ctx, pool)
	if err := s.repo.Update(ctx, pool); err != nil {
		return nil, err
	}
	if pool.Status == domain.FXPoolFunded {
		s.events.Dispatch("fxpool.settled", pool)
		return pool, nil
	}
	return nil, domain.NewError(domain.ErrUpstream, "settlement_failed", "settlement transfer failed, fx pool remains settlement_pending").
		With("fxpool_id", pool.ID)
}

// CloseOverdue refunds collecting pools whose deadline has passed. Returns
// how many were closed.
func (s *FXPoolService) CloseOverdue(ctx context.Context) (int, error) {
	collecting, err := s.repo.ListByStatus(ctx, domain.FXPoolCollecting)
	if err != nil {
		return 0, err
	}

	closed := 0
	now := time.Now()
	for _, p := range collecting {
		if !now.After(p.Deadline) {
			continue
		}
		if err := s.closeOne(ctx, p.ID); err != nil {
			s.logger.Error("fx pool deadline close failed",
				slog.String("fxpool_id", p.ID),
				slog.String("error", err.Error()))
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *FXPoolService) closeOne(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	pool, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if pool.Status != domain.FXPoolCollecting || !time.Now().After(pool.Deadline) {
		return nil
	}

	s.refund(ctx, pool, "deadline_missed")
	if err := s.repo.Update(ctx, pool); err != nil {
		return err
	}
	s.events.Dispatch("fxpool.cancelled", pool)
	return nil
}
