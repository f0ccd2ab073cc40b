package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"flowpay/internal/domain"
	"flowpay/internal/ledger"
	"flowpay/internal/repository"
	"flowpay/pkg/validator"
)

// PoolService owns single-currency group pools. Contributions escrow into
// the organizer's account; settlement is a single transfer organizer ->
// payee once the goal is reached.
type PoolService struct {
	repo          repository.PoolRepository
	gateway       ledger.Gateway
	events        EventSink
	validator     *validator.RequestValidator
	locks         *aggregateLocks
	assumeBalance bool
	logger        *slog.Logger
}

func NewPoolService(repo repository.PoolRepository, gateway ledger.Gateway, events EventSink, assumeBalanceOnError bool, logger *slog.Logger) *PoolService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PoolService{
		repo:          repo,
		gateway:       gateway,
		events:        events,
		validator:     validator.New(),
		locks:         newAggregateLocks(),
		assumeBalance: assumeBalanceOnError,
		logger:        logger,
	}
}

type CreatePoolInput struct {
	OrganizerAccountID string
	PayeeAccountID     string
	GoalAmount         int64
	Currency           string
	Description        string
	Deadline           time.Time
	OnDeadlineMiss     string
}

func (s *PoolService) Create(ctx context.Context, in CreatePoolInput) (*domain.Pool, error) {
	if err := s.validator.Amount("goal_amount", in.GoalAmount); err != nil {
		return nil, err
	}
	if in.Currency != "" {
		if err := s.validator.Currency(in.Currency); err != nil {
			return nil, err
		}
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
	if in.OnDeadlineMiss != "" && in.OnDeadlineMiss != domain.DeadlineRefundAll && in.OnDeadlineMiss != domain.DeadlineSettlePartial {
		return nil, domain.NewError(domain.ErrValidation, "invalid_deadline_policy", "on_deadline_miss must be refund_all or settle_partial").
			With("param", "on_deadline_miss")
	}

	pool := domain.NewPool(in.OrganizerAccountID, in.PayeeAccountID, in.GoalAmount, in.Currency, in.Description, in.Deadline, in.OnDeadlineMiss)
	if err := s.repo.Save(ctx, pool); err != nil {
		return nil, err
	}

	s.logger.Info("pool created",
		slog.String("pool_id", pool.ID),
		slog.Int64("goal_amount", pool.GoalAmount))
	return pool, nil
}

func (s *PoolService) Get(ctx context.Context, id string) (*domain.Pool, error) {
	pool, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("pool", id)
		}
		return nil, err
	}
	return pool, nil
}

func (s *PoolService) List(ctx context.Context) ([]*domain.Pool, error) {
	return s.repo.List(ctx)
}

func (s *PoolService) Contributions(ctx context.Context, id string) ([]domain.Contribution, error) {
	pool, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return pool.Contributions, nil
}

// Contribute escrows payer funds into the organizer account. When the
// running total reaches the goal, settlement is attempted in the same
// command; a settlement failure parks the pool in settlement_pending rather
// than losing the transition.
func (s *PoolService) Contribute(ctx context.Context, id, payerAccountID string, amount int64) (*domain.Pool, error) {
	if err := s.validator.Amount("amount", amount); err != nil {
		return nil, err
	}
	if err := s.validator.AccountID("payer_account_id", payerAccountID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	pool, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch pool.Status {
	case domain.PoolCollecting:
	case domain.PoolFunded, domain.PoolSettlementPending:
		return nil, domain.NewError(domain.ErrInvalidState, "pool_already_funded", "pool has already reached its goal").
			With("status", string(pool.Status))
	default:
		return nil, domain.NewError(domain.ErrInvalidState, "pool_not_collecting", "cannot contribute to pool in "+string(pool.Status)+" status").
			With("status", string(pool.Status))
	}
	if time.Now().After(pool.Deadline) {
		return nil, domain.NewError(domain.ErrExpired, "pool_expired", "pool deadline has passed").
			With("deadline", pool.Deadline)
	}

	if err := checkPayerBalance(ctx, s.gateway, payerAccountID, amount, s.assumeBalance); err != nil {
		return nil, err
	}

	transferID, err := s.gateway.Transfer(ctx, payerAccountID, pool.OrganizerAccountID, amount, "flowpay pool contribution "+pool.ID)
	if err != nil {
		return nil, domain.NewError(domain.ErrUpstream, "ledger_transfer_failed", "ledger transfer failed").
			With("pool_id", pool.ID)
	}

	pool.AddContribution(domain.Contribution{
		PayerAccountID:   payerAccountID,
		Amount:           amount,
		LedgerTransferID: transferID,
		ContributedAt:    time.Now().UTC(),
	})

	goalReached := pool.CollectedAmount >= pool.GoalAmount
	if goalReached {
		s.settle(ctx, pool)
	}
	if err := s.repo.Update(ctx, pool); err != nil {
		return nil, err
	}

	if goalReached {
		s.events.Dispatch("pool.goal_reached", pool)
	} else {
		s.events.Dispatch("pool.contribution_received", pool)
	}
	return pool, nil
}

// settle moves the collected amount organizer -> payee and marks the pool
// funded. A ledger failure leaves the pool settlement_pending; the caller
// persists the aggregate either way.
func (s *PoolService) settle(ctx context.Context, pool *domain.Pool) {
	transferID, err := s.gateway.Transfer(ctx, pool.OrganizerAccountID, pool.PayeeAccountID, pool.CollectedAmount, "flowpay pool settlement "+pool.ID)
	if err != nil {
		pool.Status = domain.PoolSettlementPending
		s.logger.Error("pool settlement transfer failed",
			slog.String("pool_id", pool.ID),
			slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	pool.Status = domain.PoolFunded
	pool.FundedAt = &now
	pool.SettlementTransferID = transferID
	s.logger.Info("pool funded",
		slog.String("pool_id", pool.ID),
		slog.Int64("collected_amount", pool.CollectedAmount))
}

// Settle retries settlement for a pool stuck in settlement_pending.
func (s *PoolService) Settle(ctx context.Context, id string) (*domain.Pool, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	pool, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pool.Status != domain.PoolSettlementPending {
		return nil, domain.NewError(domain.ErrInvalidState, "pool_not_settlement_pending", "pool is not awaiting settlement").
			With("status", string(pool.Status))
	}

	s.settle(ctx, pool)
	if err := s.repo.Update(ctx, pool); err != nil {
		return nil, err
	}
	if pool.Status == domain.PoolFunded {
		s.events.Dispatch("pool.settled", pool)
		return pool, nil
	}
	return nil, domain.NewError(domain.ErrUpstream, "settlement_failed", "settlement transfer failed, pool remains settlement_pending").
		With("pool_id", pool.ID)
}

// Cancel refunds every contribution back to its payer. Refund failures do
// not stop the batch; each outcome is recorded on the pool.
func (s *PoolService) Cancel(ctx context.Context, id string) (*domain.Pool, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	pool, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pool.Status != domain.PoolCollecting {
		return nil, domain.NewError(domain.ErrInvalidState, "pool_not_collecting", "only a collecting pool can be cancelled").
			With("status", string(pool.Status))
	}

	pool.Refunds = s.refundContributions(ctx, pool)
	pool.Status = domain.PoolCancelled
	if err := s.repo.Update(ctx, pool); err != nil {
		return nil, err
	}
	s.events.Dispatch("pool.cancelled", pool)

	s.logger.Info("pool cancelled",
		slog.String("pool_id", pool.ID),
		slog.Int("refunds", len(pool.Refunds)))
	return pool, nil
}

func (s *PoolService) refundContributions(ctx context.Context, pool *domain.Pool) []domain.Refund {
	refunds := make([]domain.Refund, 0, len(pool.Contributions))
	for _, c := range pool.Contributions {
		refund := domain.Refund{
			PayerAccountID: c.PayerAccountID,
			Amount:         c.Amount,
		}
		transferID, err := s.gateway.Transfer(ctx, pool.OrganizerAccountID, c.PayerAccountID, c.Amount, "flowpay pool refund "+pool.ID)
		if err != nil {
			refund.Error = err.Error()
			s.logger.Error("pool refund transfer failed",
				slog.String("pool_id", pool.ID),
				slog.String("payer_account_id", c.PayerAccountID),
				slog.String("error", err.Error()))
		} else {
			refund.LedgerTransferID = transferID
		}
		refunds = append(refunds, refund)
	}
	return refunds
}

// CloseOverdue resolves collecting pools whose deadline has passed,
// applying the pool's deadline policy. Returns how many were closed.
func (s *PoolService) CloseOverdue(ctx context.Context) (int, error) {
	collecting, err := s.repo.ListByStatus(ctx, domain.PoolCollecting)
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
			s.logger.Error("pool deadline close failed",
				slog.String("pool_id", p.ID),
				slog.String("error", err.Error()))
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *PoolService) closeOne(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	pool, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if pool.Status != domain.PoolCollecting || !time.Now().After(pool.Deadline) {
		return nil
	}

	if pool.OnDeadlineMiss == domain.DeadlineSettlePartial && pool.CollectedAmount > 0 {
		s.settle(ctx, pool)
		if err := s.repo.Update(ctx, pool); err != nil {
			return err
		}
		s.events.Dispatch("pool.deadline_settled", pool)
		return nil
	}

	pool.Refunds = s.refundContributions(ctx, pool)
	pool.Status = domain.PoolCancelled
	if err := s.repo.Update(ctx, pool); err != nil {
		return err
	}
	s.events.Dispatch("pool.cancelled", pool)
	return nil
}
