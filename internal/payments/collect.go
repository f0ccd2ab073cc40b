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

// CollectService owns the Collect lifecycle:
// pending -> approved | declined | expired (all terminal).
type CollectService struct {
	repo          repository.CollectRepository
	gateway       ledger.Gateway
	events        EventSink
	validator     *validator.RequestValidator
	locks         *aggregateLocks
	assumeBalance bool
	logger        *slog.Logger
}

func NewCollectService(repo repository.CollectRepository, gateway ledger.Gateway, events EventSink, assumeBalanceOnError bool, logger *slog.Logger) *CollectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectService{
		repo:          repo,
		gateway:       gateway,
		events:        events,
		validator:     validator.New(),
		locks:         newAggregateLocks(),
		assumeBalance: assumeBalanceOnError,
		logger:        logger,
	}
}

type CreateCollectInput struct {
	PayerAccountID string
	PayeeAccountID string
	Amount         int64
	Currency       string
	Description    string
	ExpiresAt      time.Time
	Metadata       map[string]string
}

func (s *CollectService) Create(ctx context.Context, in CreateCollectInput) (*domain.Collect, error) {
	if err := s.validator.Amount("amount", in.Amount); err != nil {
		return nil, err
	}
	if in.Currency != "" {
		if err := s.validator.Currency(in.Currency); err != nil {
			return nil, err
		}
	}
	if err := s.validator.AccountID("payer_account_id", in.PayerAccountID); err != nil {
		return nil, err
	}
	if err := s.validator.AccountID("payee_account_id", in.PayeeAccountID); err != nil {
		return nil, err
	}
	if err := s.validator.FutureTime("expires_at", in.ExpiresAt); err != nil {
		return nil, err
	}

	collect := domain.NewCollect(in.PayerAccountID, in.PayeeAccountID, in.Amount, in.Currency, in.Description, in.ExpiresAt).
		WithMetadata(in.Metadata)
	if err := s.repo.Save(ctx, collect); err != nil {
		return nil, err
	}

	s.logger.Info("collect created",
		slog.String("collect_id", collect.ID),
		slog.Int64("amount", collect.Amount))
	return collect, nil
}

func (s *CollectService) Get(ctx context.Context, id string) (*domain.Collect, error) {
	collect, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("collect", id)
		}
		return nil, err
	}
	return collect, nil
}

func (s *CollectService) List(ctx context.Context, filter repository.CollectFilter) ([]*domain.Collect, error) {
	return s.repo.List(ctx, filter)
}

// Approve executes the pull: expiry check, payer balance check, ledger
// transfer, then the approved transition. A ledger failure on the transfer
// leaves the collect pending so the caller may retry.
func (s *CollectService) Approve(ctx context.Context, id string) (*domain.Collect, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	collect, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if collect.Status != domain.CollectPending {
		return nil, domain.NewError(domain.ErrInvalidState, "collect_not_pending", "cannot approve collect in "+string(collect.Status)+" status").
			With("status", string(collect.Status))
	}

	if time.Now().After(collect.ExpiresAt) {
		collect.Status = domain.CollectExpired
		if err := s.repo.Update(ctx, collect); err != nil {
			return nil, err
		}
		s.events.Dispatch("collect.expired", collect)
		return nil, domain.NewError(domain.ErrExpired, "collect_expired", "this collect request has expired").
			With("expired_at", collect.ExpiresAt)
	}

	if err := checkPayerBalance(ctx, s.gateway, collect.PayerAccountID, collect.Amount, s.assumeBalance); err != nil {
		return nil, err
	}

	transferID, err := s.gateway.Transfer(ctx, collect.PayerAccountID, collect.PayeeAccountID, collect.Amount, "flowpay collect "+collect.ID)
	if err != nil {
		return nil, domain.NewError(domain.ErrUpstream, "ledger_transfer_failed", "ledger transfer failed").
			With("collect_id", collect.ID)
	}

	now := time.Now().UTC()
	collect.Status = domain.CollectApproved
	collect.ApprovedAt = &now
	collect.LedgerTransferID = transferID
	if err := s.repo.Update(ctx, collect); err != nil {
		return nil, err
	}
	s.events.Dispatch("collect.approved", collect)

	s.logger.Info("collect approved",
		slog.String("collect_id", collect.ID),
		slog.String("transfer_id", transferID))
	return collect, nil
}

func (s *CollectService) Decline(ctx context.Context, id, reason string) (*domain.Collect, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	collect, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if collect.Status != domain.CollectPending {
		return nil, domain.NewError(domain.ErrInvalidState, "collect_not_pending", "cannot decline collect in "+string(collect.Status)+" status").
			With("status", string(collect.Status))
	}

	now := time.Now().UTC()
	collect.Status = domain.CollectDeclined
	collect.DeclinedAt = &now
	collect.DeclineReason = reason
	if err := s.repo.Update(ctx, collect); err != nil {
		return nil, err
	}
	s.events.Dispatch("collect.declined", collect)
	return collect, nil
}

// ExpireOverdue transitions pending collects whose expiry has passed.
// Called by the background sweeper; expiry is otherwise evaluated lazily at
// approve time.
func (s *CollectService) ExpireOverdue(ctx context.Context) (int, error) {
	pending, err := s.repo.List(ctx, repository.CollectFilter{Status: domain.CollectPending})
	if err != nil {
		return 0, err
	}

	expired := 0
	now := time.Now()
	for _, c := range pending {
		if !now.After(c.ExpiresAt) {
			continue
		}
		unlock := s.locks.lock(c.ID)
		current, err := s.Get(ctx, c.ID)
		if err == nil && current.Status == domain.CollectPending && now.After(current.ExpiresAt) {
			current.Status = domain.CollectExpired
			if err := s.repo.Update(ctx, current); err == nil {
				s.events.Dispatch("collect.expired", current)
				expired++
			}
		}
		unlock()
	}
	return expired, nil
}
