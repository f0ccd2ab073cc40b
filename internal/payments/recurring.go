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

// RecurringService owns pre-authorized scheduled pulls. Each trigger is one
// ledger transfer; the schedule advances only after a successful pull.
type RecurringService struct {
	repo          repository.RecurringRepository
	gateway       ledger.Gateway
	events        EventSink
	validator     *validator.RequestValidator
	locks         *aggregateLocks
	assumeBalance bool
	logger        *slog.Logger
}

func NewRecurringService(repo repository.RecurringRepository, gateway ledger.Gateway, events EventSink, assumeBalanceOnError bool, logger *slog.Logger) *RecurringService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurringService{
		repo:          repo,
		gateway:       gateway,
		events:        events,
		validator:     validator.New(),
		locks:         newAggregateLocks(),
		assumeBalance: assumeBalanceOnError,
		logger:        logger,
	}
}

type CreateRecurringInput struct {
	PayerAccountID string
	PayeeAccountID string
	Amount         int64
	Currency       string
	Description    string
	Interval       domain.RecurringInterval
	MaxOccurrences int
	PreApproved    bool
}

func (s *RecurringService) Create(ctx context.Context, in CreateRecurringInput) (*domain.RecurringCollect, error) {
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
	switch in.Interval {
	case domain.IntervalDaily, domain.IntervalWeekly, domain.IntervalMonthly, domain.IntervalYearly:
	default:
		return nil, domain.NewError(domain.ErrValidation, "invalid_interval", "interval must be daily, weekly, monthly or yearly").
			With("param", "interval")
	}
	if in.MaxOccurrences < 0 {
		return nil, domain.NewError(domain.ErrValidation, "invalid_max_occurrences", "max_occurrences cannot be negative").
			With("param", "max_occurrences")
	}

	rec := domain.NewRecurringCollect(in.PayerAccountID, in.PayeeAccountID, in.Amount, in.Currency, in.Description, in.Interval, in.MaxOccurrences, in.PreApproved)
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("recurring collect created",
		slog.String("recurring_id", rec.ID),
		slog.String("interval", string(rec.Interval)))
	return rec, nil
}

func (s *RecurringService) Get(ctx context.Context, id string) (*domain.RecurringCollect, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("recurring_collect", id)
		}
		return nil, err
	}
	return rec, nil
}

func (s *RecurringService) List(ctx context.Context, payerAccountID, payeeAccountID string) ([]*domain.RecurringCollect, error) {
	return s.repo.List(ctx, payerAccountID, payeeAccountID)
}

func (s *RecurringService) Pause(ctx context.Context, id string) (*domain.RecurringCollect, error) {
	return s.transition(ctx, id, domain.RecurringActive, domain.RecurringPaused, "recurring_not_active", "only an active schedule can be paused")
}

func (s *RecurringService) Resume(ctx context.Context, id string) (*domain.RecurringCollect, error) {
	return s.transition(ctx, id, domain.RecurringPaused, domain.RecurringActive, "recurring_not_paused", "only a paused schedule can be resumed")
}

func (s *RecurringService) Cancel(ctx context.Context, id string) (*domain.RecurringCollect, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.RecurringCancelled || rec.Status == domain.RecurringCompleted {
		return nil, domain.NewError(domain.ErrInvalidState, "recurring_already_closed", "schedule is already "+string(rec.Status)).
			With("status", string(rec.Status))
	}

	rec.Status = domain.RecurringCancelled
	rec.NextCollectAt = nil
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.events.Dispatch("recurring.cancelled", rec)
	return rec, nil
}

func (s *RecurringService) transition(ctx context.Context, id string, from, to domain.RecurringStatus, code, msg string) (*domain.RecurringCollect, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != from {
		return nil, domain.NewError(domain.ErrInvalidState, code, msg).
			With("status", string(rec.Status))
	}

	rec.Status = to
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// TriggerResult reports the outcome of one occurrence.
type TriggerResult struct {
	Recurring        *domain.RecurringCollect `json:"recurring_collect"`
	LedgerTransferID string                   `json:"ledger_transfer_id"`
	Status           string                   `json:"status"`
}

// Trigger executes one occurrence now. An exhausted schedule transitions to
// completed instead of transferring.
func (s *RecurringService) Trigger(ctx context.Context, id string) (*TriggerResult, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.RecurringActive {
		return nil, domain.NewError(domain.ErrInvalidState, "recurring_not_active", "cannot trigger schedule in "+string(rec.Status)+" status").
			With("status", string(rec.Status))
	}
	if rec.MaxOccurrences > 0 && rec.OccurrencesCount >= rec.MaxOccurrences {
		rec.Status = domain.RecurringCompleted
		rec.NextCollectAt = nil
		if err := s.repo.Update(ctx, rec); err != nil {
			return nil, err
		}
		return &TriggerResult{Recurring: rec, Status: "completed"}, nil
	}

	if err := checkPayerBalance(ctx, s.gateway, rec.PayerAccountID, rec.Amount, s.assumeBalance); err != nil {
		return nil, err
	}

	transferID, err := s.gateway.Transfer(ctx, rec.PayerAccountID, rec.PayeeAccountID, rec.Amount, "flowpay recurring "+rec.ID)
	if err != nil {
		return nil, domain.NewError(domain.ErrUpstream, "ledger_transfer_failed", "ledger transfer failed").
			With("recurring_id", rec.ID)
	}

	rec.OccurrencesCount++
	if rec.MaxOccurrences > 0 && rec.OccurrencesCount >= rec.MaxOccurrences {
		rec.Status = domain.RecurringCompleted
		rec.NextCollectAt = nil
	} else {
		next := time.Now().UTC().Add(rec.Period())
		rec.NextCollectAt = &next
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.events.Dispatch("recurring.collect_executed", struct {
		*domain.RecurringCollect
		LedgerTransferID string `json:"ledger_transfer_id"`
	}{rec, transferID})

	s.logger.Info("recurring collect executed",
		slog.String("recurring_id", rec.ID),
		slog.Int("occurrence", rec.OccurrencesCount),
		slog.String("transfer_id", transferID))
	return &TriggerResult{Recurring: rec, LedgerTransferID: transferID, Status: "executed"}, nil
}

// RunDue triggers every active pre-approved schedule whose next occurrence
// is due. Failures are logged and skipped so one bad schedule cannot stall
// the sweep.
func (s *RecurringService) RunDue(ctx context.Context) int {
	active, err := s.repo.ListByStatus(ctx, domain.RecurringActive)
	if err != nil {
		s.logger.Error("recurring sweep list failed", slog.String("error", err.Error()))
		return 0
	}

	executed := 0
	now := time.Now()
	for _, rec := range active {
		if !rec.PreApproved || rec.NextCollectAt == nil || rec.NextCollectAt.After(now) {
			continue
		}
		if _, err := s.Trigger(ctx, rec.ID); err != nil {
			s.logger.Warn("recurring sweep trigger failed",
				slog.String("recurring_id", rec.ID),
				slog.String("error", err.Error()))
			continue
		}
		executed++
	}
	return executed
}
