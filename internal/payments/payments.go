package payments

import (
	"context"
	"sync"

	"flowpay/internal/domain"
	"flowpay/internal/ledger"
)

// EventSink receives domain events for asynchronous delivery. Delivery
// failure never affects the originating state transition.
type EventSink interface {
	Dispatch(eventType string, object any)
}

// aggregateLocks provides per-aggregate mutual exclusion: every
// read-check-mutate sequence on a single aggregate id runs atomically with
// respect to other commands on the same id. Aggregates are independent, so
// no cross-id ordering is imposed. Locks are retained for the process
// lifetime, matching the stores (aggregates are never deleted).
type aggregateLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAggregateLocks() *aggregateLocks {
	return &aggregateLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for id and returns its release func.
func (l *aggregateLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func notFound(object, id string) *domain.Error {
	return domain.NewError(domain.ErrNotFound, object+"_not_found", object+" not found").
		With("id", id)
}

// checkPayerBalance enforces the insufficient-funds guard. When the ledger
// cannot report a balance the default is to fail upstream; assumeOnError
// restores the original demo policy of treating unreachable as sufficient.
func checkPayerBalance(ctx context.Context, gateway ledger.Gateway, accountID string, amount int64, assumeOnError bool) error {
	balance, err := gateway.Balance(ctx, accountID)
	if err != nil {
		if assumeOnError {
			return nil
		}
		return domain.NewError(domain.ErrUpstream, "balance_unavailable", "failed to fetch payer balance from ledger").
			With("account_id", accountID)
	}
	if balance < amount {
		return domain.NewError(domain.ErrInsufficientFunds, "insufficient_funds", "payer account balance is insufficient").
			With("param", "payer_account_id").
			With("balance", balance).
			With("required_amount", amount)
	}
	return nil
}
