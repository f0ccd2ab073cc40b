package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
)

type RecurringRepository struct {
	mu        sync.RWMutex
	recurring map[string]*domain.RecurringCollect
}

func NewRecurringRepository() *RecurringRepository {
	return &RecurringRepository{
		recurring: make(map[string]*domain.RecurringCollect),
	}
}

func (r *RecurringRepository) Save(ctx context.Context, rec *domain.RecurringCollect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.recurring[rec.ID]; exists {
		return fmt.Errorf("%w: recurring collect %s", repository.ErrDuplicate, rec.ID)
	}
	r.recurring[rec.ID] = cloneRecurring(rec)
	return nil
}

func (r *RecurringRepository) GetByID(ctx context.Context, id string) (*domain.RecurringCollect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.recurring[id]
	if !exists {
		return nil, fmt.Errorf("%w: recurring collect %s", repository.ErrNotFound, id)
	}
	return cloneRecurring(rec), nil
}

func (r *RecurringRepository) Update(ctx context.Context, rec *domain.RecurringCollect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.recurring[rec.ID]; !exists {
		return fmt.Errorf("%w: recurring collect %s", repository.ErrNotFound, rec.ID)
	}
	r.recurring[rec.ID] = cloneRecurring(rec)
	return nil
}

func (r *RecurringRepository) List(ctx context.Context, payerAccountID, payeeAccountID string) ([]*domain.RecurringCollect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.RecurringCollect
	for _, rec := range r.recurring {
		if payerAccountID != "" && rec.PayerAccountID != payerAccountID {
			continue
		}
		if payeeAccountID != "" && rec.PayeeAccountID != payeeAccountID {
			continue
		}
		result = append(result, cloneRecurring(rec))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *RecurringRepository) ListByStatus(ctx context.Context, status domain.RecurringStatus) ([]*domain.RecurringCollect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.RecurringCollect
	for _, rec := range r.recurring {
		if rec.Status == status {
			result = append(result, cloneRecurring(rec))
		}
	}
	return result, nil
}
