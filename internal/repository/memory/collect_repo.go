package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
)

type CollectRepository struct {
	mu       sync.RWMutex
	collects map[string]*domain.Collect
}

func NewCollectRepository() *CollectRepository {
	return &CollectRepository{
		collects: make(map[string]*domain.Collect),
	}
}

func (r *CollectRepository) Save(ctx context.Context, collect *domain.Collect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collects[collect.ID]; exists {
		return fmt.Errorf("%w: collect %s", repository.ErrDuplicate, collect.ID)
	}
	r.collects[collect.ID] = cloneCollect(collect)
	return nil
}

func (r *CollectRepository) GetByID(ctx context.Context, id string) (*domain.Collect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	collect, exists := r.collects[id]
	if !exists {
		return nil, fmt.Errorf("%w: collect %s", repository.ErrNotFound, id)
	}
	return cloneCollect(collect), nil
}

func (r *CollectRepository) Update(ctx context.Context, collect *domain.Collect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collects[collect.ID]; !exists {
		return fmt.Errorf("%w: collect %s", repository.ErrNotFound, collect.ID)
	}
	r.collects[collect.ID] = cloneCollect(collect)
	return nil
}

func (r *CollectRepository) List(ctx context.Context, filter repository.CollectFilter) ([]*domain.Collect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Collect
	for _, c := range r.collects {
		if filter.PayerAccountID != "" || filter.PayeeAccountID != "" {
			byPayer := filter.PayerAccountID != "" && c.PayerAccountID == filter.PayerAccountID
			byPayee := filter.PayeeAccountID != "" && c.PayeeAccountID == filter.PayeeAccountID
			if !byPayer && !byPayee {
				continue
			}
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		result = append(result, cloneCollect(c))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*domain.Collect{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}
