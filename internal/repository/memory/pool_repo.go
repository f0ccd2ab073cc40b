package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
)

type PoolRepository struct {
	mu    sync.RWMutex
	pools map[string]*domain.Pool
}

func NewPoolRepository() *PoolRepository {
	return &PoolRepository{
		pools: make(map[string]*domain.Pool),
	}
}

func (r *PoolRepository) Save(ctx context.Context, pool *domain.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pools[pool.ID]; exists {
		return fmt.Errorf("%w: pool %s", repository.ErrDuplicate, pool.ID)
	}
	r.pools[pool.ID] = clonePool(pool)
	return nil
}

func (r *PoolRepository) GetByID(ctx context.Context, id string) (*domain.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pool, exists := r.pools[id]
	if !exists {
		return nil, fmt.Errorf("%w: pool %s", repository.ErrNotFound, id)
	}
	return clonePool(pool), nil
}

func (r *PoolRepository) Update(ctx context.Context, pool *domain.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pools[pool.ID]; !exists {
		return fmt.Errorf("%w: pool %s", repository.ErrNotFound, pool.ID)
	}
	r.pools[pool.ID] = clonePool(pool)
	return nil
}

func (r *PoolRepository) List(ctx context.Context) ([]*domain.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Pool, 0, len(r.pools))
	for _, p := range r.pools {
		result = append(result, clonePool(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *PoolRepository) ListByStatus(ctx context.Context, status domain.PoolStatus) ([]*domain.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Pool
	for _, p := range r.pools {
		if p.Status == status {
			result = append(result, clonePool(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
