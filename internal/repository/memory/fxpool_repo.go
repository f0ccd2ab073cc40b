package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
)

type FXPoolRepository struct {
	mu    sync.RWMutex
	pools map[string]*domain.FXPool
}

func NewFXPoolRepository() *FXPoolRepository {
	return &FXPoolRepository{
		pools: make(map[string]*domain.FXPool),
	}
}

func (r *FXPoolRepository) Save(ctx context.Context, pool *domain.FXPool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pools[pool.ID]; exists {
		return fmt.Errorf("%w: fxpool %s", repository.ErrDuplicate, pool.ID)
	}
	r.pools[pool.ID] = cloneFXPool(pool)
	return nil
}

func (r *FXPoolRepository) GetByID(ctx context.Context, id string) (*domain.FXPool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pool, exists := r.pools[id]
	if !exists {
		return nil, fmt.Errorf("%w: fxpool %s", repository.ErrNotFound, id)
	}
	return cloneFXPool(pool), nil
}

func (r *FXPoolRepository) Update(ctx context.Context, pool *domain.FXPool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pools[pool.ID]; !exists {
		return fmt.Errorf("%w: fxpool %s", repository.ErrNotFound, pool.ID)
	}
	r.pools[pool.ID] = cloneFXPool(pool)
	return nil
}

func (r *FXPoolRepository) List(ctx context.Context) ([]*domain.FXPool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.FXPool, 0, len(r.pools))
	for _, p := range r.pools {
		result = append(result, cloneFXPool(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *FXPoolRepository) ListByStatus(ctx context.Context, status domain.FXPoolStatus) ([]*domain.FXPool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.FXPool
	for _, p := range r.pools {
		if p.Status == status {
			result = append(result, cloneFXPool(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
