package memory

import (
	"context"
	"fmt"
	"sync"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
)

type RateLockRepository struct {
	mu    sync.RWMutex
	locks map[string]*domain.RateLock
}

func NewRateLockRepository() *RateLockRepository {
	return &RateLockRepository{
		locks: make(map[string]*domain.RateLock),
	}
}

func (r *RateLockRepository) Save(ctx context.Context, lock *domain.RateLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.locks[lock.ID]; exists {
		return fmt.Errorf("%w: rate lock %s", repository.ErrDuplicate, lock.ID)
	}
	r.locks[lock.ID] = cloneRateLock(lock)
	return nil
}

func (r *RateLockRepository) GetByID(ctx context.Context, id string) (*domain.RateLock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lock, exists := r.locks[id]
	if !exists {
		return nil, fmt.Errorf("%w: rate lock %s", repository.ErrNotFound, id)
	}
	return cloneRateLock(lock), nil
}

func (r *RateLockRepository) Update(ctx context.Context, lock *domain.RateLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.locks[lock.ID]; !exists {
		return fmt.Errorf("%w: rate lock %s", repository.ErrNotFound, lock.ID)
	}
	r.locks[lock.ID] = cloneRateLock(lock)
	return nil
}

func (r *RateLockRepository) ListByStatus(ctx context.Context, status domain.RateLockStatus) ([]*domain.RateLock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.RateLock
	for _, l := range r.locks {
		if l.Status == status {
			result = append(result, cloneRateLock(l))
		}
	}
	return result, nil
}
