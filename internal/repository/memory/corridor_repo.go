package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
)

type CorridorRepository struct {
	mu        sync.RWMutex
	corridors map[string]*domain.Corridor
}

func NewCorridorRepository() *CorridorRepository {
	return &CorridorRepository{
		corridors: make(map[string]*domain.Corridor),
	}
}

func (r *CorridorRepository) Save(ctx context.Context, corridor *domain.Corridor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.corridors[corridor.ID]; exists {
		return fmt.Errorf("%w: corridor %s", repository.ErrDuplicate, corridor.ID)
	}
	r.corridors[corridor.ID] = cloneCorridor(corridor)
	return nil
}

func (r *CorridorRepository) GetByID(ctx context.Context, id string) (*domain.Corridor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	corridor, exists := r.corridors[id]
	if !exists {
		return nil, fmt.Errorf("%w: corridor %s", repository.ErrNotFound, id)
	}
	return cloneCorridor(corridor), nil
}

func (r *CorridorRepository) Update(ctx context.Context, corridor *domain.Corridor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.corridors[corridor.ID]; !exists {
		return fmt.Errorf("%w: corridor %s", repository.ErrNotFound, corridor.ID)
	}
	r.corridors[corridor.ID] = cloneCorridor(corridor)
	return nil
}

func (r *CorridorRepository) List(ctx context.Context) ([]*domain.Corridor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Corridor, 0, len(r.corridors))
	for _, c := range r.corridors {
		result = append(result, cloneCorridor(c))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
