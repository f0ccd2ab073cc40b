package repository

import (
	"context"
	"errors"

	"flowpay/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// CollectFilter narrows List results. Zero values match everything;
// Limit <= 0 means no limit.
type CollectFilter struct {
	PayerAccountID string
	PayeeAccountID string
	Status         domain.CollectStatus
	Limit          int
	Offset         int
}

type CollectRepository interface {
	Save(ctx context.Context, collect *domain.Collect) error
	GetByID(ctx context.Context, id string) (*domain.Collect, error)
	Update(ctx context.Context, collect *domain.Collect) error
	List(ctx context.Context, filter CollectFilter) ([]*domain.Collect, error)
}

type PoolRepository interface {
	Save(ctx context.Context, pool *domain.Pool) error
	GetByID(ctx context.Context, id string) (*domain.Pool, error)
	Update(ctx context.Context, pool *domain.Pool) error
	List(ctx context.Context) ([]*domain.Pool, error)
	ListByStatus(ctx context.Context, status domain.PoolStatus) ([]*domain.Pool, error)
}

type CorridorRepository interface {
	Save(ctx context.Context, corridor *domain.Corridor) error
	GetByID(ctx context.Context, id string) (*domain.Corridor, error)
	Update(ctx context.Context, corridor *domain.Corridor) error
	List(ctx context.Context) ([]*domain.Corridor, error)
}

type FXPoolRepository interface {
	Save(ctx context.Context, pool *domain.FXPool) error
	GetByID(ctx context.Context, id string) (*domain.FXPool, error)
	Update(ctx context.Context, pool *domain.FXPool) error
	List(ctx context.Context) ([]*domain.FXPool, error)
	ListByStatus(ctx context.Context, status domain.FXPoolStatus) ([]*domain.FXPool, error)
}

type RateLockRepository interface {
	Save(ctx context.Context, lock *domain.RateLock) error
	GetByID(ctx context.Context, id string) (*domain.RateLock, error)
	Update(ctx context.Context, lock *domain.RateLock) error
	ListByStatus(ctx context.Context, status domain.RateLockStatus) ([]*domain.RateLock, error)
}

type RecurringRepository interface {
	Save(ctx context.Context, rec *domain.RecurringCollect) error
	GetByID(ctx context.Context, id string) (*domain.RecurringCollect, error)
	Update(ctx context.Context, rec *domain.RecurringCollect) error
	List(ctx context.Context, payerAccountID, payeeAccountID string) ([]*domain.RecurringCollect, error)
	ListByStatus(ctx context.Context, status domain.RecurringStatus) ([]*domain.RecurringCollect, error)
}

type WebhookRepository interface {
	Save(ctx context.Context, hook *domain.Webhook) error
	List(ctx context.Context) ([]*domain.Webhook, error)
}
