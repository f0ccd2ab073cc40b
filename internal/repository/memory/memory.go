package memory

import (
	"flowpay/internal/repository"
)

var (
	_ repository.CollectRepository   = (*CollectRepository)(nil)
	_ repository.PoolRepository      = (*PoolRepository)(nil)
	_ repository.CorridorRepository  = (*CorridorRepository)(nil)
	_ repository.FXPoolRepository    = (*FXPoolRepository)(nil)
	_ repository.RateLockRepository  = (*RateLockRepository)(nil)
	_ repository.RecurringRepository = (*RecurringRepository)(nil)
	_ repository.WebhookRepository   = (*WebhookRepository)(nil)
)
