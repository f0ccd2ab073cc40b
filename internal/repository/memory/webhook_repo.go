package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
)

type WebhookRepository struct {
	mu    sync.RWMutex
	hooks map[string]*domain.Webhook
}

func NewWebhookRepository() *WebhookRepository {
	return &WebhookRepository{
		hooks: make(map[string]*domain.Webhook),
	}
}

func (r *WebhookRepository) Save(ctx context.Context, hook *domain.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.hooks[hook.ID]; exists {
		return fmt.Errorf("%w: webhook %s", repository.ErrDuplicate, hook.ID)
	}
	r.hooks[hook.ID] = cloneWebhook(hook)
	return nil
}

func (r *WebhookRepository) List(ctx context.Context) ([]*domain.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Webhook, 0, len(r.hooks))
	for _, h := range r.hooks {
		result = append(result, cloneWebhook(h))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
