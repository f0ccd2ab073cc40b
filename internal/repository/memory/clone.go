package memory

import "flowpay/internal/domain"

// Stores hand out copies so that readers never observe an aggregate while a
// state machine is mutating it. Slices and maps are the only shared parts
// that need deep copying.

func cloneCollect(c *domain.Collect) *domain.Collect {
	cp := *c
	if c.Metadata != nil {
		cp.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func clonePool(p *domain.Pool) *domain.Pool {
	cp := *p
	cp.Contributions = append([]domain.Contribution(nil), p.Contributions...)
	cp.Refunds = append([]domain.Refund(nil), p.Refunds...)
	return &cp
}

func cloneCorridor(c *domain.Corridor) *domain.Corridor {
	cp := *c
	if c.Metadata != nil {
		cp.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func cloneFXPool(p *domain.FXPool) *domain.FXPool {
	cp := *p
	cp.Contributions = append([]domain.FXContribution(nil), p.Contributions...)
	cp.Refunds = append([]domain.Refund(nil), p.Refunds...)
	cp.CurrenciesCollected = append([]string(nil), p.CurrenciesCollected...)
	return &cp
}

func cloneRateLock(l *domain.RateLock) *domain.RateLock {
	cp := *l
	return &cp
}

func cloneRecurring(r *domain.RecurringCollect) *domain.RecurringCollect {
	cp := *r
	if r.NextCollectAt != nil {
		next := *r.NextCollectAt
		cp.NextCollectAt = &next
	}
	return &cp
}

func cloneWebhook(w *domain.Webhook) *domain.Webhook {
	cp := *w
	cp.Events = append([]string(nil), w.Events...)
	return &cp
}
