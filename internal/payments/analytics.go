package payments

import (
	"context"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
)

// AnalyticsSnapshot is a point-in-time rollup across every primitive.
// Counts are bucketed by status; volumes are minor units.
type AnalyticsSnapshot struct {
	Collects struct {
		Total          int            `json:"total"`
		ByStatus       map[string]int `json:"by_status"`
		ApprovedVolume int64          `json:"approved_volume"`
	} `json:"collects"`
	Pools struct {
		Total         int            `json:"total"`
		ByStatus      map[string]int `json:"by_status"`
		SettledVolume int64          `json:"settled_volume"`
	} `json:"pools"`
	Corridors struct {
		Total          int            `json:"total"`
		ByStatus       map[string]int `json:"by_status"`
		RemittedVolume int64          `json:"remitted_volume"`
	} `json:"corridors"`
	FXPools struct {
		Total            int            `json:"total"`
		ByStatus         map[string]int `json:"by_status"`
		SettledVolumeUSD int64          `json:"settled_volume_usd"`
	} `json:"fxpools"`
	Recurring struct {
		Total            int            `json:"total"`
		ByStatus         map[string]int `json:"by_status"`
		OccurrencesTotal int            `json:"occurrences_total"`
	} `json:"recurring"`
}

// AnalyticsService reads across repositories; it never mutates.
type AnalyticsService struct {
	collects  repository.CollectRepository
	pools     repository.PoolRepository
	corridors repository.CorridorRepository
	fxpools   repository.FXPoolRepository
	recurring repository.RecurringRepository
}

func NewAnalyticsService(collects repository.CollectRepository, pools repository.PoolRepository, corridors repository.CorridorRepository, fxpools repository.FXPoolRepository, recurring repository.RecurringRepository) *AnalyticsService {
	return &AnalyticsService{
		collects:  collects,
		pools:     pools,
		corridors: corridors,
		fxpools:   fxpools,
		recurring: recurring,
	}
}

func (s *AnalyticsService) Snapshot(ctx context.Context) (*AnalyticsSnapshot, error) {
	snap := &AnalyticsSnapshot{}
	snap.Collects.ByStatus = map[string]int{}
	snap.Pools.ByStatus = map[string]int{}
	snap.Corridors.ByStatus = map[string]int{}
	snap.FXPools.ByStatus = map[string]int{}
	snap.Recurring.ByStatus = map[string]int{}

	collects, err := s.collects.List(ctx, repository.CollectFilter{})
	if err != nil {
		return nil, err
	}
	for _, c := range collects {
		snap.Collects.Total++
		snap.Collects.ByStatus[string(c.Status)]++
		if c.Status == domain.CollectApproved {
			snap.Collects.ApprovedVolume += c.Amount
		}
	}

	pools, err := s.pools.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pools {
		snap.Pools.Total++
		snap.Pools.ByStatus[string(p.Status)]++
		if p.Status == domain.PoolFunded {
			snap.Pools.SettledVolume += p.CollectedAmount
		}
	}

	corridors, err := s.corridors.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range corridors {
		snap.Corridors.Total++
		snap.Corridors.ByStatus[string(c.Status)]++
		if c.Status == domain.CorridorRemitted {
			snap.Corridors.RemittedVolume += c.AmountSource
		}
	}

	fxpools, err := s.fxpools.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range fxpools {
		snap.FXPools.Total++
		snap.FXPools.ByStatus[string(p.Status)]++
		if p.Status == domain.FXPoolFunded {
			snap.FXPools.SettledVolumeUSD += p.CollectedUSD
		}
	}

	recurring, err := s.recurring.List(ctx, "", "")
	if err != nil {
		return nil, err
	}
	for _, r := range recurring {
		snap.Recurring.Total++
		snap.Recurring.ByStatus[string(r.Status)]++
		snap.Recurring.OccurrencesTotal += r.OccurrencesCount
	}

	return snap, nil
}
