package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"flowpay/internal/fx"
	"flowpay/internal/payments"
)

// Sweeper periodically resolves time-based transitions: overdue collects,
// pools and fx pools past their deadline, due recurring schedules and
// expired rate locks. Everything it does is also evaluated lazily at
// command time, so the sweeper only tightens latency.
type Sweeper struct {
	collects  *payments.CollectService
	pools     *payments.PoolService
	fxpools   *payments.FXPoolService
	recurring *payments.RecurringService
	fx        *fx.Service
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	logger    *slog.Logger
}

func NewSweeper(collects *payments.CollectService, pools *payments.PoolService, fxpools *payments.FXPoolService, recurring *payments.RecurringService, fxService *fx.Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		collects:  collects,
		pools:     pools,
		fxpools:   fxpools,
		recurring: recurring,
		fx:        fxService,
		interval:  interval,
		stopChan:  make(chan struct{}),
		logger:    logger,
	}
}

func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("Sweeper started", slog.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				s.logger.Info("Sweeper stopping")
				return
			}
		}
	}()
}

func (s *Sweeper) sweep() {
	ctx := context.Background()

	expiredCollects, err := s.collects.ExpireOverdue(ctx)
	if err != nil {
		s.logger.Error("Collect expiry sweep failed", slog.String("error", err.Error()))
	}

	closedPools, err := s.pools.CloseOverdue(ctx)
	if err != nil {
		s.logger.Error("Pool deadline sweep failed", slog.String("error", err.Error()))
	}

	closedFXPools, err := s.fxpools.CloseOverdue(ctx)
	if err != nil {
		s.logger.Error("FX pool deadline sweep failed", slog.String("error", err.Error()))
	}

	executedRecurring := s.recurring.RunDue(ctx)

	expiredLocks, err := s.fx.ExpireOverdue(ctx)
	if err != nil {
		s.logger.Error("Rate lock expiry sweep failed", slog.String("error", err.Error()))
	}

	if expiredCollects+closedPools+closedFXPools+executedRecurring+expiredLocks > 0 {
		s.logger.Info("Sweep completed",
			slog.Int("expired_collects", expiredCollects),
			slog.Int("closed_pools", closedPools),
			slog.Int("closed_fxpools", closedFXPools),
			slog.Int("executed_recurring", executedRecurring),
			slog.Int("expired_locks", expiredLocks))
	}
}

func (s *Sweeper) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
