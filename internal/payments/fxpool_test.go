package payments

import (
	"context"
	"testing"
	"time"

	"flowpay/internal/domain"
	"flowpay/internal/fx"
	"flowpay/internal/repository/memory"
)

func newFXPoolFixture() (*FXPoolService, *fx.StaticOracle, *stubGateway, *recordingSink) {
	oracle := fx.NewStaticOracle()
	fxService := fx.NewService(oracle, memory.NewRateLockRepository(), nil)
	gateway := newStubGateway()
	sink := &recordingSink{}
	svc := NewFXPoolService(memory.NewFXPoolRepository(), gateway, fxService, sink, nil)
	return svc, oracle, gateway, sink
}

func createTestFXPool(t *testing.T, svc *FXPoolService, goalUSD int64) *domain.FXPool {
	t.Helper()
	pool, err := svc.Create(context.Background(), CreateFXPoolInput{
		OrganizerAccountID: "acc_carol",
		PayeeAccountID:     "acc_charity",
		GoalAmountUSD:      goalUSD,
		Deadline:           time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return pool
}

func TestFXPoolService_ContributeConvertsAndLocks(t *testing.T) {
	ctx := context.Background()
	svc, oracle, gateway, sink := newFXPoolFixture()
	oracle.SetRate("eur", "usd", 1.10)

	pool := createTestFXPool(t, svc, 100000)

	updated, err := svc.Contribute(ctx, pool.ID, "acc_hans", "eur", 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.FXPoolCollecting {
		t.Fatalf("expected collecting, got %s", updated.Status)
	}
	if updated.CollectedUSD != 4400 {
		t.Errorf("expected 4400 usd collected, got %d", updated.CollectedUSD)
	}
	if len(updated.Contributions) != 1 {
		t.Fatalf("expected 1 contribution, got %d", len(updated.Contributions))
	}

	contribution := updated.Contributions[0]
	if contribution.AmountLocal != 4000 || contribution.AmountUSD != 4400 {
		t.Errorf("expected 4000 eur -> 4400 usd, got %d -> %d", contribution.AmountLocal, contribution.AmountUSD)
	}
	if contribution.RateLockID == "" {
		t.Errorf("expected a rate lock per contribution")
	}
	// Transfer moves the local amount into escrow.
	if gateway.transfers[0].Amount != 4000 {
		t.Errorf("expected escrow transfer of 4000, got %d", gateway.transfers[0].Amount)
	}
	if !sink.has("fxpool.contribution_received") {
		t.Errorf("expected fxpool.contribution_received event, got %v", sink.events)
	}
}

func TestFXPoolService_GoalReachedSettles(t *testing.T) {
	ctx := context.Background()
	svc, oracle, gateway, sink := newFXPoolFixture()
	oracle.SetRate("eur", "usd", 1.10)
	oracle.SetRate("inr", "usd", 0.012)

	pool := createTestFXPool(t, svc, 10000)

	_, err := svc.Contribute(ctx, pool.ID, "acc_hans", "eur", 4000) // 4400 usd
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated, err := svc.Contribute(ctx, pool.ID, "acc_priya", "inr", 470000) // 5640 usd
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != domain.FXPoolFunded {
		t.Fatalf("expected funded, got %s", updated.Status)
	}
	if updated.CollectedUSD != 10040 {
		t.Errorf("expected 10040 usd collected, got %d", updated.CollectedUSD)
	}
	if len(updated.CurrenciesCollected) != 2 {
		t.Errorf("expected 2 currencies, got %v", updated.CurrenciesCollected)
	}
	// Settlement transfers the USD total.
	last := gateway.transfers[len(gateway.transfers)-1]
	if last.Amount != 10040 {
		t.Errorf("expected settlement of 10040, got %d", last.Amount)
	}
	if !sink.has("fxpool.goal_reached") {
		t.Errorf("expected fxpool.goal_reached event, got %v", sink.events)
	}
}

func TestFXPoolService_DriftAtGoalRefundsInOriginalCurrency(t *testing.T) {
	ctx := context.Background()
	svc, oracle, gateway, sink := newFXPoolFixture()
	oracle.SetRate("eur", "usd", 1.10)

	pool := createTestFXPool(t, svc, 10000)

	_, err := svc.Contribute(ctx, pool.ID, "acc_hans", "eur", 5000) // 5500 usd
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Move the market beyond the 3% default tolerance before the goal hit.
	oracle.SetRate("eur", "usd", 1.20)

	updated, err := svc.Contribute(ctx, pool.ID, "acc_marie", "eur", 4000) // 4800 usd, goal reached
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.FXPoolDriftRefunded {
		t.Fatalf("expected drift_refunded, got %s", updated.Status)
	}
	if updated.RefundReason != "rate_drift" {
		t.Errorf("expected rate_drift reason, got %q", updated.RefundReason)
	}
	if len(updated.Refunds) != 2 {
		t.Fatalf("expected 2 refunds, got %d", len(updated.Refunds))
	}
	for i, refund := range updated.Refunds {
		if refund.Amount != updated.Contributions[i].AmountLocal {
			t.Errorf("refund %d must return the local amount, got %d", i, refund.Amount)
		}
		if refund.Currency != updated.Contributions[i].Currency {
			t.Errorf("refund %d must be in the original currency, got %s", i, refund.Currency)
		}
	}
	// 2 escrow transfers + 2 refunds, no settlement.
	if gateway.transferCount() != 4 {
		t.Errorf("expected 4 transfers, got %d", gateway.transferCount())
	}
	if !sink.has("fxpool.rate_drifted") {
		t.Errorf("expected fxpool.rate_drifted event, got %v", sink.events)
	}
}

func TestFXPoolService_CancelRefundsAll(t *testing.T) {
	ctx := context.Background()
	svc, oracle, _, sink := newFXPoolFixture()
	oracle.SetRate("eur", "usd", 1.10)

	pool := createTestFXPool(t, svc, 100000)
	_, _ = svc.Contribute(ctx, pool.ID, "acc_hans", "eur", 4000)

	cancelled, err := svc.Cancel(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.FXPoolCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.RefundReason != "organizer_cancelled" {
		t.Errorf("expected organizer_cancelled reason, got %q", cancelled.RefundReason)
	}
	if len(cancelled.Refunds) != 1 {
		t.Errorf("expected 1 refund, got %d", len(cancelled.Refunds))
	}
	if !sink.has("fxpool.cancelled") {
		t.Errorf("expected fxpool.cancelled event, got %v", sink.events)
	}

	_, err = svc.Cancel(ctx, pool.ID)
	if !domain.IsType(err, domain.ErrInvalidState) {
		t.Errorf("expected invalid_state on second cancel, got %v", err)
	}
}

func TestFXPoolService_ForceDrift(t *testing.T) {
	ctx := context.Background()
	svc, oracle, _, sink := newFXPoolFixture()
	oracle.SetRate("eur", "usd", 1.10)

	pool := createTestFXPool(t, svc, 100000)
	_, _ = svc.Contribute(ctx, pool.ID, "acc_hans", "eur", 4000)

	forced, err := svc.ForceDrift(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forced.Status != domain.FXPoolDriftRefunded {
		t.Fatalf("expected drift_refunded, got %s", forced.Status)
	}
	if forced.RefundReason != "rate_drift_simulated" {
		t.Errorf("expected rate_drift_simulated reason, got %q", forced.RefundReason)
	}
	if !sink.has("fxpool.rate_drifted") {
		t.Errorf("expected fxpool.rate_drifted event, got %v", sink.events)
	}
}

func TestFXPoolService_SettlementFailureRetry(t *testing.T) {
	ctx := context.Background()
	svc, oracle, gateway, _ := newFXPoolFixture()
	oracle.SetRate("eur", "usd", 1.10)

	pool := createTestFXPool(t, svc, 4000)

	// Escrow transfer succeeds, settlement transfer fails.
	failAfterNext(gateway)

	updated, err := svc.Contribute(ctx, pool.ID, "acc_hans", "eur", 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.FXPoolSettlementPending {
		t.Fatalf("expected settlement_pending, got %s", updated.Status)
	}

	settled, err := svc.Settle(ctx, pool.ID)
	if err != nil {
		t.Fatalf("settle retry failed: %v", err)
	}
	if settled.Status != domain.FXPoolFunded {
		t.Errorf("expected funded after retry, got %s", settled.Status)
	}
}

func TestFXPoolService_CloseOverdue(t *testing.T) {
	ctx := context.Background()
	svc, oracle, _, sink := newFXPoolFixture()
	oracle.SetRate("eur", "usd", 1.10)

	pool, err := svc.Create(ctx, CreateFXPoolInput{
		OrganizerAccountID: "acc_carol",
		PayeeAccountID:     "acc_charity",
		GoalAmountUSD:      100000,
		Deadline:           time.Now().Add(60 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = svc.Contribute(ctx, pool.ID, "acc_hans", "eur", 4000)
	time.Sleep(80 * time.Millisecond)

	closed, err := svc.CloseOverdue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != 1 {
		t.Errorf("expected 1 closed, got %d", closed)
	}

	current, _ := svc.Get(ctx, pool.ID)
	if current.Status != domain.FXPoolCancelled {
		t.Errorf("expected cancelled, got %s", current.Status)
	}
	if current.RefundReason != "deadline_missed" {
		t.Errorf("expected deadline_missed reason, got %q", current.RefundReason)
	}
	if !sink.has("fxpool.cancelled") {
		t.Errorf("expected fxpool.cancelled event, got %v", sink.events)
	}
}
