package payments

import (
	"context"
	"testing"
	"time"

	"flowpay/internal/domain"
	"flowpay/internal/fx"
	"flowpay/internal/repository/memory"
)

func newCorridorFixture() (*CorridorService, *fx.StaticOracle, *stubGateway, *recordingSink) {
	oracle := fx.NewStaticOracle()
	fxService := fx.NewService(oracle, memory.NewRateLockRepository(), nil)
	gateway := newStubGateway()
	sink := &recordingSink{}
	svc := NewCorridorService(memory.NewCorridorRepository(), gateway, fxService, sink, 30*time.Minute, 2.0, false, nil)
	return svc, oracle, gateway, sink
}

func TestCorridorService_CreateLocksRate(t *testing.T) {
	ctx := context.Background()
	svc, oracle, _, sink := newCorridorFixture()
	oracle.SetRate("usd", "inr", 83.20)

	corridor, lock, err := svc.Create(ctx, CreateCorridorInput{
		SourceCurrency:  "usd",
		TargetCurrency:  "inr",
		SourceAccountID: "acc_alice",
		TargetAccountID: "acc_mumbai",
		AmountTarget:    500000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if corridor.Status != domain.CorridorRateLocked {
		t.Fatalf("expected rate_locked, got %s", corridor.Status)
	}
	if lock.Rate != 83.20 {
		t.Errorf("expected locked rate 83.20, got %v", lock.Rate)
	}
	// round(500000 / 83.20) = 6010
	if corridor.AmountSource != 6010 {
		t.Errorf("expected amount_source 6010, got %d", corridor.AmountSource)
	}
	if corridor.RateLockID != lock.ID {
		t.Errorf("corridor should reference its lock")
	}
	if !sink.has("corridor.rate_locked") {
		t.Errorf("expected corridor.rate_locked event, got %v", sink.events)
	}
}

func TestCorridorService_RemitWithinTolerance(t *testing.T) {
	ctx := context.Background()
	svc, oracle, gateway, sink := newCorridorFixture()
	oracle.SetRate("usd", "inr", 83.20)

	corridor, _, _ := svc.Create(ctx, CreateCorridorInput{
		SourceCurrency:  "usd",
		TargetCurrency:  "inr",
		SourceAccountID: "acc_alice",
		TargetAccountID: "acc_mumbai",
		AmountTarget:    500000,
	})

	// 1% move, under the 2% default tolerance.
	oracle.SetRate("usd", "inr", 84.03)

	remitted, err := svc.Remit(ctx, corridor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remitted.Status != domain.CorridorRemitted {
		t.Fatalf("expected remitted, got %s", remitted.Status)
	}
	if remitted.LedgerTransferID == "" {
		t.Errorf("expected a ledger transfer id")
	}
	if gateway.transferCount() != 1 {
		t.Errorf("expected 1 transfer, got %d", gateway.transferCount())
	}
	if gateway.transfers[0].Amount != remitted.AmountSource {
		t.Errorf("transfer must move the locked source amount")
	}
	if !sink.has("corridor.settled") {
		t.Errorf("expected corridor.settled event, got %v", sink.events)
	}
}

func TestCorridorService_RemitDriftCancelled(t *testing.T) {
	ctx := context.Background()
	svc, oracle, gateway, sink := newCorridorFixture()
	oracle.SetRate("usd", "inr", 83.20)

	corridor, lock, _ := svc.Create(ctx, CreateCorridorInput{
		SourceCurrency:  "usd",
		TargetCurrency:  "inr",
		SourceAccountID: "acc_alice",
		TargetAccountID: "acc_mumbai",
		AmountTarget:    500000,
	})

	// 5% move, beyond tolerance.
	oracle.SetRate("usd", "inr", 87.36)

	_, err := svc.Remit(ctx, corridor.ID)
	if !domain.IsType(err, domain.ErrDriftExceeded) {
		t.Fatalf("expected drift_exceeded, got %v", err)
	}

	current, _ := svc.Get(ctx, corridor.ID)
	if current.Status != domain.CorridorDriftCancelled {
		t.Errorf("expected drift_cancelled, got %s", current.Status)
	}
	if gateway.transferCount() != 0 {
		t.Errorf("expected no transfers, got %d", gateway.transferCount())
	}

	de := err.(*domain.Error)
	if de.Context["locked_rate"] != lock.Rate {
		t.Errorf("expected locked_rate in error context, got %v", de.Context)
	}
	if !sink.has("corridor.drift_cancelled") {
		t.Errorf("expected corridor.drift_cancelled event, got %v", sink.events)
	}
}

func TestCorridorService_RemitExpiredLock(t *testing.T) {
	ctx := context.Background()
	svc, oracle, gateway, sink := newCorridorFixture()
	oracle.SetRate("usd", "eur", 0.92)

	corridor, _, _ := svc.Create(ctx, CreateCorridorInput{
		SourceCurrency:  "usd",
		TargetCurrency:  "eur",
		SourceAccountID: "acc_alice",
		TargetAccountID: "acc_berlin",
		AmountTarget:    10000,
		LockDuration:    30 * time.Millisecond,
	})
	time.Sleep(50 * time.Millisecond)

	_, err := svc.Remit(ctx, corridor.ID)
	if !domain.IsType(err, domain.ErrLockExpired) {
		t.Fatalf("expected lock_expired, got %v", err)
	}

	current, _ := svc.Get(ctx, corridor.ID)
	if current.Status != domain.CorridorExpired {
		t.Errorf("expected expired, got %s", current.Status)
	}
	if gateway.transferCount() != 0 {
		t.Errorf("expected no transfers, got %d", gateway.transferCount())
	}
	if !sink.has("corridor.rate_expired") {
		t.Errorf("expected corridor.rate_expired event, got %v", sink.events)
	}
}

func TestCorridorService_RemitTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	svc, oracle, _, _ := newCorridorFixture()
	oracle.SetRate("usd", "inr", 83.20)

	corridor, _, _ := svc.Create(ctx, CreateCorridorInput{
		SourceCurrency:  "usd",
		TargetCurrency:  "inr",
		SourceAccountID: "acc_alice",
		TargetAccountID: "acc_mumbai",
		AmountTarget:    500000,
	})
	if _, err := svc.Remit(ctx, corridor.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Remit(ctx, corridor.ID)
	if !domain.IsType(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid_state, got %v", err)
	}
}

func TestCorridorService_RateCheckIsPure(t *testing.T) {
	ctx := context.Background()
	svc, oracle, _, _ := newCorridorFixture()
	oracle.SetRate("usd", "inr", 83.20)

	corridor, _, _ := svc.Create(ctx, CreateCorridorInput{
		SourceCurrency:  "usd",
		TargetCurrency:  "inr",
		SourceAccountID: "acc_alice",
		TargetAccountID: "acc_mumbai",
		AmountTarget:    500000,
	})

	oracle.SetRate("usd", "inr", 87.36)

	report, err := svc.RateCheck(ctx, corridor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Drifted {
		t.Errorf("expected drifted report, got %+v", report)
	}

	current, _ := svc.Get(ctx, corridor.ID)
	if current.Status != domain.CorridorRateLocked {
		t.Errorf("rate check must not mutate status, got %s", current.Status)
	}
}
