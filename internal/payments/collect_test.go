package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"flowpay/internal/domain"
	"flowpay/internal/repository/memory"
)

func newCollectFixture() (*CollectService, *stubGateway, *recordingSink) {
	gateway := newStubGateway()
	sink := &recordingSink{}
	svc := NewCollectService(memory.NewCollectRepository(), gateway, sink, false, nil)
	return svc, gateway, sink
}

func TestCollectService_ApproveSuccess(t *testing.T) {
	ctx := context.Background()
	svc, gateway, sink := newCollectFixture()

	collect, err := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         4900,
		Currency:       "usd",
		ExpiresAt:      time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if collect.Status != domain.CollectPending {
		t.Fatalf("expected pending, got %s", collect.Status)
	}

	approved, err := svc.Approve(ctx, collect.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != domain.CollectApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}
	if approved.LedgerTransferID == "" {
		t.Errorf("expected a ledger transfer id")
	}
	if gateway.transferCount() != 1 {
		t.Errorf("expected 1 transfer, got %d", gateway.transferCount())
	}
	if !sink.has("collect.approved") {
		t.Errorf("expected collect.approved event, got %v", sink.events)
	}
}

func TestCollectService_ApproveTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	svc, gateway, _ := newCollectFixture()

	collect, _ := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         100,
		ExpiresAt:      time.Now().Add(time.Hour),
	})
	if _, err := svc.Approve(ctx, collect.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Approve(ctx, collect.ID)
	if !domain.IsType(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid_state, got %v", err)
	}
	if gateway.transferCount() != 1 {
		t.Errorf("expected exactly 1 transfer, got %d", gateway.transferCount())
	}
}

func TestCollectService_ConcurrentApprovesTransferOnce(t *testing.T) {
	ctx := context.Background()
	svc, gateway, _ := newCollectFixture()

	collect, _ := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         100,
		ExpiresAt:      time.Now().Add(time.Hour),
	})

	var wg sync.WaitGroup
	successes := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Approve(ctx, collect.ID); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly 1 successful approve, got %d", count)
	}
	if gateway.transferCount() != 1 {
		t.Errorf("expected exactly 1 transfer, got %d", gateway.transferCount())
	}
}

func TestCollectService_ApproveExpiredTransitionsAndFails(t *testing.T) {
	ctx := context.Background()
	svc, gateway, sink := newCollectFixture()

	collect, _ := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         100,
		ExpiresAt:      time.Now().Add(30 * time.Millisecond),
	})
	time.Sleep(50 * time.Millisecond)

	_, err := svc.Approve(ctx, collect.ID)
	if !domain.IsType(err, domain.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	current, _ := svc.Get(ctx, collect.ID)
	if current.Status != domain.CollectExpired {
		t.Errorf("expected expired status, got %s", current.Status)
	}
	if gateway.transferCount() != 0 {
		t.Errorf("expected no transfers, got %d", gateway.transferCount())
	}
	if !sink.has("collect.expired") {
		t.Errorf("expected collect.expired event, got %v", sink.events)
	}
}

func TestCollectService_ApproveInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	svc, gateway, _ := newCollectFixture()
	gateway.setBalance("acc_alice", 50)

	collect, _ := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         100,
		ExpiresAt:      time.Now().Add(time.Hour),
	})

	_, err := svc.Approve(ctx, collect.ID)
	if !domain.IsType(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient_funds, got %v", err)
	}

	current, _ := svc.Get(ctx, collect.ID)
	if current.Status != domain.CollectPending {
		t.Errorf("expected collect to stay pending, got %s", current.Status)
	}
}

func TestCollectService_TransferFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	svc, gateway, _ := newCollectFixture()
	gateway.failTransfers = 1

	collect, _ := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         100,
		ExpiresAt:      time.Now().Add(time.Hour),
	})

	_, err := svc.Approve(ctx, collect.ID)
	if !domain.IsType(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream_error, got %v", err)
	}

	approved, err := svc.Approve(ctx, collect.ID)
	if err != nil {
		t.Fatalf("retry should succeed, got %v", err)
	}
	if approved.Status != domain.CollectApproved {
		t.Errorf("expected approved after retry, got %s", approved.Status)
	}
}

func TestCollectService_DeclineRecordsReason(t *testing.T) {
	ctx := context.Background()
	svc, _, sink := newCollectFixture()

	collect, _ := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         100,
		ExpiresAt:      time.Now().Add(time.Hour),
	})

	declined, err := svc.Decline(ctx, collect.ID, "not my bill")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if declined.Status != domain.CollectDeclined || declined.DeclineReason != "not my bill" {
		t.Errorf("expected declined with reason, got %s %q", declined.Status, declined.DeclineReason)
	}
	if !sink.has("collect.declined") {
		t.Errorf("expected collect.declined event, got %v", sink.events)
	}
}

func TestCollectService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCollectFixture()

	_, err := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         -5,
		ExpiresAt:      time.Now().Add(time.Hour),
	})
	if !domain.IsType(err, domain.ErrValidation) {
		t.Errorf("expected validation_error for negative amount, got %v", err)
	}

	_, err = svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         100,
		ExpiresAt:      time.Now().Add(-time.Hour),
	})
	if !domain.IsType(err, domain.ErrValidation) {
		t.Errorf("expected validation_error for past expiry, got %v", err)
	}
}

func TestCollectService_ExpireOverdue(t *testing.T) {
	ctx := context.Background()
	svc, _, sink := newCollectFixture()

	short, _ := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         100,
		ExpiresAt:      time.Now().Add(20 * time.Millisecond),
	})
	long, _ := svc.Create(ctx, CreateCollectInput{
		PayerAccountID: "acc_alice",
		PayeeAccountID: "acc_bob",
		Amount:         100,
		ExpiresAt:      time.Now().Add(time.Hour),
	})
	time.Sleep(40 * time.Millisecond)

	expired, err := svc.ExpireOverdue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expired != 1 {
		t.Errorf("expected 1 expired, got %d", expired)
	}

	if c, _ := svc.Get(ctx, short.ID); c.Status != domain.CollectExpired {
		t.Errorf("expected short collect expired, got %s", c.Status)
	}
	if c, _ := svc.Get(ctx, long.ID); c.Status != domain.CollectPending {
		t.Errorf("expected long collect pending, got %s", c.Status)
	}
	if !sink.has("collect.expired") {
		t.Errorf("expected collect.expired event, got %v", sink.events)
	}
}
