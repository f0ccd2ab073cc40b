package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"flowpay/internal/domain"
	"flowpay/internal/repository/memory"
	"flowpay/pkg/crypto"
	"flowpay/pkg/metrics"
)

type receivedDelivery struct {
	Signature string
	Event     domain.Event
}

func newDeliverySink(t *testing.T) (*httptest.Server, func() []receivedDelivery) {
	t.Helper()

	var mu sync.Mutex
	var deliveries []receivedDelivery

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event domain.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Errorf("malformed delivery: %v", err)
		}
		mu.Lock()
		deliveries = append(deliveries, receivedDelivery{
			Signature: r.Header.Get("X-Flowpay-Signature"),
			Event:     event,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, func() []receivedDelivery {
		mu.Lock()
		defer mu.Unlock()
		return append([]receivedDelivery(nil), deliveries...)
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *crypto.Signer) {
	t.Helper()
	signer := crypto.NewSigner("test-secret", nil)
	d := NewDispatcher(memory.NewWebhookRepository(), signer, metrics.NewCollector(nil), DispatcherConfig{
		Workers:     2,
		QueueSize:   100,
		MaxAttempts: 2,
		RetryDelay:  10 * time.Millisecond,
	}, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return d, signer
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestDispatcher_DeliversSignedEvent(t *testing.T) {
	server, deliveries := newDeliverySink(t)
	d, signer := newTestDispatcher(t)

	if _, err := d.Register(context.Background(), server.URL, []string{"collect.approved"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d.Dispatch("collect.approved", map[string]string{"id": "clct_1"})

	waitFor(t, func() bool { return len(deliveries()) == 1 })

	got := deliveries()[0]
	if got.Event.Type != "collect.approved" || got.Event.Object != "event" {
		t.Errorf("unexpected envelope: %+v", got.Event)
	}
	if got.Event.ID == "" {
		t.Errorf("expected event id")
	}

	payload, _ := json.Marshal(got.Event)
	if ok, _ := signer.Verify(payload, got.Signature); !ok {
		t.Errorf("expected signature to verify against the delivered payload")
	}
}

func TestDispatcher_EventTypeFiltering(t *testing.T) {
	server, deliveries := newDeliverySink(t)
	d, _ := newTestDispatcher(t)

	_, _ = d.Register(context.Background(), server.URL, []string{"pool.goal_reached"})

	d.Dispatch("collect.approved", map[string]string{"id": "clct_1"})
	d.Dispatch("pool.goal_reached", map[string]string{"id": "pool_1"})

	waitFor(t, func() bool { return len(deliveries()) == 1 })
	time.Sleep(50 * time.Millisecond)

	got := deliveries()
	if len(got) != 1 || got[0].Event.Type != "pool.goal_reached" {
		t.Errorf("expected only the subscribed event, got %+v", got)
	}
}

func TestDispatcher_WildcardReceivesAll(t *testing.T) {
	server, deliveries := newDeliverySink(t)
	d, _ := newTestDispatcher(t)

	_, _ = d.Register(context.Background(), server.URL, nil)

	d.Dispatch("collect.approved", nil)
	d.Dispatch("pool.goal_reached", nil)

	waitFor(t, func() bool { return len(deliveries()) == 2 })
}

func TestDispatcher_FailedEndpointDoesNotBlock(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)

	server, deliveries := newDeliverySink(t)
	d, _ := newTestDispatcher(t)

	_, _ = d.Register(context.Background(), failing.URL, nil)
	_, _ = d.Register(context.Background(), server.URL, nil)

	d.Dispatch("collect.approved", map[string]string{"id": "clct_1"})

	// The healthy subscriber still receives the event.
	waitFor(t, func() bool { return len(deliveries()) == 1 })
}

func TestDispatcher_RegisterValidation(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Register(context.Background(), "", nil)
	if !domain.IsType(err, domain.ErrValidation) {
		t.Errorf("expected validation_error for empty url, got %v", err)
	}
}
