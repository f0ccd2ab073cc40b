package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"flowpay/internal/domain"
	"flowpay/internal/repository"
	"flowpay/pkg/crypto"
	"flowpay/pkg/metrics"
)

// Dispatcher fans domain events out to registered webhooks from a worker
// pool. Dispatch never blocks the calling state transition: a full queue
// drops the event with a warning.
type Dispatcher struct {
	webhooks     repository.WebhookRepository
	eventQueue   chan domain.Event
	workers      int
	client       *http.Client
	signer       *crypto.Signer
	maxAttempts  int
	retryDelay   time.Duration
	collector    *metrics.Collector
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

func NewDispatcher(webhooks repository.WebhookRepository, signer *crypto.Signer, collector *metrics.Collector, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	d := &Dispatcher{
		webhooks:     webhooks,
		eventQueue:   make(chan domain.Event, cfg.QueueSize),
		workers:      cfg.Workers,
		client:       &http.Client{Timeout: 10 * time.Second},
		signer:       signer,
		maxAttempts:  cfg.MaxAttempts,
		retryDelay:   cfg.RetryDelay,
		collector:    collector,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	d.startWorkers()

	return d
}

// Dispatch wraps the object in an event envelope and queues it.
func (d *Dispatcher) Dispatch(eventType string, object any) {
	event := domain.NewEvent(eventType, object)

	select {
	case d.eventQueue <- event:
	default:
		d.logger.Warn("Event queue full, dropping event",
			slog.String("event_id", event.ID),
			slog.String("type", eventType))
	}
}

// Register stores a webhook subscription.
func (d *Dispatcher) Register(ctx context.Context, url string, events []string) (*domain.Webhook, error) {
	if url == "" {
		return nil, domain.NewError(domain.ErrValidation, "missing_url", "webhook url is required").
			With("param", "url")
	}

	hook := domain.NewWebhook(url, events)
	if err := d.webhooks.Save(ctx, hook); err != nil {
		return nil, err
	}

	d.logger.Info("Webhook registered",
		slog.String("webhook_id", hook.ID),
		slog.String("url", hook.URL))
	return hook, nil
}

func (d *Dispatcher) Webhooks(ctx context.Context) ([]*domain.Webhook, error) {
	return d.webhooks.List(ctx)
}

func (d *Dispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Info("Webhook worker started", slog.Int("worker_id", id))

	for {
		select {
		case event := <-d.eventQueue:
			d.processEvent(event, id)
		case <-d.shutdownChan:
			d.logger.Info("Webhook worker stopping", slog.Int("worker_id", id))
			return
		}
	}
}

func (d *Dispatcher) processEvent(event domain.Event, workerID int) {
	hooks, err := d.webhooks.List(context.Background())
	if err != nil {
		d.logger.Error("Failed to list webhooks",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("Failed to marshal event",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return
	}

	for _, hook := range hooks {
		if !hook.Matches(event.Type) {
			continue
		}
		d.deliver(hook, event, payload, workerID)
	}
}

// deliver posts the payload with retries and backoff. A delivery that
// exhausts its attempts is logged and dropped; events are not re-queued.
func (d *Dispatcher) deliver(hook *domain.Webhook, event domain.Event, payload []byte, workerID int) {
	startTime := time.Now()

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(d.retryDelay * time.Duration(attempt-1))
		}

		lastErr = d.post(hook.URL, payload)
		if lastErr == nil {
			d.collector.RecordWebhookDelivery(true)
			d.logger.Info("Webhook delivered",
				slog.String("event_id", event.ID),
				slog.String("type", event.Type),
				slog.String("url", hook.URL),
				slog.Int("attempt", attempt),
				slog.Int("worker_id", workerID),
				slog.Duration("duration", time.Since(startTime)))
			return
		}
	}

	d.collector.RecordWebhookDelivery(false)
	d.logger.Error("Webhook delivery failed",
		slog.String("event_id", event.ID),
		slog.String("type", event.Type),
		slog.String("url", hook.URL),
		slog.Int("attempts", d.maxAttempts),
		slog.String("error", lastErr.Error()))
}

func (d *Dispatcher) post(url string, payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Flowpay-Signature", d.signer.Sign(payload))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) Shutdown(ctx context.Context) error {
	close(d.shutdownChan)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Webhook dispatcher shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
