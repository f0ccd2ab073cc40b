package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry          *prometheus.Registry
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	idempotentReplays prometheus.Counter
	webhookDeliveries *prometheus.CounterVec
	driftChecks       prometheus.Histogram
	logger            *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		httpRequests: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "flowpay_http_requests_total",
			Help: "Total HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowpay_http_request_duration_seconds",
			Help:    "Request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		idempotentReplays: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "flowpay_idempotent_replays_total",
			Help: "Mutating requests answered from the idempotency cache",
		}),
		webhookDeliveries: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "flowpay_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome",
		}, []string{"outcome"}),
		driftChecks: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "flowpay_fx_drift_pct",
			Help:    "Observed FX drift percentages at check time",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10},
		}),
		logger: logger,
	}
}

func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordReplay() {
	c.idempotentReplays.Inc()
}

func (c *Collector) RecordWebhookDelivery(success bool) {
	outcome := "delivered"
	if !success {
		outcome = "failed"
	}
	c.webhookDeliveries.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveDrift(pct float64) {
	c.driftChecks.Observe(pct)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		c.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (c *Collector) Shutdown(ctx context.Context) error {
	c.logger.Info("Metrics collector shutdown complete")
	return nil
}
