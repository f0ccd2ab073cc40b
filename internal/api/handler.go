package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"flowpay/internal/domain"
	"flowpay/internal/fx"
	"flowpay/internal/idempotency"
	"flowpay/internal/payments"
	"flowpay/internal/service"
	"flowpay/pkg/metrics"
)

// Handler wires every service behind the /v1 HTTP surface.
type Handler struct {
	collects    *payments.CollectService
	pools       *payments.PoolService
	corridors   *payments.CorridorService
	fxpools     *payments.FXPoolService
	recurring   *payments.RecurringService
	analytics   *payments.AnalyticsService
	fx          *fx.Service
	dispatcher  *service.Dispatcher
	idempotency *idempotency.Cache
	collector   *metrics.Collector
	logger      *slog.Logger
}

func NewHandler(
	collects *payments.CollectService,
	pools *payments.PoolService,
	corridors *payments.CorridorService,
	fxpools *payments.FXPoolService,
	recurring *payments.RecurringService,
	analytics *payments.AnalyticsService,
	fxService *fx.Service,
	dispatcher *service.Dispatcher,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		collects:    collects,
		pools:       pools,
		corridors:   corridors,
		fxpools:     fxpools,
		recurring:   recurring,
		analytics:   analytics,
		fx:          fxService,
		dispatcher:  dispatcher,
		idempotency: idempotency.NewCache(),
		collector:   collector,
		logger:      logger,
	}
}

func (h *Handler) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestMetrics)
	r.Use(h.idempotencyMiddleware)

	r.Get("/health", h.health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/collects", func(r chi.Router) {
			r.Post("/", h.createCollect)
			r.Get("/", h.listCollects)
			r.Get("/{id}", h.getCollect)
			r.Post("/{id}/approve", h.approveCollect)
			r.Post("/{id}/decline", h.declineCollect)
		})

		r.Route("/pools", func(r chi.Router) {
			r.Post("/", h.createPool)
			r.Get("/", h.listPools)
			r.Get("/{id}", h.getPool)
			r.Get("/{id}/contributions", h.poolContributions)
			r.Post("/{id}/contribute", h.contributePool)
			r.Post("/{id}/cancel", h.cancelPool)
			r.Post("/{id}/settle", h.settlePool)
		})

		r.Route("/corridors", func(r chi.Router) {
			r.Post("/", h.createCorridor)
			r.Get("/", h.listCorridors)
			r.Get("/{id}", h.getCorridor)
			r.Get("/{id}/rate-check", h.corridorRateCheck)
			r.Post("/{id}/remit", h.remitCorridor)
		})

		r.Route("/fxpools", func(r chi.Router) {
			r.Post("/", h.createFXPool)
			r.Get("/", h.listFXPools)
			r.Get("/{id}", h.getFXPool)
			r.Get("/{id}/contributions", h.fxPoolContributions)
			r.Post("/{id}/contribute", h.contributeFXPool)
			r.Post("/{id}/cancel", h.cancelFXPool)
			r.Post("/{id}/force-drift", h.forceDriftFXPool)
			r.Post("/{id}/settle", h.settleFXPool)
		})

		r.Route("/recurring", func(r chi.Router) {
			r.Post("/", h.createRecurring)
			r.Get("/", h.listRecurring)
			r.Get("/{id}", h.getRecurring)
			r.Post("/{id}/pause", h.pauseRecurring)
			r.Post("/{id}/resume", h.resumeRecurring)
			r.Post("/{id}/cancel", h.cancelRecurring)
			r.Post("/{id}/trigger", h.triggerRecurring)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", h.registerWebhook)
			r.Get("/", h.listWebhooks)
		})

		r.Get("/fx/rate", h.fxRate)
		r.Get("/analytics", h.getAnalytics)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error *domain.Error `json:"error"`
}

func (h *Handler) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}

// sendError maps the error taxonomy onto HTTP statuses. Unknown errors are
// masked as a generic 500.
func (h *Handler) sendError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		h.logger.Error("Unhandled error", slog.String("error", err.Error()))
		de = domain.NewError(domain.ErrUpstream, "internal_error", "an internal error occurred")
		h.sendJSON(w, http.StatusInternalServerError, errorBody{Error: de})
		return
	}
	h.sendJSON(w, statusFor(de.Type), errorBody{Error: de})
}

func statusFor(t domain.ErrorType) int {
	switch t {
	case domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrInvalidState:
		return http.StatusConflict
	case domain.ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.ErrExpired, domain.ErrLockExpired:
		return http.StatusGone
	case domain.ErrDriftExceeded:
		return http.StatusUnprocessableEntity
	case domain.ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.sendError(w, domain.NewError(domain.ErrValidation, "invalid_json", "request body is not valid JSON"))
		return false
	}
	return true
}
