package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flowpay/internal/domain"
	"flowpay/internal/payments"
)

type createCorridorRequest struct {
	SourceCurrency      string  `json:"source_currency"`
	TargetCurrency      string  `json:"target_currency"`
	SourceAccountID     string  `json:"source_account_id"`
	TargetAccountID     string  `json:"target_account_id"`
	AmountTarget        int64   `json:"amount_target"`
	Description         string  `json:"description"`
	LockDurationMinutes int     `json:"lock_duration_minutes"`
	MaxDriftPct         float64 `json:"max_rate_drift_pct"`
}

type corridorResponse struct {
	*domain.Corridor
	RateLock *domain.RateLock `json:"rate_lock,omitempty"`
}

func (h *Handler) createCorridor(w http.ResponseWriter, r *http.Request) {
	var req createCorridorRequest
	if !h.decode(w, r, &req) {
		return
	}

	corridor, lock, err := h.corridors.Create(r.Context(), payments.CreateCorridorInput{
		SourceCurrency:  req.SourceCurrency,
		TargetCurrency:  req.TargetCurrency,
		SourceAccountID: req.SourceAccountID,
		TargetAccountID: req.TargetAccountID,
		AmountTarget:    req.AmountTarget,
		Description:     req.Description,
		LockDuration:    time.Duration(req.LockDurationMinutes) * time.Minute,
		MaxDriftPct:     req.MaxDriftPct,
	})
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, corridorResponse{Corridor: corridor, RateLock: lock})
}

func (h *Handler) getCorridor(w http.ResponseWriter, r *http.Request) {
	corridor, err := h.corridors.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, corridor)
}

func (h *Handler) listCorridors(w http.ResponseWriter, r *http.Request) {
	corridors, err := h.corridors.List(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, listResponse{Object: "list", Data: corridors})
}

func (h *Handler) corridorRateCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.corridors.RateCheck(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.collector.ObserveDrift(report.DriftPct)
	h.sendJSON(w, http.StatusOK, report)
}

func (h *Handler) remitCorridor(w http.ResponseWriter, r *http.Request) {
	corridor, err := h.corridors.Remit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, corridor)
}
