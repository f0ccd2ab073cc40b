package api

import (
	"net/http"

	"flowpay/internal/domain"
)

type registerWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (h *Handler) registerWebhook(w http.ResponseWriter, r *http.Request) {
	var req registerWebhookRequest
	if !h.decode(w, r, &req) {
		return
	}

	hook, err := h.dispatcher.Register(r.Context(), req.URL, req.Events)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, hook)
}

func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.dispatcher.Webhooks(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, listResponse{Object: "list", Data: hooks})
}

type fxRateResponse struct {
	SourceCurrency string  `json:"source_currency"`
	TargetCurrency string  `json:"target_currency"`
	Rate           float64 `json:"rate"`
}

func (h *Handler) fxRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source := q.Get("source")
	target := q.Get("target")
	if source == "" || target == "" {
		h.sendError(w, domain.NewError(domain.ErrValidation, "missing_currency_pair", "source and target query parameters are required"))
		return
	}

	rate := h.fx.CurrentRate(r.Context(), source, target)
	h.sendJSON(w, http.StatusOK, fxRateResponse{
		SourceCurrency: source,
		TargetCurrency: target,
		Rate:           rate,
	})
}

func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.analytics.Snapshot(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, snap)
}
