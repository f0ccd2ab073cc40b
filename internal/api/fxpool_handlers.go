package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flowpay/internal/payments"
)

type createFXPoolRequest struct {
	OrganizerAccountID string    `json:"organizer_account_id"`
	PayeeAccountID     string    `json:"payee_account_id"`
	GoalAmountUSD      int64     `json:"goal_amount_usd"`
	Description        string    `json:"description"`
	Deadline           time.Time `json:"deadline"`
	MaxDriftPct        float64   `json:"max_rate_drift_pct"`
	OnDeadlineMiss     string    `json:"on_deadline_miss"`
}

func (h *Handler) createFXPool(w http.ResponseWriter, r *http.Request) {
	var req createFXPoolRequest
	if !h.decode(w, r, &req) {
		return
	}

	pool, err := h.fxpools.Create(r.Context(), payments.CreateFXPoolInput{
		OrganizerAccountID: req.OrganizerAccountID,
		PayeeAccountID:     req.PayeeAccountID,
		GoalAmountUSD:      req.GoalAmountUSD,
		Description:        req.Description,
		Deadline:           req.Deadline,
		MaxDriftPct:        req.MaxDriftPct,
		OnDeadlineMiss:     req.OnDeadlineMiss,
	})
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, pool)
}

func (h *Handler) getFXPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.fxpools.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pool)
}

func (h *Handler) listFXPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.fxpools.List(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, listResponse{Object: "list", Data: pools})
}

func (h *Handler) fxPoolContributions(w http.ResponseWriter, r *http.Request) {
	contributions, err := h.fxpools.Contributions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, listResponse{Object: "list", Data: contributions})
}

type contributeFXPoolRequest struct {
	PayerAccountID string `json:"payer_account_id"`
	Currency       string `json:"currency"`
	AmountLocal    int64  `json:"amount_local"`
}

func (h *Handler) contributeFXPool(w http.ResponseWriter, r *http.Request) {
	var req contributeFXPoolRequest
	if !h.decode(w, r, &req) {
		return
	}

	pool, err := h.fxpools.Contribute(r.Context(), chi.URLParam(r, "id"), req.PayerAccountID, req.Currency, req.AmountLocal)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pool)
}

func (h *Handler) cancelFXPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.fxpools.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pool)
}

func (h *Handler) forceDriftFXPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.fxpools.ForceDrift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pool)
}

func (h *Handler) settleFXPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.fxpools.Settle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pool)
}
