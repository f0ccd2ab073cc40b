package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flowpay/internal/payments"
)

type createPoolRequest struct {
	OrganizerAccountID string    `json:"organizer_account_id"`
	PayeeAccountID     string    `json:"payee_account_id"`
	GoalAmount         int64     `json:"goal_amount"`
	Currency           string    `json:"currency"`
	Description        string    `json:"description"`
	Deadline           time.Time `json:"deadline"`
	OnDeadlineMiss     string    `json:"on_deadline_miss"`
}

func (h *Handler) createPool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if !h.decode(w, r, &req) {
		return
	}

	pool, err := h.pools.Create(r.Context(), payments.CreatePoolInput{
		OrganizerAccountID: req.OrganizerAccountID,
		PayeeAccountID:     req.PayeeAccountID,
		GoalAmount:         req.GoalAmount,
		Currency:           req.Currency,
		Description:        req.Description,
		Deadline:           req.Deadline,
		OnDeadlineMiss:     req.OnDeadlineMiss,
	})
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, pool)
}

func (h *Handler) getPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.pools.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pool)
}

func (h *Handler) listPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.pools.List(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, listResponse{Object: "list", Data: pools})
}

func (h *Handler) poolContributions(w http.ResponseWriter, r *http.Request) {
	contributions, err := h.pools.Contributions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, listResponse{Object: "list", Data: contributions})
}

type contributePoolRequest struct {
	PayerAccountID string `json:"payer_account_id"`
	Amount         int64  `json:"amount"`
}

func (h *Handler) contributePool(w http.ResponseWriter, r *http.Request) {
	var req contributePoolRequest
	if !h.decode(w, r, &req) {
		return
	}

	pool, err := h.pools.Contribute(r.Context(), chi.URLParam(r, "id"), req.PayerAccountID, req.Amount)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pool)
}

func (h *Handler) cancelPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.pools.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pool)
}

func (h *Handler) settlePool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.pools.Settle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pool)
}
