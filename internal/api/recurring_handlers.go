package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"flowpay/internal/domain"
	"flowpay/internal/payments"
)

type createRecurringRequest struct {
	PayerAccountID string `json:"payer_account_id"`
	PayeeAccountID string `json:"payee_account_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	Interval       string `json:"interval"`
	MaxOccurrences int    `json:"max_occurrences"`
	PreApproved    bool   `json:"pre_approved"`
}

func (h *Handler) createRecurring(w http.ResponseWriter, r *http.Request) {
	var req createRecurringRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.recurring.Create(r.Context(), payments.CreateRecurringInput{
		PayerAccountID: req.PayerAccountID,
		PayeeAccountID: req.PayeeAccountID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		Interval:       domain.RecurringInterval(req.Interval),
		MaxOccurrences: req.MaxOccurrences,
		PreApproved:    req.PreApproved,
	})
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, rec)
}

func (h *Handler) getRecurring(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recurring.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, rec)
}

func (h *Handler) listRecurring(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := h.recurring.List(r.Context(), q.Get("payer_account_id"), q.Get("payee_account_id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, listResponse{Object: "list", Data: recs})
}

func (h *Handler) pauseRecurring(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recurring.Pause(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, rec)
}

func (h *Handler) resumeRecurring(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recurring.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, rec)
}

func (h *Handler) cancelRecurring(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recurring.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, rec)
}

func (h *Handler) triggerRecurring(w http.ResponseWriter, r *http.Request) {
	result, err := h.recurring.Trigger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}
