package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"flowpay/internal/domain"
	"flowpay/internal/payments"
	"flowpay/internal/repository"
)

type createCollectRequest struct {
	PayerAccountID string            `json:"payer_account_id"`
	PayeeAccountID string            `json:"payee_account_id"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description"`
	ExpiresAt      time.Time         `json:"expires_at"`
	Metadata       map[string]string `json:"metadata"`
}

func (h *Handler) createCollect(w http.ResponseWriter, r *http.Request) {
	var req createCollectRequest
	if !h.decode(w, r, &req) {
		return
	}

	collect, err := h.collects.Create(r.Context(), payments.CreateCollectInput{
		PayerAccountID: req.PayerAccountID,
		PayeeAccountID: req.PayeeAccountID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		ExpiresAt:      req.ExpiresAt,
		Metadata:       req.Metadata,
	})
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, collect)
}

func (h *Handler) getCollect(w http.ResponseWriter, r *http.Request) {
	collect, err := h.collects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, collect)
}

const defaultListLimit = 20

func (h *Handler) listCollects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.CollectFilter{
		PayerAccountID: q.Get("payer_id"),
		PayeeAccountID: q.Get("payee_id"),
		Status:         domain.CollectStatus(q.Get("status")),
		Limit:          queryInt(q.Get("limit"), defaultListLimit),
		Offset:         queryInt(q.Get("offset"), 0),
	}

	collects, err := h.collects.List(r.Context(), filter)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, listResponse{Object: "list", Data: collects})
}

func (h *Handler) approveCollect(w http.ResponseWriter, r *http.Request) {
	collect, err := h.collects.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, collect)
}

type declineCollectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) declineCollect(w http.ResponseWriter, r *http.Request) {
	var req declineCollectRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	if reason := r.URL.Query().Get("reason"); reason != "" {
		req.Reason = reason
	}

	collect, err := h.collects.Decline(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, collect)
}

type listResponse struct {
	Object string `json:"object"`
	Data   any    `json:"data"`
}

// queryInt parses a pagination param, falling back on empty or garbage
// input rather than failing the request.
func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
