package domain

import (
	"strings"
	"time"
)

type CollectStatus string

const (
	CollectPending  CollectStatus = "pending"
	CollectApproved CollectStatus = "approved"
	CollectDeclined CollectStatus = "declined"
	CollectExpired  CollectStatus = "expired"
)

// Collect is a receiver-initiated pull payment request. Amounts are in
// minor units (cents). Status moves forward only: pending is the sole
// non-terminal state.
type Collect struct {
	ID               string            `json:"id"`
	Object           string            `json:"object"`
	Status           CollectStatus     `json:"status"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Description      string            `json:"description"`
	PayerAccountID   string            `json:"payer_account_id"`
	PayeeAccountID   string            `json:"payee_account_id"`
	LedgerTransferID string            `json:"ledger_transfer_id,omitempty"`
	ExpiresAt        time.Time         `json:"expires_at"`
	CreatedAt        time.Time         `json:"created_at"`
	ApprovedAt       *time.Time        `json:"approved_at,omitempty"`
	DeclinedAt       *time.Time        `json:"declined_at,omitempty"`
	DeclineReason    string            `json:"decline_reason,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

func NewCollect(payerAccountID, payeeAccountID string, amount int64, currency, description string, expiresAt time.Time) *Collect {
	if currency == "" {
		currency = "usd"
	}
	return &Collect{
		ID:             NewID("clct"),
		Object:         "collect",
		Status:         CollectPending,
		Amount:         amount,
		Currency:       strings.ToLower(currency),
		Description:    description,
		PayerAccountID: payerAccountID,
		PayeeAccountID: payeeAccountID,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now().UTC(),
	}
}

func (c *Collect) WithMetadata(md map[string]string) *Collect {
	c.Metadata = md
	return c
}
