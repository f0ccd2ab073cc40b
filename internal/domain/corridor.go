package domain

import (
	"strings"
	"time"
)

type CorridorStatus string

const (
	CorridorRateLocked     CorridorStatus = "rate_locked"
	CorridorRemitted       CorridorStatus = "remitted"
	CorridorExpired        CorridorStatus = "expired"
	CorridorDriftCancelled CorridorStatus = "drift_cancelled"
)

// Corridor is a single cross-border transfer executed at a previously locked
// FX rate. AmountSource is fixed when the rate is locked and never
// recomputed afterwards.
type Corridor struct {
	ID               string            `json:"id"`
	Object           string            `json:"object"`
	Status           CorridorStatus    `json:"status"`
	Description      string            `json:"description"`
	SourceCurrency   string            `json:"source_currency"`
	TargetCurrency   string            `json:"target_currency"`
	SourceAccountID  string            `json:"source_account_id"`
	TargetAccountID  string            `json:"target_account_id"`
	AmountTarget     int64             `json:"amount_target"`
	AmountSource     int64             `json:"amount_source"`
	RateLockID       string            `json:"rate_lock_id"`
	LedgerTransferID string            `json:"ledger_transfer_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	RemittedAt       *time.Time        `json:"remitted_at,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

func NewCorridor(sourceCurrency, targetCurrency, sourceAccountID, targetAccountID string, amountTarget int64, description string, lock *RateLock) *Corridor {
	return &Corridor{
		ID:              NewID("crdr"),
		Object:          "corridor",
		Status:          CorridorRateLocked,
		Description:     description,
		SourceCurrency:  strings.ToLower(sourceCurrency),
		TargetCurrency:  strings.ToLower(targetCurrency),
		SourceAccountID: sourceAccountID,
		TargetAccountID: targetAccountID,
		AmountTarget:    amountTarget,
		AmountSource:    lock.AmountSource,
		RateLockID:      lock.ID,
		CreatedAt:       time.Now().UTC(),
	}
}
