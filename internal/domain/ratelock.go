package domain

import "time"

type RateLockStatus string

const (
	RateLockActive  RateLockStatus = "active"
	RateLockUsed    RateLockStatus = "used"
	RateLockExpired RateLockStatus = "expired"
	RateLockDrifted RateLockStatus = "drifted"
)

// RateLock freezes an FX rate for a bounded window. The rate and the derived
// source amount are computed once at lock time and never recomputed.
// A lock is referenced by a Corridor or FX contribution but owns its own
// lifecycle.
type RateLock struct {
	ID             string         `json:"id"`
	Object         string         `json:"object"`
	SourceCurrency string         `json:"source_currency"`
	TargetCurrency string         `json:"target_currency"`
	Rate           float64        `json:"rate"` // 1 source = Rate target
	AmountTarget   int64          `json:"amount_target"`
	AmountSource   int64          `json:"amount_source"`
	MaxDriftPct    float64        `json:"max_drift_pct"`
	LockedAt       time.Time      `json:"locked_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	Status         RateLockStatus `json:"status"`
}

// DriftReport is the outcome of comparing a locked rate against the live
// rate. Pure data; computing it never mutates the lock.
type DriftReport struct {
	LockID      string  `json:"lock_id"`
	LockedRate  float64 `json:"locked_rate"`
	CurrentRate float64 `json:"current_rate"`
	DriftPct    float64 `json:"drift_pct"`
	MaxDriftPct float64 `json:"max_drift_pct"`
	Drifted     bool    `json:"drifted"`
}
