package domain

import (
	"strings"
	"time"
)

type FXPoolStatus string

const (
	FXPoolCollecting        FXPoolStatus = "collecting"
	FXPoolFunded            FXPoolStatus = "funded"
	FXPoolSettlementPending FXPoolStatus = "settlement_pending"
	FXPoolCancelled         FXPoolStatus = "cancelled"
	FXPoolDriftRefunded     FXPoolStatus = "drift_refunded"
)

// FXContribution is one participant's payment in their local currency,
// converted to the pool's base currency at a per-contribution locked rate.
// Refunds always reissue AmountLocal in the original currency, so
// participants never bear FX risk.
type FXContribution struct {
	ID               string    `json:"id"`
	PayerAccountID   string    `json:"payer_account_id"`
	Currency         string    `json:"currency"`
	AmountLocal      int64     `json:"amount_local"`
	AmountUSD        int64     `json:"amount_usd"`
	Rate             float64   `json:"rate"` // 1 local = Rate usd at contribution time
	RateLockID       string    `json:"rate_lock_id"`
	LedgerTransferID string    `json:"ledger_transfer_id"`
	ContributedAt    time.Time `json:"contributed_at"`
}

// FXPool is a multi-currency group-funding target aggregated in USD.
// Invariant: CollectedUSD always equals the sum of contribution AmountUSD.
type FXPool struct {
	ID                   string           `json:"id"`
	Object               string           `json:"object"`
	Status               FXPoolStatus     `json:"status"`
	GoalAmountUSD        int64            `json:"goal_amount_usd"`
	CollectedUSD         int64            `json:"collected_usd"`
	OrganizerAccountID   string           `json:"organizer_account_id"`
	PayeeAccountID       string           `json:"payee_account_id"`
	Description          string           `json:"description"`
	Deadline             time.Time        `json:"deadline"`
	MaxDriftPct          float64          `json:"max_drift_pct"`
	OnDeadlineMiss       string           `json:"on_deadline_miss"`
	ContributionsCount   int              `json:"contributions_count"`
	CurrenciesCollected  []string         `json:"currencies_collected"`
	CreatedAt            time.Time        `json:"created_at"`
	FundedAt             *time.Time       `json:"funded_at,omitempty"`
	SettlementTransferID string           `json:"settlement_transfer_id,omitempty"`
	Contributions        []FXContribution `json:"contributions"`
	Refunds              []Refund         `json:"refunds,omitempty"`
	RefundReason         string           `json:"refund_reason,omitempty"`
}

func NewFXPool(organizerAccountID, payeeAccountID string, goalAmountUSD int64, description string, deadline time.Time, maxDriftPct float64, onDeadlineMiss string) *FXPool {
	if maxDriftPct == 0 {
		maxDriftPct = 3.0
	}
	if onDeadlineMiss == "" {
		onDeadlineMiss = DeadlineRefundAll
	}
	return &FXPool{
		ID:                 NewID("fxpool"),
		Object:             "fxpool",
		Status:             FXPoolCollecting,
		GoalAmountUSD:      goalAmountUSD,
		OrganizerAccountID: organizerAccountID,
		PayeeAccountID:     payeeAccountID,
		Description:        description,
		Deadline:           deadline,
		MaxDriftPct:        maxDriftPct,
		OnDeadlineMiss:     onDeadlineMiss,
		CreatedAt:          time.Now().UTC(),
	}
}

// AddContribution appends the record and keeps totals and the currency set
// in step.
func (p *FXPool) AddContribution(c FXContribution) {
	c.Currency = strings.ToLower(c.Currency)
	p.Contributions = append(p.Contributions, c)
	p.CollectedUSD += c.AmountUSD
	p.ContributionsCount = len(p.Contributions)

	for _, cur := range p.CurrenciesCollected {
		if cur == c.Currency {
			return
		}
	}
	p.CurrenciesCollected = append(p.CurrenciesCollected, c.Currency)
}

// ContributionTotalUSD recomputes the sum of recorded USD amounts.
func (p *FXPool) ContributionTotalUSD() int64 {
	var total int64
	for _, c := range p.Contributions {
		total += c.AmountUSD
	}
	return total
}
