package domain

import (
	"strings"
	"time"
)

type PoolStatus string

const (
	PoolCollecting        PoolStatus = "collecting"
	PoolFunded            PoolStatus = "funded"
	PoolSettlementPending PoolStatus = "settlement_pending"
	PoolCancelled         PoolStatus = "cancelled"
)

const (
	DeadlineRefundAll     = "refund_all"
	DeadlineSettlePartial = "settle_partial"
)

// Contribution is an append-only record of funds moved into a pool's
// holding account. Immutable once recorded.
type Contribution struct {
	PayerAccountID   string    `json:"payer_account_id"`
	Amount           int64     `json:"amount"`
	LedgerTransferID string    `json:"ledger_transfer_id"`
	ContributedAt    time.Time `json:"contributed_at"`
}

// Refund records the outcome of one compensating reverse transfer.
// A failed refund keeps the batch going; Error holds the reason.
type Refund struct {
	PayerAccountID   string `json:"payer_account_id"`
	Currency         string `json:"currency,omitempty"`
	Amount           int64  `json:"amount"`
	LedgerTransferID string `json:"ledger_transfer_id,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Pool is a group-funding target. Invariant: CollectedAmount always equals
// the sum of Contributions. Escrow is modelled as the organizer's account.
type Pool struct {
	ID                   string         `json:"id"`
	Object               string         `json:"object"`
	Status               PoolStatus     `json:"status"`
	GoalAmount           int64          `json:"goal_amount"`
	CollectedAmount      int64          `json:"collected_amount"`
	Currency             string         `json:"currency"`
	Description          string         `json:"description"`
	OrganizerAccountID   string         `json:"organizer_account_id"`
	PayeeAccountID       string         `json:"payee_account_id"`
	ParticipantCount     int            `json:"participant_count"`
	ContributionsCount   int            `json:"contributions_count"`
	Deadline             time.Time      `json:"deadline"`
	OnDeadlineMiss       string         `json:"on_deadline_miss"`
	CreatedAt            time.Time      `json:"created_at"`
	FundedAt             *time.Time     `json:"funded_at,omitempty"`
	SettlementTransferID string         `json:"settlement_transfer_id,omitempty"`
	Contributions        []Contribution `json:"contributions"`
	Refunds              []Refund       `json:"refunds,omitempty"`
}

func NewPool(organizerAccountID, payeeAccountID string, goalAmount int64, currency, description string, deadline time.Time, onDeadlineMiss string) *Pool {
	if currency == "" {
		currency = "usd"
	}
	if onDeadlineMiss == "" {
		onDeadlineMiss = DeadlineRefundAll
	}
	return &Pool{
		ID:                 NewID("pool"),
		Object:             "pool",
		Status:             PoolCollecting,
		GoalAmount:         goalAmount,
		Currency:           strings.ToLower(currency),
		Description:        description,
		OrganizerAccountID: organizerAccountID,
		PayeeAccountID:     payeeAccountID,
		Deadline:           deadline,
		OnDeadlineMiss:     onDeadlineMiss,
		CreatedAt:          time.Now().UTC(),
	}
}

// AddContribution appends the record and keeps the running totals in step.
func (p *Pool) AddContribution(c Contribution) {
	p.Contributions = append(p.Contributions, c)
	p.CollectedAmount += c.Amount
	p.ContributionsCount = len(p.Contributions)

	payers := make(map[string]struct{}, len(p.Contributions))
	for _, contrib := range p.Contributions {
		payers[contrib.PayerAccountID] = struct{}{}
	}
	p.ParticipantCount = len(payers)
}

// ContributionTotal recomputes the sum of recorded contributions.
func (p *Pool) ContributionTotal() int64 {
	var total int64
	for _, c := range p.Contributions {
		total += c.Amount
	}
	return total
}
