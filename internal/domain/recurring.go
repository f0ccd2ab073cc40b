package domain

import (
	"strings"
	"time"
)

type RecurringStatus string

const (
	RecurringActive    RecurringStatus = "active"
	RecurringPaused    RecurringStatus = "paused"
	RecurringCancelled RecurringStatus = "cancelled"
	RecurringCompleted RecurringStatus = "completed"
)

type RecurringInterval string

const (
	IntervalDaily   RecurringInterval = "daily"
	IntervalWeekly  RecurringInterval = "weekly"
	IntervalMonthly RecurringInterval = "monthly"
	IntervalYearly  RecurringInterval = "yearly"
)

// RecurringCollect is a pre-authorized pull payment executed on a schedule.
// MaxOccurrences of 0 means indefinite.
type RecurringCollect struct {
	ID               string            `json:"id"`
	Object           string            `json:"object"`
	Status           RecurringStatus   `json:"status"`
	PayeeAccountID   string            `json:"payee_account_id"`
	PayerAccountID   string            `json:"payer_account_id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Description      string            `json:"description"`
	Interval         RecurringInterval `json:"interval"`
	OccurrencesCount int               `json:"occurrences_count"`
	MaxOccurrences   int               `json:"max_occurrences,omitempty"`
	PreApproved      bool              `json:"pre_approved"`
	CreatedAt        time.Time         `json:"created_at"`
	NextCollectAt    *time.Time        `json:"next_collect_at,omitempty"`
}

func NewRecurringCollect(payerAccountID, payeeAccountID string, amount int64, currency, description string, interval RecurringInterval, maxOccurrences int, preApproved bool) *RecurringCollect {
	if currency == "" {
		currency = "usd"
	}
	now := time.Now().UTC()
	return &RecurringCollect{
		ID:             NewID("rec"),
		Object:         "recurring_collect",
		Status:         RecurringActive,
		PayeeAccountID: payeeAccountID,
		PayerAccountID: payerAccountID,
		Amount:         amount,
		Currency:       strings.ToLower(currency),
		Description:    description,
		Interval:       interval,
		MaxOccurrences: maxOccurrences,
		PreApproved:    preApproved,
		CreatedAt:      now,
		NextCollectAt:  &now,
	}
}

// Period returns the wall-clock gap between occurrences.
func (r *RecurringCollect) Period() time.Duration {
	switch r.Interval {
	case IntervalDaily:
		return 24 * time.Hour
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	case IntervalYearly:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}
