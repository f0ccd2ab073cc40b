package validator

import (
	"regexp"
	"time"

	"flowpay/internal/domain"
)

// RequestValidator performs the structural checks shared by every create
// command. State-dependent rules live in the state machines.
type RequestValidator struct {
	currencyRegex *regexp.Regexp
}

func New() *RequestValidator {
	return &RequestValidator{
		currencyRegex: regexp.MustCompile(`^[a-zA-Z]{3}$`),
	}
}

func (v *RequestValidator) Amount(field string, amount int64) error {
	if amount <= 0 {
		return domain.NewError(domain.ErrValidation, "invalid_amount", field+" must be a positive amount in minor units").
			With("param", field)
	}
	return nil
}

func (v *RequestValidator) Currency(currency string) error {
	if !v.currencyRegex.MatchString(currency) {
		return domain.NewError(domain.ErrValidation, "invalid_currency", "currency must be a 3-letter code").
			With("param", "currency")
	}
	return nil
}

func (v *RequestValidator) AccountID(field, id string) error {
	if id == "" {
		return domain.NewError(domain.ErrValidation, "missing_account", field+" is required").
			With("param", field)
	}
	return nil
}

func (v *RequestValidator) DistinctAccounts(a, b string) error {
	if a != "" && a == b {
		return domain.NewError(domain.ErrValidation, "same_account", "payer and payee accounts must differ")
	}
	return nil
}

func (v *RequestValidator) FutureTime(field string, t time.Time) error {
	if t.IsZero() {
		return domain.NewError(domain.ErrValidation, "missing_deadline", field+" is required").
			With("param", field)
	}
	if !t.After(time.Now()) {
		return domain.NewError(domain.ErrValidation, "deadline_in_past", field+" must be in the future").
			With("param", field)
	}
	return nil
}

func (v *RequestValidator) DriftPct(pct float64) error {
	if pct < 0 || pct > 100 {
		return domain.NewError(domain.ErrValidation, "invalid_drift_pct", "max drift percentage must be between 0 and 100").
			With("param", "max_rate_drift_pct")
	}
	return nil
}
