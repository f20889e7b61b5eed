package reconcile

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNeedAtLeastTwoPostings      = errors.New("need at least two postings")
	ErrMoreThanOneElidedPosting    = errors.New("unable to balance transaction: more than one posting without an amount")
	ErrElidedResidualMultiCurrency = errors.New("unable to balance transaction: residual spans multiple currencies")
)

// BalanceError reports the per-currency residual of an unbalanced
// transaction.
type BalanceError struct {
	Residual Amount
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("transaction does not balance: %s residual", e.Residual)
}

// CheckBalance returns nil if the transaction weights sum to zero in every
// currency, within tolerance per currency. A single elided posting absorbs
// the residual of one currency and is given that amount.
func (t *Transaction) CheckBalance(tolerance decimal.Decimal) error {
	if len(t.Postings) < 2 {
		return ErrNeedAtLeastTwoPostings
	}

	residuals := make(map[string]decimal.Decimal)
	currencies := []string{}
	var elided *Posting

	for _, p := range t.Postings {
		w, ok := p.Weight()
		if !ok {
			if elided != nil {
				return ErrMoreThanOneElidedPosting
			}
			elided = p
			continue
		}
		if _, seen := residuals[w.Currency]; !seen {
			currencies = append(currencies, w.Currency)
		}
		residuals[w.Currency] = residuals[w.Currency].Add(w.Number)
	}

	var unbalanced []string
	for _, cur := range currencies {
		if residuals[cur].Abs().GreaterThan(tolerance) {
			unbalanced = append(unbalanced, cur)
		}
	}

	if elided != nil {
		switch len(unbalanced) {
		case 0:
			elided.Amount = Amount{}
			elided.Elided = false
			if len(currencies) == 1 {
				elided.Amount.Currency = currencies[0]
			}
			return nil
		case 1:
			cur := unbalanced[0]
			elided.Amount = Amount{Number: residuals[cur].Neg(), Currency: cur}
			elided.Elided = false
			return nil
		default:
			return ErrElidedResidualMultiCurrency
		}
	}

	if len(unbalanced) > 0 {
		cur := unbalanced[0]
		return &BalanceError{Residual: Amount{Number: residuals[cur], Currency: cur}}
	}
	return nil
}
