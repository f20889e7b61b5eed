package reconcile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a number of units of a single currency.
type Amount struct {
	Number   decimal.Decimal
	Currency string
}

// NewAmount builds an Amount from a decimal string such as "-2.45".
// It panics on malformed input and is intended for literals.
func NewAmount(number, currency string) Amount {
	return Amount{Number: decimal.RequireFromString(number), Currency: currency}
}

func (a Amount) Neg() Amount {
	return Amount{Number: a.Number.Neg(), Currency: a.Currency}
}

func (a Amount) Add(b Amount) Amount {
	return Amount{Number: a.Number.Add(b.Number), Currency: a.Currency}
}

func (a Amount) IsZero() bool {
	return a.Number.IsZero()
}

// Equal reports whether two amounts have the same currency and numerically
// equal numbers, regardless of representation ("2.4" equals "2.40").
func (a Amount) Equal(b Amount) bool {
	return a.Currency == b.Currency && a.Number.Equal(b.Number)
}

// WithinOf reports whether b is in the same currency and within tolerance
// of a. A zero tolerance requires exact equality.
func (a Amount) WithinOf(b Amount, tolerance decimal.Decimal) bool {
	if a.Currency != b.Currency {
		return false
	}
	return a.Number.Sub(b.Number).Abs().LessThanOrEqual(tolerance)
}

func (a Amount) String() string {
	var sb strings.Builder
	sb.WriteString(a.Number.String())
	if a.Currency != "" {
		sb.WriteByte(' ')
		sb.WriteString(a.Currency)
	}
	return sb.String()
}

// Cost is the {number currency, date, "label"} annotation on a posting
// held at cost.
type Cost struct {
	Number   decimal.Decimal
	Currency string
	Date     time.Time
	Label    string
}

func (c *Cost) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	sb.WriteString(c.Number.String())
	sb.WriteByte(' ')
	sb.WriteString(c.Currency)
	if !c.Date.IsZero() {
		sb.WriteString(", ")
		sb.WriteString(c.Date.Format(DateLayout))
	}
	if c.Label != "" {
		sb.WriteString(`, "`)
		sb.WriteString(c.Label)
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}
