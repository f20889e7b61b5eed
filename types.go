package reconcile

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used throughout the journal.
const DateLayout = "2006-01-02"

// FIXMEAccount is the placeholder account assigned to postings whose real
// account is not yet known. Sub-accounts of the form "Expenses:FIXME:x"
// name a substitution group shared by same-named placeholders within one
// transaction.
const FIXMEAccount = "Expenses:FIXME"

// IsUnknownAccount reports whether account is the placeholder account or
// one of its grouped sub-accounts.
func IsUnknownAccount(account string) bool {
	return account == FIXMEAccount || strings.HasPrefix(account, FIXMEAccount+":")
}

// AccountsMergeable reports whether two posting accounts are compatible for
// merging: equal, or at least one of them unknown.
func AccountsMergeable(a, b string) bool {
	return a == b || IsUnknownAccount(a) || IsUnknownAccount(b)
}

// Position is the journal location a directive was read from. A zero
// Position means the directive is not yet part of any file.
type Position struct {
	Filename string
	Line     int
}

func (p Position) IsZero() bool { return p.Filename == "" && p.Line == 0 }

// Directive is a dated journal entry.
type Directive interface {
	When() time.Time
	Position() Position
}

// Posting is one leg of a transaction.
type Posting struct {
	Account string
	Amount  Amount
	// Elided postings carry no amount in the journal and absorb the
	// residual when the transaction is balanced.
	Elided bool
	Cost   *Cost
	Price  *Amount
	// PriceIsTotal marks an @@ annotation: Price is the converted total
	// rather than a per-unit rate.
	PriceIsTotal bool
	Meta         Meta
}

// Weight is the amount a posting contributes to the transaction balance:
// the cost basis when held at cost, the converted amount when priced,
// otherwise the posting amount itself. ok is false for elided postings.
func (p *Posting) Weight() (w Amount, ok bool) {
	if p.Elided {
		return Amount{}, false
	}
	switch {
	case p.Cost != nil:
		return Amount{Number: p.Amount.Number.Mul(p.Cost.Number), Currency: p.Cost.Currency}, true
	case p.Price != nil && p.PriceIsTotal:
		n := p.Price.Number
		if p.Amount.Number.IsNegative() {
			n = n.Neg()
		}
		return Amount{Number: n, Currency: p.Price.Currency}, true
	case p.Price != nil:
		return Amount{Number: p.Amount.Number.Mul(p.Price.Number), Currency: p.Price.Currency}, true
	}
	return p.Amount, true
}

// Date returns the effective date of the posting: the posting-level date
// override when present, the transaction date otherwise.
func (p *Posting) Date(t *Transaction) time.Time {
	if d, ok := p.Meta.GetDate(KeyDate); ok {
		return d
	}
	return t.Date
}

func (p *Posting) Clone() *Posting {
	np := *p
	np.Meta = p.Meta.Clone()
	if p.Cost != nil {
		c := *p.Cost
		np.Cost = &c
	}
	if p.Price != nil {
		pr := *p.Price
		np.Price = &pr
	}
	return &np
}

// Transaction is a dated set of postings that balances to zero per
// currency.
type Transaction struct {
	Date      time.Time
	Flag      string
	Payee     string
	Narration string
	Tags      []string
	Links     []string
	Meta      Meta
	Postings  []*Posting
	Pos       Position
}

func (t *Transaction) When() time.Time    { return t.Date }
func (t *Transaction) Position() Position { return t.Pos }

func (t *Transaction) Clone() *Transaction {
	nt := *t
	nt.Tags = append([]string(nil), t.Tags...)
	nt.Links = append([]string(nil), t.Links...)
	nt.Meta = t.Meta.Clone()
	nt.Postings = make([]*Posting, len(t.Postings))
	for i, p := range t.Postings {
		nt.Postings[i] = p.Clone()
	}
	return &nt
}

// Open declares an account from a given date, optionally constrained to a
// currency set.
type Open struct {
	Date       time.Time
	Account    string
	Currencies []string
	Meta       Meta
	Pos        Position
}

func (o *Open) When() time.Time    { return o.Date }
func (o *Open) Position() Position { return o.Pos }

// Close ends an account as of a given date.
type Close struct {
	Date    time.Time
	Account string
	Meta    Meta
	Pos     Position
}

func (c *Close) When() time.Time    { return c.Date }
func (c *Close) Position() Position { return c.Pos }

// Balance asserts an account balance at the start of a given date.
type Balance struct {
	Date    time.Time
	Account string
	Amount  Amount
	Meta    Meta
	Pos     Position
}

func (b *Balance) When() time.Time    { return b.Date }
func (b *Balance) Position() Position { return b.Pos }

// Price records an observed exchange rate between two currencies.
type Price struct {
	Date     time.Time
	Currency string
	Amount   Amount
	Meta     Meta
	Pos      Position
}

func (p *Price) When() time.Time    { return p.Date }
func (p *Price) Position() Position { return p.Pos }
