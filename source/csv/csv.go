// Package csv derives pending entries from delimited statement exports.
// Columns are located by header name, the way banks label them, rather
// than by position.
package csv

import (
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/clearing"
	"github.com/howeyc/reconcile/source"
)

// Source derives pending entries from one CSV statement file.
type Source struct {
	// SourceName identifies the source in pending entries.
	SourceName string
	// File is the statement path.
	File string
	// Account is the journal account the statement describes.
	Account string
	// Currency labels the amounts.
	Currency string
	// DateFormat is the date column layout, mm/dd/yyyy by default.
	DateFormat string
	// Delimiter is the field separator, comma by default.
	Delimiter string
	// Negate flips amounts for statements quoted from the
	// counterparty's perspective.
	Negate bool
	// Scale multiplies every amount, for statements in minor units.
	Scale decimal.Decimal
}

func (s *Source) Name() string { return s.SourceName }

func (s *Source) IsMine(account string) bool { return account == s.Account }

// IdentityKeys is empty: CSV statements carry no per-record identifier
// beyond the description and date already covered by the cleared index.
func (s *Source) IdentityKeys() []string { return nil }

func (s *Source) Pending() ([]*source.PendingEntry, error) {
	f, err := os.Open(s.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.read(f)
}

func (s *Source) read(r io.Reader) ([]*source.PendingEntry, error) {
	reader := stdcsv.NewReader(r)
	if s.Delimiter != "" {
		reader.Comma, _ = utf8.DecodeRuneInString(s.Delimiter)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols, err := findColumns(records[0])
	if err != nil {
		return nil, err
	}

	layout := s.DateFormat
	if layout == "" {
		layout = "01/02/2006"
	}
	scale := s.Scale
	if scale.IsZero() {
		scale = decimal.New(1, 0)
	}

	var entries []*source.PendingEntry
	for _, record := range records[1:] {
		date, err := time.Parse(layout, record[cols.date])
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(record[cols.amount], ",", ""))
		if err != nil {
			return nil, fmt.Errorf("csv: amount %q: %w", record[cols.amount], err)
		}
		if s.Negate {
			amount = amount.Neg()
		}
		amount = amount.Mul(scale)

		desc := strings.TrimSpace(record[cols.payee])
		mine := &reconcile.Posting{
			Account: s.Account,
			Amount:  reconcile.Amount{Number: amount, Currency: s.Currency},
		}
		mine.Meta.SetString(clearing.SourceDescKey, desc)
		if cols.comment >= 0 && record[cols.comment] != "" {
			mine.Meta.SetString("note", record[cols.comment])
		}

		txn := &reconcile.Transaction{
			Date:      date,
			Flag:      "*",
			Narration: desc,
			Postings: []*reconcile.Posting{
				mine,
				{
					Account: reconcile.FIXMEAccount,
					Amount:  reconcile.Amount{Number: amount.Neg(), Currency: s.Currency},
				},
			},
		}
		entries = append(entries, source.NewPendingEntry(s.SourceName, []reconcile.Directive{txn}))
	}
	return entries, nil
}

type columns struct {
	date    int
	payee   int
	amount  int
	comment int
}

// findColumns locates the needed columns from the header row by the names
// banks commonly use.
func findColumns(header []string) (columns, error) {
	cols := columns{date: -1, payee: -1, amount: -1, comment: -1}
	for i, name := range header {
		name = strings.ToLower(name)
		switch {
		case strings.Contains(name, "date"):
			cols.date = i
		case strings.Contains(name, "description"), strings.Contains(name, "payee"):
			cols.payee = i
		case strings.Contains(name, "amount"), strings.Contains(name, "expense"):
			cols.amount = i
		case strings.Contains(name, "note"), strings.Contains(name, "comment"):
			cols.comment = i
		}
	}
	if cols.date < 0 || cols.payee < 0 || cols.amount < 0 {
		return cols, fmt.Errorf("csv: header is missing a date, description or amount column")
	}
	return cols, nil
}
