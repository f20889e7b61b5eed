// Package qif derives pending entries from Quicken Interchange Format
// statements, based on the "Non-investment transaction format" from the
// GnuCash documentation.
package qif

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/clearing"
	"github.com/howeyc/reconcile/source"
)

// Record is one non-investment QIF transaction.
type Record struct {
	// Header/type line, e.g. "!Type:Cash"
	Type string

	Date     string // D - Date
	Amount   string // T - Amount (U overrides when present)
	Num      string // N - Number (check/reference)
	Payee    string // P - Payee/description
	Memo     string // M - Memo
	Addr     string // A - Address (multi-line, joined with '\n')
	Cleared  string // C - Cleared status
	Category string // L - Category (or transfer/class)

	Splits []Split
}

// Split is one S/E/$ group within a record.
type Split struct {
	Category string // S
	Memo     string // E
	Amount   string // $
}

// Decoder reads QIF data from an input stream.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads the whole stream and returns its records.
func (d *Decoder) Decode() ([]*Record, error) {
	var (
		records     []*Record
		currentType string
	)
	for {
		line, err := d.readLine()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		if strings.HasPrefix(line, "!Type:") {
			currentType = strings.TrimSpace(line[len("!Type:"):])
			continue
		}
		// a transaction starts with its 'D' date line
		if line[0] == 'D' {
			rec, err := d.decodeRecord(currentType, line)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
}

// decodeRecord consumes field lines up to and including the '^' marker.
func (d *Decoder) decodeRecord(recType, firstLine string) (*Record, error) {
	rec := &Record{Type: recType}
	rec.assign(firstLine)
	for {
		line, err := d.readLine()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("qif: unexpected EOF inside transaction")
			}
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		if line[0] == '^' {
			return rec, nil
		}
		rec.assign(line)
	}
}

func (rec *Record) assign(line string) {
	prefix, value := line[0], line[1:]
	switch prefix {
	case 'D':
		rec.Date = value
	case 'T':
		if rec.Amount == "" {
			rec.Amount = value
		}
	case 'U':
		// higher precision amount, preferred over T
		rec.Amount = value
	case 'N':
		rec.Num = value
	case 'P':
		rec.Payee = value
	case 'M':
		if rec.Memo == "" {
			rec.Memo = value
		} else {
			rec.Memo += "\n" + value
		}
	case 'A':
		if rec.Addr == "" {
			rec.Addr = value
		} else {
			rec.Addr += "\n" + value
		}
	case 'C':
		rec.Cleared = value
	case 'L':
		rec.Category = value
	case 'S':
		rec.Splits = append(rec.Splits, Split{Category: value})
	case 'E':
		if n := len(rec.Splits); n > 0 {
			rec.Splits[n-1].Memo = value
		}
	case '$':
		if n := len(rec.Splits); n > 0 {
			rec.Splits[n-1].Amount = value
		}
	}
}

// readLine reads one logical line without the trailing '\n' or '\r\n'.
func (d *Decoder) readLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if err == io.EOF && len(line) == 0 {
		return "", io.EOF
	}
	return line, err
}

// ParseQIF parses all records from a QIF stream.
func ParseQIF(r io.Reader) ([]*Record, error) {
	return NewDecoder(r).Decode()
}

// Source derives pending entries from a QIF statement file.
type Source struct {
	// SourceName identifies the source in pending entries.
	SourceName string
	// File is the statement path.
	File string
	// Account is the journal account the statement describes.
	Account string
	// Currency labels amounts; QIF carries none.
	Currency string
	// DateFormat is the record date layout, mm/dd/yyyy by default.
	DateFormat string
	// Negate flips amounts for statements quoted from the
	// counterparty's perspective.
	Negate bool
}

// CheckNumberKey carries a record's check number; it identifies the
// record across imports.
const CheckNumberKey = "check"

func (s *Source) Name() string { return s.SourceName }

func (s *Source) IsMine(account string) bool { return account == s.Account }

func (s *Source) IdentityKeys() []string { return []string{CheckNumberKey} }

func (s *Source) Pending() ([]*source.PendingEntry, error) {
	f, err := os.Open(s.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := ParseQIF(f)
	if err != nil {
		return nil, err
	}

	layout := s.DateFormat
	if layout == "" {
		layout = "01/02/2006"
	}
	var entries []*source.PendingEntry
	for _, rec := range records {
		date, err := time.Parse(layout, rec.Date)
		if err != nil {
			return nil, fmt.Errorf("qif: %w", err)
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(rec.Amount, ",", ""))
		if err != nil {
			return nil, fmt.Errorf("qif: amount %q: %w", rec.Amount, err)
		}
		if s.Negate {
			amount = amount.Neg()
		}

		desc := rec.Payee
		if desc == "" {
			desc = rec.Memo
		}
		mine := &reconcile.Posting{
			Account: s.Account,
			Amount:  reconcile.Amount{Number: amount, Currency: s.Currency},
		}
		mine.Meta.SetString(clearing.SourceDescKey, desc)
		if rec.Num != "" {
			mine.Meta.SetString(CheckNumberKey, rec.Num)
		}

		txn := &reconcile.Transaction{
			Date:      date,
			Flag:      "*",
			Narration: desc,
			Postings:  []*reconcile.Posting{mine},
		}
		txn.Postings = append(txn.Postings, s.counterLegs(rec, amount)...)
		entries = append(entries, source.NewPendingEntry(s.SourceName, []reconcile.Directive{txn}))
	}
	return entries, nil
}

// counterLegs builds the unknown-side postings: one per split when the
// record carries splits, a single placeholder leg otherwise.
func (s *Source) counterLegs(rec *Record, amount decimal.Decimal) []*reconcile.Posting {
	var legs []*reconcile.Posting
	for _, sp := range rec.Splits {
		n, err := decimal.NewFromString(strings.ReplaceAll(sp.Amount, ",", ""))
		if err != nil {
			continue
		}
		if s.Negate {
			n = n.Neg()
		}
		legs = append(legs, &reconcile.Posting{
			Account: reconcile.FIXMEAccount,
			Amount:  reconcile.Amount{Number: n.Neg(), Currency: s.Currency},
		})
	}
	if len(legs) == 0 {
		legs = append(legs, &reconcile.Posting{
			Account: reconcile.FIXMEAccount,
			Amount:  reconcile.Amount{Number: amount.Neg(), Currency: s.Currency},
		})
	}
	return legs
}
