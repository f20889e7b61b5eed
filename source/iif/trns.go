package iif

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/clearing"
	"github.com/howeyc/reconcile/source"
)

// Transaction is one TRNS record group: the lead row plus its splits.
type Transaction struct {
	Tr     Trns  `type:"TRNS"`
	Splits []Spl `type:"SPL"`
}

type Trns struct {
	TransactionType string          `iif:"TRNSTYPE"`
	Date            time.Time       `iif:"DATE"`
	Account         string          `iif:"ACCNT"`
	Name            string          `iif:"NAME"`
	Class           string          `iif:"CLASS"`
	Amount          decimal.Decimal `iif:"AMOUNT"`
	Memo            string          `iif:"MEMO"`
}

type Spl struct {
	TransactionType string          `iif:"TRNSTYPE"`
	Date            time.Time       `iif:"DATE"`
	Account         string          `iif:"ACCNT"`
	Name            string          `iif:"NAME"`
	Class           string          `iif:"CLASS"`
	Amount          decimal.Decimal `iif:"AMOUNT"`
	Memo            string          `iif:"MEMO"`
}

// Transactions deserializes every TRNS group of a block.
func Transactions(b Block) ([]Transaction, error) {
	var out []Transaction
	for _, group := range b.Records {
		if len(group) == 0 {
			continue
		}
		var tx Transaction
		for _, r := range group {
			if err := applyRecord(&tx, r); err != nil {
				return nil, err
			}
		}
		out = append(out, tx)
	}
	return out, nil
}

// applyRecord routes a record into the struct field whose type tag matches
// the record type, appending for slice fields.
func applyRecord(tx any, r Record) error {
	txVal := reflect.ValueOf(tx).Elem()
	txType := txVal.Type()

	for i := 0; i < txType.NumField(); i++ {
		field := txType.Field(i)
		tag := field.Tag.Get("type")
		if tag == "" || string(r.Type) != tag {
			continue
		}

		fv := txVal.Field(i)
		if fv.Kind() == reflect.Slice {
			elem := reflect.New(fv.Type().Elem()).Elem()
			if err := populateFromRecord(elem, r); err != nil {
				return err
			}
			fv.Set(reflect.Append(fv, elem))
			return nil
		}
		if fv.Kind() == reflect.Struct {
			return populateFromRecord(fv, r)
		}
	}
	return nil
}

func populateFromRecord(v reflect.Value, r Record) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("iif")
		if tag == "" {
			continue
		}
		raw, ok := r.Fields[tag]
		if !ok {
			continue
		}
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if err := setFromString(fv, raw); err != nil {
			return fmt.Errorf("iif: field %s: %w", sf.Name, err)
		}
	}
	return nil
}

func setFromString(fv reflect.Value, s string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(s)
		return nil
	case reflect.Struct:
		switch fv.Type() {
		case reflect.TypeOf(time.Time{}):
			if s == "" {
				return nil
			}
			// QuickBooks writes dates as M/D/YYYY
			t, err := time.Parse("1/2/2006", s)
			if err != nil {
				return err
			}
			fv.Set(reflect.ValueOf(t))
			return nil
		case reflect.TypeOf(decimal.Decimal{}):
			if s == "" {
				fv.Set(reflect.ValueOf(decimal.Zero))
				return nil
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return err
			}
			fv.Set(reflect.ValueOf(d))
			return nil
		default:
			return fmt.Errorf("unsupported struct type %s", fv.Type())
		}
	default:
		return fmt.Errorf("unsupported kind %s", fv.Kind())
	}
}

// Source derives pending entries from a QuickBooks IIF export.
type Source struct {
	// SourceName identifies the source in pending entries.
	SourceName string
	// File is the export path.
	File string
	// Account is the journal account the export's TRNS rows describe.
	Account string
	// Currency labels amounts; IIF carries none.
	Currency string
}

func (s *Source) Name() string { return s.SourceName }

func (s *Source) IsMine(account string) bool { return account == s.Account }

// IdentityKeys is empty: IIF exports carry no per-record identifier.
func (s *Source) IdentityKeys() []string { return nil }

func (s *Source) Pending() ([]*source.PendingEntry, error) {
	f, err := os.Open(s.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	file, err := NewDecoder(f).Decode()
	if err != nil {
		return nil, err
	}

	var entries []*source.PendingEntry
	for _, block := range file.Blocks {
		txs, err := Transactions(block)
		if err != nil {
			return nil, err
		}
		for _, tx := range txs {
			entries = append(entries, s.entry(tx))
		}
	}
	return entries, nil
}

func (s *Source) entry(tx Transaction) *source.PendingEntry {
	desc := tx.Tr.Name
	if desc == "" {
		desc = tx.Tr.Memo
	}
	mine := &reconcile.Posting{
		Account: s.Account,
		Amount:  reconcile.Amount{Number: tx.Tr.Amount, Currency: s.Currency},
	}
	mine.Meta.SetString(clearing.SourceDescKey, desc)
	if tx.Tr.TransactionType != "" {
		mine.Meta.SetString("trnstype", tx.Tr.TransactionType)
	}

	txn := &reconcile.Transaction{
		Date:      tx.Tr.Date,
		Flag:      "*",
		Narration: desc,
		Postings:  []*reconcile.Posting{mine},
	}
	for _, sp := range tx.Splits {
		account := sp.Account
		if account == "" {
			account = reconcile.FIXMEAccount
		}
		leg := &reconcile.Posting{
			Account: account,
			Amount:  reconcile.Amount{Number: sp.Amount, Currency: s.Currency},
		}
		if sp.Memo != "" {
			leg.Meta.SetString("note", sp.Memo)
		}
		txn.Postings = append(txn.Postings, leg)
	}
	if len(tx.Splits) == 0 {
		txn.Postings = append(txn.Postings, &reconcile.Posting{
			Account: reconcile.FIXMEAccount,
			Amount:  reconcile.Amount{Number: tx.Tr.Amount.Neg(), Currency: s.Currency},
		})
	}
	return source.NewPendingEntry(s.SourceName, []reconcile.Directive{txn})
}
