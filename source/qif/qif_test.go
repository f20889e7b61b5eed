package qif

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/clearing"
)

const sample = `!Type:Bank
D08/14/2024
T-15.00
PVOIP MONTHLY
MVOIPMS15
^
D08/27/2024
U80.00
N1042
PBank Deposit to PP Account
^
D08/30/2024
T-42.50
PCOSTCO WHOLESALE
SGroceries
EFood
$-30.00
SHousehold
$-12.50
^
`

func TestParseQIF(t *testing.T) {
	records, err := ParseQIF(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	first := records[0]
	if first.Type != "Bank" || first.Date != "08/14/2024" || first.Amount != "-15.00" {
		t.Errorf("first record = %+v", first)
	}
	if first.Payee != "VOIP MONTHLY" || first.Memo != "VOIPMS15" {
		t.Errorf("first record text = %q %q", first.Payee, first.Memo)
	}

	// U overrides T, N is captured
	second := records[1]
	if second.Amount != "80.00" || second.Num != "1042" {
		t.Errorf("second record = %+v", second)
	}

	third := records[2]
	if len(third.Splits) != 2 {
		t.Fatalf("got %d splits, want 2", len(third.Splits))
	}
	if third.Splits[0] != (Split{Category: "Groceries", Memo: "Food", Amount: "-30.00"}) {
		t.Errorf("first split = %+v", third.Splits[0])
	}
}

func TestPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.qif")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	src := &Source{
		SourceName: "bank",
		File:       path,
		Account:    "Assets:Checking",
		Currency:   "USD",
	}

	entries, err := src.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	txn := entries[0].Transactions()[0]
	if got := txn.Date.Format(reconcile.DateLayout); got != "2024-08-14" {
		t.Errorf("date = %s, want 2024-08-14", got)
	}
	mine := txn.Postings[0]
	if mine.Account != "Assets:Checking" || mine.Amount.String() != "-15 USD" {
		t.Errorf("account leg = %s %s", mine.Account, mine.Amount)
	}
	if desc, _ := mine.Meta.GetString(clearing.SourceDescKey); desc != "VOIP MONTHLY" {
		t.Errorf("source_desc = %q", desc)
	}
	counter := txn.Postings[1]
	if counter.Account != reconcile.FIXMEAccount || counter.Amount.String() != "15 USD" {
		t.Errorf("counter leg = %s %s", counter.Account, counter.Amount)
	}
	if err := txn.CheckBalance(reconcile.DefaultTolerance); err != nil {
		t.Errorf("entry does not balance: %v", err)
	}

	// split record expands to one placeholder leg per split
	split := entries[2].Transactions()[0]
	if len(split.Postings) != 3 {
		t.Fatalf("split entry has %d postings, want 3", len(split.Postings))
	}
	if split.Postings[1].Amount.String() != "30 USD" || split.Postings[2].Amount.String() != "12.5 USD" {
		t.Errorf("split legs = %s, %s", split.Postings[1].Amount, split.Postings[2].Amount)
	}
	if err := split.CheckBalance(reconcile.DefaultTolerance); err != nil {
		t.Errorf("split entry does not balance: %v", err)
	}
}

func TestPendingCheckNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.qif")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	src := &Source{SourceName: "bank", File: path, Account: "Assets:Checking", Currency: "USD"}

	entries, err := src.Pending()
	if err != nil {
		t.Fatal(err)
	}
	deposit := entries[1].Transactions()[0]
	if num, _ := deposit.Postings[0].Meta.GetString("check"); num != "1042" {
		t.Errorf("check meta = %q", num)
	}
	if deposit.Postings[0].Amount.String() != "80 USD" {
		t.Errorf("deposit amount = %s", deposit.Postings[0].Amount)
	}
}
