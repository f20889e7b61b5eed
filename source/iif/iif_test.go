package iif

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/clearing"
)

const sample = "!TRNS\tTRNSTYPE\tDATE\tACCNT\tNAME\tAMOUNT\tMEMO\n" +
	"!SPL\tTRNSTYPE\tDATE\tACCNT\tNAME\tAMOUNT\tMEMO\n" +
	"!ENDTRNS\n" +
	"TRNS\tDEPOSIT\t7/1/1998\tAssets:Checking\tCustomer\t10000\tinvoice 12\n" +
	"SPL\tDEPOSIT\t7/1/1998\tIncome:Sales\tCustomer\t-10000\t\n" +
	"ENDTRNS\n" +
	"TRNS\tCHECK\t7/3/1998\tAssets:Checking\tLandlord\t-1500\t\n" +
	"SPL\tCHECK\t7/3/1998\t\tLandlord\t1000\trent\n" +
	"SPL\tCHECK\t7/3/1998\t\tLandlord\t500\tparking\n" +
	"ENDTRNS\n"

func TestDecode(t *testing.T) {
	f, err := NewDecoder(strings.NewReader(sample)).Decode()
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(f.Blocks))
	}
	b := f.Blocks[0]
	if len(b.Headers) != 3 {
		t.Fatalf("got %d headers, want 3", len(b.Headers))
	}
	if b.Headers[0].Type != RecordType("TRNS") || len(b.Headers[0].Fields) != 6 {
		t.Errorf("first header = %+v", b.Headers[0])
	}
	if len(b.Records) != 2 {
		t.Fatalf("got %d record groups, want 2", len(b.Records))
	}
	if got := b.Records[0][0].Fields["ACCNT"]; got != "Assets:Checking" {
		t.Errorf("TRNS ACCNT = %q", got)
	}
}

func TestTransactions(t *testing.T) {
	f, err := NewDecoder(strings.NewReader(sample)).Decode()
	if err != nil {
		t.Fatal(err)
	}
	txs, err := Transactions(f.Blocks[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}

	deposit := txs[0]
	if deposit.Tr.TransactionType != "DEPOSIT" || deposit.Tr.Account != "Assets:Checking" {
		t.Errorf("deposit lead row = %+v", deposit.Tr)
	}
	if !deposit.Tr.Amount.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("deposit amount = %s", deposit.Tr.Amount)
	}
	if len(deposit.Splits) != 1 || deposit.Splits[0].Account != "Income:Sales" {
		t.Errorf("deposit splits = %+v", deposit.Splits)
	}

	check := txs[1]
	if len(check.Splits) != 2 {
		t.Fatalf("check has %d splits, want 2", len(check.Splits))
	}
	if check.Splits[0].Memo != "rent" || !check.Splits[1].Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("check splits = %+v", check.Splits)
	}
}

func TestPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.iif")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	src := &Source{
		SourceName: "quickbooks",
		File:       path,
		Account:    "Assets:Checking",
		Currency:   "USD",
	}

	entries, err := src.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	deposit := entries[0].Transactions()[0]
	if got := deposit.Date.Format(reconcile.DateLayout); got != "1998-07-01" {
		t.Errorf("date = %s", got)
	}
	mine := deposit.Postings[0]
	if desc, _ := mine.Meta.GetString(clearing.SourceDescKey); desc != "Customer" {
		t.Errorf("source_desc = %q", desc)
	}
	if mine.Amount.String() != "10000 USD" {
		t.Errorf("lead amount = %s", mine.Amount)
	}
	if deposit.Postings[1].Account != "Income:Sales" {
		t.Errorf("split account = %q", deposit.Postings[1].Account)
	}
	if err := deposit.CheckBalance(reconcile.DefaultTolerance); err != nil {
		t.Errorf("deposit does not balance: %v", err)
	}

	// splits with no account become placeholder legs
	check := entries[1].Transactions()[0]
	if check.Postings[1].Account != reconcile.FIXMEAccount || check.Postings[2].Account != reconcile.FIXMEAccount {
		t.Errorf("blank split accounts = %q %q", check.Postings[1].Account, check.Postings[2].Account)
	}
	if err := check.CheckBalance(reconcile.DefaultTolerance); err != nil {
		t.Errorf("check does not balance: %v", err)
	}
}
