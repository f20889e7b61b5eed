package clearing

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/howeyc/reconcile"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(reconcile.DateLayout, s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func parseAll(t *testing.T, text string) ([]*reconcile.Transaction, map[string]*reconcile.Open) {
	t.Helper()
	directives, diags := reconcile.Parse(strings.NewReader(text))
	if len(diags) != 0 {
		t.Fatalf("parse diagnostics: %v", diags)
	}
	var txns []*reconcile.Transaction
	opens := make(map[string]*reconcile.Open)
	for _, d := range directives {
		switch v := d.(type) {
		case *reconcile.Transaction:
			txns = append(txns, v)
		case *reconcile.Open:
			opens[v.Account] = v
		}
	}
	return txns, opens
}

func TestCleared(t *testing.T) {
	txns, opens := parseAll(t, `2016-01-01 open Assets:Reconciled
  cleared: TRUE
2016-01-01 open Assets:Migrated
  cleared_before: 2016-06-01

2016-08-10 * "coffee"
  Liabilities:Credit-Card  -2.45 USD
    source_desc: "STARBUCKS"
  Expenses:Coffee  2.45 USD

2016-05-01 * "old"
  Assets:Migrated:Checking  -1.00 USD
  Assets:Reconciled:Savings  1.00 USD

2016-07-01 * "new"
  Assets:Migrated:Checking  -1.00 USD
  Expenses:FIXME  1.00 USD

2016-08-12 * "flagged"
  Liabilities:Credit-Card  -9.00 USD
    cleared: TRUE
  Expenses:Coffee  9.00 USD
`)
	ix := New(DefaultWindow, decimal.Zero)
	ix.SetOpens(opens)

	coffee, old, recent, flagged := txns[0], txns[1], txns[2], txns[3]
	tests := []struct {
		name    string
		txn     *reconcile.Transaction
		posting *reconcile.Posting
		want    bool
	}{
		{"source metadata clears", coffee, coffee.Postings[0], true},
		{"plain posting not cleared", coffee, coffee.Postings[1], false},
		{"cleared subtree inherited", old, old.Postings[1], true},
		{"cleared_before earlier date", old, old.Postings[0], true},
		{"cleared_before later date", recent, recent.Postings[0], false},
		{"posting cleared flag", flagged, flagged.Postings[0], true},
		{"flag does not spread to siblings", flagged, flagged.Postings[1], false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ix.Cleared(tc.txn, tc.posting); got != tc.want {
				t.Errorf("Cleared = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClearedFlagExcludedFromReport(t *testing.T) {
	txns, _ := parseAll(t, `2016-08-12 * "flagged"
  Liabilities:Credit-Card  -9.00 USD
    cleared: TRUE
  Expenses:Coffee  9.00 USD
`)
	ix := New(DefaultWindow, decimal.Zero)
	ix.Add(txns[0])

	if got := ix.Uncleared("Liabilities:Credit-Card"); len(got) != 0 {
		t.Errorf("flagged posting in uncleared report: %d", len(got))
	}
	if got := ix.LookupUncleared("Liabilities:Credit-Card", mustDate(t, "2016-08-12"), reconcile.NewAmount("-9.00", "USD")); len(got) != 0 {
		t.Errorf("flagged posting offered for matching: %d", len(got))
	}
}

func TestLookupUnclearedWindow(t *testing.T) {
	txns, _ := parseAll(t, `2016-08-05 * "in window"
  Liabilities:Credit-Card  -2.45 USD
  Expenses:Coffee  2.45 USD

2016-08-16 * "out of window"
  Liabilities:Credit-Card  -2.45 USD
  Expenses:Coffee  2.45 USD

2016-08-10 * "wrong amount"
  Liabilities:Credit-Card  -2.46 USD
  Expenses:Coffee  2.46 USD
`)
	ix := New(DefaultWindow, decimal.Zero)
	for _, txn := range txns {
		ix.Add(txn)
	}

	amount := reconcile.NewAmount("-2.45", "USD")

	// 2016-08-10 is five days from the first posting and six from the
	// second: only the first matches
	got := ix.LookupUncleared("Liabilities:Credit-Card", mustDate(t, "2016-08-10"), amount)
	if len(got) != 1 {
		t.Fatalf("matches: got %d, want 1", len(got))
	}
	if got[0].Txn.Narration != "in window" {
		t.Errorf("matched %q", got[0].Txn.Narration)
	}

	// one day later the first is six days away and the second five
	got = ix.LookupUncleared("Liabilities:Credit-Card", mustDate(t, "2016-08-11"), amount)
	if len(got) != 1 || got[0].Txn.Narration != "out of window" {
		t.Errorf("shifted lookup: got %v", got)
	}
}

func TestLookupTolerance(t *testing.T) {
	txns, _ := parseAll(t, `2016-08-10 * "close amount"
  Liabilities:Credit-Card  -2.46 USD
  Expenses:Coffee  2.46 USD
`)
	when := mustDate(t, "2016-08-10")
	want := reconcile.NewAmount("-2.45", "USD")

	exact := New(DefaultWindow, decimal.Zero)
	exact.Add(txns[0])
	if got := exact.LookupUncleared("Liabilities:Credit-Card", when, want); len(got) != 0 {
		t.Errorf("exact index: got %d matches, want 0", len(got))
	}

	fuzzy := New(DefaultWindow, decimal.RequireFromString("0.01"))
	fuzzy.Add(txns[0])
	if got := fuzzy.LookupUncleared("Liabilities:Credit-Card", when, want); len(got) != 1 {
		t.Errorf("fuzzy index: got %d matches, want 1", len(got))
	}
}

func TestClearedPostingsNotIndexed(t *testing.T) {
	txns, _ := parseAll(t, `2016-08-10 * "coffee"
  Liabilities:Credit-Card  -2.45 USD
    source_desc: "STARBUCKS"
  Expenses:Coffee  2.45 USD
`)
	ix := New(DefaultWindow, decimal.Zero)
	ix.Add(txns[0])

	when := mustDate(t, "2016-08-10")
	if got := ix.LookupUncleared("Liabilities:Credit-Card", when, reconcile.NewAmount("-2.45", "USD")); len(got) != 0 {
		t.Errorf("cleared posting matched: %d", len(got))
	}
	if got := ix.LookupUncleared("Expenses:Coffee", when, reconcile.NewAmount("2.45", "USD")); len(got) != 1 {
		t.Errorf("uncleared leg not indexed: %d", len(got))
	}
}

func TestPostingDateUsedForLookup(t *testing.T) {
	txns, _ := parseAll(t, `2016-08-01 * "late settle"
  Liabilities:Credit-Card  -2.45 USD
    date: 2016-08-20
  Expenses:Coffee  2.45 USD
`)
	ix := New(DefaultWindow, decimal.Zero)
	ix.Add(txns[0])

	if got := ix.LookupUncleared("Liabilities:Credit-Card", mustDate(t, "2016-08-01"), reconcile.NewAmount("-2.45", "USD")); len(got) != 0 {
		t.Errorf("transaction date matched despite override: %d", len(got))
	}
	if got := ix.LookupUncleared("Liabilities:Credit-Card", mustDate(t, "2016-08-18"), reconcile.NewAmount("-2.45", "USD")); len(got) != 1 {
		t.Errorf("posting date not used: %d", len(got))
	}
}

func TestRemoveAndUncleared(t *testing.T) {
	txns, _ := parseAll(t, `2016-08-10 * "a"
  Liabilities:Credit-Card  -2.45 USD
  Expenses:FIXME  2.45 USD

2016-08-01 * "b"
  Assets:Checking  -5.00 USD
  Expenses:FIXME  5.00 USD
`)
	ix := New(DefaultWindow, decimal.Zero)
	for _, txn := range txns {
		ix.Add(txn)
	}

	all := ix.Uncleared("")
	if len(all) != 4 {
		t.Fatalf("uncleared: got %d, want 4", len(all))
	}
	if !all[0].Date().Before(all[len(all)-1].Date()) {
		t.Error("uncleared not date ordered")
	}
	if got := ix.Uncleared("Expenses"); len(got) != 2 {
		t.Errorf("prefix filter: got %d, want 2", len(got))
	}

	ix.Remove(txns[0])
	if got := ix.Uncleared(""); len(got) != 2 {
		t.Errorf("after remove: got %d, want 2", len(got))
	}
}

func TestHasIdentity(t *testing.T) {
	txns, _ := parseAll(t, `2016-08-10 * "a"
  Liabilities:Credit-Card  -2.45 USD
    source_desc: "STARBUCKS"
    fitid: "20160810-001"
  Expenses:Coffee  2.45 USD
`)
	ix := New(DefaultWindow, decimal.Zero)
	ix.Add(txns[0])

	if !ix.HasIdentity("fitid", "20160810-001") {
		t.Error("indexed identity not found")
	}
	if !ix.HasIdentity("source_desc", "STARBUCKS") {
		t.Error("source_desc identity not found")
	}
	if ix.HasIdentity("fitid", "20160810-002") {
		t.Error("unknown identity reported present")
	}

	ix.Remove(txns[0])
	if ix.HasIdentity("fitid", "20160810-001") {
		t.Error("identity survived removal")
	}
}
