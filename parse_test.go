package reconcile

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func mustDate(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func newMeta(kv ...string) Meta {
	var m Meta
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

type testCase struct {
	name       string
	data       string
	directives []Directive
	diags      int
}

var testCases = []testCase{
	{
		"simple transaction",
		`2016-08-10 * "STARBUCKS" "coffee" #food
  Liabilities:Credit-Card  -2.45 USD
  Expenses:Coffee  2.45 USD
`,
		[]Directive{
			&Transaction{
				Date:      mustDate("2016-08-10"),
				Flag:      "*",
				Payee:     "STARBUCKS",
				Narration: "coffee",
				Tags:      []string{"food"},
				Postings: []*Posting{
					{Account: "Liabilities:Credit-Card", Amount: NewAmount("-2.45", "USD")},
					{Account: "Expenses:Coffee", Amount: NewAmount("2.45", "USD")},
				},
				Pos: Position{Line: 1},
			},
		},
		0,
	},
	{
		"narration only",
		`2016-08-10 txn "coffee"
  Liabilities:Credit-Card  -2.45 USD
  Expenses:Coffee  2.45 USD
`,
		[]Directive{
			&Transaction{
				Date:      mustDate("2016-08-10"),
				Flag:      "*",
				Narration: "coffee",
				Postings: []*Posting{
					{Account: "Liabilities:Credit-Card", Amount: NewAmount("-2.45", "USD")},
					{Account: "Expenses:Coffee", Amount: NewAmount("2.45", "USD")},
				},
				Pos: Position{Line: 1},
			},
		},
		0,
	},
	{
		"elided posting takes residual",
		`2016-08-01 * "rent"
  Assets:Checking  -500.00 USD
  Expenses:Rent
`,
		[]Directive{
			&Transaction{
				Date:      mustDate("2016-08-01"),
				Flag:      "*",
				Narration: "rent",
				Postings: []*Posting{
					{Account: "Assets:Checking", Amount: NewAmount("-500.00", "USD")},
					{Account: "Expenses:Rent", Amount: NewAmount("500.00", "USD")},
				},
				Pos: Position{Line: 1},
			},
		},
		0,
	},
	{
		"transaction and posting metadata",
		`2016-08-10 * "m"
  note: "hello"
  Assets:Checking  -1.00 USD
    date: 2016-08-12
  Expenses:FIXME  1.00 USD
`,
		[]Directive{
			&Transaction{
				Date:      mustDate("2016-08-10"),
				Flag:      "*",
				Narration: "m",
				Meta:      newMeta("note", `"hello"`),
				Postings: []*Posting{
					{
						Account: "Assets:Checking",
						Amount:  NewAmount("-1.00", "USD"),
						Meta:    newMeta("date", "2016-08-12"),
					},
					{Account: "Expenses:FIXME", Amount: NewAmount("1.00", "USD")},
				},
				Pos: Position{Line: 1},
			},
		},
		0,
	},
	{
		"non-transaction directives",
		`2016-01-01 open Assets:Checking USD
  cleared: TRUE
2016-02-01 balance Assets:Checking 100.00 USD
2016-03-01 price VEEX 1.10 USD
2016-04-01 close Assets:Savings
`,
		[]Directive{
			&Open{
				Date:       mustDate("2016-01-01"),
				Account:    "Assets:Checking",
				Currencies: []string{"USD"},
				Meta:       newMeta("cleared", "TRUE"),
				Pos:        Position{Line: 1},
			},
			&Balance{
				Date:    mustDate("2016-02-01"),
				Account: "Assets:Checking",
				Amount:  NewAmount("100.00", "USD"),
				Pos:     Position{Line: 3},
			},
			&Price{
				Date:     mustDate("2016-03-01"),
				Currency: "VEEX",
				Amount:   NewAmount("1.10", "USD"),
				Pos:      Position{Line: 4},
			},
			&Close{
				Date:    mustDate("2016-04-01"),
				Account: "Assets:Savings",
				Pos:     Position{Line: 5},
			},
		},
		0,
	},
	{
		"held at cost",
		`2016-08-10 * "buy"
  Assets:Invest  2 VEEX {100.00 USD}
  Assets:Checking  -200.00 USD
`,
		[]Directive{
			&Transaction{
				Date:      mustDate("2016-08-10"),
				Flag:      "*",
				Narration: "buy",
				Postings: []*Posting{
					{
						Account: "Assets:Invest",
						Amount:  NewAmount("2", "VEEX"),
						Cost:    &Cost{Number: NewAmount("100.00", "").Number, Currency: "USD"},
					},
					{Account: "Assets:Checking", Amount: NewAmount("-200.00", "USD")},
				},
				Pos: Position{Line: 1},
			},
		},
		0,
	},
	{
		"priced conversion",
		`2016-08-10 * "fx"
  Assets:EUR  100.00 EUR @ 1.10 USD
  Assets:USD  -110.00 USD
`,
		[]Directive{
			&Transaction{
				Date:      mustDate("2016-08-10"),
				Flag:      "*",
				Narration: "fx",
				Postings: []*Posting{
					{
						Account: "Assets:EUR",
						Amount:  NewAmount("100.00", "EUR"),
						Price:   &Amount{Number: NewAmount("1.10", "").Number, Currency: "USD"},
					},
					{Account: "Assets:USD", Amount: NewAmount("-110.00", "USD")},
				},
				Pos: Position{Line: 1},
			},
		},
		0,
	},
	{
		"comments and options skipped",
		`; journal comment
option "title" "test"

2016-08-10 * "lunch" ; inline
  Assets:Checking  -9.00 USD ; leg note
  Expenses:Food  9.00 USD
`,
		[]Directive{
			&Transaction{
				Date:      mustDate("2016-08-10"),
				Flag:      "*",
				Narration: "lunch",
				Postings: []*Posting{
					{Account: "Assets:Checking", Amount: NewAmount("-9.00", "USD")},
					{Account: "Expenses:Food", Amount: NewAmount("9.00", "USD")},
				},
				Pos: Position{Line: 4},
			},
		},
		0,
	},
	{
		"unbalanced transaction reported and skipped",
		`2016-08-10 * "bad"
  Assets:Checking  -9.00 USD
  Expenses:Food  8.00 USD
`,
		nil,
		1,
	},
	{
		"single posting rejected",
		`2016-08-10 * "bad"
  Assets:Checking  -9.00 USD
`,
		nil,
		1,
	},
}

func TestParse(t *testing.T) {
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, diags := Parse(strings.NewReader(tc.data))
			if len(diags) != tc.diags {
				t.Fatalf("diagnostics: got %v, want %d", diags, tc.diags)
			}
			gotJSON, _ := json.MarshalIndent(got, "", "  ")
			wantJSON, _ := json.MarshalIndent(tc.directives, "", "  ")
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("parsed directives differ\ngot:  %s\nwant: %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, tc := range testCases {
		if tc.diags > 0 {
			continue
		}
		t.Run(tc.name, func(t *testing.T) {
			var sb strings.Builder
			for _, d := range tc.directives {
				WriteDirective(&sb, d)
				sb.WriteByte('\n')
			}
			got, diags := Parse(strings.NewReader(sb.String()))
			if len(diags) != 0 {
				t.Fatalf("reparse diagnostics: %v", diags)
			}
			if len(got) != len(tc.directives) {
				t.Fatalf("reparse count: got %d, want %d", len(got), len(tc.directives))
			}
			for i := range got {
				// positions move when formatting, compare the rest
				clearPos(got[i])
				want := tc.directives[i]
				savedPos := want.Position()
				clearPos(want)
				gotJSON, _ := json.Marshal(got[i])
				wantJSON, _ := json.Marshal(want)
				setPos(want, savedPos)
				if string(gotJSON) != string(wantJSON) {
					t.Errorf("round trip differs\ngot:  %s\nwant: %s", gotJSON, wantJSON)
				}
			}
		})
	}
}

func clearPos(d Directive) { setPos(d, Position{}) }

func setPos(d Directive, pos Position) {
	switch v := d.(type) {
	case *Transaction:
		v.Pos = pos
	case *Open:
		v.Pos = pos
	case *Close:
		v.Pos = pos
	case *Balance:
		v.Pos = pos
	case *Price:
		v.Pos = pos
	}
}

func TestPostingDateOverride(t *testing.T) {
	txn := &Transaction{Date: mustDate("2016-08-10")}
	p := &Posting{Account: "Assets:Checking"}
	if got := p.Date(txn); !got.Equal(mustDate("2016-08-10")) {
		t.Errorf("default date: got %s", got.Format(DateLayout))
	}
	p.Meta.SetDate(KeyDate, mustDate("2016-08-12"))
	if got := p.Date(txn); !got.Equal(mustDate("2016-08-12")) {
		t.Errorf("override date: got %s", got.Format(DateLayout))
	}
}

func TestUnknownAccounts(t *testing.T) {
	cases := []struct {
		account string
		unknown bool
	}{
		{"Expenses:FIXME", true},
		{"Expenses:FIXME:A", true},
		{"Expenses:FIXMEX", false},
		{"Expenses:Food", false},
	}
	for _, c := range cases {
		if got := IsUnknownAccount(c.account); got != c.unknown {
			t.Errorf("IsUnknownAccount(%q) = %v, want %v", c.account, got, c.unknown)
		}
	}

	if !AccountsMergeable("Expenses:Food", "Expenses:FIXME") {
		t.Error("known/unknown should be mergeable")
	}
	if !AccountsMergeable("Expenses:Food", "Expenses:Food") {
		t.Error("equal accounts should be mergeable")
	}
	if AccountsMergeable("Expenses:Food", "Expenses:Rent") {
		t.Error("distinct known accounts should not be mergeable")
	}
}
