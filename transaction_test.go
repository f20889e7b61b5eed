package reconcile

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCheckBalance(t *testing.T) {
	tests := []struct {
		name        string
		tx          *Transaction
		wantErr     error
		wantAmounts []Amount
	}{
		{
			name: "errors on too few postings",
			tx: &Transaction{
				Postings: []*Posting{
					{Account: "Assets:Bank", Amount: NewAmount("10", "USD")},
				},
			},
			wantErr: ErrNeedAtLeastTwoPostings,
		},
		{
			name: "residual with no elided posting",
			tx: &Transaction{
				Postings: []*Posting{
					{Account: "Assets:Bank", Amount: NewAmount("10", "USD")},
					{Account: "Expenses:Food", Amount: NewAmount("-5", "USD")},
				},
			},
			wantErr: &BalanceError{Residual: NewAmount("5", "USD")},
		},
		{
			name: "more than one elided posting",
			tx: &Transaction{
				Postings: []*Posting{
					{Account: "Assets:Bank", Amount: NewAmount("10", "USD")},
					{Account: "Expenses:Food", Elided: true},
					{Account: "Equity:Opening-Balances", Elided: true},
				},
			},
			wantErr: ErrMoreThanOneElidedPosting,
		},
		{
			name: "single elided posting gets residual",
			tx: &Transaction{
				Postings: []*Posting{
					{Account: "Assets:Bank", Amount: NewAmount("-10", "USD")},
					{Account: "Expenses:Food", Elided: true},
				},
			},
			wantAmounts: []Amount{NewAmount("-10", "USD"), NewAmount("10", "USD")},
		},
		{
			name: "balanced per currency",
			tx: &Transaction{
				Postings: []*Posting{
					{Account: "Assets:Bank", Amount: NewAmount("-10.00", "USD")},
					{Account: "Expenses:Food", Amount: NewAmount("10.00", "USD")},
					{Account: "Assets:Euros", Amount: NewAmount("-5.00", "EUR")},
					{Account: "Expenses:Travel", Amount: NewAmount("5.00", "EUR")},
				},
			},
		},
		{
			name: "residual within tolerance accepted",
			tx: &Transaction{
				Postings: []*Posting{
					{Account: "Assets:Bank", Amount: NewAmount("-10.004", "USD")},
					{Account: "Expenses:Food", Amount: NewAmount("10.00", "USD")},
				},
			},
		},
		{
			name: "elided residual spanning currencies",
			tx: &Transaction{
				Postings: []*Posting{
					{Account: "Assets:Bank", Amount: NewAmount("-10.00", "USD")},
					{Account: "Assets:Euros", Amount: NewAmount("-5.00", "EUR")},
					{Account: "Expenses:FIXME", Elided: true},
				},
			},
			wantErr: ErrElidedResidualMultiCurrency,
		},
		{
			name: "cost basis balances",
			tx: &Transaction{
				Postings: []*Posting{
					{
						Account: "Assets:Invest",
						Amount:  NewAmount("2", "VEEX"),
						Cost:    &Cost{Number: decimal.RequireFromString("100.00"), Currency: "USD"},
					},
					{Account: "Assets:Bank", Amount: NewAmount("-200.00", "USD")},
				},
			},
		},
		{
			name: "total price balances",
			tx: &Transaction{
				Postings: []*Posting{
					{
						Account:      "Assets:Euros",
						Amount:       NewAmount("-100.00", "EUR"),
						Price:        &Amount{Number: decimal.RequireFromString("110.00"), Currency: "USD"},
						PriceIsTotal: true,
					},
					{Account: "Assets:Bank", Amount: NewAmount("110.00", "USD")},
				},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tx.CheckBalance(DefaultTolerance)
			var gotBal, wantBal *BalanceError
			if errors.As(err, &gotBal) && tc.wantErr != nil && errors.As(tc.wantErr, &wantBal) {
				if !gotBal.Residual.Equal(wantBal.Residual) {
					t.Fatalf("residual: got %s, want %s", gotBal.Residual, wantBal.Residual)
				}
			} else if !errors.Is(err, tc.wantErr) && (err == nil) != (tc.wantErr == nil) {
				t.Fatalf("error: got %v, want %v", err, tc.wantErr)
			}
			if tc.wantAmounts != nil {
				for i, want := range tc.wantAmounts {
					if got := tc.tx.Postings[i].Amount; !got.Equal(want) {
						t.Errorf("posting %d amount: got %s, want %s", i, got, want)
					}
					if tc.tx.Postings[i].Elided {
						t.Errorf("posting %d still elided", i)
					}
				}
			}
		})
	}
}

func TestWeight(t *testing.T) {
	tests := []struct {
		name    string
		posting *Posting
		want    Amount
		wantOK  bool
	}{
		{
			name:    "plain amount",
			posting: &Posting{Amount: NewAmount("-2.45", "USD")},
			want:    NewAmount("-2.45", "USD"),
			wantOK:  true,
		},
		{
			name:    "elided has no weight",
			posting: &Posting{Elided: true},
		},
		{
			name: "at cost",
			posting: &Posting{
				Amount: NewAmount("3", "VEEX"),
				Cost:   &Cost{Number: decimal.RequireFromString("10.00"), Currency: "USD"},
			},
			want:   NewAmount("30.00", "USD"),
			wantOK: true,
		},
		{
			name: "per unit price",
			posting: &Posting{
				Amount: NewAmount("100.00", "EUR"),
				Price:  &Amount{Number: decimal.RequireFromString("1.10"), Currency: "USD"},
			},
			want:   NewAmount("110.0000", "USD"),
			wantOK: true,
		},
		{
			name: "total price keeps sign",
			posting: &Posting{
				Amount:       NewAmount("-100.00", "EUR"),
				Price:        &Amount{Number: decimal.RequireFromString("110.00"), Currency: "USD"},
				PriceIsTotal: true,
			},
			want:   NewAmount("-110.00", "USD"),
			wantOK: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.posting.Weight()
			if ok != tc.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tc.wantOK)
			}
			if ok && !got.Equal(tc.want) {
				t.Errorf("weight: got %s, want %s", got, tc.want)
			}
		})
	}
}
