// Package predict supplies default account names for postings the matcher
// left unknown, using a swappable classifier trained on the journal's
// history plus optional user-defined rules.
package predict

import (
	"strings"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/clearing"
)

// Features describe one unknown posting for classification.
type Features struct {
	// SourceAccount is the sibling account the external record came in
	// on (the bank or card account).
	SourceAccount string
	// Description is the external record's description text.
	Description string
	// Negative is the sign of the source posting's amount.
	Negative bool
	Currency string
}

// Example is a labeled training observation.
type Example struct {
	Features Features
	Account  string
}

// Tokens flattens the features into the classifier's document: normalized
// description words plus categorical markers.
func (f Features) Tokens() []string {
	tokens := splitWords(f.Description)
	if f.SourceAccount != "" {
		tokens = append(tokens, "account="+f.SourceAccount)
	}
	if f.Currency != "" {
		tokens = append(tokens, "currency="+f.Currency)
	}
	if f.Negative {
		tokens = append(tokens, "sign=negative")
	} else {
		tokens = append(tokens, "sign=positive")
	}
	return tokens
}

// Key is a stable cache key for the feature combination.
func (f Features) Key() string {
	return strings.Join(f.Tokens(), "\x00")
}

func splitWords(s string) []string {
	var words []string
	var cur strings.Builder
	for _, r := range strings.ToLower(s) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return words
}

// TrainingExamples extracts labeled observations from journal
// transactions: each concrete posting sitting alongside a source-account
// posting is labeled with that account, featured by the source posting's
// description, sign and currency. Placeholder accounts are never labels.
func TrainingExamples(txns []*reconcile.Transaction, isSourceAccount func(string) bool) []Example {
	var examples []Example
	for _, txn := range txns {
		for _, src := range txn.Postings {
			if !isSourceAccount(src.Account) {
				continue
			}
			desc, ok := src.Meta.GetString(clearing.SourceDescKey)
			if !ok {
				desc = txn.Narration
			}
			feats := Features{
				SourceAccount: src.Account,
				Description:   desc,
				Negative:      src.Amount.Number.IsNegative(),
				Currency:      src.Amount.Currency,
			}
			for _, p := range txn.Postings {
				if p == src || isSourceAccount(p.Account) || reconcile.IsUnknownAccount(p.Account) {
					continue
				}
				examples = append(examples, Example{Features: feats, Account: p.Account})
			}
		}
	}
	return examples
}
