// Package candidate turns merge hypotheses into concrete candidates: fully
// specified entry sets, placeholder substitution groups for still-unknown
// accounts, and staged line-level changes against the journal.
package candidate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/clearing"
	"github.com/howeyc/reconcile/edit"
	"github.com/howeyc/reconcile/match"
	"github.com/howeyc/reconcile/predict"
	"github.com/howeyc/reconcile/source"
)

// Substitution is one unknown-account site in a candidate. Sites sharing a
// Group resolve together; changing one group never affects another.
type Substitution struct {
	// Placeholder is an opaque token stable across recomputation of the
	// same candidate.
	Placeholder string
	// Account is the name currently written into the entries: a user
	// choice, the prediction, or the placeholder sentinel.
	Account string
	Group   int
	// Original is the unknown account name the entry arrived with.
	Original string
	// Predicted is the predictor's suggestion for this group.
	Predicted string
}

// Candidate is one way of resolving a pending entry.
type Candidate struct {
	// UsedPendingIDs lists every pending entry consumed on acceptance.
	UsedPendingIDs []string
	NewEntries     []reconcile.Directive
	Substitutions  []Substitution
	Changes        *edit.ChangeSet

	// Merged is the journal transaction this candidate rewrites, nil
	// for pure insertions.
	Merged *reconcile.Transaction

	builder   *Builder
	pending   *source.PendingEntry
	hyp       match.Hypothesis
	overrides map[int]string
}

// Substitute returns the candidate rebuilt with one group resolved to a
// different account. The receiver is unchanged.
func (c *Candidate) Substitute(group int, account string) (*Candidate, error) {
	overrides := make(map[int]string, len(c.overrides)+1)
	for g, a := range c.overrides {
		overrides[g] = a
	}
	overrides[group] = account
	return c.builder.build(c.pending, c.hyp, overrides)
}

// Builder constructs candidates against one journal snapshot.
type Builder struct {
	journal   *edit.Journal
	predictor *predict.Predictor
	tolerance decimal.Decimal
	opens     map[string]*reconcile.Open
}

func NewBuilder(journal *edit.Journal, predictor *predict.Predictor, tolerance decimal.Decimal) *Builder {
	return &Builder{
		journal:   journal,
		predictor: predictor,
		tolerance: tolerance,
		opens:     journal.Opens(),
	}
}

// Build turns ranked hypotheses into candidates, preserving their order.
// Hypotheses whose merged postings fail to balance are dropped; the
// no-match hypothesis survives by construction, so the result is never
// empty.
func (b *Builder) Build(pe *source.PendingEntry, hyps []match.Hypothesis) []*Candidate {
	var out []*Candidate
	for _, hyp := range hyps {
		c, err := b.build(pe, hyp, nil)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (b *Builder) build(pe *source.PendingEntry, hyp match.Hypothesis, overrides map[int]string) (*Candidate, error) {
	c := &Candidate{
		UsedPendingIDs: []string{pe.ID},
		builder:        b,
		pending:        pe,
		hyp:            hyp,
		overrides:      overrides,
	}

	switch hyp.Kind {
	case match.NoMatch:
		for _, d := range pe.Entries {
			c.NewEntries = append(c.NewEntries, cloneDirective(d))
		}
	case match.MergeExisting:
		txns := pe.Transactions()
		if len(txns) == 0 {
			return nil, fmt.Errorf("pending entry has no transaction")
		}
		merged, err := mergeTransactions(hyp.Existing, txns[0], hyp.Pairs, b.tolerance)
		if err != nil {
			return nil, err
		}
		c.Merged = hyp.Existing
		c.NewEntries = append(c.NewEntries, merged)
		c.NewEntries = append(c.NewEntries, cloneRest(pe.Entries)...)
	case match.MergePending:
		txns := pe.Transactions()
		otherTxns := hyp.Other.Transactions()
		if len(txns) == 0 || len(otherTxns) == 0 {
			return nil, fmt.Errorf("pending entry has no transaction")
		}
		// the earlier record's descriptive fields win; pairs are kept
		// oriented with Ours on the incoming side
		base, incoming := otherTxns[0], txns[0]
		pairs := hyp.Pairs
		if !base.Date.Before(incoming.Date) {
			base, incoming = incoming, base
			pairs = flipPairs(pairs, base)
		}
		merged, err := mergeTransactions(base, incoming, pairs, b.tolerance)
		if err != nil {
			return nil, err
		}
		c.UsedPendingIDs = append(c.UsedPendingIDs, hyp.Other.ID)
		c.NewEntries = append(c.NewEntries, merged)
		c.NewEntries = append(c.NewEntries, cloneRest(pe.Entries)...)
		c.NewEntries = append(c.NewEntries, cloneRest(hyp.Other.Entries)...)
	}

	b.resolveUnknown(c)

	for _, d := range c.NewEntries {
		txn, ok := d.(*reconcile.Transaction)
		if !ok {
			continue
		}
		if err := txn.CheckBalance(b.tolerance); err != nil && hyp.Kind != match.NoMatch {
			return nil, err
		}
	}

	if err := b.stageChanges(c); err != nil {
		return nil, err
	}
	return c, nil
}

// resolveUnknown assigns group numbers and placeholders to unknown-account
// postings and writes the resolved account into the entries. Named
// placeholder accounts (Expenses:FIXME:x) share a group; bare placeholders
// each get their own.
func (b *Builder) resolveUnknown(c *Candidate) {
	named := make(map[string]int)
	groupAccount := make(map[int]string)
	nextGroup := 0

	for _, d := range c.NewEntries {
		txn, ok := d.(*reconcile.Transaction)
		if !ok {
			continue
		}
		for _, p := range txn.Postings {
			if !reconcile.IsUnknownAccount(p.Account) {
				continue
			}
			group := -1
			if p.Account != reconcile.FIXMEAccount {
				if g, seen := named[p.Account]; seen {
					group = g
				}
			}
			if group < 0 {
				group = nextGroup
				nextGroup++
				if p.Account != reconcile.FIXMEAccount {
					named[p.Account] = group
				}
			}

			resolved, seen := groupAccount[group]
			var predicted string
			if !seen {
				predicted = b.predictAccount(txn, p)
				resolved = predicted
				if o, ok := c.overrides[group]; ok {
					resolved = o
				}
				groupAccount[group] = resolved
			} else {
				for _, s := range c.Substitutions {
					if s.Group == group {
						predicted = s.Predicted
						break
					}
				}
			}

			c.Substitutions = append(c.Substitutions, Substitution{
				Placeholder: fmt.Sprintf("unknown-%.8s-%d", c.pending.ID, group),
				Account:     resolved,
				Group:       group,
				Original:    p.Account,
				Predicted:   predicted,
			})
			p.Account = resolved
		}
	}
}

func (b *Builder) predictAccount(txn *reconcile.Transaction, unknown *reconcile.Posting) string {
	if b.predictor == nil {
		return reconcile.FIXMEAccount
	}
	feats := predict.Features{
		Description: txn.Narration,
		Negative:    unknown.Amount.Number.IsNegative(),
		Currency:    unknown.Amount.Currency,
	}
	for _, p := range txn.Postings {
		if p == unknown {
			continue
		}
		if desc, ok := p.Meta.GetString(clearing.SourceDescKey); ok {
			feats.SourceAccount = p.Account
			feats.Description = desc
			feats.Negative = p.Amount.Number.IsNegative()
			feats.Currency = p.Amount.Currency
			break
		}
	}
	return b.predictor.Predict(feats)
}

// stageChanges assembles the candidate's change set: a rewrite of the
// merged journal transaction or chronological insertions of new entries,
// plus synthesized open directives for accounts the journal has not
// declared.
func (b *Builder) stageChanges(c *Candidate) error {
	stage := b.journal.NewStage()

	entries := c.NewEntries
	if c.Merged != nil {
		if err := stage.ReplaceDirective(c.Merged, entries[0]); err != nil {
			return err
		}
		entries = entries[1:]
	}
	for _, d := range entries {
		stage.AddDirective(b.journal.OutputFile, d)
	}

	for _, o := range b.missingOpens(c.NewEntries) {
		stage.AddDirective(b.journal.OutputFile, o)
	}

	c.Changes = stage.Changes()
	return nil
}

// missingOpens synthesizes open directives, dated at the earliest
// reference, for concrete accounts with no open in the journal.
func (b *Builder) missingOpens(entries []reconcile.Directive) []*reconcile.Open {
	earliest := make(map[string]*reconcile.Open)
	var order []string
	note := func(account string, d reconcile.Directive) {
		if account == "" || reconcile.IsUnknownAccount(account) {
			return
		}
		if _, declared := b.opens[account]; declared {
			return
		}
		o, seen := earliest[account]
		if !seen {
			earliest[account] = &reconcile.Open{Date: d.When(), Account: account}
			order = append(order, account)
		} else if d.When().Before(o.Date) {
			o.Date = d.When()
		}
	}

	for _, d := range entries {
		switch v := d.(type) {
		case *reconcile.Transaction:
			for _, p := range v.Postings {
				note(p.Account, v)
			}
		case *reconcile.Balance:
			note(v.Account, v)
		}
	}

	opens := make([]*reconcile.Open, len(order))
	for i, account := range order {
		opens[i] = earliest[account]
	}
	return opens
}

func cloneDirective(d reconcile.Directive) reconcile.Directive {
	if t, ok := d.(*reconcile.Transaction); ok {
		return t.Clone()
	}
	return d
}

// cloneRest clones everything after the primary transaction of a pending
// entry: trailing balance or price directives that ride along.
func cloneRest(entries []reconcile.Directive) []reconcile.Directive {
	var out []reconcile.Directive
	seenTxn := false
	for _, d := range entries {
		if _, ok := d.(*reconcile.Transaction); ok && !seenTxn {
			seenTxn = true
			continue
		}
		out = append(out, cloneDirective(d))
	}
	return out
}

func flipPairs(pairs []match.Pair, theirsTxn *reconcile.Transaction) []match.Pair {
	out := make([]match.Pair, len(pairs))
	for i, pr := range pairs {
		out[i] = match.Pair{Ours: pr.Theirs, Theirs: pr.Ours, TheirsTxn: theirsTxn}
	}
	return out
}
