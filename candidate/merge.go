package candidate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/clearing"
	"github.com/howeyc/reconcile/match"
)

// mergeTransactions folds incoming into a clone of base. Base is the
// authoritative record: its date, flag, payee, narration, tags and links
// survive. Paired postings combine in place; unpaired incoming postings
// first try to combine with a compatible leftover base posting and are
// appended otherwise. Pairs must have Ours on the incoming side.
func mergeTransactions(base, incoming *reconcile.Transaction, pairs []match.Pair, tolerance decimal.Decimal) (*reconcile.Transaction, error) {
	merged := base.Clone()
	cloneOf := make(map[*reconcile.Posting]*reconcile.Posting, len(base.Postings))
	for i, p := range base.Postings {
		cloneOf[p] = merged.Postings[i]
	}

	pairedIncoming := make(map[*reconcile.Posting]bool)
	pairedBase := make(map[*reconcile.Posting]bool)
	for _, pr := range pairs {
		bp := cloneOf[pr.Theirs]
		if bp == nil || pairedBase[pr.Theirs] || pairedIncoming[pr.Ours] {
			return nil, fmt.Errorf("merge pairs are inconsistent")
		}
		mergePosting(merged, bp, incoming, pr.Ours)
		pairedBase[pr.Theirs] = true
		pairedIncoming[pr.Ours] = true
	}

	for _, q := range incoming.Postings {
		if pairedIncoming[q] {
			continue
		}
		combined := false
		for _, p := range base.Postings {
			if pairedBase[p] {
				continue
			}
			if !reconcile.AccountsMergeable(p.Account, q.Account) {
				continue
			}
			if !match.PostingsMergeable(cloneOf[p], q, tolerance) {
				continue
			}
			mergePosting(merged, cloneOf[p], incoming, q)
			pairedBase[p] = true
			combined = true
			break
		}
		if !combined {
			nq := q.Clone()
			if q.Meta.Has(clearing.SourceDescKey) {
				noteLegDate(merged, nq, q.Date(incoming))
			}
			merged.Postings = append(merged.Postings, nq)
		}
	}

	return merged, nil
}

// mergePosting combines the incoming posting q into the merged-side
// posting bp: the concrete account wins, q's metadata is added, and legs
// that carry source identity keep their own date as a posting override.
func mergePosting(merged *reconcile.Transaction, bp *reconcile.Posting, incoming *reconcile.Transaction, q *reconcile.Posting) {
	if reconcile.IsUnknownAccount(bp.Account) && !reconcile.IsUnknownAccount(q.Account) {
		bp.Account = q.Account
	}
	if q.Meta.Has(clearing.SourceDescKey) {
		noteLegDate(merged, bp, q.Date(incoming))
	}
	bp.Meta = bp.Meta.Merge(&q.Meta)
	if bp.Cost == nil && q.Cost != nil {
		c := *q.Cost
		bp.Cost = &c
	}
	if bp.Price == nil && q.Price != nil {
		p := *q.Price
		bp.Price = &p
		bp.PriceIsTotal = q.PriceIsTotal
	}
}

// noteLegDate records a posting-level date override when the leg's
// effective date differs from the merged transaction date.
func noteLegDate(merged *reconcile.Transaction, p *reconcile.Posting, legDate time.Time) {
	if !p.Meta.Has(reconcile.KeyDate) && !legDate.Equal(merged.Date) {
		p.Meta.SetDate(reconcile.KeyDate, legDate)
	}
}
