// Package match produces ordered merge hypotheses for a pending entry:
// ways it could correspond to an existing journal transaction or to
// another pending entry describing the same real-world transaction.
package match

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/clearing"
	"github.com/howeyc/reconcile/source"
)

// Kind says what a hypothesis would merge the pending entry with.
type Kind int

const (
	// NoMatch inserts the pending entry standing alone.
	NoMatch Kind = iota
	// MergeExisting folds the pending entry into a journal transaction.
	MergeExisting
	// MergePending combines two pending entries into one new entry.
	MergePending
)

// Pair is one matched posting: ours from the pending entry, theirs from
// the counterpart.
type Pair struct {
	Ours      *reconcile.Posting
	Theirs    *reconcile.Posting
	TheirsTxn *reconcile.Transaction
}

// Hypothesis is one way of resolving a pending entry, scored for ranking.
type Hypothesis struct {
	Kind     Kind
	Existing *reconcile.Transaction
	Other    *source.PendingEntry
	Pairs    []Pair

	// DateDistance is the total absolute day distance over all pairs.
	DateDistance int

	otherIndex int
}

// Matched is the number of corroborating posting pairs.
func (h *Hypothesis) Matched() int { return len(h.Pairs) }

// Config bounds what counts as a match.
type Config struct {
	// WindowDays is the maximum day distance between matched postings.
	WindowDays int
	// Tolerance is the numeric slack allowed when comparing cost-basis
	// lots. Plain amounts must be exactly equal.
	Tolerance decimal.Decimal
}

func DefaultConfig() Config {
	return Config{WindowDays: clearing.DefaultWindow, Tolerance: decimal.Zero}
}

// Matcher searches the clearing index and the pending pool.
type Matcher struct {
	cfg   Config
	index *clearing.Index
	pool  []*source.PendingEntry
}

func New(index *clearing.Index, cfg Config) *Matcher {
	return &Matcher{cfg: cfg, index: index}
}

// SetPool supplies the other pending entries, in first-observed order.
// That order breaks ranking ties, keeping output stable across runs.
func (m *Matcher) SetPool(pool []*source.PendingEntry) {
	m.pool = pool
}

// Hypotheses returns the ordered merge hypotheses for a pending entry. The
// list is never empty: the no-match hypothesis is always present and
// always last.
func (m *Matcher) Hypotheses(pe *source.PendingEntry) []Hypothesis {
	var hyps []Hypothesis
	txns := pe.Transactions()
	if len(txns) > 0 {
		target := txns[0]
		hyps = append(hyps, m.existingHypotheses(target)...)
		hyps = append(hyps, m.pendingHypotheses(pe, target)...)
		rank(hyps)
	}
	return append(hyps, Hypothesis{Kind: NoMatch})
}

// existingHypotheses proposes merges with journal transactions that share
// uncleared postings with the pending transaction.
func (m *Matcher) existingHypotheses(target *reconcile.Transaction) []Hypothesis {
	byTxn := make(map[*reconcile.Transaction][]Pair)
	var order []*reconcile.Transaction

	for _, p := range target.Postings {
		if reconcile.IsUnknownAccount(p.Account) {
			continue
		}
		for _, hit := range m.index.LookupUncleared(p.Account, p.Date(target), p.Amount) {
			if !PostingsMergeable(p, hit.Posting, m.cfg.Tolerance) {
				continue
			}
			if _, seen := byTxn[hit.Txn]; !seen {
				order = append(order, hit.Txn)
			}
			byTxn[hit.Txn] = append(byTxn[hit.Txn], Pair{Ours: p, Theirs: hit.Posting, TheirsTxn: hit.Txn})
		}
	}

	var hyps []Hypothesis
	for _, txn := range order {
		pairs := dedupePairs(byTxn[txn])
		if len(pairs) == 0 {
			continue
		}
		hyps = append(hyps, Hypothesis{
			Kind:         MergeExisting,
			Existing:     txn,
			Pairs:        pairs,
			DateDistance: totalDistance(target, pairs),
		})
	}
	return hyps
}

// pendingHypotheses proposes merges with other pool entries. Unknown-leg
// postings participate here: a placeholder leg of one entry can pair with
// a concrete leg of another.
func (m *Matcher) pendingHypotheses(pe *source.PendingEntry, target *reconcile.Transaction) []Hypothesis {
	var hyps []Hypothesis
	for idx, other := range m.pool {
		if other.ID == pe.ID {
			continue
		}
		otherTxns := other.Transactions()
		if len(otherTxns) == 0 {
			continue
		}
		otherTxn := otherTxns[0]

		var pairs []Pair
		for _, p := range target.Postings {
			for _, q := range otherTxn.Postings {
				if !m.withinWindow(p.Date(target), q.Date(otherTxn)) {
					continue
				}
				if !reconcile.AccountsMergeable(p.Account, q.Account) {
					continue
				}
				if !PostingsMergeable(p, q, m.cfg.Tolerance) {
					continue
				}
				pairs = append(pairs, Pair{Ours: p, Theirs: q, TheirsTxn: otherTxn})
			}
		}
		pairs = dedupePairs(pairs)
		if len(pairs) == 0 {
			continue
		}
		hyps = append(hyps, Hypothesis{
			Kind:         MergePending,
			Other:        other,
			Pairs:        pairs,
			DateDistance: totalDistance(target, pairs),
			otherIndex:   idx,
		})
	}
	return hyps
}

func (m *Matcher) withinWindow(a, b time.Time) bool {
	return daysBetween(a, b) <= m.cfg.WindowDays
}

// PostingsMergeable checks the amount-level compatibility of two postings:
// exactly equal amounts, compatible lot attributes within tolerance, and
// metadata that does not conflict. Two postings that both already carry
// source identity belong to different real records and never merge.
func PostingsMergeable(p, q *reconcile.Posting, tolerance decimal.Decimal) bool {
	if !p.Amount.Equal(q.Amount) {
		return false
	}
	if !costsCompatible(p.Cost, q.Cost, tolerance) {
		return false
	}
	if p.Meta.Has(clearing.SourceDescKey) && q.Meta.Has(clearing.SourceDescKey) {
		return false
	}
	return p.Meta.MergeableWith(&q.Meta)
}

func costsCompatible(a, b *reconcile.Cost, tolerance decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Currency != b.Currency {
		return false
	}
	if a.Number.Sub(b.Number).Abs().GreaterThan(tolerance) {
		return false
	}
	if !a.Date.IsZero() && !b.Date.IsZero() && !a.Date.Equal(b.Date) {
		return false
	}
	return true
}

// dedupePairs keeps the first pair for each posting on either side, so a
// hypothesis never reuses a posting twice.
func dedupePairs(pairs []Pair) []Pair {
	usedOurs := make(map[*reconcile.Posting]bool)
	usedTheirs := make(map[*reconcile.Posting]bool)
	var out []Pair
	for _, pr := range pairs {
		if usedOurs[pr.Ours] || usedTheirs[pr.Theirs] {
			continue
		}
		usedOurs[pr.Ours] = true
		usedTheirs[pr.Theirs] = true
		out = append(out, pr)
	}
	return out
}

func totalDistance(target *reconcile.Transaction, pairs []Pair) int {
	total := 0
	for _, pr := range pairs {
		total += daysBetween(pr.Ours.Date(target), pr.Theirs.Date(pr.TheirsTxn))
	}
	return total
}

func daysBetween(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// rank orders hypotheses by corroboration descending, then total date
// distance ascending, then a deterministic tie-break: existing-journal
// merges before pending merges, journal position, pool insertion order.
func rank(hyps []Hypothesis) {
	sort.SliceStable(hyps, func(i, j int) bool {
		hi, hj := hyps[i], hyps[j]
		if hi.Matched() != hj.Matched() {
			return hi.Matched() > hj.Matched()
		}
		if hi.DateDistance != hj.DateDistance {
			return hi.DateDistance < hj.DateDistance
		}
		if hi.Kind != hj.Kind {
			return hi.Kind < hj.Kind
		}
		if hi.Kind == MergeExisting {
			pi, pj := hi.Existing.Position(), hj.Existing.Position()
			if pi.Filename != pj.Filename {
				return pi.Filename < pj.Filename
			}
			return pi.Line < pj.Line
		}
		return hi.otherIndex < hj.otherIndex
	})
}
