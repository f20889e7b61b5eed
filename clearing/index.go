// Package clearing tracks which journal postings are already backed by an
// authoritative source record and indexes the rest for windowed lookup by
// account, amount and date.
package clearing

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/howeyc/reconcile"
)

// SourceDescKey marks a posting as produced from a source record; such
// postings are cleared and never matched again.
const SourceDescKey = "source_desc"

// DefaultWindow is the number of days a posting date may differ from a
// pending record date and still match.
const DefaultWindow = 5

// Posting is a posting together with its transaction.
type Posting struct {
	Txn     *reconcile.Transaction
	Posting *reconcile.Posting
}

// Date is the effective posting date.
func (p Posting) Date() time.Time { return p.Posting.Date(p.Txn) }

type bucketKey struct {
	account  string
	currency string
}

type indexed struct {
	date time.Time
	post Posting
}

// Index holds the journal's uncleared postings bucketed by account and
// currency, each bucket sorted by date.
type Index struct {
	window    int
	tolerance decimal.Decimal
	opens     map[string]*reconcile.Open

	buckets    map[bucketKey][]indexed
	identities map[identityKey]int
	cleared    map[clearedKey]int
	sorted     bool
}

type identityKey struct {
	key   string
	value string
}

// clearedKey identifies a source-backed posting: if an equal key is
// already present, the same external record was imported before.
type clearedKey struct {
	account  string
	currency string
	amount   string
	date     string
	desc     string
}

// New returns an index matching amounts exactly within a date window of
// the given number of days.
func New(window int, tolerance decimal.Decimal) *Index {
	return &Index{
		window:     window,
		tolerance:  tolerance,
		buckets:    make(map[bucketKey][]indexed),
		identities: make(map[identityKey]int),
		cleared:    make(map[clearedKey]int),
	}
}

// HasCleared reports whether a posting equal in account, amount, date and
// source description is already reconciled in the journal.
func (ix *Index) HasCleared(account string, date time.Time, amount reconcile.Amount, desc string) bool {
	return ix.cleared[clearedKey{
		account:  account,
		currency: amount.Currency,
		amount:   amount.Number.String(),
		date:     date.Format(reconcile.DateLayout),
		desc:     desc,
	}] > 0
}

// HasIdentity reports whether any indexed posting carries the metadata
// key/value pair. Sources use it to skip records already imported.
func (ix *Index) HasIdentity(key, value string) bool {
	return ix.identities[identityKey{key: key, value: value}] > 0
}

// SetOpens supplies the journal's open directives, whose cleared and
// cleared_before metadata marks whole account subtrees as reconciled.
func (ix *Index) SetOpens(opens map[string]*reconcile.Open) {
	ix.opens = opens
}

// Cleared reports whether a posting is already reconciled: it carries
// source metadata or a cleared flag of its own, or its account subtree is
// marked cleared, or marked cleared before a date on or after the posting
// date.
func (ix *Index) Cleared(t *reconcile.Transaction, p *reconcile.Posting) bool {
	if p.Meta.Has(SourceDescKey) {
		return true
	}
	// a posting-level flag clears regardless of date
	if c, ok := p.Meta.GetBool(reconcile.KeyCleared); ok && c {
		return true
	}
	for account := p.Account; account != ""; account = parentAccount(account) {
		o := ix.opens[account]
		if o == nil {
			continue
		}
		if c, ok := o.Meta.GetBool(reconcile.KeyCleared); ok {
			return c
		}
		if before, ok := o.Meta.GetDate(reconcile.KeyClearedBefore); ok {
			return p.Date(t).Before(before)
		}
	}
	return false
}

func parentAccount(account string) string {
	idx := strings.LastIndexByte(account, ':')
	if idx < 0 {
		return ""
	}
	return account[:idx]
}

// Add indexes the uncleared postings of a transaction. Posting metadata
// of every leg, cleared or not, feeds the identity index.
func (ix *Index) Add(t *reconcile.Transaction) {
	for _, p := range t.Postings {
		ix.noteIdentities(p, 1)
		ix.noteCleared(t, p, 1)
		if ix.Cleared(t, p) {
			continue
		}
		key := bucketKey{account: p.Account, currency: p.Amount.Currency}
		ix.buckets[key] = append(ix.buckets[key], indexed{date: p.Date(t), post: Posting{Txn: t, Posting: p}})
		ix.sorted = false
	}
}

func (ix *Index) noteIdentities(p *reconcile.Posting, delta int) {
	for _, pair := range p.Meta.Pairs() {
		v, _ := p.Meta.GetString(pair.Key)
		k := identityKey{key: pair.Key, value: v}
		ix.identities[k] += delta
		if ix.identities[k] <= 0 {
			delete(ix.identities, k)
		}
	}
}

func (ix *Index) noteCleared(t *reconcile.Transaction, p *reconcile.Posting, delta int) {
	desc, ok := p.Meta.GetString(SourceDescKey)
	if !ok {
		return
	}
	k := clearedKey{
		account:  p.Account,
		currency: p.Amount.Currency,
		amount:   p.Amount.Number.String(),
		date:     p.Date(t).Format(reconcile.DateLayout),
		desc:     desc,
	}
	ix.cleared[k] += delta
	if ix.cleared[k] <= 0 {
		delete(ix.cleared, k)
	}
}

// Remove drops a transaction's postings from the index, used when a
// candidate replaces a journal entry.
func (ix *Index) Remove(t *reconcile.Transaction) {
	for _, p := range t.Postings {
		ix.noteIdentities(p, -1)
		ix.noteCleared(t, p, -1)
	}
	for key, bucket := range ix.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if e.post.Txn != t {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(ix.buckets, key)
		} else {
			ix.buckets[key] = kept
		}
	}
}

func (ix *Index) sortBuckets() {
	if ix.sorted {
		return
	}
	for _, bucket := range ix.buckets {
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].date.Before(bucket[j].date) })
	}
	ix.sorted = true
}

// LookupUncleared returns the uncleared postings of account whose amount
// is within tolerance of amount and whose date is within the window of
// date, ordered by date then journal position.
func (ix *Index) LookupUncleared(account string, date time.Time, amount reconcile.Amount) []Posting {
	ix.sortBuckets()
	bucket := ix.buckets[bucketKey{account: account, currency: amount.Currency}]
	if len(bucket) == 0 {
		return nil
	}

	lo := date.AddDate(0, 0, -ix.window)
	hi := date.AddDate(0, 0, ix.window)
	start := sort.Search(len(bucket), func(i int) bool { return !bucket[i].date.Before(lo) })

	var out []Posting
	for i := start; i < len(bucket) && !bucket[i].date.After(hi); i++ {
		if bucket[i].post.Posting.Amount.WithinOf(amount, ix.tolerance) {
			out = append(out, bucket[i].post)
		}
	}
	return out
}

// Uncleared returns every indexed posting under the account prefix (all
// postings when prefix is empty), ordered by date then account.
func (ix *Index) Uncleared(prefix string) []Posting {
	ix.sortBuckets()
	var out []Posting
	for key, bucket := range ix.buckets {
		if prefix != "" && key.account != prefix && !strings.HasPrefix(key.account, prefix+":") {
			continue
		}
		for _, e := range bucket {
			out = append(out, e.post)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date(), out[j].Date()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		if out[i].Posting.Account != out[j].Posting.Account {
			return out[i].Posting.Account < out[j].Posting.Account
		}
		pi, pj := out[i].Txn.Position(), out[j].Txn.Position()
		if pi.Filename != pj.Filename {
			return pi.Filename < pj.Filename
		}
		return pi.Line < pj.Line
	})
	return out
}
