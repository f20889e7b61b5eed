// Package source defines the contract between the reconciliation engine
// and the external-record adapters that feed it: adapters turn statements
// into pending entries with stable identities, and declare which accounts
// they are authoritative for.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/howeyc/reconcile"
)

// PendingEntry is an externally sourced, not-yet-reconciled entry set. One
// external record may expand to several directives (a transfer pair, a
// balance assertion). ID is derived from the normalized entry text so a
// previously seen but unaccepted record keeps its identity across runs.
type PendingEntry struct {
	ID            string
	Date          time.Time
	Source        string
	Entries       []reconcile.Directive
	FormattedText string
}

// NewPendingEntry builds a pending entry from directives produced by the
// named source. Date is the earliest directive date.
func NewPendingEntry(sourceName string, entries []reconcile.Directive) *PendingEntry {
	var sb strings.Builder
	var earliest time.Time
	for i, d := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		reconcile.WriteDirective(&sb, d)
		if earliest.IsZero() || d.When().Before(earliest) {
			earliest = d.When()
		}
	}
	text := sb.String()
	return &PendingEntry{
		ID:            hashText(text),
		Date:          earliest,
		Source:        sourceName,
		Entries:       entries,
		FormattedText: text,
	}
}

// Transactions returns the directive list filtered to transactions.
func (pe *PendingEntry) Transactions() []*reconcile.Transaction {
	var txns []*reconcile.Transaction
	for _, d := range pe.Entries {
		if t, ok := d.(*reconcile.Transaction); ok {
			txns = append(txns, t)
		}
	}
	return txns
}

// EntryHashes returns the per-directive hashes used by the ignore store to
// suppress re-derived entries.
func (pe *PendingEntry) EntryHashes() []string {
	hashes := make([]string, len(pe.Entries))
	for i, d := range pe.Entries {
		hashes[i] = EntryHash(d)
	}
	return hashes
}

// EntryHash is the stable identity of a single directive: the hash of its
// normalized journal text.
func EntryHash(d reconcile.Directive) string {
	return hashText(reconcile.Format(d))
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Source is an adapter for one kind of external record.
type Source interface {
	// Name identifies the source in pending entries and logs.
	Name() string
	// Pending returns the source's not-yet-reconciled entries.
	Pending() ([]*PendingEntry, error)
	// IsMine reports whether the source is authoritative for account:
	// its postings there carry source identity metadata when cleared.
	IsMine(account string) bool
	// IdentityKeys lists posting metadata keys whose values identify one
	// external record (a check number, a bank transaction id). The
	// clearing index watches these pairs, so a record already in the
	// journal is recognized even when its description or date moved.
	IdentityKeys() []string
}

// Registry holds the configured sources in registration order, which fixes
// the insertion order of pending entries across runs.
type Registry struct {
	sources []Source
}

func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

func (r *Registry) Register(s Source) {
	r.sources = append(r.sources, s)
}

func (r *Registry) Sources() []Source { return r.sources }

// IdentityKeys is the union of the sources' identity metadata keys,
// deduplicated and sorted.
func (r *Registry) IdentityKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, s := range r.sources {
		for _, k := range s.IdentityKeys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// IsSourceAccount reports whether any configured source is authoritative
// for account.
func (r *Registry) IsSourceAccount(account string) bool {
	for _, s := range r.sources {
		if s.IsMine(account) {
			return true
		}
	}
	return false
}

// PendingAll collects pending entries from every source in registration
// order, then by date and text for a stable pool ordering.
func (r *Registry) PendingAll() ([]*PendingEntry, error) {
	var all []*PendingEntry
	for _, s := range r.sources {
		entries, err := s.Pending()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.Name(), err)
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if !entries[i].Date.Equal(entries[j].Date) {
				return entries[i].Date.Before(entries[j].Date)
			}
			return entries[i].FormattedText < entries[j].FormattedText
		})
		all = append(all, entries...)
	}
	return all, nil
}
