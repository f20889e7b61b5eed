package session

import (
	"errors"
	"os"
	"strings"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/source"
)

// ignoreStore is a journal file of entries the user declined to reconcile.
// Membership is by normalized directive hash: a pending entry is suppressed
// only when every one of its directives is present.
type ignoreStore struct {
	path   string
	hashes map[string]bool
}

func loadIgnoreStore(path string) (*ignoreStore, error) {
	st := &ignoreStore{path: path, hashes: make(map[string]bool)}
	if path == "" {
		return st, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	directives, _ := reconcile.ParseFile(path)
	for _, d := range directives {
		st.hashes[source.EntryHash(normalizeDirective(d))] = true
	}
	return st, nil
}

// Suppressed reports whether the entry was previously ignored.
func (st *ignoreStore) Suppressed(pe *source.PendingEntry) bool {
	if len(st.hashes) == 0 {
		return false
	}
	for _, d := range pe.Entries {
		if !st.hashes[source.EntryHash(normalizeDirective(d))] {
			return false
		}
	}
	return true
}

// Append writes the entry to the ignore file with unknown accounts reset
// to the placeholder sentinel, and records its hashes.
func (st *ignoreStore) Append(pe *source.PendingEntry) error {
	var sb strings.Builder
	for _, d := range pe.Entries {
		nd := normalizeDirective(d)
		reconcile.WriteDirective(&sb, nd)
		sb.WriteByte('\n')
		st.hashes[source.EntryHash(nd)] = true
	}

	f, err := os.OpenFile(st.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(sb.String())
	return err
}

// normalizeDirective maps every unknown account, named or bare, to the
// bare placeholder so the hash is stable across placeholder spellings.
func normalizeDirective(d reconcile.Directive) reconcile.Directive {
	t, ok := d.(*reconcile.Transaction)
	if !ok {
		return d
	}
	changed := false
	for _, p := range t.Postings {
		if reconcile.IsUnknownAccount(p.Account) && p.Account != reconcile.FIXMEAccount {
			changed = true
		}
	}
	if !changed {
		return t
	}
	nt := t.Clone()
	for _, p := range nt.Postings {
		if reconcile.IsUnknownAccount(p.Account) {
			p.Account = reconcile.FIXMEAccount
		}
	}
	return nt
}
