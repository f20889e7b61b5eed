// Package session owns the mutable reconciliation state: the journal, the
// pending pool, the predictor and a generation counter. All mutation goes
// through the session under one lock; candidate computation reads an
// immutable generation snapshot and is recomputed whenever the snapshot
// goes stale.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/candidate"
	"github.com/howeyc/reconcile/clearing"
	"github.com/howeyc/reconcile/edit"
	"github.com/howeyc/reconcile/match"
	"github.com/howeyc/reconcile/predict"
	"github.com/howeyc/reconcile/source"
)

// ErrStale rejects a command built against an older generation. The caller
// refetches candidates and retries.
var ErrStale = errors.New("candidates computed against a stale generation")

// ErrExhausted signals that every pending entry has been handled.
var ErrExhausted = errors.New("no pending entries left")

// Config carries the session's tunables.
type Config struct {
	// JournalFile is the main journal, the root of all includes.
	JournalFile string
	// IgnoreFile collects ignored entries. Entries whose text already
	// appears there are suppressed from the pool.
	IgnoreFile string
	// Match bounds hypothesis search.
	Match match.Config
	// BalanceTolerance is the per-currency residual allowed in a
	// balanced transaction.
	BalanceTolerance decimal.Decimal
	// Rules is an optional account-prediction rule file.
	Rules string
}

func DefaultConfig(journalFile string) Config {
	return Config{
		JournalFile:      journalFile,
		Match:            match.DefaultConfig(),
		BalanceTolerance: reconcile.DefaultTolerance,
	}
}

// Snapshot is one immutable generation of session state. Everything
// reachable from it is read-only once published.
type Snapshot struct {
	Generation uint64
	Journal    *edit.Journal
	Index      *clearing.Index
	Pool       []*source.PendingEntry
	// PendingIndex points at the entry currently being reconciled.
	PendingIndex int

	builder *candidate.Builder
	matcher *match.Matcher
}

// Current returns the pending entry under reconciliation, or nil when the
// pool is exhausted.
func (s *Snapshot) Current() *source.PendingEntry {
	if s.PendingIndex < 0 || s.PendingIndex >= len(s.Pool) {
		return nil
	}
	return s.Pool[s.PendingIndex]
}

// Remaining is the number of pending entries not yet handled.
func (s *Snapshot) Remaining() int {
	if s.PendingIndex >= len(s.Pool) {
		return 0
	}
	return len(s.Pool) - s.PendingIndex
}

// CandidateSet is the ranked candidate list for one pending entry, stamped
// with the generation it was computed against.
type CandidateSet struct {
	Generation   uint64
	PendingIndex int
	Entry        *source.PendingEntry
	Candidates   []*candidate.Candidate
}

// Session serializes all reconciliation state changes.
type Session struct {
	cfg       Config
	registry  *source.Registry
	predictor *predict.Predictor
	ignore    *ignoreStore

	mu      sync.Mutex
	snap    *Snapshot
	retired map[string]bool

	// limiter coalesces recomputation when generations churn faster
	// than candidates can be consumed.
	limiter *rate.Limiter
}

// Open loads the journal and the pending pool and trains the predictor
// from the journal's reconciled history.
func Open(cfg Config, registry *source.Registry) (*Session, error) {
	rules, err := predict.LoadRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	ignore, err := loadIgnoreStore(cfg.IgnoreFile)
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:       cfg,
		registry:  registry,
		predictor: predict.New(predict.NewBayes(), rules),
		ignore:    ignore,
		retired:   make(map[string]bool),
		limiter:   rate.NewLimiter(rate.Limit(20), 1),
	}
	if err := s.reload(0); err != nil {
		return nil, err
	}
	if err := s.retrainLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the current generation snapshot.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// reload reparses the journal, rebuilds the clearing index, refetches the
// pending pool and publishes a new snapshot at the given pending index.
// Callers hold the lock except during Open.
func (s *Session) reload(pendingIndex int) error {
	journal, err := edit.OpenJournal(s.cfg.JournalFile)
	if err != nil {
		return err
	}

	ix := clearing.New(s.cfg.Match.WindowDays, s.cfg.BalanceTolerance)
	ix.SetOpens(journal.Opens())
	for _, txn := range journal.Transactions() {
		ix.Add(txn)
	}

	all, err := s.registry.PendingAll()
	if err != nil {
		return err
	}
	identityKeys := s.registry.IdentityKeys()
	var pool []*source.PendingEntry
	for _, pe := range all {
		if s.retired[pe.ID] || s.ignore.Suppressed(pe) || alreadyImported(ix, pe, identityKeys) {
			continue
		}
		pool = append(pool, pe)
	}
	if pendingIndex > len(pool) {
		pendingIndex = len(pool)
	}

	m := match.New(ix, s.cfg.Match)
	m.SetPool(pool)

	var gen uint64
	if s.snap != nil {
		gen = s.snap.Generation + 1
	}
	s.snap = &Snapshot{
		Generation:   gen,
		Journal:      journal,
		Index:        ix,
		Pool:         pool,
		PendingIndex: pendingIndex,
		builder:      candidate.NewBuilder(journal, s.predictor, s.cfg.BalanceTolerance),
		matcher:      m,
	}
	return nil
}

// alreadyImported reports whether every sourced posting of the entry is
// present in the journal as a cleared posting, meaning the records it was
// derived from were accepted on an earlier run. A posting counts as present
// when its cleared record matches exactly, or when one of its source
// identity pairs (a check number, a bank transaction id) already appears
// in the journal.
func alreadyImported(ix *clearing.Index, pe *source.PendingEntry, identityKeys []string) bool {
	seen := false
	for _, txn := range pe.Transactions() {
		for _, p := range txn.Postings {
			desc, ok := p.Meta.GetString(clearing.SourceDescKey)
			if !ok {
				continue
			}
			seen = true
			if identityPresent(ix, p, identityKeys) {
				continue
			}
			if !ix.HasCleared(p.Account, p.Date(txn), p.Amount, desc) {
				return false
			}
		}
	}
	return seen
}

func identityPresent(ix *clearing.Index, p *reconcile.Posting, keys []string) bool {
	for _, key := range keys {
		if v, ok := p.Meta.GetString(key); ok && ix.HasIdentity(key, v) {
			return true
		}
	}
	return false
}

// Invalidate bumps the generation after an external journal edit. The
// whole state is rebuilt; in-flight candidate sets become stale.
func (s *Session) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reload(s.snap.PendingIndex); err != nil {
		return err
	}
	return s.retrainLocked()
}

// Candidates computes the ranked candidate set for the current pending
// entry. The computation runs without the lock against a snapshot; if the
// generation advances mid-computation the result is discarded and the
// search restarts against the new snapshot.
func (s *Session) Candidates(ctx context.Context) (*CandidateSet, error) {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		snap := s.Snapshot()
		pe := snap.Current()
		if pe == nil {
			return nil, ErrExhausted
		}

		cands := snap.builder.Build(pe, snap.matcher.Hypotheses(pe))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if current := s.Snapshot(); current.Generation != snap.Generation {
			continue
		}
		return &CandidateSet{
			Generation:   snap.Generation,
			PendingIndex: snap.PendingIndex,
			Entry:        pe,
			Candidates:   cands,
		}, nil
	}
}

// Accept applies the candidate's staged changes to the journal, retires
// the pending entries it consumed, retrains the predictor and advances to
// the next pending entry.
func (s *Session) Accept(set *CandidateSet, c *candidate.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set.Generation != s.snap.Generation {
		return ErrStale
	}
	if err := s.snap.Journal.Apply(c.Changes); err != nil {
		return err
	}
	for _, id := range c.UsedPendingIDs {
		s.retired[id] = true
	}
	if err := s.reload(s.snap.PendingIndex); err != nil {
		return err
	}
	return s.retrainLocked()
}

// Ignore writes the candidate's pending entry, with every unknown account
// reset to the placeholder sentinel, into the ignore file. Future runs
// re-derive the same entry and suppress it.
func (s *Session) Ignore(set *CandidateSet, c *candidate.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set.Generation != s.snap.Generation {
		return ErrStale
	}
	if s.cfg.IgnoreFile == "" {
		return fmt.Errorf("no ignore file configured")
	}
	if err := s.ignore.Append(set.Entry); err != nil {
		return err
	}
	for _, id := range c.UsedPendingIDs {
		s.retired[id] = true
	}
	return s.reload(s.snap.PendingIndex)
}

// Skip advances past the current pending entry without touching the
// journal. The entry stays in the pool, so Back can return to it.
func (s *Session) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Current() == nil {
		return ErrExhausted
	}
	return s.reload(s.snap.PendingIndex + 1)
}

// Back returns to the previously skipped pending entry.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.PendingIndex == 0 {
		return fmt.Errorf("already at the first pending entry")
	}
	return s.reload(s.snap.PendingIndex - 1)
}

// Retrain rebuilds the predictor's training set from the journal.
func (s *Session) Retrain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.retrainLocked(); err != nil {
		return err
	}
	return s.reload(s.snap.PendingIndex)
}

func (s *Session) retrainLocked() error {
	examples := predict.TrainingExamples(s.snap.Journal.Transactions(), s.registry.IsSourceAccount)
	return s.predictor.Train(examples)
}

// Uncleared reports journal postings on source accounts, under the account
// prefix, that no source record has claimed yet. Postings on other accounts
// have no authoritative record to wait for and are not reported.
func (s *Session) Uncleared(prefix string) []clearing.Posting {
	var out []clearing.Posting
	for _, p := range s.Snapshot().Index.Uncleared(prefix) {
		if s.registry.IsSourceAccount(p.Posting.Account) {
			out = append(out, p)
		}
	}
	return out
}
