package edit

import (
	"sort"
	"strings"

	"github.com/howeyc/reconcile"
)

// Stage accumulates changes against a journal before they are applied as
// one change set.
type Stage struct {
	journal *Journal
	changes *ChangeSet
}

func (j *Journal) NewStage() *Stage {
	return &Stage{journal: j, changes: NewChangeSet()}
}

func (s *Stage) Changes() *ChangeSet { return s.changes }

func (s *Stage) Apply() error { return s.journal.Apply(s.changes) }

// AddDirective stages a new directive in filename at its chronological
// position: after the last directive dated on or before it, found by
// binary search, or appended at the end of the file when nothing follows.
func (s *Stage) AddDirective(filename string, d reconcile.Directive) {
	lines := s.journal.Lines(filename)
	inFile := s.directivesIn(filename)

	idx := sort.Search(len(inFile), func(i int) bool {
		return inFile[i].When().After(d.When())
	})

	var start int
	switch {
	case len(inFile) == 0:
		start = len(lines) + 1
	case idx == 0:
		start = inFile[0].Position().Line
	default:
		_, end, err := s.journal.Extent(inFile[idx-1])
		if err != nil {
			end = inFile[idx-1].Position().Line
		}
		start = end + 1
		for start <= len(lines) && strings.TrimSpace(lines[start-1]) == "" {
			start++
		}
	}

	entry := formatLines(d)
	var changes []LineChange
	if start > len(lines) {
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			changes = append(changes, LineChange{Op: OpAdd})
		}
		for _, text := range entry {
			changes = append(changes, LineChange{Op: OpAdd, Text: text})
		}
	} else {
		for _, text := range entry {
			changes = append(changes, LineChange{Op: OpAdd, Text: text})
		}
		changes = append(changes, LineChange{Op: OpAdd})
	}
	s.changes.Add(filename, Region{Start: start, Lines: changes})
}

// RemoveDirective stages the removal of a directive's block, along with
// one trailing blank separator when present.
func (s *Stage) RemoveDirective(d reconcile.Directive) error {
	start, end, err := s.journal.Extent(d)
	if err != nil {
		return err
	}
	filename := d.Position().Filename
	lines := s.journal.Lines(filename)

	var changes []LineChange
	for i := start; i <= end; i++ {
		changes = append(changes, LineChange{Op: OpRemove, Text: lines[i-1]})
	}
	if end < len(lines) && strings.TrimSpace(lines[end]) == "" {
		changes = append(changes, LineChange{Op: OpRemove, Text: lines[end]})
	}
	s.changes.Add(filename, Region{Start: start, Lines: changes})
	return nil
}

// ReplaceDirective stages an in-place rewrite of a directive's block,
// keeping unchanged lines so unrelated edits nearby still conflict.
func (s *Stage) ReplaceDirective(old, replacement reconcile.Directive) error {
	start, end, err := s.journal.Extent(old)
	if err != nil {
		return err
	}
	filename := old.Position().Filename
	lines := s.journal.Lines(filename)

	region := Region{
		Start: start,
		Lines: DiffLines(lines[start-1:end], formatLines(replacement)),
	}
	s.changes.Add(filename, region)
	return nil
}

func (s *Stage) directivesIn(filename string) []reconcile.Directive {
	var out []reconcile.Directive
	for _, d := range s.journal.Directives() {
		if d.Position().Filename == filename {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position().Line < out[j].Position().Line
	})
	return out
}

func formatLines(d reconcile.Directive) []string {
	text := strings.TrimSuffix(reconcile.Format(d), "\n")
	return strings.Split(text, "\n")
}
