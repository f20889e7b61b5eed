// Package edit loads journal files and stages line-level changes to them.
// Changes are described as per-file regions of kept, removed and added
// lines, applied only when the underlying text still matches.
package edit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// LineOp is the disposition of a single line within a change region.
type LineOp int8

const (
	OpRemove LineOp = -1
	OpKeep   LineOp = 0
	OpAdd    LineOp = 1
)

// LineChange is one line of a change region.
type LineChange struct {
	Op   LineOp
	Text string
}

// Region is a contiguous run of line changes. Start is the 1-based line
// number in the current file text where the region begins; kept and
// removed lines consume existing lines from there, added lines consume
// none. A pure insertion has Start equal to the line the new text is
// inserted before.
type Region struct {
	Start int
	Lines []LineChange
}

// ChangeSet holds staged regions grouped by filename.
type ChangeSet struct {
	regions map[string][]Region
}

var ErrConflict = errors.New("journal text changed since staging")

func NewChangeSet() *ChangeSet {
	return &ChangeSet{regions: make(map[string][]Region)}
}

func (cs *ChangeSet) Add(filename string, r Region) {
	cs.regions[filename] = append(cs.regions[filename], r)
}

// Merge appends all regions of other into cs.
func (cs *ChangeSet) Merge(other *ChangeSet) {
	for name, rs := range other.regions {
		cs.regions[name] = append(cs.regions[name], rs...)
	}
}

func (cs *ChangeSet) Empty() bool {
	for _, rs := range cs.regions {
		if len(rs) > 0 {
			return false
		}
	}
	return true
}

// Filenames returns the touched files in sorted order.
func (cs *ChangeSet) Filenames() []string {
	names := make([]string, 0, len(cs.regions))
	for name := range cs.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cs *ChangeSet) Regions(filename string) []Region {
	return cs.regions[filename]
}

// ApplyToLines rewrites lines with the regions staged for one file. Kept
// and removed lines are verified against the current text; a mismatch
// reports ErrConflict.
func (cs *ChangeSet) ApplyToLines(filename string, lines []string) ([]string, error) {
	regions := append([]Region(nil), cs.regions[filename]...)
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })

	out := make([]string, 0, len(lines))
	cur := 1
	for _, r := range regions {
		if r.Start < cur {
			return nil, fmt.Errorf("%s: overlapping change regions at line %d: %w", filename, r.Start, ErrConflict)
		}
		out = append(out, lines[cur-1:min(r.Start-1, len(lines))]...)
		cur = r.Start
		for _, lc := range r.Lines {
			switch lc.Op {
			case OpAdd:
				out = append(out, lc.Text)
			case OpKeep, OpRemove:
				if cur > len(lines) || lines[cur-1] != lc.Text {
					return nil, fmt.Errorf("%s:%d: expected %q: %w", filename, cur, lc.Text, ErrConflict)
				}
				if lc.Op == OpKeep {
					out = append(out, lc.Text)
				}
				cur++
			}
		}
	}
	if cur <= len(lines) {
		out = append(out, lines[cur-1:]...)
	}
	return out, nil
}

// Render formats the change set as a diff-style listing, one block per
// file in sorted filename order.
func (cs *ChangeSet) Render() string {
	var sb strings.Builder
	for _, name := range cs.Filenames() {
		regions := append([]Region(nil), cs.regions[name]...)
		sort.SliceStable(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })
		fmt.Fprintf(&sb, "--- %s\n", name)
		for _, r := range regions {
			fmt.Fprintf(&sb, "@@ line %d @@\n", r.Start)
			for _, lc := range r.Lines {
				switch lc.Op {
				case OpAdd:
					sb.WriteString("+")
				case OpRemove:
					sb.WriteString("-")
				default:
					sb.WriteString(" ")
				}
				sb.WriteString(lc.Text)
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
