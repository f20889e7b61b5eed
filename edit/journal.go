package edit

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/howeyc/reconcile"
)

var ErrJournalModified = errors.New("journal file modified on disk")

type sourceFile struct {
	name    string
	lines   []string
	modTime time.Time
	// true when the on-disk file ends without a trailing newline
	noFinalNewline bool
}

// Journal is the parsed journal plus the raw text of every file it spans.
// New entries are appended to OutputFile, which defaults to the main file.
type Journal struct {
	MainFile   string
	OutputFile string

	directives  []reconcile.Directive
	diagnostics []error
	files       map[string]*sourceFile
}

// OpenJournal reads and parses the main file and everything it includes.
func OpenJournal(mainFile string) (*Journal, error) {
	j := &Journal{
		MainFile:   mainFile,
		OutputFile: mainFile,
		files:      make(map[string]*sourceFile),
	}
	var diags []error
	j.directives, diags = reconcile.ParseFile(mainFile)
	j.diagnostics = diags

	if err := j.loadFile(mainFile); err != nil {
		return nil, err
	}
	for _, d := range j.directives {
		pos := d.Position()
		if pos.Filename == "" || j.files[pos.Filename] != nil {
			continue
		}
		if err := j.loadFile(pos.Filename); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (j *Journal) loadFile(name string) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(name)
	if err != nil {
		return err
	}
	sf := &sourceFile{name: name, modTime: info.ModTime()}
	text := string(data)
	if text != "" && !strings.HasSuffix(text, "\n") {
		sf.noFinalNewline = true
	}
	text = strings.TrimSuffix(text, "\n")
	if text != "" {
		sf.lines = strings.Split(text, "\n")
	}
	j.files[name] = sf
	return nil
}

// Directives returns all parsed directives in file order.
func (j *Journal) Directives() []reconcile.Directive { return j.directives }

// Diagnostics returns the parse problems encountered at load.
func (j *Journal) Diagnostics() []error { return j.diagnostics }

// Transactions returns the journal's transactions in file order.
func (j *Journal) Transactions() []*reconcile.Transaction {
	var txns []*reconcile.Transaction
	for _, d := range j.directives {
		if t, ok := d.(*reconcile.Transaction); ok {
			txns = append(txns, t)
		}
	}
	return txns
}

// Opens returns the journal's account open directives keyed by account.
func (j *Journal) Opens() map[string]*reconcile.Open {
	opens := make(map[string]*reconcile.Open)
	for _, d := range j.directives {
		if o, ok := d.(*reconcile.Open); ok {
			opens[o.Account] = o
		}
	}
	return opens
}

// Lines returns the current text of a journal file. The slice is shared;
// callers must not modify it.
func (j *Journal) Lines(filename string) []string {
	if sf := j.files[filename]; sf != nil {
		return sf.lines
	}
	return nil
}

// Extent returns the 1-based first and last line of the directive's block
// in its source file: the header line plus any indented lines after it.
func (j *Journal) Extent(d reconcile.Directive) (start, end int, err error) {
	pos := d.Position()
	if pos.IsZero() {
		return 0, 0, fmt.Errorf("directive has no journal position")
	}
	sf := j.files[pos.Filename]
	if sf == nil {
		return 0, 0, fmt.Errorf("unknown journal file %q", pos.Filename)
	}
	if pos.Line < 1 || pos.Line > len(sf.lines) {
		return 0, 0, fmt.Errorf("%s:%d: position out of range", pos.Filename, pos.Line)
	}
	start, end = pos.Line, pos.Line
	for end < len(sf.lines) {
		next := sf.lines[end]
		if len(next) == 0 || (next[0] != ' ' && next[0] != '\t') {
			break
		}
		end++
	}
	return start, end, nil
}

// CheckUnmodified reports ErrJournalModified if any loaded file changed on
// disk since the journal was read.
func (j *Journal) CheckUnmodified() error {
	for name, sf := range j.files {
		info, err := os.Stat(name)
		if err != nil {
			return err
		}
		if !info.ModTime().Equal(sf.modTime) {
			return fmt.Errorf("%s: %w", name, ErrJournalModified)
		}
	}
	return nil
}

// Apply verifies and writes a change set to disk, then updates the
// in-memory text. The parsed directives are stale afterwards; callers
// reload the journal.
func (j *Journal) Apply(cs *ChangeSet) error {
	if err := j.CheckUnmodified(); err != nil {
		return err
	}

	// verify everything before writing anything
	updated := make(map[string][]string)
	for _, name := range cs.Filenames() {
		sf := j.files[name]
		if sf == nil {
			// new entries may target a file the journal does not
			// include yet
			if err := j.ensureFile(name); err != nil {
				return err
			}
			sf = j.files[name]
		}
		lines, err := cs.ApplyToLines(name, sf.lines)
		if err != nil {
			return err
		}
		updated[name] = lines
	}

	for _, name := range cs.Filenames() {
		lines := updated[name]
		text := strings.Join(lines, "\n")
		if len(lines) > 0 {
			text += "\n"
		}
		if err := os.WriteFile(name, []byte(text), 0o644); err != nil {
			return err
		}
		info, err := os.Stat(name)
		if err != nil {
			return err
		}
		sf := j.files[name]
		sf.lines = lines
		sf.modTime = info.ModTime()
		sf.noFinalNewline = false
	}
	return nil
}

func (j *Journal) ensureFile(name string) error {
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		if werr := os.WriteFile(name, nil, 0o644); werr != nil {
			return werr
		}
	}
	return j.loadFile(name)
}
