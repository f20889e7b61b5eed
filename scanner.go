package reconcile

import (
	"bufio"
	"io"
)

// linescanner wraps bufio.Scanner with a source name, a line counter and a
// one-line pushback used when a block reads past its end.
type linescanner struct {
	name    string
	scanner *bufio.Scanner
	line    int

	peeked  string
	hasPeek bool
}

func newLineScanner(name string, r io.Reader) *linescanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &linescanner{name: name, scanner: s}
}

func (ls *linescanner) Scan() bool {
	if ls.hasPeek {
		ls.hasPeek = false
		return true
	}
	if !ls.scanner.Scan() {
		return false
	}
	ls.line++
	return true
}

// Unscan pushes the current line back so the next Scan returns it again.
func (ls *linescanner) Unscan() {
	ls.peeked = ls.scanner.Text()
	ls.hasPeek = true
}

func (ls *linescanner) Text() string {
	if ls.hasPeek {
		return ls.peeked
	}
	return ls.scanner.Text()
}

func (ls *linescanner) Name() string { return ls.name }

func (ls *linescanner) LineNumber() int { return ls.line }
