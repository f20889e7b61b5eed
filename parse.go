package reconcile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/alfredxing/calc/compute"
	date "github.com/joyt/godate"
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the per-currency residual allowed when checking that
// a transaction balances.
var DefaultTolerance = decimal.New(5, -3)

// ParseFile parses a journal file, following include directives, and
// returns the directives in file order. Malformed directives are reported
// as diagnostics and skipped; the remainder of the file still parses.
func ParseFile(filename string) (directives []Directive, diagnostics []error) {
	ifile, ierr := os.Open(filename)
	if ierr != nil {
		return nil, []error{ierr}
	}
	defer ifile.Close()
	parseJournal(filename, ifile, func(ds []Directive, e error) (stop bool) {
		if e != nil {
			diagnostics = append(diagnostics, e)
			return
		}
		directives = append(directives, ds...)
		return
	})
	return
}

// Parse parses a journal from a reader. Include directives are resolved
// relative to the current directory.
func Parse(r io.Reader) (directives []Directive, diagnostics []error) {
	parseJournal("", r, func(ds []Directive, e error) (stop bool) {
		if e != nil {
			diagnostics = append(diagnostics, e)
			return
		}
		directives = append(directives, ds...)
		return
	})
	return
}

type parser struct {
	scanner *linescanner

	dateLayout string

	strPrevDate string
	prevDateErr error
	prevDate    time.Time
}

var (
	metaRe = regexp.MustCompile(`^([a-z][A-Za-z0-9_\-]*):(?:\s+(.*))?$`)

	// groups: account, number or expression, currency, cost contents,
	// price operator, price number, price currency
	postingRe = regexp.MustCompile(
		`^(?P<account>[A-Z][A-Za-z0-9\-]*(?::[A-Za-z0-9\-]+)*)` +
			`(?:\s+(?P<number>-?\d+(?:\.\d+)?|\([0-9+\-*/.() ]+\))` +
			`\s+(?P<currency>[A-Z][A-Z0-9'._\-]*)` +
			`(?:\s+\{(?P<cost>[^}]*)\})?` +
			`(?:\s+(?P<op>@@?)\s+(?P<pnum>-?\d+(?:\.\d+)?)\s+(?P<pcur>[A-Z][A-Z0-9'._\-]*))?` +
			`)?\s*$`)

	quotedRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	tagRe    = regexp.MustCompile(`#([A-Za-z0-9\-_/.]+)`)
	linkRe   = regexp.MustCompile(`\^([A-Za-z0-9\-_/.]+)`)
)

func parseJournal(filename string, r io.Reader, callback func(ds []Directive, err error) (stop bool)) (stop bool) {
	var lp parser
	lp.scanner = newLineScanner(filename, r)

	var dlist []Directive

	for lp.scanner.Scan() {
		line := strings.TrimRight(lp.scanner.Text(), " \t")
		code, _ := splitComment(line)
		trimmed := strings.TrimSpace(code)
		if len(trimmed) == 0 {
			continue
		}
		if code[0] == ' ' || code[0] == '\t' {
			callback(nil, fmt.Errorf("%s:%d: indented line outside directive: %s", lp.scanner.Name(), lp.scanner.LineNumber(), trimmed))
			continue
		}

		before, after, split := strings.Cut(trimmed, " ")
		if !split {
			callback(nil, fmt.Errorf("%s:%d: unable to parse directive: %s", lp.scanner.Name(), lp.scanner.LineNumber(), trimmed))
			continue
		}
		after = strings.TrimSpace(after)

		switch before {
		case "option", "plugin", "pushtag", "poptag":
			// accepted and ignored
		case "include":
			pattern := unquoteMeta(after)
			paths, _ := filepath.Glob(filepath.Join(filepath.Dir(lp.scanner.Name()), pattern))
			if len(paths) < 1 {
				callback(nil, fmt.Errorf("%s:%d: unable to include file(%s): not found", lp.scanner.Name(), lp.scanner.LineNumber(), pattern))
				continue
			}
			for _, incpath := range paths {
				ifile, ferr := os.Open(incpath)
				if ferr != nil {
					if callback(nil, ferr) {
						return true
					}
					continue
				}
				stop = parseJournal(incpath, ifile, callback)
				ifile.Close()
				if stop {
					return true
				}
			}
		default:
			d, derr := lp.parseDirective(before, after)
			if derr != nil {
				if callback(nil, fmt.Errorf("%s:%d: %w", lp.scanner.Name(), lp.scanner.LineNumber(), derr)) {
					return true
				}
				continue
			}
			dlist = append(dlist, d)
		}
	}
	callback(dlist, nil)
	return false
}

// splitComment removes a trailing ; comment, honoring double quotes.
func splitComment(line string) (code, comment string) {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return strings.TrimRight(line[:i], " \t"), line[i:]
			}
		}
	}
	return line, ""
}

func (lp *parser) parseDate(dateString string) (d time.Time, err error) {
	// seen before, skip parse
	if lp.strPrevDate == dateString {
		return lp.prevDate, lp.prevDateErr
	}

	d, err = time.Parse(lp.dateLayout, dateString)
	if err != nil {
		d, lp.dateLayout, err = date.ParseAndGetLayout(dateString)
		if err != nil {
			err = fmt.Errorf("unable to parse date(%s): %w", dateString, err)
		}
	}

	lp.strPrevDate = dateString
	lp.prevDate = d
	lp.prevDateErr = err

	return
}

func (lp *parser) parseDirective(dateString, rest string) (Directive, error) {
	when, derr := lp.parseDate(dateString)
	if derr != nil {
		return nil, derr
	}
	pos := Position{Filename: lp.scanner.Name(), Line: lp.scanner.LineNumber()}

	keyword, args, _ := strings.Cut(rest, " ")
	args = strings.TrimSpace(args)
	switch keyword {
	case "open":
		fields := strings.Fields(args)
		if len(fields) < 1 {
			return nil, fmt.Errorf("open directive missing account")
		}
		o := &Open{Date: when, Account: fields[0], Pos: pos}
		if len(fields) > 1 {
			for _, c := range strings.Split(strings.Join(fields[1:], ""), ",") {
				if c != "" {
					o.Currencies = append(o.Currencies, c)
				}
			}
		}
		lp.consumeMeta(&o.Meta)
		return o, nil
	case "close":
		fields := strings.Fields(args)
		if len(fields) < 1 {
			return nil, fmt.Errorf("close directive missing account")
		}
		c := &Close{Date: when, Account: fields[0], Pos: pos}
		lp.consumeMeta(&c.Meta)
		return c, nil
	case "balance":
		fields := strings.Fields(args)
		if len(fields) < 3 {
			return nil, fmt.Errorf("balance directive needs account, number and currency")
		}
		num, nerr := parseNumber(fields[1])
		if nerr != nil {
			return nil, nerr
		}
		b := &Balance{Date: when, Account: fields[0], Amount: Amount{Number: num, Currency: fields[2]}, Pos: pos}
		lp.consumeMeta(&b.Meta)
		return b, nil
	case "price":
		fields := strings.Fields(args)
		if len(fields) < 3 {
			return nil, fmt.Errorf("price directive needs currency, number and currency")
		}
		num, nerr := parseNumber(fields[1])
		if nerr != nil {
			return nil, nerr
		}
		p := &Price{Date: when, Currency: fields[0], Amount: Amount{Number: num, Currency: fields[2]}, Pos: pos}
		lp.consumeMeta(&p.Meta)
		return p, nil
	case "note", "document", "event", "commodity", "pad":
		lp.skipBlock()
		return nil, fmt.Errorf("unsupported directive %q skipped", keyword)
	default:
		return lp.parseTransaction(when, pos, keyword, args)
	}
}

// consumeMeta reads the indented key: value lines following a directive
// header into meta, stopping at the first blank or unindented line.
func (lp *parser) consumeMeta(meta *Meta) {
	for lp.scanner.Scan() {
		line := strings.TrimRight(lp.scanner.Text(), " \t")
		if len(line) == 0 {
			return
		}
		if line[0] != ' ' && line[0] != '\t' {
			lp.scanner.Unscan()
			return
		}
		code, _ := splitComment(line)
		m := metaRe.FindStringSubmatch(strings.TrimSpace(code))
		if m == nil {
			continue
		}
		meta.Set(m[1], m[2])
	}
}

func (lp *parser) skipBlock() {
	for lp.scanner.Scan() {
		line := lp.scanner.Text()
		if len(strings.TrimSpace(line)) == 0 {
			return
		}
		if line[0] != ' ' && line[0] != '\t' {
			lp.scanner.Unscan()
			return
		}
	}
}

func (lp *parser) parseTransaction(when time.Time, pos Position, flag, rest string) (*Transaction, error) {
	trans := &Transaction{Date: when, Pos: pos}
	switch flag {
	case "txn":
		trans.Flag = "*"
	case "*", "!":
		trans.Flag = flag
	default:
		return nil, fmt.Errorf("unable to parse transaction flag: %s", flag)
	}

	strs := quotedRe.FindAllStringSubmatch(rest, -1)
	switch len(strs) {
	case 0:
	case 1:
		trans.Narration = unescape(strs[0][1])
	default:
		trans.Payee = unescape(strs[0][1])
		trans.Narration = unescape(strs[1][1])
	}
	tail := quotedRe.ReplaceAllString(rest, "")
	for _, m := range tagRe.FindAllStringSubmatch(tail, -1) {
		trans.Tags = append(trans.Tags, m[1])
	}
	for _, m := range linkRe.FindAllStringSubmatch(tail, -1) {
		trans.Links = append(trans.Links, m[1])
	}

	for lp.scanner.Scan() {
		line := strings.TrimRight(lp.scanner.Text(), " \t")
		if len(line) == 0 {
			break
		}
		if line[0] != ' ' && line[0] != '\t' {
			lp.scanner.Unscan()
			break
		}
		code, _ := splitComment(line)
		trimmed := strings.TrimSpace(code)
		if len(trimmed) == 0 {
			continue
		}

		if m := metaRe.FindStringSubmatch(trimmed); m != nil {
			// before the first posting the pair belongs to the
			// transaction, after it to the latest posting
			if len(trans.Postings) == 0 {
				trans.Meta.Set(m[1], m[2])
			} else {
				trans.Postings[len(trans.Postings)-1].Meta.Set(m[1], m[2])
			}
			continue
		}

		posting, perr := parsePostingLine(trimmed)
		if perr != nil {
			return nil, perr
		}
		trans.Postings = append(trans.Postings, posting)
	}

	if err := trans.CheckBalance(DefaultTolerance); err != nil {
		return nil, err
	}

	return trans, nil
}

func parsePostingLine(trimmed string) (*Posting, error) {
	m := postingRe.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, fmt.Errorf("invalid posting: %q", trimmed)
	}

	p := &Posting{Account: m[1]}
	if m[2] == "" {
		p.Elided = true
		return p, nil
	}

	num, err := parseNumber(m[2])
	if err != nil {
		return nil, err
	}
	p.Amount = Amount{Number: num, Currency: m[3]}

	if m[4] != "" {
		cost, cerr := parseCost(m[4])
		if cerr != nil {
			return nil, cerr
		}
		p.Cost = cost
	}

	if m[5] != "" {
		pnum, perr := decimal.NewFromString(m[6])
		if perr != nil {
			return nil, perr
		}
		p.Price = &Amount{Number: pnum, Currency: m[7]}
		p.PriceIsTotal = m[5] == "@@"
	}

	return p, nil
}

// parseNumber accepts a plain decimal or a parenthesized arithmetic
// expression.
func parseNumber(s string) (decimal.Decimal, error) {
	if strings.HasPrefix(s, "(") {
		v, err := compute.Evaluate(s)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromFloat(v), nil
	}
	return decimal.NewFromString(s)
}

// parseCost parses the inside of a {number currency[, date][, "label"]}
// annotation.
func parseCost(s string) (*Cost, error) {
	parts := strings.Split(s, ",")
	fields := strings.Fields(parts[0])
	if len(fields) != 2 {
		return nil, fmt.Errorf("invalid cost: {%s}", s)
	}
	num, err := decimal.NewFromString(fields[0])
	if err != nil {
		return nil, err
	}
	cost := &Cost{Number: num, Currency: fields[1]}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, `"`) {
			cost.Label = unquoteMeta(part)
			continue
		}
		d, derr := time.Parse(DateLayout, part)
		if derr != nil {
			return nil, fmt.Errorf("invalid cost component: %s", part)
		}
		cost.Date = d
	}
	return cost, nil
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	return strings.ReplaceAll(s, `\\`, `\`)
}
