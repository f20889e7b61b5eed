package reconcile

import (
	"io"
	"strconv"
	"strings"
)

// accountColumnWidth is the minimum width of the account column when
// writing postings, so amounts line up.
const accountColumnWidth = 50

// Format renders a directive in journal syntax. The output always ends
// with a newline and reparses to an equal directive.
func Format(d Directive) string {
	var sb strings.Builder
	WriteDirective(&sb, d)
	return sb.String()
}

// WriteDirective writes a directive in journal syntax.
func WriteDirective(w io.Writer, d Directive) {
	switch v := d.(type) {
	case *Transaction:
		writeTransaction(w, v)
	case *Open:
		io.WriteString(w, v.Date.Format(DateLayout)+" open "+v.Account)
		if len(v.Currencies) > 0 {
			io.WriteString(w, " "+strings.Join(v.Currencies, ","))
		}
		io.WriteString(w, "\n")
		writeMeta(w, &v.Meta, "  ")
	case *Close:
		io.WriteString(w, v.Date.Format(DateLayout)+" close "+v.Account+"\n")
		writeMeta(w, &v.Meta, "  ")
	case *Balance:
		io.WriteString(w, v.Date.Format(DateLayout)+" balance "+v.Account+" "+v.Amount.String()+"\n")
		writeMeta(w, &v.Meta, "  ")
	case *Price:
		io.WriteString(w, v.Date.Format(DateLayout)+" price "+v.Currency+" "+v.Amount.String()+"\n")
		writeMeta(w, &v.Meta, "  ")
	}
}

func writeTransaction(w io.Writer, t *Transaction) {
	var sb strings.Builder
	sb.WriteString(t.Date.Format(DateLayout))
	sb.WriteByte(' ')
	if t.Flag == "" {
		sb.WriteByte('*')
	} else {
		sb.WriteString(t.Flag)
	}
	if t.Payee != "" {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(t.Payee))
	}
	if t.Narration != "" || t.Payee != "" {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(t.Narration))
	}
	for _, tag := range t.Tags {
		sb.WriteString(" #")
		sb.WriteString(tag)
	}
	for _, link := range t.Links {
		sb.WriteString(" ^")
		sb.WriteString(link)
	}
	sb.WriteByte('\n')
	io.WriteString(w, sb.String())

	writeMeta(w, &t.Meta, "  ")
	for _, p := range t.Postings {
		writePosting(w, p)
	}
}

func writePosting(w io.Writer, p *Posting) {
	var sb strings.Builder
	sb.WriteString("  ")
	sb.WriteString(p.Account)
	if !p.Elided {
		if pad := accountColumnWidth - len(p.Account) - 2; pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteByte(' ')
		sb.WriteString(p.Amount.String())
		if p.Cost != nil {
			sb.WriteByte(' ')
			sb.WriteString(p.Cost.String())
		}
		if p.Price != nil {
			if p.PriceIsTotal {
				sb.WriteString(" @@ ")
			} else {
				sb.WriteString(" @ ")
			}
			sb.WriteString(p.Price.String())
		}
	}
	sb.WriteByte('\n')
	io.WriteString(w, sb.String())
	writeMeta(w, &p.Meta, "    ")
}

func writeMeta(w io.Writer, m *Meta, indent string) {
	for _, pair := range m.Pairs() {
		if pair.Value == "" {
			io.WriteString(w, indent+pair.Key+":\n")
			continue
		}
		io.WriteString(w, indent+pair.Key+": "+pair.Value+"\n")
	}
}
