// Package iif derives pending entries from QuickBooks IIF exports: blocks
// of tab-separated records described by "!"-prefixed header rows.
package iif

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

var (
	ErrMismatchedRecords = errors.New("iif: row does not match expected header")
	ErrEmptyHeader       = errors.New("iif: record before any header")
)

type RecordType string

// Header declares a record type's column names, e.g. !TRNS or !SPL.
type Header struct {
	Type   RecordType
	Fields []string
}

// Record is one data row with values keyed by its header's column names.
type Record struct {
	Type   RecordType
	Fields map[string]string
}

// Block is one run of headers followed by the record groups they shape.
type Block struct {
	Headers []Header
	Records [][]Record
}

type File struct {
	Blocks []Block
}

// Decoder walks an IIF stream row by row.
type Decoder struct {
	r        *csv.Reader
	err      error
	IsHeader bool
	Type     RecordType
	Fields   []string
}

func NewDecoder(r io.Reader) *Decoder {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = false
	reader.FieldsPerRecord = -1
	d := Decoder{r: reader}
	d.Next()
	return &d
}

func (d *Decoder) Next() {
	line, err := d.r.Read()
	d.err = err
	if err == nil {
		d.IsHeader = strings.HasPrefix(line[0], "!")
		if d.IsHeader {
			d.Type = RecordType(line[0][1:])
		} else {
			d.Type = RecordType(line[0])
		}
		d.Fields = line[1:]
	}
}

func (d *Decoder) Error() error {
	if d.err != io.EOF {
		return d.err
	}
	return nil
}

func (d *Decoder) Done() bool {
	return d.err != nil
}

func (d *Decoder) Decode() (*File, error) {
	f := File{}
	err := f.load(d)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return &f, nil
}

func (f *File) load(d *Decoder) error {
	for !d.Done() {
		if d.Error() != nil {
			return d.Error()
		}
		b := Block{}
		if err := b.load(d); err != nil {
			return err
		}
		f.Blocks = append(f.Blocks, b)
	}
	return nil
}

// MapFields pairs a data row's values with the header's column names.
func (h Header) MapFields(fields []string) map[string]string {
	m := make(map[string]string, len(fields))
	for i, f := range h.Fields {
		if i >= len(fields) {
			break
		}
		m[f] = fields[i]
	}
	return m
}

func (b *Block) load(d *Decoder) error {
	if d.Done() {
		return d.Error()
	}
	for !d.Done() && d.IsHeader {
		b.Headers = append(b.Headers, Header{
			Type:   d.Type,
			Fields: trimLine(d.Fields),
		})
		d.Next()
	}
	if d.Error() != nil {
		return d.Error()
	}

	// each record group runs through the headers in declaration order,
	// with one or more rows per header
	for !d.Done() && !d.IsHeader {
		if len(b.Headers) == 0 {
			return ErrEmptyHeader
		}
		var group []Record
		for _, h := range b.Headers {
			if d.Done() {
				return d.Error()
			}
			if d.Type != h.Type {
				return ErrMismatchedRecords
			}
			for !d.Done() && !d.IsHeader && d.Type == h.Type {
				group = append(group, Record{
					Type:   d.Type,
					Fields: h.MapFields(d.Fields),
				})
				d.Next()
			}
		}
		b.Records = append(b.Records, group)
	}
	return nil
}

func trimLine(fields []string) []string {
	for i, f := range fields {
		if f == "" {
			return fields[:i]
		}
	}
	return fields
}
