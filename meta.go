package reconcile

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Well-known metadata keys.
const (
	// KeyDate overrides the date of the posting it is attached to.
	KeyDate = "date"
	// KeyTransactionDate marks merged postings whose source record was
	// dated on the transaction date rather than the posting date.
	KeyTransactionDate = "transaction_date"
	// KeyCleared on an open directive marks the whole account subtree as
	// externally reconciled; on a posting it marks that posting alone.
	KeyCleared = "cleared"
	// KeyClearedBefore marks the subtree cleared for postings strictly
	// before the given date.
	KeyClearedBefore = "cleared_before"
)

// MetaPair is a single key/value metadata line. Value holds the literal
// journal representation: quoted for strings, bare for dates, numbers and
// booleans.
type MetaPair struct {
	Key   string
	Value string
}

// Meta is an ordered set of metadata pairs attached to a directive or
// posting. Order is the journal order and is preserved on write. The zero
// value is empty and ready to use.
type Meta struct {
	pairs []MetaPair
}

func (m *Meta) Len() int { return len(m.pairs) }

// Pairs returns the pairs in order. The slice is shared; callers must not
// modify it.
func (m *Meta) Pairs() []MetaPair { return m.pairs }

// Get returns the literal value for key.
func (m *Meta) Get(key string) (string, bool) {
	for _, p := range m.pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

func (m *Meta) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// GetString returns the value for key with string quoting removed.
func (m *Meta) GetString(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	return unquoteMeta(v), true
}

// GetDate parses the value for key as a calendar date.
func (m *Meta) GetDate(key string) (time.Time, bool) {
	v, ok := m.Get(key)
	if !ok {
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// GetBool parses the value for key as a TRUE/FALSE boolean.
func (m *Meta) GetBool(key string) (bool, bool) {
	v, ok := m.Get(key)
	if !ok {
		return false, false
	}
	switch v {
	case "TRUE":
		return true, true
	case "FALSE":
		return false, true
	}
	return false, false
}

// Set stores a literal value, replacing any existing value for key and
// otherwise appending.
func (m *Meta) Set(key, value string) {
	for i, p := range m.pairs {
		if p.Key == key {
			m.pairs[i].Value = value
			return
		}
	}
	m.pairs = append(m.pairs, MetaPair{Key: key, Value: value})
}

func (m *Meta) SetString(key, value string) {
	m.Set(key, strconv.Quote(value))
}

func (m *Meta) SetDate(key string, d time.Time) {
	m.Set(key, d.Format(DateLayout))
}

func (m *Meta) SetBool(key string, b bool) {
	if b {
		m.Set(key, "TRUE")
	} else {
		m.Set(key, "FALSE")
	}
}

func (m *Meta) Del(key string) {
	for i, p := range m.pairs {
		if p.Key == key {
			m.pairs = append(m.pairs[:i], m.pairs[i+1:]...)
			return
		}
	}
}

func (m *Meta) Clone() Meta {
	if len(m.pairs) == 0 {
		return Meta{}
	}
	pairs := make([]MetaPair, len(m.pairs))
	copy(pairs, m.pairs)
	return Meta{pairs: pairs}
}

// Equal reports whether both sets hold the same keys with the same literal
// values, ignoring order.
func (m *Meta) Equal(other *Meta) bool {
	if len(m.pairs) != len(other.pairs) {
		return false
	}
	for _, p := range m.pairs {
		v, ok := other.Get(p.Key)
		if !ok || v != p.Value {
			return false
		}
	}
	return true
}

// MergeableWith reports whether two sets can be combined: every key present
// in both must carry the same literal value.
func (m *Meta) MergeableWith(other *Meta) bool {
	for _, p := range m.pairs {
		if v, ok := other.Get(p.Key); ok && v != p.Value {
			return false
		}
	}
	return true
}

// Merge returns the union of both sets, m's pairs first. Keys present in
// both keep m's value.
func (m *Meta) Merge(other *Meta) Meta {
	out := m.Clone()
	for _, p := range other.pairs {
		if !out.Has(p.Key) {
			out.pairs = append(out.pairs, p)
		}
	}
	return out
}

// MarshalJSON renders the pairs as an object, preserving order.
func (m Meta) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func unquoteMeta(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		if s, err := strconv.Unquote(v); err == nil {
			return s
		}
	}
	return v
}
