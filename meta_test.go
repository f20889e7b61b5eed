package reconcile

import "testing"

func TestMetaAccessors(t *testing.T) {
	var m Meta
	m.SetString("source_desc", "STARBUCKS STORE 12345")
	m.SetDate(KeyDate, mustDate("2016-08-10"))
	m.SetBool(KeyCleared, true)

	if got, _ := m.GetString("source_desc"); got != "STARBUCKS STORE 12345" {
		t.Errorf("GetString: got %q", got)
	}
	if got, _ := m.GetDate(KeyDate); !got.Equal(mustDate("2016-08-10")) {
		t.Errorf("GetDate: got %s", got)
	}
	if got, _ := m.GetBool(KeyCleared); !got {
		t.Error("GetBool: got false")
	}
	if raw, _ := m.Get("source_desc"); raw != `"STARBUCKS STORE 12345"` {
		t.Errorf("raw value not quoted: %q", raw)
	}

	m.Set("source_desc", `"other"`)
	if m.Len() != 3 {
		t.Errorf("Set should replace, len=%d", m.Len())
	}
	m.Del(KeyCleared)
	if m.Has(KeyCleared) {
		t.Error("Del did not remove key")
	}
}

func TestMetaMerge(t *testing.T) {
	a := newMeta("date", "2016-08-10", "source_desc", `"A"`)
	b := newMeta("source_desc", `"A"`, "note", `"n"`)
	c := newMeta("source_desc", `"B"`)

	if !a.MergeableWith(&b) {
		t.Error("matching shared key should be mergeable")
	}
	if a.MergeableWith(&c) {
		t.Error("conflicting shared key should not be mergeable")
	}

	merged := a.Merge(&b)
	want := newMeta("date", "2016-08-10", "source_desc", `"A"`, "note", `"n"`)
	if !merged.Equal(&want) {
		t.Errorf("merge: got %v, want %v", merged.Pairs(), want.Pairs())
	}
	// order: receiver pairs first
	if merged.Pairs()[0].Key != "date" || merged.Pairs()[2].Key != "note" {
		t.Errorf("merge order: %v", merged.Pairs())
	}
}
