package models

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/starford/filerecords/internal/apperr"
)

var base = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func TestCommentsAppendMonotonic(t *testing.T) {
	var cs Comments
	a := cs.Append(base, "ann", "first")
	b := cs.Append(base, "ann", "same instant")
	c := cs.Append(base.Add(-time.Second), "ann", "clock went back")

	if !b.Timestamp.After(a.Timestamp) || !c.Timestamp.After(b.Timestamp) {
		t.Fatalf("timestamps not strictly increasing: %v %v %v", a.Timestamp, b.Timestamp, c.Timestamp)
	}
	if err := cs.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestCommentsRemoveLast(t *testing.T) {
	var cs Comments
	if _, err := cs.RemoveLast(); !errors.Is(err, apperr.ErrNothingToUndo) {
		t.Fatalf("RemoveLast on empty = %v, want ErrNothingToUndo", err)
	}
	cs.Append(base, "ann", "one")
	cs.Append(base.Add(time.Minute), "ann", "two")
	got, err := cs.RemoveLast()
	if err != nil {
		t.Fatalf("RemoveLast: %v", err)
	}
	if got.Text != "two" {
		t.Errorf("removed %q, want %q", got.Text, "two")
	}
	if len(cs) != 1 || cs[0].Text != "one" {
		t.Errorf("remaining = %+v", cs)
	}
}

func TestUndoRemovesOnlyMostRecent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		var cs Comments
		for i := 0; i < n; i++ {
			gap := rapid.IntRange(1, 1000).Draw(rt, "gap")
			cs.Append(base.Add(time.Duration(i*1000+gap)*time.Millisecond), "u", strings.Repeat("x", i+1))
		}
		if _, err := cs.RemoveLast(); err != nil {
			rt.Fatalf("RemoveLast: %v", err)
		}
		if len(cs) != n-1 {
			rt.Fatalf("len = %d, want %d", len(cs), n-1)
		}
		for i, c := range cs.Sorted() {
			if c.Text != strings.Repeat("x", i+1) {
				rt.Fatalf("entry %d = %q", i, c.Text)
			}
		}
	})
}

func TestRecordMetaYAMLRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := NewRecordMeta()
		n := rapid.IntRange(0, 8).Draw(rt, "comments")
		for i := 0; i < n; i++ {
			text := rapid.StringMatching(`[a-zA-Z0-9 :#'-]{1,30}`).Draw(rt, "text")
			user := rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "user")
			m.Comments.Append(base.Add(time.Duration(i)*time.Second), user, text)
		}
		m.Flags.Add(rapid.SliceOf(rapid.StringMatching(`[a-z][a-z0-9_:]{0,10}`)).Draw(rt, "flags")...)

		data, err := yaml.Marshal(m)
		if err != nil {
			rt.Fatalf("Marshal: %v", err)
		}
		var got RecordMeta
		if err := yaml.Unmarshal(data, &got); err != nil {
			rt.Fatalf("Unmarshal: %v\n%s", err, data)
		}
		if len(got.Comments) != len(m.Comments) {
			rt.Fatalf("comments = %d, want %d", len(got.Comments), len(m.Comments))
		}
		for i, c := range m.Comments {
			g := got.Comments[i]
			if !g.Timestamp.Equal(c.Timestamp) || g.User != c.User || g.Text != c.Text {
				rt.Fatalf("comment %d = %+v, want %+v", i, g, c)
			}
		}
		if !slices.Equal(got.Flags.Sorted(), m.Flags.Sorted()) {
			rt.Fatalf("flags = %v, want %v", got.Flags.Sorted(), m.Flags.Sorted())
		}
	})
}

func TestEmptyDocumentsEncodeAsEmptyCollections(t *testing.T) {
	data, err := yaml.Marshal(NewRegistryMeta())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := "comments: {}\nflags: []\ngroups: {}\n"
	if string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}
}

func TestLegacyTimestampKeys(t *testing.T) {
	doc := `
directory: /tmp/x/__registry
comments:
  2023-03-01 10:15:30.123456:
    comment: older tool
    user: bob
flags:
- a
groups: {}
`
	var m RegistryMeta
	if err := yaml.Unmarshal([]byte(doc), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(m.Comments) != 1 || m.Comments[0].User != "bob" || m.Comments[0].Text != "older tool" {
		t.Fatalf("comments = %+v", m.Comments)
	}
	if m.Comments[0].Timestamp.Local().Year() != 2023 {
		t.Errorf("timestamp = %v", m.Comments[0].Timestamp)
	}
}

func TestCommentsRejectNonMapping(t *testing.T) {
	var m RecordMeta
	err := yaml.Unmarshal([]byte("comments: [a, b]\nflags: []\n"), &m)
	if !errors.Is(err, apperr.ErrInvalidDocument) {
		t.Fatalf("err = %v, want ErrInvalidDocument", err)
	}
}

func TestFlagSetAddIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		flags := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,6}`)).Draw(rt, "flags")
		once := NewFlagSet()
		once.Add(flags...)
		twice := NewFlagSet()
		twice.Add(flags...)
		twice.Add(flags...)
		if !slices.Equal(once.Sorted(), twice.Sorted()) {
			rt.Fatalf("once = %v, twice = %v", once.Sorted(), twice.Sorted())
		}
	})
}

func TestFlagSetRemove(t *testing.T) {
	s := NewFlagSet("a", "b")
	if err := s.Remove("a", "zzz"); !errors.Is(err, apperr.ErrFlagNotFound) {
		t.Fatalf("Remove missing = %v, want ErrFlagNotFound", err)
	}
	if !s.Has("a") {
		t.Error("failed Remove must not drop present flags")
	}
	if err := s.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Has("a") || !s.Has("b") {
		t.Errorf("set = %v", s.Sorted())
	}
}

func TestGroupsDefineAndExpand(t *testing.T) {
	var g Groups
	got := g.Define("g", "a", "b", "a")
	if want := []string{"a", "b", "group:g"}; !slices.Equal(got, want) {
		t.Fatalf("Define = %v, want %v", got, want)
	}
	expanded := g.Expand("g", "c")
	if want := []string{"a", "b", "group:g", "c"}; !slices.Equal(expanded, want) {
		t.Errorf("Expand = %v, want %v", expanded, want)
	}
	g.Define("g", "z")
	if want := []string{"z", "group:g"}; !slices.Equal(g["g"], want) {
		t.Errorf("redefined = %v, want %v", g["g"], want)
	}
}

func TestRegistryMetaValidate(t *testing.T) {
	m := NewRegistryMeta()
	m.Groups["broken"] = []string{"a"}
	if err := m.Validate(); err == nil {
		t.Error("group without its tag should fail validation")
	}

	m = NewRegistryMeta()
	m.Comments = append(m.Comments, Comment{Timestamp: base, Text: "no user"})
	if err := m.Validate(); err == nil {
		t.Error("comment without user should fail validation")
	}

	m = NewRegistryMeta()
	m.Flags.Add("ok")
	m.Groups.Define("g", "ok")
	if err := m.Validate(); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}
}
