package index

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/models"
	"github.com/starford/filerecords/internal/storage"
)

func row(name, relpath string) models.IndexRow {
	return models.IndexRow{ID: uuid.New(), Filename: name, Relpath: relpath}
}

func TestAppendAndLookup(t *testing.T) {
	tbl := New()
	a := row("a.txt", "../a.txt")
	if err := tbl.Append(a); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, ok := tbl.Get(a.ID)
	if !ok || got != a {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	got, ok = tbl.ByRelpath("../a.txt")
	if !ok || got.ID != a.ID {
		t.Fatalf("ByRelpath = %+v, %v", got, ok)
	}
}

func TestAppendRejectsDuplicates(t *testing.T) {
	tbl := New()
	a := row("a.txt", "../a.txt")
	_ = tbl.Append(a)

	if err := tbl.Append(row("a.txt", "../a.txt")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate relpath = %v, want ErrAlreadyExists", err)
	}
	dupID := row("b.txt", "../b.txt")
	dupID.ID = a.ID
	if err := tbl.Append(dupID); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate id = %v, want ErrAlreadyExists", err)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len = %d, want 1", tbl.Len())
	}
}

func TestRemoveKeepsOrder(t *testing.T) {
	tbl := New()
	a, b, c := row("a", "../a"), row("b", "../b"), row("c", "../c")
	for _, r := range []models.IndexRow{a, b, c} {
		_ = tbl.Append(r)
	}
	if err := tbl.Remove(b.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	rows := tbl.Rows()
	if len(rows) != 2 || rows[0].ID != a.ID || rows[1].ID != c.ID {
		t.Fatalf("rows = %+v", rows)
	}
	if _, ok := tbl.ByRelpath("../b"); ok {
		t.Error("removed relpath still indexed")
	}
	if err := tbl.Remove(b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}
}

func TestMoveUpdatesSecondaryIndex(t *testing.T) {
	tbl := New()
	a, b := row("a", "../a"), row("b", "../b")
	_ = tbl.Append(a)
	_ = tbl.Append(b)

	if err := tbl.Move(a.ID, "../sub/z", "z"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, ok := tbl.ByRelpath("../a"); ok {
		t.Error("old relpath still indexed")
	}
	got, ok := tbl.ByRelpath("../sub/z")
	if !ok || got.ID != a.ID || got.Filename != "z" {
		t.Fatalf("moved row = %+v, %v", got, ok)
	}
	if err := tbl.Move(a.ID, "../b", "b"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("Move onto taken relpath = %v, want ErrAlreadyExists", err)
	}
	if err := tbl.Move(a.ID, "../sub/z", "z"); err != nil {
		t.Errorf("Move onto own relpath = %v", err)
	}
}

func TestContaining(t *testing.T) {
	tbl := New()
	_ = tbl.Append(row("report.txt", "../report.txt"))
	_ = tbl.Append(row("report.txt", "../old/report.txt"))
	_ = tbl.Append(row("notes.md", "../notes.md"))

	if got := tbl.Containing("report"); len(got) != 2 {
		t.Errorf("Containing(report) = %d rows, want 2", len(got))
	}
	if got := tbl.Containing("old/"); len(got) != 1 {
		t.Errorf("Containing(old/) = %d rows, want 1", len(got))
	}
	if got := tbl.Containing("missing"); got != nil {
		t.Errorf("Containing(missing) = %+v", got)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	tbl := New()
	_ = tbl.Append(row("a b.txt", "../dir/a b.txt"))
	_ = tbl.Append(row("c.txt", "../c.txt"))

	var buf bytes.Buffer
	if err := tbl.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), HeaderLine) {
		t.Fatalf("output does not start with header: %q", buf.String())
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := tbl.Rows()
	rows := got.Rows()
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestReadHeaderOnly(t *testing.T) {
	tbl, err := Read(strings.NewReader(HeaderLine + "\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tbl.Len() != 0 {
		t.Errorf("Len = %d, want 0", tbl.Len())
	}
}

func TestReadReorderedColumns(t *testing.T) {
	id := uuid.New()
	in := "relpath\tid\tfilename\n../x.txt\t" + id.String() + "\tx.txt\n"
	tbl, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, ok := tbl.Get(id)
	if !ok || got.Relpath != "../x.txt" || got.Filename != "x.txt" {
		t.Fatalf("row = %+v, %v", got, ok)
	}
}

func TestReadBroken(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing column": "id\tfilename\n",
		"bad id":         HeaderLine + "nope\ta\t../a\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(in)); !errors.Is(err, apperr.ErrBrokenRegistry) {
				t.Errorf("Read = %v, want ErrBrokenRegistry", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Load(store, "INDEXFILE"); !errors.Is(err, apperr.ErrBrokenRegistry) {
		t.Fatalf("Load = %v, want ErrBrokenRegistry", err)
	}
}

func TestSaveLoad(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tbl := New()
	r := row("a.txt", "../a.txt")
	_ = tbl.Append(r)
	if err := Save(store, "INDEXFILE", tbl); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(store, "INDEXFILE")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g, ok := got.Get(r.ID); !ok || g != r {
		t.Errorf("loaded row = %+v, %v", g, ok)
	}
}
