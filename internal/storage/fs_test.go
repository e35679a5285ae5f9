package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/filerecords/internal/apperr"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("comments: {}\nflags: []\n")
	if err := s.Write("INDEXFILE", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("INDEXFILE")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("a/b/c.txt", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ok, err := s.Exists("a/b/c.txt")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
}

func TestExistsMissing(t *testing.T) {
	s := tempRoot(t)
	ok, err := s.Exists("nope")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("missing path reported as existing")
	}
}

func TestDeleteFile(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("del.txt", []byte("bye"))
	if err := s.Delete("del.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.txt"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestDeleteDirectory(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("dir/one.txt", []byte("1"))
	_ = s.Write("dir/sub/two.txt", []byte("2"))
	if err := s.Delete("dir"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists("dir"); ok {
		t.Error("directory still exists")
	}
}

func TestDeleteMissing(t *testing.T) {
	s := tempRoot(t)
	err := s.Delete("ghost.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Delete missing = %v, want fs.ErrNotExist", err)
	}
}

func TestDeleteRootRefused(t *testing.T) {
	s := tempRoot(t)
	if err := s.Delete("."); err == nil {
		t.Fatal("deleting the root must fail")
	}
	if _, err := os.Stat(s.Root()); err != nil {
		t.Fatalf("root gone: %v", err)
	}
}

func TestMove(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("old.txt", []byte("data"))
	if err := s.Move("old.txt", "sub/new.txt"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.txt")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.txt"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.txt",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrOutsideRoot) {
			t.Errorf("Read(%q) = %v, want ErrOutsideRoot", p, err)
		}
		if err := s.Write(p, []byte("x")); !errors.Is(err, apperr.ErrOutsideRoot) {
			t.Errorf("Write(%q) = %v, want ErrOutsideRoot", p, err)
		}
	}
	if _, err := s.Read("/etc/shadow"); err == nil {
		t.Error("expected error for absolute path")
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("METAFILE", []byte("original"))
	if err := s.Write("METAFILE", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("METAFILE")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".records-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "records-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
