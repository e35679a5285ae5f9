// Package testutil provides shared test helpers for setting up registries and
// the files they track.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/filerecords/internal/registry"
)

// User is the identity used by Env.
const User = "tester"

// Epoch is the first instant returned by Clock.
var Epoch = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

// Clock returns a clock starting at Epoch that advances one second per call.
func Clock() func() time.Time {
	var mu sync.Mutex
	now := Epoch
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(time.Second)
		return t
	}
}

// Env returns an environment rooted at workdir with a fixed user and clock.
func Env(workdir string) registry.Env {
	return registry.Env{
		Workdir:  workdir,
		Identity: registry.StaticIdentity(User),
		Now:      Clock(),
	}
}

// TestRegistry initializes a registry in a temporary directory.
func TestRegistry(t *testing.T) (*registry.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg, err := registry.Init(dir, Env(dir))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return reg, dir
}

// WriteFile creates dir/name, including parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}
