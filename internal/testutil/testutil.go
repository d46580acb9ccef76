// Package testutil provides shared test helpers for building directory trees
// and observing opened paths.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
)

// TestTree creates a temporary directory populated with paths and returns
// its absolute location. Paths ending in "/" become directories, all others
// become small files; missing parents are created.
func TestTree(t *testing.T, paths ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, p := range paths {
		abs := filepath.Join(root, filepath.FromSlash(p))
		if strings.HasSuffix(p, "/") {
			if err := os.MkdirAll(abs, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// Sorted returns a sorted copy of entries, for order-insensitive comparisons.
func Sorted(entries []string) []string {
	out := append([]string(nil), entries...)
	slices.Sort(out)
	return out
}

// RecordingOpener records opened paths instead of launching programs.
type RecordingOpener struct {
	mu     sync.Mutex
	opened []string
	Err    error
}

// Open records path, or fails with Err when set.
func (o *RecordingOpener) Open(_ context.Context, path string) error {
	if o.Err != nil {
		return o.Err
	}
	o.mu.Lock()
	o.opened = append(o.opened, path)
	o.mu.Unlock()
	return nil
}

// Opened returns the paths opened so far.
func (o *RecordingOpener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}
