// Package testutil provides shared test helpers for numeric output and
// generated file trees.
package testutil

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/seaenv/internal/fsutil"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertFloatsNear checks got and want element-wise within tol.
func AssertFloatsNear(t *testing.T, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	if !floats.EqualApprox(got, want, tol) {
		t.Errorf("got %v, want %v (tol %g)", got, want, tol)
	}
}

// RelativeFiles returns the files under root in fsys relative to root, with
// forward slashes, sorted.
func RelativeFiles(t *testing.T, fsys *fsutil.MemoryFileSystem, root string) []string {
	t.Helper()
	var out []string
	for _, f := range fsys.Files(root) {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatalf("relative path of %s: %v", f, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

// ReadLines reads a text file from fsys and splits it into lines without
// the trailing empty element.
func ReadLines(t *testing.T, fsys fsutil.FileSystem, path string) []string {
	t.Helper()
	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}
