//go:build unix

package enumerator

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func createFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

// collect runs an enumeration and gathers all callback results.
type collect struct {
	dirs      []string
	files     []string
	sizes     map[string]int64
	dirErrors []string
}

func runCollect(root string, stop func() bool) (*collect, bool) {
	c := &collect{sizes: make(map[string]int64)}
	e := New(root, stop)
	completed := e.Run(Visitor{
		Dir: func(dir string) { c.dirs = append(c.dirs, dir) },
		File: func(path string, size int64) {
			c.files = append(c.files, path)
			c.sizes[path] = size
		},
		DirError: func(dir string, _ error) { c.dirErrors = append(c.dirErrors, dir) },
	})
	return c, completed
}

// =============================================================================
// Basic traversal
// =============================================================================

// TestRunBasic tests that all regular files are yielded with their sizes.
func TestRunBasic(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "a.txt"), 100)
	createFile(t, filepath.Join(root, "sub", "b.txt"), 200)
	createFile(t, filepath.Join(root, "sub", "deep", "c.txt"), 300)

	c, completed := runCollect(root, nil)
	if !completed {
		t.Fatal("traversal reported cancelled without a stop function")
	}
	if len(c.files) != 3 {
		t.Fatalf("expected 3 files, got %d: %v", len(c.files), c.files)
	}
	if got := c.sizes[filepath.Join(root, "sub", "b.txt")]; got != 200 {
		t.Errorf("b.txt size = %d, want 200", got)
	}
}

// TestRunDeterministicOrder tests that repeated runs over a static tree
// yield files in the same order.
func TestRunDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z.txt", "a.txt", "m.txt"} {
		createFile(t, filepath.Join(root, name), 10)
	}
	createFile(t, filepath.Join(root, "sub", "x.txt"), 10)

	first, _ := runCollect(root, nil)
	second, _ := runCollect(root, nil)
	if !slices.Equal(first.files, second.files) {
		t.Errorf("traversal order differs between runs:\n%v\n%v", first.files, second.files)
	}

	// Within one directory, entries come in name order
	want := []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "m.txt"),
		filepath.Join(root, "z.txt"),
		filepath.Join(root, "sub", "x.txt"),
	}
	if !slices.Equal(first.files, want) {
		t.Errorf("files = %v, want %v", first.files, want)
	}
}

// TestRunSkipsSpecialFiles tests that symlinks are not yielded.
func TestRunSkipsSpecialFiles(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real.txt")
	createFile(t, target, 50)
	if err := os.Symlink(target, filepath.Join(root, "link.txt")); err != nil {
		t.Fatal(err)
	}

	c, _ := runCollect(root, nil)
	if len(c.files) != 1 {
		t.Errorf("expected 1 file (symlink skipped), got %d: %v", len(c.files), c.files)
	}
}

// =============================================================================
// Cancellation
// =============================================================================

// TestRunCancelledImmediately tests that a pre-set stop yields nothing.
func TestRunCancelledImmediately(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "a.txt"), 10)

	c, completed := runCollect(root, func() bool { return true })
	if completed {
		t.Error("expected cancelled traversal")
	}
	if len(c.files) != 0 || len(c.dirs) != 0 {
		t.Errorf("expected no callbacks after immediate cancel, got %d dirs, %d files",
			len(c.dirs), len(c.files))
	}
}

// TestRunCancelledMidTraversal tests that traversal stops at the next
// checkpoint once stop reports true.
func TestRunCancelledMidTraversal(t *testing.T) {
	root := t.TempDir()
	for i := range 10 {
		createFile(t, filepath.Join(root, "file"+string(rune('a'+i))+".txt"), 10)
	}

	seen := 0
	stop := func() bool { return seen >= 3 }
	e := New(root, stop)
	completed := e.Run(Visitor{
		File: func(string, int64) { seen++ },
	})
	if completed {
		t.Error("expected cancelled traversal")
	}
	if seen != 3 {
		t.Errorf("expected traversal to stop after 3 files, saw %d", seen)
	}
}

// =============================================================================
// Error handling
// =============================================================================

// TestRunUnreadableDirectory tests that an unreadable directory is reported
// and the rest of the tree is still traversed.
func TestRunUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks are bypassed")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	createFile(t, filepath.Join(locked, "hidden.txt"), 10)
	createFile(t, filepath.Join(root, "visible.txt"), 10)

	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	c, completed := runCollect(root, nil)
	if !completed {
		t.Error("traversal should complete despite unreadable directory")
	}
	if len(c.dirErrors) != 1 || c.dirErrors[0] != locked {
		t.Errorf("expected one dir error for %s, got %v", locked, c.dirErrors)
	}
	if len(c.files) != 1 {
		t.Errorf("expected 1 visible file, got %d: %v", len(c.files), c.files)
	}
}

// TestRunMissingRoot tests that a nonexistent root reports a dir error.
func TestRunMissingRoot(t *testing.T) {
	c, completed := runCollect(filepath.Join(t.TempDir(), "nope"), nil)
	if !completed {
		t.Error("missing root is a per-directory error, not a cancellation")
	}
	if len(c.dirErrors) != 1 {
		t.Errorf("expected 1 dir error, got %d", len(c.dirErrors))
	}
}
