package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestPrintReportEmpty tests the no-duplicates message.
func TestPrintReportEmpty(t *testing.T) {
	var buf strings.Builder
	printReport(&buf, map[string][]string{})

	if !strings.Contains(buf.String(), "No duplicates found.") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

// TestPrintReportOrderingAndSummary tests anchor-ordered sets and the
// summary counts.
func TestPrintReportOrderingAndSummary(t *testing.T) {
	dir := t.TempDir()
	mk := func(name string, size int) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	a1 := mk("a1", 100)
	a2 := mk("a2", 100)
	b1 := mk("b1", 50)
	b2 := mk("b2", 50)
	b3 := mk("b3", 50)

	var buf strings.Builder
	printReport(&buf, map[string][]string{
		"dddd": {b1, b2, b3},
		"aaaa": {a1, a2},
	})
	out := buf.String()

	// Sets ordered by anchor path: a1 group before b1 group
	if strings.Index(out, a1) > strings.Index(out, b1) {
		t.Errorf("sets not ordered by anchor path:\n%s", out)
	}
	// 2 sets, 3 redundant files, 100 + 2*50 = 200 bytes reclaimable
	if !strings.Contains(out, "Found 2 duplicate sets, 3 redundant files (200 B reclaimable)") {
		t.Errorf("summary line missing or wrong:\n%s", out)
	}
}
