package cache

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

var testDigest = bytes.Repeat([]byte{0xab}, digestSize)

// =============================================================================
// Disabled cache
// =============================================================================

// TestDisabledCache tests that an empty path yields a no-op cache.
func TestDisabledCache(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	now := time.Now()
	if err := c.Store("/a", 10, now, testDigest); err != nil {
		t.Errorf("disabled Store returned error: %v", err)
	}
	if got := c.Lookup("/a", 10, now); got != nil {
		t.Errorf("disabled Lookup returned %x", got)
	}
}

// =============================================================================
// Roundtrip and invalidation
// =============================================================================

// TestStoreLookupRoundtrip tests that a stored digest survives a reopen.
// Lookups read the previous run's database, so the roundtrip spans two opens.
func TestStoreLookupRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	mtime := time.Now().Truncate(time.Second)

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Store("/data/file.bin", 1234, mtime, testDigest); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = second.Close() }()

	if got := second.Lookup("/data/file.bin", 1234, mtime); !bytes.Equal(got, testDigest) {
		t.Errorf("Lookup = %x, want %x", got, testDigest)
	}
}

// TestLookupMissOnChange tests that size or mtime changes invalidate entries.
func TestLookupMissOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	mtime := time.Now().Truncate(time.Second)

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Store("/data/file.bin", 1234, mtime, testDigest); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = second.Close() }()

	if got := second.Lookup("/data/file.bin", 1235, mtime); got != nil {
		t.Error("expected miss on size change")
	}
	if got := second.Lookup("/data/file.bin", 1234, mtime.Add(time.Second)); got != nil {
		t.Error("expected miss on mtime change")
	}
	if got := second.Lookup("/data/other.bin", 1234, mtime); got != nil {
		t.Error("expected miss on path change")
	}
}

// TestSelfCleaning tests that only entries looked up during a run survive
// the next rotation.
func TestSelfCleaning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	mtime := time.Now().Truncate(time.Second)

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = first.Store("/keep", 1, mtime, testDigest)
	_ = first.Store("/drop", 2, mtime, testDigest)
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	// Second run touches only /keep
	second, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := second.Lookup("/keep", 1, mtime); !bytes.Equal(got, testDigest) {
		t.Fatalf("expected hit for /keep, got %x", got)
	}
	if err := second.Close(); err != nil {
		t.Fatal(err)
	}

	// Third run: /keep survived the rotation, /drop did not
	third, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = third.Close() }()
	if got := third.Lookup("/keep", 1, mtime); !bytes.Equal(got, testDigest) {
		t.Error("expected /keep to survive self-cleaning")
	}
	if got := third.Lookup("/drop", 2, mtime); got != nil {
		t.Error("expected /drop to be cleaned")
	}
}

// TestStoreRejectsBadDigestLength tests that malformed digests are ignored.
func TestStoreRejectsBadDigestLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Store("/a", 1, time.Now(), []byte("short")); err != nil {
		t.Errorf("short digest should be silently ignored, got %v", err)
	}
}
