// Package cache provides an optional file-based digest cache.
//
// Whole-file SHA-256 digests are keyed by (path, size, mtime), so any change
// to a file is a cache miss. The cache stores hash inputs only; scan results
// are never persisted.
package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketName = "digests"
	digestSize = 32
)

// Cache provides persistent caching of file digests using BoltDB.
// Implements self-cleaning: each run creates a new database, only used
// entries survive.
type Cache struct {
	readDB  *bolt.DB // Existing cache (read-only)
	writeDB *bolt.DB // New cache (write) - BoltDB locks this file
	path    string   // Final path (for atomic swap)
	enabled bool
}

// Open opens existing cache for reading and creates new cache for writing.
// BoltDB's built-in file locking on the .new file prevents concurrent
// instances. Returns a disabled cache if path is empty.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}
	var err error

	// Open existing cache for reading (if exists)
	if _, statErr := os.Stat(path); statErr == nil {
		c.readDB, err = bolt.Open(path, 0o600, &bolt.Options{
			ReadOnly: true,
			Timeout:  1 * time.Second,
		})
		if err != nil {
			// Can't open existing - continue without read cache
			c.readDB = nil
		}
	}

	// Create new cache for writing - BoltDB locks this file
	newPath := path + ".new"
	c.writeDB, err = bolt.Open(newPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes both databases and atomically replaces old with new.
// Only replaces if the write database closed successfully to avoid data loss.
func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		if err := c.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			errs = append(errs, err)
		} else {
			if err := os.Rename(c.path+".new", c.path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

const keyVersion byte = 1 // Increment when key format changes

// makeKey builds a deterministic byte key for BoltDB lookup.
// Key = ver(1) + path + NUL + size(8) + mtime(8)
func makeKey(path string, size int64, mtime time.Time) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(path)
	buf.WriteByte(0) // NUL separator
	_ = binary.Write(buf, binary.BigEndian, size)
	_ = binary.Write(buf, binary.BigEndian, mtime.UnixNano())
	return buf.Bytes()
}

// Lookup retrieves a cached digest. Any change to size or mtime is a miss.
// On HIT the entry is copied to the write database (self-cleaning).
// Returns nil if not found or the cache is disabled.
func (c *Cache) Lookup(path string, size int64, mtime time.Time) []byte {
	if !c.enabled || c.readDB == nil {
		return nil
	}

	key := makeKey(path, size, mtime)
	var digest []byte

	err := c.readDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		data := b.Get(key)
		if len(data) == digestSize {
			digest = make([]byte, digestSize)
			copy(digest, data)
		}
		return nil
	})
	if err != nil || digest == nil {
		return nil
	}

	// Self-cleaning: copy valid entry to new database
	_ = c.Store(path, size, mtime, digest)

	return digest
}

// Store saves a digest to the new database.
func (c *Cache) Store(path string, size int64, mtime time.Time, digest []byte) error {
	if !c.enabled || c.writeDB == nil || len(digest) != digestSize {
		return nil
	}

	err := c.writeDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(makeKey(path, size, mtime), digest)
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
