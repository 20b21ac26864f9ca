package store

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/max/dupescan/internal/types"
)

// batchSize is the number of pending writes committed per transaction.
// Batching bounds transaction overhead while keeping committed state
// visible if the session is interrupted mid-phase.
const batchSize = 100

// schema is the session-scoped staging schema. It never survives the
// session: Close removes the database file.
const schema = `
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL,
    size INTEGER NOT NULL,
    digest TEXT
);
CREATE INDEX IF NOT EXISTS idx_files_size ON files(size);
CREATE INDEX IF NOT EXISTS idx_files_digest ON files(digest);
`

// SQLite is the indexed staging Records implementation for large trees.
// Grouping queries run against the size and digest indexes instead of
// in-memory maps, so memory stays bounded by the batch size rather than
// the file count.
type SQLite struct {
	db   *sql.DB
	path string

	pendingAdds    []types.FileRecord
	pendingDigests []types.FileRecord // Path + Digest of not-yet-committed updates
	count          int
}

// OpenSQLite creates (or reuses) a staging database at path.
// The file is removed again on Close - the store is scoped to one session.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open staging db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create staging schema: %w", err)
	}
	// A fresh session must not see records staged by an interrupted one
	if _, err := db.Exec(`DELETE FROM files`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reset staging db: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Add stages one enumerated file. Writes are committed every batchSize
// records.
func (s *SQLite) Add(path string, size int64) error {
	s.pendingAdds = append(s.pendingAdds, types.FileRecord{Path: path, Size: size})
	s.count++
	if len(s.pendingAdds) >= batchSize {
		return s.flushAdds()
	}
	return nil
}

// SetDigest stages a digest update for a path. Updates are committed every
// batchSize records.
func (s *SQLite) SetDigest(path, digest string) error {
	s.pendingDigests = append(s.pendingDigests, types.FileRecord{Path: path, Digest: digest})
	if len(s.pendingDigests) >= batchSize {
		return s.flushDigests()
	}
	return nil
}

// CandidateGroups flushes pending writes and queries size groups with 2+
// members, ascending by size, members in insertion order.
func (s *SQLite) CandidateGroups() ([]types.SizeGroup, error) {
	if err := s.flushAdds(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT path, size FROM files
		WHERE size IN (SELECT size FROM files GROUP BY size HAVING COUNT(*) >= 2)
		ORDER BY size ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query candidate groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []types.SizeGroup
	for rows.Next() {
		var rec types.FileRecord
		if err := rows.Scan(&rec.Path, &rec.Size); err != nil {
			return nil, err
		}
		if n := len(groups); n == 0 || groups[n-1].Size != rec.Size {
			groups = append(groups, types.SizeGroup{Size: rec.Size})
		}
		last := &groups[len(groups)-1]
		last.Members = append(last.Members, rec)
	}
	return groups, rows.Err()
}

// DuplicateSets flushes pending writes and queries digest groups with 2+
// members. Within each set members keep insertion order, so the anchor is
// first.
func (s *SQLite) DuplicateSets() ([]types.DuplicateSet, error) {
	if err := s.flushAdds(); err != nil {
		return nil, err
	}
	if err := s.flushDigests(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT digest, path FROM files
		WHERE digest IS NOT NULL
		  AND digest IN (
			SELECT digest FROM files WHERE digest IS NOT NULL
			GROUP BY digest HAVING COUNT(*) >= 2)
		ORDER BY digest ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query duplicate sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sets []types.DuplicateSet
	for rows.Next() {
		var digest, path string
		if err := rows.Scan(&digest, &path); err != nil {
			return nil, err
		}
		if n := len(sets); n == 0 || sets[n-1].Digest != digest {
			sets = append(sets, types.DuplicateSet{Digest: digest})
		}
		last := &sets[len(sets)-1]
		last.Members = append(last.Members, path)
	}
	return sets, rows.Err()
}

// Len returns the number of records added, including not-yet-committed ones.
func (s *SQLite) Len() int { return s.count }

// Close flushes pending writes, closes the database and removes the
// staging file.
func (s *SQLite) Close() error {
	flushErr := s.flushAdds()
	if err := s.flushDigests(); flushErr == nil {
		flushErr = err
	}
	if err := s.db.Close(); flushErr == nil {
		flushErr = err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) && flushErr == nil {
		flushErr = err
	}
	return flushErr
}

// flushAdds commits pending inserts in one transaction.
func (s *SQLite) flushAdds() error {
	if len(s.pendingAdds) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin staging batch: %w", err)
	}
	for _, rec := range s.pendingAdds {
		if _, err := tx.Exec(`INSERT INTO files (path, size) VALUES (?, ?)`, rec.Path, rec.Size); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("stage %s: %w", rec.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit staging batch: %w", err)
	}
	s.pendingAdds = s.pendingAdds[:0]
	return nil
}

// flushDigests commits pending digest updates in one transaction.
func (s *SQLite) flushDigests() error {
	if len(s.pendingDigests) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin digest batch: %w", err)
	}
	for _, rec := range s.pendingDigests {
		if _, err := tx.Exec(`UPDATE files SET digest = ? WHERE path = ?`, rec.Digest, rec.Path); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("stage digest for %s: %w", rec.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit digest batch: %w", err)
	}
	s.pendingDigests = s.pendingDigests[:0]
	return nil
}
