// Package store provides record bookkeeping for the two-phase match algorithm.
//
// Two implementations satisfy the Records interface:
//
//   - Memory: plain in-memory maps, the default for ordinary trees.
//   - SQLite: an indexed staging database for large trees, answering the same
//     grouping queries without holding every path in memory.
//
// The match engine depends only on Records, so the storage strategy is a
// drop-in swap, not an algorithm change.
package store

import (
	"slices"

	"github.com/max/dupescan/internal/types"
)

// Records accumulates (path, size) pairs during the scanning phase and
// digests during the hashing phase, and answers the two grouping queries
// the match engine needs.
//
// A Records instance is private to one scan session and is discarded with it.
type Records interface {
	// Add records one enumerated file. Paths are added in enumeration order
	// and that order is preserved within every group.
	Add(path string, size int64) error
	// SetDigest records the content digest for a previously added path.
	SetDigest(path, digest string) error
	// CandidateGroups returns all size groups with 2+ members, ascending by
	// size. Members appear in enumeration order.
	CandidateGroups() ([]types.SizeGroup, error)
	// DuplicateSets returns all digest groups with 2+ members. The anchor
	// (first path recorded for the digest) is member 0 of each set.
	DuplicateSets() ([]types.DuplicateSet, error)
	// Len returns the number of records added.
	Len() int
	// Close releases any resources backing the store.
	Close() error
}

// Memory is the in-memory Records implementation.
type Memory struct {
	bySize      map[int64][]types.FileRecord
	byDigest    map[string][]string
	digestOrder []string // digests in first-seen order
	count       int
}

// NewMemory creates an empty in-memory record store.
func NewMemory() *Memory {
	return &Memory{
		bySize:   make(map[int64][]types.FileRecord),
		byDigest: make(map[string][]string),
	}
}

// Add records one enumerated file.
func (m *Memory) Add(path string, size int64) error {
	m.bySize[size] = append(m.bySize[size], types.FileRecord{Path: path, Size: size})
	m.count++
	return nil
}

// SetDigest records the digest for a path.
func (m *Memory) SetDigest(path, digest string) error {
	if _, seen := m.byDigest[digest]; !seen {
		m.digestOrder = append(m.digestOrder, digest)
	}
	m.byDigest[digest] = append(m.byDigest[digest], path)
	return nil
}

// CandidateGroups returns size groups with 2+ members, ascending by size.
func (m *Memory) CandidateGroups() ([]types.SizeGroup, error) {
	var groups []types.SizeGroup
	for size, members := range m.bySize {
		if len(members) < 2 {
			continue // unique size cannot have a duplicate
		}
		groups = append(groups, types.SizeGroup{Size: size, Members: slices.Clone(members)})
	}
	// Map iteration order is non-deterministic - sort for a stable sequence
	slices.SortFunc(groups, func(a, b types.SizeGroup) int {
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		}
		return 0
	})
	return groups, nil
}

// DuplicateSets returns digest groups with 2+ members, in first-seen digest order.
func (m *Memory) DuplicateSets() ([]types.DuplicateSet, error) {
	var sets []types.DuplicateSet
	for _, digest := range m.digestOrder {
		members := m.byDigest[digest]
		if len(members) < 2 {
			continue
		}
		sets = append(sets, types.DuplicateSet{Digest: digest, Members: slices.Clone(members)})
	}
	return sets, nil
}

// Len returns the number of records added.
func (m *Memory) Len() int { return m.count }

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }
