// Package types provides shared types used across the dupescan codebase.
package types

// FileRecord holds metadata for one enumerated file.
// Digest stays empty until the file is hashed; only members of candidate
// groups (2+ files of equal size) are ever hashed.
type FileRecord struct {
	Path   string
	Size   int64
	Digest string // hex-encoded SHA-256, empty until hashed
}

// SizeGroup contains files sharing one byte size, in enumeration order.
// Groups with a single member are discarded before hashing - a unique size
// cannot have a duplicate.
type SizeGroup struct {
	Size    int64
	Members []FileRecord
}

// DuplicateSet contains the paths of files with identical content.
// Members holds 2+ paths; the first path seen for the digest (the anchor)
// is always at index 0, later collisions append in enumeration order.
type DuplicateSet struct {
	Digest  string
	Members []string
}
