// Package enumerator provides lazy filesystem traversal for duplicate detection.
//
// The enumerator walks a directory tree depth-first with a single worker and
// reports regular files to a Visitor as they are discovered. Directories and
// special files (symlinks, devices, sockets) are never reported. Traversal
// order is deterministic for a static tree: entries are visited in name order
// within each directory.
//
// Errors are per-directory and per-path: an unreadable directory or a failed
// size query is reported through the Visitor and traversal continues with the
// rest of the tree.
package enumerator

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Visitor receives enumeration results. Any callback may be nil.
type Visitor struct {
	// Dir is called once per directory, before its entries are read.
	Dir func(dir string)
	// File is called once per regular file with its byte size.
	File func(path string, size int64)
	// SizeError is called when a regular file's size query fails.
	// The path is excluded from all downstream grouping.
	SizeError func(path string, err error)
	// DirError is called when a directory cannot be opened or read.
	// The subtree below it is skipped.
	DirError func(dir string, err error)
}

// Enumerator walks a directory tree depth-first, yielding regular files.
//
// The enumerator is designed for single-use: create with New(), call Run() once.
type Enumerator struct {
	root string
	stop func() bool // cancellation flag, polled per directory and per file
}

// New creates an Enumerator rooted at root. stop is polled cooperatively
// during traversal; a nil stop never cancels.
func New(root string, stop func() bool) *Enumerator {
	if stop == nil {
		stop = func() bool { return false }
	}
	return &Enumerator{root: root, stop: stop}
}

// Run traverses the tree and reports results to v.
// Returns false if stop reported cancellation before traversal finished;
// in that case no further callbacks are made.
func (e *Enumerator) Run(v Visitor) bool {
	return e.walkDirectory(e.root, v)
}

// walkDirectory processes one directory: reports files, then recurses into
// subdirectories. Returns false as soon as cancellation is observed.
func (e *Enumerator) walkDirectory(dir string, v Visitor) bool {
	if e.stop() {
		return false
	}
	if v.Dir != nil {
		v.Dir(dir)
	}

	files, subdirs, err := e.listDirectory(dir)
	if err != nil {
		if v.DirError != nil {
			v.DirError(dir, err)
		}
		return true // skip subtree, keep traversing the rest
	}

	for _, entry := range files {
		if e.stop() {
			return false
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			if v.SizeError != nil {
				v.SizeError(path, err)
			}
			continue
		}
		if v.File != nil {
			v.File(path, info.Size())
		}
	}

	for _, sub := range subdirs {
		if !e.walkDirectory(sub, v) {
			return false
		}
	}
	return true
}

// listDirectory reads a single directory, returning file entries and
// subdirectory paths, each sorted by name for deterministic traversal.
//
// Uses batched ReadDir (1000 entries per batch) to bound memory when listing
// very large directories.
func (e *Enumerator) listDirectory(dir string) (files []os.DirEntry, subdirs []string, err error) {
	d, err := os.Open(dir)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = d.Close() }()

	const batchSize = 1000
	for {
		entries, err := d.ReadDir(batchSize)
		if len(entries) == 0 {
			if err != nil && err != io.EOF {
				return nil, nil, err
			}
			break
		}

		for _, entry := range entries {
			switch {
			case entry.IsDir():
				subdirs = append(subdirs, filepath.Join(dir, entry.Name()))
			case entry.Type().IsRegular():
				files = append(files, entry)
			}
			// Symlinks, devices, sockets etc. are skipped
		}
	}

	slices.SortFunc(files, func(a, b os.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	slices.Sort(subdirs)
	return files, subdirs, nil
}
