// Package engine implements the two-phase duplicate detection session.
//
// # Algorithm
//
// A session runs as a single background worker over one root directory:
//
//	Phase 1 (Scanning)
//	    │
//	    ├──► enumerate regular files depth-first
//	    ├──► record (path, size) into the session's record store
//	    └──► advance progress once per path (success or error)
//
//	Phase boundary
//	    │
//	    └──► candidate groups = size groups with 2+ members
//	         (a unique size cannot have a duplicate)
//
//	Phase 2 (Hashing)
//	    │
//	    ├──► for each candidate group, SHA-256 every member
//	    ├──► advance the same progress counter once per hashed file
//	    └──► duplicate sets = digest groups with 2+ members, anchor first
//
// # Progress counting
//
// Phase 1 and Phase 2 share one (scanned, total) counter pair: a file in a
// singleton size group is counted once, a file in a candidate group is
// counted once per phase. Total is raised at the phase boundary by the
// number of candidate members, so scanned never exceeds total and reaches
// it exactly on completion. This mirrors the progress behavior consumers
// already parse; tracking two independent dimensions would be cleaner but
// would change every reported percentage.
//
// # Concurrency
//
// The worker performs no internal parallelism - enumeration and hashing are
// strictly sequential. The only externally mutated state is the cancellation
// flag (an atomic bool), polled cooperatively before each directory, each
// file, each candidate group and each in-group file. Cancellation latency is
// therefore bounded by one file's I/O.
//
// Results are delivered as a typed event stream (Output, Progress, Done)
// instead of callbacks, decoupling the engine from any UI threading model.
package engine

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/max/dupescan/internal/cache"
	"github.com/max/dupescan/internal/enumerator"
	"github.com/max/dupescan/internal/hasher"
	"github.com/max/dupescan/internal/store"
	"github.com/max/dupescan/internal/types"
)

// State is the session's lifecycle phase.
// Completed, Cancelled and Failed are terminal - a session is never reused.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateHashing
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateHashing:
		return "hashing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// errCancelled aborts phase logic when the cancellation flag is observed.
var errCancelled = errors.New("scan cancelled")

// Option configures a Session.
type Option func(*Session)

// WithStore sets the record store. Defaults to the in-memory store; pass a
// store.SQLite to stage records on disk for large trees.
func WithStore(r store.Records) Option {
	return func(s *Session) { s.records = r }
}

// WithCache sets an optional digest cache consulted before hashing.
func WithCache(c *cache.Cache) Option {
	return func(s *Session) { s.cache = c }
}

// WithHasher overrides the content hash function. Used by tests to observe
// or fail hashing without real file I/O.
func WithHasher(fn func(path string) (string, error)) Option {
	return func(s *Session) { s.hashFile = fn }
}

// Session is one complete, cancellable detection run over one root.
//
// The session is designed for single-use: create with New(), call Start()
// once, drain the returned channel. Counters and phase are mutated only by
// the worker; Cancel is the single entry point for external mutation.
type Session struct {
	// Config (immutable, set by New)
	root     string
	records  store.Records
	cache    *cache.Cache
	hashFile func(path string) (string, error)

	// Shared with callers
	cancelled atomic.Bool
	state     atomic.Int32
	started   atomic.Bool
	events    chan Event

	// Worker-only progress counters
	scanned int
	total   int
}

// New creates a Session for detecting duplicates under root.
func New(root string, opts ...Option) *Session {
	s := &Session{
		root:     root,
		hashFile: hasher.HashFile,
		events:   make(chan Event, 100),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.records == nil {
		s.records = store.NewMemory()
	}
	return s
}

// Start spawns the background worker and returns immediately.
//
// The returned channel carries the session's ordered event stream and is
// closed after exactly one terminal Done event. Start panics if called twice.
func (s *Session) Start() <-chan Event {
	if !s.started.CompareAndSwap(false, true) {
		panic("engine: session reused")
	}
	go s.run()
	return s.events
}

// Cancel requests cooperative cancellation. Safe to call from any goroutine
// at any time; the worker observes the flag at its next checkpoint.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Session) emit(ev Event) {
	s.events <- ev
}

// run executes the scan and delivers the terminal event. A panic anywhere in
// phase logic is reported as Error output and terminates the session Failed
// with an empty result.
func (s *Session) run() {
	defer close(s.events)
	defer func() {
		if r := recover(); r != nil {
			s.emit(Output{Tag: TagError, Message: "An unexpected error occurred."})
			s.emit(Output{Tag: TagError, Message: fmt.Sprint(r)})
			s.setState(StateFailed)
			s.emit(Done{State: StateFailed, Duplicates: map[string][]string{}})
		}
	}()

	duplicates, err := s.scan()
	switch {
	case errors.Is(err, errCancelled):
		s.emit(Output{Tag: TagCancelled, Message: "Scanning stopped."})
		s.setState(StateCancelled)
		s.emit(Done{State: StateCancelled})
	case err != nil:
		s.emit(Output{Tag: TagError, Message: "An unexpected error occurred."})
		s.emit(Output{Tag: TagError, Message: err.Error()})
		s.setState(StateFailed)
		s.emit(Done{State: StateFailed, Duplicates: map[string][]string{}})
	default:
		s.setState(StateCompleted)
		s.emit(Done{State: StateCompleted, Duplicates: duplicates})
	}
}

// scan runs both phases and returns the final duplicate map.
func (s *Session) scan() (map[string][]string, error) {
	s.setState(StateScanning)
	s.emit(Output{Tag: TagScanning, Message: "Searching for duplicates"})

	if err := s.enumerate(); err != nil {
		return nil, err
	}

	s.emit(Output{Tag: TagScanning, Message: fmt.Sprintf("Found %d files", s.records.Len())})
	s.emit(Output{Tag: TagScanning, Message: "Grouping duplicates"})

	return s.hash()
}

// enumerate is Phase 1: walk the tree and record every regular file's size.
// Per-item failures are reported and absorbed; only store errors are fatal.
func (s *Session) enumerate() error {
	var fatal error
	e := enumerator.New(s.root, func() bool {
		return fatal != nil || s.cancelled.Load()
	})

	completed := e.Run(enumerator.Visitor{
		Dir: func(dir string) {
			s.emit(Output{Tag: TagScanning, Message: dir})
		},
		File: func(path string, size int64) {
			s.emit(Output{Tag: TagScanning, Message: path})
			if err := s.records.Add(path, size); err != nil {
				fatal = err
				return
			}
			s.advance()
		},
		SizeError: func(path string, err error) {
			// Path is excluded from all groups but still counts as processed
			s.emit(Output{Tag: TagError, Message: fmt.Sprintf("%s - %v", path, err)})
			s.advance()
		},
		DirError: func(dir string, err error) {
			s.emit(Output{Tag: TagError, Message: fmt.Sprintf("%s - %v", dir, err)})
		},
	})

	if fatal != nil {
		return fatal
	}
	if !completed {
		return errCancelled
	}
	return nil
}

// advance counts one processed path in Phase 1. Total tracks the number of
// paths known so far, so scanned and total grow together here.
func (s *Session) advance() {
	s.scanned++
	s.total++
	s.emit(Progress{Scanned: s.scanned, Total: s.total})
}

// hash is Phase 2: digest every member of every candidate group and collect
// digest collisions into the duplicate map.
func (s *Session) hash() (map[string][]string, error) {
	groups, err := s.records.CandidateGroups()
	if err != nil {
		return nil, err
	}

	// Candidate members are counted once more in this phase; raise total so
	// scanned stays within it and lands exactly on it at completion.
	for _, group := range groups {
		s.total += len(group.Members)
	}

	s.setState(StateHashing)
	s.emit(Output{Tag: TagHashing, Message: fmt.Sprintf("Verifying %d candidate groups", len(groups))})

	for _, group := range groups {
		if s.cancelled.Load() {
			return nil, errCancelled
		}
		for _, rec := range group.Members {
			if s.cancelled.Load() {
				return nil, errCancelled
			}
			s.emit(Output{Tag: TagHashing, Message: rec.Path})

			digest, err := s.digest(rec)
			if err != nil {
				// Excluded from matching - never a zero-length digest
				s.emit(Output{Tag: TagError, Message: fmt.Sprintf("Hashing %s - %v", rec.Path, err)})
			} else if err := s.records.SetDigest(rec.Path, digest); err != nil {
				return nil, err
			}

			s.scanned++
			s.emit(Progress{Scanned: s.scanned, Total: s.total})
		}
	}

	sets, err := s.records.DuplicateSets()
	if err != nil {
		return nil, err
	}
	duplicates := make(map[string][]string, len(sets))
	for _, set := range sets {
		duplicates[set.Digest] = set.Members
	}
	return duplicates, nil
}

// digest hashes one file, consulting the digest cache when configured.
func (s *Session) digest(rec types.FileRecord) (string, error) {
	if s.cache != nil {
		if info, err := os.Stat(rec.Path); err == nil {
			if cached := s.cache.Lookup(rec.Path, info.Size(), info.ModTime()); cached != nil {
				return hex.EncodeToString(cached), nil
			}
			digest, err := s.hashFile(rec.Path)
			if err != nil {
				return "", err
			}
			if raw, decodeErr := hex.DecodeString(digest); decodeErr == nil {
				_ = s.cache.Store(rec.Path, info.Size(), info.ModTime(), raw)
			}
			return digest, nil
		}
	}
	return s.hashFile(rec.Path)
}
