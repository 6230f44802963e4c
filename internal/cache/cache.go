// Package cache implements three layers of spec §4.1/§5/§6.3 resolution
// state:
//
//   - ModuleCache, an in-memory state machine keyed by normalized module
//     URI (Unresolved/InFlight/Parsed/Compiled/Failed), protected by a
//     mutex for multi-evaluator configurations. internal/loader.Loader
//     drives it on every module load; its shape is
//     grounded on the teacher's internal/db retry/health-check posture
//     (guarded access to shared state behind a lock, terminal states
//     retained rather than discarded).
//   - Store, a gorm-backed sqlite table of resolved-package checksums
//     (§6.3), mirroring the teacher's db/sqlite.go gorm.Open + AutoMigrate
//     connection pattern. internal/resolve/scheme's PackageFactory
//     consults it ahead of a re-fetch and updates it on every
//     freshly-verified download; cmd/pkl's `project resolve` persists a
//     project's resolved dependencies into it directly.
//   - AuditLog, a raw database/sql sqlite table recording each module's
//     resolution-state transitions, written by internal/loader.Loader
//     when its optional Audit field is set. Unlike ModuleCache, both
//     Store and AuditLog outlive a single process.
package cache

import (
	"sync"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/value"
)

// State is one of the five module-cache states named in §4.1.
type State int

const (
	Unresolved State = iota
	InFlight
	Parsed
	Compiled
	Failed
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "Unresolved"
	case InFlight:
		return "InFlight"
	case Parsed:
		return "Parsed"
	case Compiled:
		return "Compiled"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Entry is one cache row: a module's resolution/compilation state plus
// whichever payload that state carries.
type Entry struct {
	State    State
	CST      *ast.Module
	Compiled value.Value
	Err      *perrors.Error
	waiter   chan struct{}
}

// ModuleCache is keyed by normalized URI (resolve.ResolvedModuleKey.
// NormalizedURI). InFlight is observable to concurrent resolution
// requests on the same URI: a second caller blocks on Wait until the
// first transitions the entry to a terminal state, or — if the second
// caller is the *same* goroutine re-entering — the caller is expected to
// detect the cycle itself via the returned InFlight state before
// blocking (spec's "detect cyclic compile if the same thread re-enters").
type ModuleCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewModuleCache() *ModuleCache {
	return &ModuleCache{entries: make(map[string]*Entry)}
}

// Begin transitions uri to InFlight if it is Unresolved, returning the
// entry and true. If uri is already InFlight, returns the entry and
// false so the caller can choose to wait (concurrent case) or report a
// cycle (re-entrant case). If uri already has a terminal state, returns
// that entry unchanged and false.
func (c *ModuleCache) Begin(uri string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[uri]
	if !ok {
		e = &Entry{State: Unresolved, waiter: make(chan struct{})}
		c.entries[uri] = e
	}
	if e.State != Unresolved {
		return e, false
	}
	e.State = InFlight
	return e, true
}

// Wait blocks until e leaves the InFlight state.
func (e *Entry) Wait() {
	if e.State != InFlight {
		return
	}
	<-e.waiter
}

// CompleteParsed transitions uri's entry from InFlight to Parsed,
// recording the CST and waking any waiters.
func (c *ModuleCache) CompleteParsed(uri string, cst *ast.Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[uri]
	e.CST = cst
	e.State = Parsed
	close(e.waiter)
	e.waiter = make(chan struct{})
}

// CompleteCompiled transitions uri's entry to Compiled, recording the
// exported module value. Waiters are woken here only if the entry was
// still InFlight; CompleteParsed has already woken them otherwise.
func (c *ModuleCache) CompleteCompiled(uri string, v value.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[uri]
	e.Compiled = v
	if e.State != Parsed {
		close(e.waiter)
		e.waiter = make(chan struct{})
	}
	e.State = Compiled
}

// Fail transitions uri's entry to Failed, memoizing err so repeated
// evaluations of a broken module produce byte-identical error text
// (§7's testable property).
func (c *ModuleCache) Fail(uri string, err *perrors.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[uri]
	if !ok {
		e = &Entry{waiter: make(chan struct{})}
		c.entries[uri] = e
	}
	e.Err = err
	e.State = Failed
	close(e.waiter)
	e.waiter = make(chan struct{})
}

// Lookup returns uri's current entry, if any.
func (c *ModuleCache) Lookup(uri string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[uri]
	return e, ok
}

// Reset clears every entry. Used by tests.
func (c *ModuleCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}
