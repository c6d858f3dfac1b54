// Package engine owns the atomic database-snapshot handle queries read
// through and the directory watcher that replaces it when a newer
// compatible data version appears on disk.
package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/standardbeagle/silo/internal/persist"
	"github.com/standardbeagle/silo/internal/table"
)

// Database is one immutable, fully-finalized snapshot: a Table plus the
// data version it was loaded from. Once built it is never mutated;
// replacing the active snapshot means building a new Database and
// swapping the Engine's pointer to it.
type Database struct {
	Table   *table.Table
	Version persist.DataVersion
}

// FinalizeFunc supplies the lineage/phylogenetic trees a partition's
// Finalize needs; it is the caller's hook for parsing those alongside
// the columnar data directory.
type FinalizeFunc func(*table.Table, *table.TablePartition) error

// Engine holds the currently-active Database behind a single atomic
// pointer. Readers call Snapshot and keep the returned *Database alive
// for as long as their query runs; an in-flight query is never
// invalidated by a concurrent snapshot swap, since Go's garbage
// collector keeps a Database reachable as long as some reader still
// holds it; the swap only stops new readers from seeing the old one.
type Engine struct {
	current atomic.Pointer[Database]

	root     string
	finalize FinalizeFunc
}

// Open loads the newest compatible data version under root and returns
// an Engine serving it. finalize may be nil, in which case partitions
// are finalized with no lineage or phylogenetic trees attached.
func Open(root string, finalize FinalizeFunc) (*Engine, error) {
	e := &Engine{root: root, finalize: finalize}
	if err := e.reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Snapshot returns the currently active Database. Safe for concurrent
// use with Watch's background reloads.
func (e *Engine) Snapshot() *Database {
	return e.current.Load()
}

// reload loads the newest compatible data version from disk and
// atomically publishes it, replacing whatever snapshot was active.
func (e *Engine) reload() error {
	tbl, v, err := persist.Load(e.root, e.finalize)
	if err != nil {
		return fmt.Errorf("engine: loading %s: %w", e.root, err)
	}
	e.current.Store(&Database{Table: tbl, Version: v})
	return nil
}

// Reload is reload exported for callers (the watcher, or a manual
// refresh command) that trigger a reload outside the initial Open.
func (e *Engine) Reload() error { return e.reload() }

// newestVersion reports the data version on disk without loading it,
// used by the watcher to decide whether a reload is worth doing.
func (e *Engine) newestVersion() (persist.DataVersion, bool) {
	v, _, ok := persist.NewestCompatible(e.root)
	return v, ok
}

// stale reports whether a newer compatible data version than the
// currently active one is present on disk.
func (e *Engine) stale() bool {
	newest, ok := e.newestVersion()
	if !ok {
		return false
	}
	current := e.Snapshot()
	return current == nil || newest.Timestamp > current.Version.Timestamp
}
