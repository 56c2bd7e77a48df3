// Package storage defines the boundary between the history/query/sync
// engine and the paged, memory-mapped file that actually owns the B+-tree
// array allocator (out of scope per §1 of the owning specification — see
// SPEC_FULL.md's S0 row). Everything above this package programs only
// against the Paged/ReadTxn/WriteTxn interfaces; memstorage.go supplies an
// in-process implementation for tests.
package storage

import "errors"

// ErrKeyNotFound is returned by ReadTxn.Get when a slot has never been
// written, the same sentinel-error shape the teacher uses for its own
// bucket lookups.
var ErrKeyNotFound = errors.New("storage: key not found")

// ErrClosed is returned by any operation attempted on a transaction or
// store after Close.
var ErrClosed = errors.New("storage: closed")

// ReadTxn is a read-only snapshot. Snapshots observe a single, consistent
// point-in-time view regardless of concurrent writers (MVCC).
type ReadTxn interface {
	// Get returns the root-array bytes for the given top-level slot, or
	// ErrKeyNotFound if nothing has ever been written there.
	Get(slot int) ([]byte, error)
	Close() error
}

// WriteTxn is the single mutator in flight at any one time. Reads made
// through a WriteTxn observe its own uncommitted writes.
type WriteTxn interface {
	ReadTxn
	Put(slot int, value []byte) error
	// Commit publishes the writes, atomically advancing the store's
	// snapshot version. After Commit or Rollback the txn is unusable.
	Commit() error
	Rollback() error
}

// Paged is the storage collaborator: a single-writer, many-reader paged
// file keyed by a small, fixed set of top-level root slots (see slots.go).
// Implementations must guarantee that at most one WriteTxn is outstanding
// at a time, and that a ReadTxn started before a Commit never observes
// writes made after it started.
type Paged interface {
	BeginRead() (ReadTxn, error)
	BeginWrite() (WriteTxn, error)
	Close() error
}
