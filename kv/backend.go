// Package kv defines the ordered key-value backend contract (SPEC_FULL.md
// §4.A) that every physical storage engine — Badger, bbolt, or the
// in-memory default — implements identically, plus the byte-range
// subscription broker (§4.H) shared by all three.
package kv

import "bytes"

// KV is a single stored key/value pair, returned by Cursor during a scan.
type KV struct {
	Key   []byte
	Value []byte
}

// ScanArgs bounds an ordered range scan. Prefix, when set, additionally
// restricts the scan (and lets a backend use a native prefix iterator);
// at most one of GT/GTE and at most one of LT/LTE should be set. All
// bounds are raw encoded bytes — the index package is the only caller
// that knows how to build them from logical tuples.
type ScanArgs struct {
	Prefix  []byte
	GT, GTE []byte
	LT, LTE []byte
	Reverse bool
}

// Cursor iterates the rows satisfying a ScanArgs, in key order (or
// reverse key order when ScanArgs.Reverse is set).
type Cursor interface {
	Next() bool
	Item() KV
	Err() error
	Close() error
}

// Tx is the write side of a transaction: every Set/Remove lands
// atomically when the enclosing AutoTransact callback returns nil.
type Tx interface {
	Set(key, value []byte) error
	Remove(key []byte) error
}

// WriteBatch is the set of mutations a committed transaction made,
// delivered to subscribers whose Range intersects it.
type WriteBatch struct {
	Sets    []KV
	Removes [][]byte
}

func (b WriteBatch) Empty() bool { return len(b.Sets) == 0 && len(b.Removes) == 0 }

// Range describes a byte-range subscription filter — the same shape as
// the bounds half of ScanArgs, minus Reverse (subscriptions have no
// direction).
type Range struct {
	Prefix  []byte
	GT, GTE []byte
	LT, LTE []byte
}

// Contains reports whether key falls within r. An empty Range (no bound
// set at all) matches every key.
func (r Range) Contains(key []byte) bool {
	if len(r.Prefix) > 0 && !bytes.HasPrefix(key, r.Prefix) {
		return false
	}
	if len(r.GT) > 0 && bytes.Compare(key, r.GT) <= 0 {
		return false
	}
	if len(r.GTE) > 0 && bytes.Compare(key, r.GTE) < 0 {
		return false
	}
	if len(r.LT) > 0 && bytes.Compare(key, r.LT) >= 0 {
		return false
	}
	if len(r.LTE) > 0 && bytes.Compare(key, r.LTE) > 0 {
		return false
	}
	return true
}

// Backend is the ordered key-value store contract every physical engine
// satisfies (component A). Backends are safe for concurrent use; write
// ordering is serialized by AutoTransact the way the teacher's BadgerDB
// store serializes commits.
type Backend interface {
	// Scan returns an iterator over the rows matching args.
	Scan(args ScanArgs) (Cursor, error)

	// AutoTransact runs fn inside a single read-write transaction,
	// committing iff fn returns nil and rolling back otherwise. Nested
	// calls from within fn are not supported, matching the teacher's
	// single-level BadgerDB transaction model.
	AutoTransact(fn func(tx Tx) error) error

	// Subscribe registers cb to be invoked, after each successful
	// commit, with the subset of that commit's WriteBatch falling
	// inside r. It returns a function that cancels the subscription.
	Subscribe(r Range, cb func(WriteBatch)) (unsubscribe func())

	// Subspace returns a Backend that transparently prepends prefix to
	// every key it reads or writes — the mechanism multistore uses to
	// give every named store its own tenant-scoped keyspace on a
	// backend the tenant may share with other stores.
	Subspace(prefix []byte) Backend

	// Clear deletes every key in this backend's keyspace (its own
	// Subspace prefix only, if any).
	Clear() error

	// Close releases any resources (file handles, background
	// compaction goroutines) the backend holds.
	Close() error
}
