package multistore

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/wbrown/tripledb/kv"
)

// pendingWrite is one staged mutation against a single named store.
type pendingWrite struct {
	key    []byte
	value  []byte
	remove bool
}

// Transaction stages writes against one or more named stores and
// commits them — per store, independently — when Commit is called.
// True cross-backend atomicity isn't available from the underlying
// embedded engines, so this is the "two-phase-ish" commit the design
// calls for: every store's staged batch is committed in turn, and any
// failures are aggregated rather than the first one aborting the rest,
// so the caller can see the full blast radius of a partial commit.
type Transaction struct {
	multistore *MultiStore
	scope      []string // nil: multistore's own scope (see names)
	writes     map[string][]pendingWrite
}

// NewTransaction opens a transaction against m scoped to names (nil for
// m's own scope).
func NewTransaction(m *MultiStore, names []string) *Transaction {
	return &Transaction{
		multistore: m,
		scope:      names,
		writes:     make(map[string][]pendingWrite),
	}
}

// Stores returns the store names this transaction currently operates
// over — its own scope, or the parent MultiStore's scope if unscoped.
func (t *Transaction) Stores() ([]string, error) {
	return t.names()
}

func (t *Transaction) names() ([]string, error) {
	if t.scope != nil {
		return t.scope, nil
	}
	// Falling through to the parent MultiStore's own scope (not its full
	// Names()) is what makes a transaction opened on a store built via
	// SetStorageScope/Options.StorageScope honor that scope: Transact
	// always opens with a nil scope, relying on this fallback rather
	// than re-deriving the scope itself.
	return t.multistore.scopedNames()
}

// WithScope returns a sub-operator sharing this transaction's staged
// writes, whose Scan and Stores are restricted to names. Set and Remove
// name their store explicitly and accept any store configured on the
// parent MultiStore.
func (t *Transaction) WithScope(names []string) *Transaction {
	return &Transaction{multistore: t.multistore, scope: names, writes: t.writes}
}

// Set stages a write against store.
func (t *Transaction) Set(store string, key, value []byte) error {
	if _, ok := t.multistore.stores[store]; !ok {
		return fmt.Errorf("multistore: unknown store %q", store)
	}
	t.writes[store] = append(t.writes[store], pendingWrite{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

// Remove stages a deletion against store.
func (t *Transaction) Remove(store string, key []byte) error {
	if _, ok := t.multistore.stores[store]; !ok {
		return fmt.Errorf("multistore: unknown store %q", store)
	}
	t.writes[store] = append(t.writes[store], pendingWrite{key: append([]byte(nil), key...), remove: true})
	return nil
}

// Scan reads across every store in scope, overlaying this
// transaction's own staged writes on top of each store's committed
// snapshot — read-your-own-writes within the transaction.
func (t *Transaction) Scan(args kv.ScanArgs) (kv.Cursor, error) {
	names, err := t.names()
	if err != nil {
		return nil, err
	}

	cursors := make([]kv.Cursor, 0, len(names))
	for _, n := range names {
		backend, ok := t.multistore.stores[n]
		if !ok {
			return nil, fmt.Errorf("multistore: unknown store %q", n)
		}
		base, err := backend.Scan(args)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, overlay(base, t.writes[n], args))
	}
	return newMergeCursor(cursors, args.Reverse), nil
}

// overlay layers pending (in this call's scan order) on top of base,
// honoring removes and later-Set-wins-over-earlier-Set, still
// respecting args' bounds for anything pending contributes.
func overlay(base kv.Cursor, pending []pendingWrite, args kv.ScanArgs) kv.Cursor {
	if len(pending) == 0 {
		return base
	}

	latest := make(map[string]pendingWrite)
	order := make([]string, 0, len(pending))
	for _, w := range pending {
		k := string(w.key)
		if _, seen := latest[k]; !seen {
			order = append(order, k)
		}
		latest[k] = w
	}

	var rows []kv.KV
	for base.Next() {
		item := base.Item()
		if w, staged := latest[string(item.Key)]; staged {
			if !w.remove {
				rows = append(rows, kv.KV{Key: w.key, Value: w.value})
			}
			delete(latest, string(item.Key))
			continue
		}
		rows = append(rows, item)
	}
	base.Close()

	for _, k := range order {
		w, ok := latest[k]
		if !ok || w.remove {
			continue
		}
		if !inScanBounds(w.key, args) {
			continue
		}
		rows = append(rows, kv.KV{Key: w.key, Value: w.value})
	}

	sortRows(rows, args.Reverse)
	return &sliceOnlyCursor{rows: rows, idx: -1}
}

func inScanBounds(key []byte, args kv.ScanArgs) bool {
	r := kv.Range{Prefix: args.Prefix, GT: args.GT, GTE: args.GTE, LT: args.LT, LTE: args.LTE}
	return r.Contains(key)
}

func sortRows(rows []kv.KV, reverse bool) {
	// Simple insertion sort: transaction-local batches are small, and
	// this keeps the dependency surface to the standard library here.
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			c := bytes.Compare(rows[j-1].Key, rows[j].Key)
			swap := c > 0
			if reverse {
				swap = c < 0
			}
			if !swap {
				break
			}
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
}

type sliceOnlyCursor struct {
	rows []kv.KV
	idx  int
}

func (c *sliceOnlyCursor) Next() bool {
	c.idx++
	return c.idx < len(c.rows)
}
func (c *sliceOnlyCursor) Item() kv.KV    { return c.rows[c.idx] }
func (c *sliceOnlyCursor) Err() error     { return nil }
func (c *sliceOnlyCursor) Close() error   { return nil }

// Commit flushes every store's staged batch. Per-store failures are
// aggregated with hashicorp/go-multierror rather than stopping at the
// first one.
func (t *Transaction) Commit() error {
	var result error
	for name, pending := range t.writes {
		if len(pending) == 0 {
			continue
		}
		backend := t.multistore.stores[name]
		err := backend.AutoTransact(func(tx kv.Tx) error {
			for _, w := range pending {
				if w.remove {
					if err := tx.Remove(w.key); err != nil {
						return err
					}
					continue
				}
				if err := tx.Set(w.key, w.value); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("store %q: %w", name, err))
		}
	}
	return result
}

// Cancel discards every staged write without touching any backend.
// The map is cleared in place, so views made by WithScope, which share
// it, see the writes discarded too.
func (t *Transaction) Cancel() error {
	for name := range t.writes {
		delete(t.writes, name)
	}
	return nil
}
