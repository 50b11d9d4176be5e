// Package multistore implements the logical fan-out over named ordered-
// KV backends sharing a tenant prefix (SPEC_FULL.md §4.A/§4.B): one
// Scan/Subscribe/Clear surface that routes to whichever backends are
// currently in scope, and a Transaction that stages writes per backend
// and commits them when Commit is called.
package multistore

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/wbrown/tripledb/kv"
)

// MultiStore is a named collection of kv.Backend, restricted to a
// subset ("scope") of names for any one operation.
type MultiStore struct {
	stores map[string]kv.Backend
	scope  []string // nil means "every store"
}

// New builds a MultiStore over stores, each already tenant-scoped by
// the caller (typically via Backend.Subspace(tenantPrefix)).
func New(stores map[string]kv.Backend) *MultiStore {
	return &MultiStore{stores: stores}
}

// Names returns the full set of configured store names, sorted.
func (m *MultiStore) Names() []string {
	names := make([]string, 0, len(m.stores))
	for n := range m.stores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *MultiStore) scopedNames() ([]string, error) {
	if m.scope == nil {
		return m.Names(), nil
	}
	for _, n := range m.scope {
		if _, ok := m.stores[n]; !ok {
			return nil, fmt.Errorf("multistore: unknown store %q", n)
		}
	}
	out := append([]string(nil), m.scope...)
	sort.Strings(out)
	return out, nil
}

// WithScope returns a MultiStore sharing the same backends but
// restricted to names for every subsequent operation.
func (m *MultiStore) WithScope(names []string) *MultiStore {
	return &MultiStore{stores: m.stores, scope: append([]string(nil), names...)}
}

// Subspace returns a MultiStore whose every backend is wrapped with
// Backend.Subspace(prefix) — the mechanism a tenant id or a
// per-deployment namespace is applied with.
func (m *MultiStore) Subspace(prefix []byte) *MultiStore {
	wrapped := make(map[string]kv.Backend, len(m.stores))
	for name, b := range m.stores {
		wrapped[name] = b.Subspace(prefix)
	}
	return &MultiStore{stores: wrapped, scope: m.scope}
}

// Scan merge-sorts the scans from every store in scope into one
// ordered Cursor.
func (m *MultiStore) Scan(args kv.ScanArgs) (kv.Cursor, error) {
	names, err := m.scopedNames()
	if err != nil {
		return nil, err
	}

	cursors := make([]kv.Cursor, 0, len(names))
	for _, n := range names {
		c, err := m.stores[n].Scan(args)
		if err != nil {
			for _, opened := range cursors {
				opened.Close()
			}
			return nil, fmt.Errorf("multistore: scanning store %q: %w", n, err)
		}
		cursors = append(cursors, c)
	}
	return newMergeCursor(cursors, args.Reverse), nil
}

// Subscribe registers cb on every store in scope; the returned function
// cancels every underlying subscription.
func (m *MultiStore) Subscribe(r kv.Range, cb func(kv.WriteBatch)) (func(), error) {
	names, err := m.scopedNames()
	if err != nil {
		return nil, err
	}
	unsubs := make([]func(), 0, len(names))
	for _, n := range names {
		unsubs = append(unsubs, m.stores[n].Subscribe(r, cb))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}, nil
}

// Clear drops all data from every store in scope, aggregating any
// per-store failures.
func (m *MultiStore) Clear() error {
	names, err := m.scopedNames()
	if err != nil {
		return err
	}
	var result error
	for _, n := range names {
		if err := m.stores[n].Clear(); err != nil {
			result = multierror.Append(result, fmt.Errorf("store %q: %w", n, err))
		}
	}
	return result
}

// Close closes every configured backend, regardless of scope.
func (m *MultiStore) Close() error {
	var result error
	for name, b := range m.stores {
		if err := b.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("store %q: %w", name, err))
		}
	}
	return result
}

// mergeCursor k-way merges already-ordered per-store cursors into one
// ordered stream. Rows with equal keys from different stores come out
// in no defined order.
type mergeCursor struct {
	items   cursorHeap
	reverse bool
	current kv.KV
	err     error
}

type cursorHeapItem struct {
	cur kv.Cursor
	kv  kv.KV
}

type cursorHeap struct {
	items   []*cursorHeapItem
	reverse bool
}

func (h cursorHeap) Len() int { return len(h.items) }
func (h cursorHeap) Less(i, j int) bool {
	c := compareBytes(h.items[i].kv.Key, h.items[j].kv.Key)
	if h.reverse {
		return c > 0
	}
	return c < 0
}
func (h cursorHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *cursorHeap) Push(x interface{}) { h.items = append(h.items, x.(*cursorHeapItem)) }
func (h *cursorHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func compareBytes(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}

func newMergeCursor(cursors []kv.Cursor, reverse bool) *mergeCursor {
	h := cursorHeap{reverse: reverse}
	for _, c := range cursors {
		if c.Next() {
			heap.Push(&h, &cursorHeapItem{cur: c, kv: c.Item()})
		} else {
			c.Close()
		}
	}
	heap.Init(&h)
	return &mergeCursor{items: h, reverse: reverse}
}

func (m *mergeCursor) Next() bool {
	if m.items.Len() == 0 {
		return false
	}
	top := heap.Pop(&m.items).(*cursorHeapItem)
	m.current = top.kv
	if top.cur.Next() {
		heap.Push(&m.items, &cursorHeapItem{cur: top.cur, kv: top.cur.Item()})
	} else {
		if err := top.cur.Err(); err != nil {
			m.err = err
		}
		top.cur.Close()
	}
	return true
}

func (m *mergeCursor) Item() kv.KV { return m.current }
func (m *mergeCursor) Err() error  { return m.err }
func (m *mergeCursor) Close() error {
	var result error
	for _, it := range m.items.items {
		if err := it.cur.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
