package kv

import (
	"bytes"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
)

// memoryBackend is the default, dependency-free Backend: an in-memory
// ordered map. It is what the test suite and any embedded/ephemeral
// deployment runs against, the way the teacher's tests lean on its own
// in-process fakes rather than spinning up BadgerDB.
type memoryBackend struct {
	mu     *sync.RWMutex // shared with every Subspace over the same data
	data   *treemap.Map
	prefix []byte
	broker *broker
}

// NewMemoryBackend returns a fresh, empty in-memory Backend.
func NewMemoryBackend() Backend {
	return &memoryBackend{
		mu: &sync.RWMutex{},
		data: treemap.NewWith(func(a, b interface{}) int {
			return bytes.Compare(a.([]byte), b.([]byte))
		}),
		broker: newBroker(),
	}
}

func (m *memoryBackend) full(key []byte) []byte {
	if len(m.prefix) == 0 {
		return key
	}
	out := make([]byte, 0, len(m.prefix)+len(key))
	out = append(out, m.prefix...)
	out = append(out, key...)
	return out
}

func (m *memoryBackend) Scan(args ScanArgs) (Cursor, error) {
	lo, hi, ok := boundsFor(m.prefix, args)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []KV
	if ok {
		iter := m.data.Iterator()
		for iter.Next() {
			k := iter.Key().([]byte)
			if lo != nil && bytes.Compare(k, lo) < 0 {
				continue
			}
			if hi != nil && bytes.Compare(k, hi) >= 0 {
				break
			}
			rows = append(rows, KV{Key: trimPrefix(k, m.prefix), Value: append([]byte(nil), iter.Value().([]byte)...)})
		}
	}
	if args.Reverse {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return &sliceCursor{rows: rows, idx: -1}, nil
}

func trimPrefix(full, prefix []byte) []byte {
	if len(prefix) == 0 {
		return full
	}
	return append([]byte(nil), full[len(prefix):]...)
}

// boundsFor turns ScanArgs (relative to this subspace) into an absolute
// [lo, hi) byte range over the underlying map. ok is always true; args
// that describe an empty range yield lo >= hi, which matches no key.
func boundsFor(prefix []byte, args ScanArgs) (lo, hi []byte, ok bool) {
	base := append([]byte(nil), prefix...)

	lo = append(append([]byte(nil), base...), args.Prefix...)
	if len(args.GTE) > 0 {
		lo = append(append([]byte(nil), base...), args.GTE...)
	} else if len(args.GT) > 0 {
		lo = incremented(append(append([]byte(nil), base...), args.GT...))
	}

	if len(args.LTE) > 0 {
		hi = incremented(append(append([]byte(nil), base...), args.LTE...))
	} else if len(args.LT) > 0 {
		hi = append(append([]byte(nil), base...), args.LT...)
	} else {
		hi = prefixUpperBound(append(append([]byte(nil), base...), args.Prefix...))
	}
	return lo, hi, true
}

// incremented returns the smallest byte string strictly greater than b
// under every extension of b (i.e. b++ in the usual prefix sense).
func incremented(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	// All 0xFF: no finite successor: unbounded above.
	return nil
}

func prefixUpperBound(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	return incremented(p)
}

func (m *memoryBackend) AutoTransact(fn func(tx Tx) error) error {
	m.mu.Lock()
	tx := &memoryTx{backend: m}
	err := fn(tx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	batch := tx.apply()
	m.mu.Unlock()
	if !batch.Empty() {
		m.broker.publish(batch)
	}
	return nil
}

func (m *memoryBackend) Subscribe(r Range, cb func(WriteBatch)) func() {
	return m.broker.subscribe(r, cb)
}

func (m *memoryBackend) Subspace(prefix []byte) Backend {
	full := append(append([]byte(nil), m.prefix...), prefix...)
	return &memoryBackend{data: m.data, prefix: full, broker: m.broker, mu: m.mu}
}

func (m *memoryBackend) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var toRemove [][]byte
	iter := m.data.Iterator()
	for iter.Next() {
		k := iter.Key().([]byte)
		if bytes.HasPrefix(k, m.prefix) {
			toRemove = append(toRemove, k)
		}
	}
	for _, k := range toRemove {
		m.data.Remove(k)
	}
	return nil
}

func (m *memoryBackend) Close() error { return nil }

type memoryTx struct {
	backend *memoryBackend
	sets    []KV
	removes [][]byte
}

func (t *memoryTx) Set(key, value []byte) error {
	t.sets = append(t.sets, KV{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
	return nil
}

func (t *memoryTx) Remove(key []byte) error {
	t.removes = append(t.removes, append([]byte(nil), key...))
	return nil
}

// apply writes the buffered mutations under the backend's lock, which
// the caller (AutoTransact) already holds, and returns the batch in
// subspace-relative (unprefixed) key form for publication.
func (t *memoryTx) apply() WriteBatch {
	var batch WriteBatch
	for _, kv := range t.sets {
		full := t.backend.full(kv.Key)
		t.backend.data.Put(full, kv.Value)
		batch.Sets = append(batch.Sets, KV{Key: kv.Key, Value: kv.Value})
	}
	for _, k := range t.removes {
		full := t.backend.full(k)
		t.backend.data.Remove(full)
		batch.Removes = append(batch.Removes, k)
	}
	return batch
}

type sliceCursor struct {
	rows []KV
	idx  int
}

func (c *sliceCursor) Next() bool {
	c.idx++
	return c.idx < len(c.rows)
}

func (c *sliceCursor) Item() KV   { return c.rows[c.idx] }
func (c *sliceCursor) Err() error { return nil }
func (c *sliceCursor) Close() error { return nil }
