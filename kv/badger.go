package kv

import (
	"bytes"

	"github.com/dgraph-io/badger/v4"
)

// badgerBackend is the production Backend, grounded directly on the
// teacher's BadgerStore (Assert/Scan/BeginTx): a single shared *badger.DB
// per process, one subspace prefix per named store.
type badgerBackend struct {
	db     *badger.DB
	owns   bool // true for the root backend that opened db; only it closes it
	prefix []byte
	broker *broker
}

// NewBadgerBackend opens (or creates) a BadgerDB database at path.
func NewBadgerBackend(path string) (Backend, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerBackend{db: db, owns: true, broker: newBroker()}, nil
}

func (b *badgerBackend) full(key []byte) []byte {
	if len(b.prefix) == 0 {
		return key
	}
	out := make([]byte, 0, len(b.prefix)+len(key))
	out = append(out, b.prefix...)
	out = append(out, key...)
	return out
}

func (b *badgerBackend) Scan(args ScanArgs) (Cursor, error) {
	lo, hi, _ := boundsFor(b.prefix, args)

	txn := b.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Reverse = args.Reverse
	it := txn.NewIterator(opts)

	// Reverse iteration seeks to the largest key <= seek; hi is an
	// exclusive upper bound, and any landing on hi itself is filtered
	// out by inRange below.
	seek := lo
	if args.Reverse {
		seek = hi
	}

	return &badgerCursor{
		txn:     txn,
		it:      it,
		lo:      lo,
		hi:      hi,
		seek:    seek,
		reverse: args.Reverse,
		prefix:  b.prefix,
	}, nil
}

type badgerCursor struct {
	txn      *badger.Txn
	it       *badger.Iterator
	lo, hi   []byte
	seek     []byte
	reverse  bool
	prefix   []byte
	started  bool
	item     KV
	err      error
}

func (c *badgerCursor) Next() bool {
	if !c.started {
		if c.seek != nil {
			c.it.Seek(c.seek)
		} else {
			c.it.Rewind()
		}
		c.started = true
	} else {
		c.it.Next()
	}

	for c.it.Valid() {
		key := c.it.Item().KeyCopy(nil)

		// The "near" bound (the one the seek key may land exactly on,
		// or just past) is skipped forward; the "far" bound ends the
		// scan outright.
		if c.reverse {
			if c.hi != nil && bytes.Compare(key, c.hi) >= 0 {
				c.it.Next()
				continue
			}
			if c.lo != nil && bytes.Compare(key, c.lo) < 0 {
				return false
			}
		} else {
			if c.lo != nil && bytes.Compare(key, c.lo) < 0 {
				c.it.Next()
				continue
			}
			if c.hi != nil && bytes.Compare(key, c.hi) >= 0 {
				return false
			}
		}

		val, err := c.it.Item().ValueCopy(nil)
		if err != nil {
			c.err = err
			return false
		}
		c.item = KV{Key: trimPrefix(key, c.prefix), Value: val}
		return true
	}
	return false
}

func (c *badgerCursor) Item() KV   { return c.item }
func (c *badgerCursor) Err() error { return c.err }
func (c *badgerCursor) Close() error {
	c.it.Close()
	c.txn.Discard()
	return nil
}

func (b *badgerBackend) AutoTransact(fn func(tx Tx) error) error {
	var batch WriteBatch
	err := b.db.Update(func(txn *badger.Txn) error {
		tx := &badgerTx{backend: b, txn: txn}
		if err := fn(tx); err != nil {
			return err
		}
		batch = tx.batch
		return nil
	})
	if err != nil {
		return err
	}
	if !batch.Empty() {
		b.broker.publish(batch)
	}
	return nil
}

func (b *badgerBackend) Subscribe(r Range, cb func(WriteBatch)) func() {
	return b.broker.subscribe(r, cb)
}

func (b *badgerBackend) Subspace(prefix []byte) Backend {
	full := append(append([]byte(nil), b.prefix...), prefix...)
	return &badgerBackend{db: b.db, owns: false, prefix: full, broker: b.broker}
}

func (b *badgerBackend) Clear() error {
	return b.AutoTransact(func(tx Tx) error {
		cur, err := b.Scan(ScanArgs{})
		if err != nil {
			return err
		}
		defer cur.Close()
		for cur.Next() {
			if err := tx.Remove(cur.Item().Key); err != nil {
				return err
			}
		}
		return cur.Err()
	})
}

func (b *badgerBackend) Close() error {
	if !b.owns {
		return nil
	}
	return b.db.Close()
}

type badgerTx struct {
	backend *badgerBackend
	txn     *badger.Txn
	batch   WriteBatch
}

func (t *badgerTx) Set(key, value []byte) error {
	if err := t.txn.Set(t.backend.full(key), value); err != nil {
		return err
	}
	t.batch.Sets = append(t.batch.Sets, KV{Key: key, Value: value})
	return nil
}

func (t *badgerTx) Remove(key []byte) error {
	if err := t.txn.Delete(t.backend.full(key)); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	t.batch.Removes = append(t.batch.Removes, key)
	return nil
}
