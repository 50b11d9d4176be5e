package kv

import (
	"bytes"

	"go.etcd.io/bbolt"
)

// boltBucketName is the single top-level bucket every boltBackend keeps
// its keys in; bbolt already stores a bucket's keys in byte order, so no
// further index structure is needed.
var boltBucketName = []byte("tripledb")

// boltBackend is grounded directly on the bbolt storage adapter in the
// closest embedded-database reference in the retrieval pack: the same
// Begin/Bucket/Cursor/Seek/Next/Prev shape, specialized to one bucket
// and wrapped with the ordered-KV Backend contract.
type boltBackend struct {
	db     *bbolt.DB
	owns   bool
	prefix []byte
	broker *broker
}

// NewBoltBackend opens (or creates) a bbolt database at path.
func NewBoltBackend(path string) (Backend, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &boltBackend{db: db, owns: true, broker: newBroker()}, nil
}

func (b *boltBackend) full(key []byte) []byte {
	if len(b.prefix) == 0 {
		return key
	}
	out := make([]byte, 0, len(b.prefix)+len(key))
	out = append(out, b.prefix...)
	out = append(out, key...)
	return out
}

func (b *boltBackend) Scan(args ScanArgs) (Cursor, error) {
	lo, hi, _ := boundsFor(b.prefix, args)

	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, err
	}
	bucket := tx.Bucket(boltBucketName)

	return &boltCursor{
		tx:      tx,
		bucket:  bucket,
		lo:      lo,
		hi:      hi,
		reverse: args.Reverse,
		prefix:  b.prefix,
	}, nil
}

type boltCursor struct {
	tx      *bbolt.Tx
	bucket  *bbolt.Bucket
	cur     *bbolt.Cursor
	lo, hi  []byte
	reverse bool
	prefix  []byte
	started bool
	item    KV
	done    bool
}

func (c *boltCursor) Next() bool {
	if c.done || c.bucket == nil {
		return false
	}
	if c.cur == nil {
		c.cur = c.bucket.Cursor()
	}
	cur := c.cur

	var k, v []byte
	if !c.started {
		c.started = true
		if c.reverse {
			k, v = seekLast(cur, c.hi)
		} else if c.lo != nil {
			k, v = cur.Seek(c.lo)
		} else {
			k, v = cur.First()
		}
	} else if c.reverse {
		k, v = cur.Prev()
	} else {
		k, v = cur.Next()
	}

	for k != nil {
		if c.reverse {
			if c.hi != nil && bytes.Compare(k, c.hi) >= 0 {
				k, v = cur.Prev()
				continue
			}
			if c.lo != nil && bytes.Compare(k, c.lo) < 0 {
				c.done = true
				return false
			}
		} else {
			if c.lo != nil && bytes.Compare(k, c.lo) < 0 {
				k, v = cur.Next()
				continue
			}
			if c.hi != nil && bytes.Compare(k, c.hi) >= 0 {
				c.done = true
				return false
			}
		}
		c.item = KV{Key: trimPrefix(k, c.prefix), Value: append([]byte(nil), v...)}
		return true
	}
	c.done = true
	return false
}

// seekLast positions cur at the greatest key strictly less than hi (or
// at the last key in the bucket if hi is nil), mirroring the
// prefix-bounded SeekLast helper this design is grounded on.
func seekLast(cur *bbolt.Cursor, hi []byte) ([]byte, []byte) {
	if hi == nil {
		return cur.Last()
	}
	k, v := cur.Seek(hi)
	if k == nil {
		return cur.Last()
	}
	if bytes.Compare(k, hi) >= 0 {
		return cur.Prev()
	}
	return k, v
}

func (c *boltCursor) Item() KV   { return c.item }
func (c *boltCursor) Err() error { return nil }
func (c *boltCursor) Close() error {
	return c.tx.Rollback()
}

func (b *boltBackend) AutoTransact(fn func(tx Tx) error) error {
	var batch WriteBatch
	err := func() error {
		btx, err := b.db.Begin(true)
		if err != nil {
			return err
		}
		bucket, err := btx.CreateBucketIfNotExists(boltBucketName)
		if err != nil {
			btx.Rollback()
			return err
		}
		t := &boltTx{backend: b, bucket: bucket}
		if err := fn(t); err != nil {
			btx.Rollback()
			return err
		}
		if err := btx.Commit(); err != nil {
			return err
		}
		batch = t.batch
		return nil
	}()
	if err != nil {
		return err
	}
	if !batch.Empty() {
		b.broker.publish(batch)
	}
	return nil
}

func (b *boltBackend) Subscribe(r Range, cb func(WriteBatch)) func() {
	return b.broker.subscribe(r, cb)
}

func (b *boltBackend) Subspace(prefix []byte) Backend {
	full := append(append([]byte(nil), b.prefix...), prefix...)
	return &boltBackend{db: b.db, owns: false, prefix: full, broker: b.broker}
}

func (b *boltBackend) Clear() error {
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

func (b *boltBackend) Close() error {
	if !b.owns {
		return nil
	}
	return b.db.Close()
}

type boltTx struct {
	backend *boltBackend
	bucket  *bbolt.Bucket
	batch   WriteBatch
}

func (t *boltTx) Set(key, value []byte) error {
	if err := t.bucket.Put(t.backend.full(key), value); err != nil {
		return err
	}
	t.batch.Sets = append(t.batch.Sets, KV{Key: key, Value: value})
	return nil
}

func (t *boltTx) Remove(key []byte) error {
	if err := t.bucket.Delete(t.backend.full(key)); err != nil {
		return err
	}
	t.batch.Removes = append(t.batch.Removes, key)
	return nil
}
