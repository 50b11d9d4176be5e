package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, c Cursor) []KV {
	t.Helper()
	var out []KV
	for c.Next() {
		out = append(out, c.Item())
	}
	require.NoError(t, c.Err())
	require.NoError(t, c.Close())
	return out
}

func TestMemoryBackendSetScan(t *testing.T) {
	b := NewMemoryBackend()

	require.NoError(t, b.AutoTransact(func(tx Tx) error {
		require.NoError(t, tx.Set([]byte("a"), []byte("1")))
		require.NoError(t, tx.Set([]byte("c"), []byte("3")))
		require.NoError(t, tx.Set([]byte("b"), []byte("2")))
		return nil
	}))

	rows, err := b.Scan(ScanArgs{})
	require.NoError(t, err)
	got := collect(t, rows)
	require.Len(t, got, 3)
	require.Equal(t, "a", string(got[0].Key))
	require.Equal(t, "b", string(got[1].Key))
	require.Equal(t, "c", string(got[2].Key))
}

func TestMemoryBackendScanBounds(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.AutoTransact(func(tx Tx) error {
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := tx.Set([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	cur, err := b.Scan(ScanArgs{GTE: []byte("b"), LT: []byte("d")})
	require.NoError(t, err)
	got := collect(t, cur)
	require.Equal(t, []string{"b", "c"}, keysOf(got))
}

func TestMemoryBackendScanReverse(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.AutoTransact(func(tx Tx) error {
		for _, k := range []string{"a", "b", "c"} {
			if err := tx.Set([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	cur, err := b.Scan(ScanArgs{Reverse: true})
	require.NoError(t, err)
	got := collect(t, cur)
	require.Equal(t, []string{"c", "b", "a"}, keysOf(got))
}

func TestMemoryBackendTransactionRollsBackOnError(t *testing.T) {
	b := NewMemoryBackend()
	err := b.AutoTransact(func(tx Tx) error {
		require.NoError(t, tx.Set([]byte("x"), []byte("1")))
		return errCommitFail
	})
	require.Error(t, err)

	cur, _ := b.Scan(ScanArgs{})
	require.Empty(t, collect(t, cur))
}

var errCommitFail = errTest("rule violated")

type errTest string

func (e errTest) Error() string { return string(e) }

func TestMemoryBackendSubspaceIsolatesKeys(t *testing.T) {
	root := NewMemoryBackend()
	left := root.Subspace([]byte("left/"))
	right := root.Subspace([]byte("right/"))

	require.NoError(t, left.AutoTransact(func(tx Tx) error {
		return tx.Set([]byte("k"), []byte("L"))
	}))
	require.NoError(t, right.AutoTransact(func(tx Tx) error {
		return tx.Set([]byte("k"), []byte("R"))
	}))

	leftRows := collect(t, mustScan(t, left))
	require.Len(t, leftRows, 1)
	require.Equal(t, "L", string(leftRows[0].Value))

	rightRows := collect(t, mustScan(t, right))
	require.Len(t, rightRows, 1)
	require.Equal(t, "R", string(rightRows[0].Value))
}

func TestMemoryBackendSubscribeDeliversFilteredBatch(t *testing.T) {
	b := NewMemoryBackend()
	var got WriteBatch
	unsub := b.Subscribe(Range{Prefix: []byte("watched/")}, func(batch WriteBatch) {
		got = batch
	})
	defer unsub()

	require.NoError(t, b.AutoTransact(func(tx Tx) error {
		require.NoError(t, tx.Set([]byte("watched/1"), []byte("v")))
		require.NoError(t, tx.Set([]byte("ignored/1"), []byte("v")))
		return nil
	}))

	require.Len(t, got.Sets, 1)
	require.Equal(t, "watched/1", string(got.Sets[0].Key))
}

func keysOf(rows []KV) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r.Key)
	}
	return out
}

func mustScan(t *testing.T, b Backend) Cursor {
	t.Helper()
	c, err := b.Scan(ScanArgs{})
	require.NoError(t, err)
	return c
}
