package multistore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wbrown/tripledb/kv"
)

func TestTransactionCommitWritesToBackingStore(t *testing.T) {
	m := newTwoStore(t)
	tx := NewTransaction(m, nil)

	require.NoError(t, tx.Set("hot", []byte("a"), []byte("1")))
	require.NoError(t, tx.Set("cold", []byte("b"), []byte("2")))
	require.NoError(t, tx.Commit())

	hotCur, err := m.stores["hot"].Scan(kv.ScanArgs{})
	require.NoError(t, err)
	hotRows := collect(t, hotCur)
	require.Len(t, hotRows, 1)
	require.Equal(t, "1", string(hotRows[0].Value))

	coldCur, err := m.stores["cold"].Scan(kv.ScanArgs{})
	require.NoError(t, err)
	coldRows := collect(t, coldCur)
	require.Len(t, coldRows, 1)
	require.Equal(t, "2", string(coldRows[0].Value))
}

func TestTransactionScanSeesOwnStagedWrites(t *testing.T) {
	m := newTwoStore(t)
	require.NoError(t, m.stores["hot"].AutoTransact(func(tx kv.Tx) error {
		return tx.Set([]byte("a"), []byte("committed"))
	}))

	tx := NewTransaction(m, nil)
	require.NoError(t, tx.Set("hot", []byte("b"), []byte("staged")))

	cur, err := tx.Scan(kv.ScanArgs{})
	require.NoError(t, err)
	got := collect(t, cur)
	require.Equal(t, []string{"a", "b"}, keysOf(got))
}

func TestTransactionScanHidesStagedRemoves(t *testing.T) {
	m := newTwoStore(t)
	require.NoError(t, m.stores["hot"].AutoTransact(func(tx kv.Tx) error {
		return tx.Set([]byte("a"), []byte("committed"))
	}))

	tx := NewTransaction(m, nil)
	require.NoError(t, tx.Remove("hot", []byte("a")))

	cur, err := tx.Scan(kv.ScanArgs{})
	require.NoError(t, err)
	require.Empty(t, collect(t, cur))
}

func TestTransactionStagedSetOverridesCommittedValue(t *testing.T) {
	m := newTwoStore(t)
	require.NoError(t, m.stores["hot"].AutoTransact(func(tx kv.Tx) error {
		return tx.Set([]byte("a"), []byte("old"))
	}))

	tx := NewTransaction(m, nil)
	require.NoError(t, tx.Set("hot", []byte("a"), []byte("new")))

	cur, err := tx.Scan(kv.ScanArgs{})
	require.NoError(t, err)
	got := collect(t, cur)
	require.Len(t, got, 1)
	require.Equal(t, "new", string(got[0].Value))
}

func TestTransactionCancelDiscardsStagedWrites(t *testing.T) {
	m := newTwoStore(t)
	tx := NewTransaction(m, nil)
	require.NoError(t, tx.Set("hot", []byte("a"), []byte("1")))
	require.NoError(t, tx.Cancel())
	require.NoError(t, tx.Commit())

	cur, err := m.stores["hot"].Scan(kv.ScanArgs{})
	require.NoError(t, err)
	require.Empty(t, collect(t, cur))
}

func TestTransactionWithScopeSharesStagedWrites(t *testing.T) {
	m := newTwoStore(t)
	tx := NewTransaction(m, nil)
	require.NoError(t, tx.Set("hot", []byte("a"), []byte("1")))

	scoped := tx.WithScope([]string{"hot"})
	require.NoError(t, scoped.Set("hot", []byte("b"), []byte("2")))

	require.NoError(t, tx.Commit())

	hotCur, err := m.stores["hot"].Scan(kv.ScanArgs{})
	require.NoError(t, err)
	require.Len(t, collect(t, hotCur), 2)
}

func TestTransactionSetUnknownStoreErrors(t *testing.T) {
	m := newTwoStore(t)
	tx := NewTransaction(m, nil)
	require.Error(t, tx.Set("nonexistent", []byte("a"), []byte("1")))
}
