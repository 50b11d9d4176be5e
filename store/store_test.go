package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/tripledb/clock"
	"github.com/wbrown/tripledb/index"
	"github.com/wbrown/tripledb/kv"
	"github.com/wbrown/tripledb/triples"
)

func newTestStore(t *testing.T) *TripleStore {
	t.Helper()
	s, err := New(Options{Storage: kv.NewMemoryBackend()})
	require.NoError(t, err)
	return s
}

func usersName() triples.Attribute { return triples.Attr("users", "name") }

func TestNewRequiresExactlyOneOfStorageOrStores(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	var optErr *triples.TripleStoreOptionsError
	require.True(t, errors.As(err, &optErr))

	_, err = New(Options{
		Storage: kv.NewMemoryBackend(),
		Stores:  map[string]kv.Backend{"a": kv.NewMemoryBackend()},
	})
	require.Error(t, err)
	require.True(t, errors.As(err, &optErr))
}

func TestNewAcceptsSingleBackendOrNamedMap(t *testing.T) {
	_, err := New(Options{Storage: kv.NewMemoryBackend()})
	require.NoError(t, err)

	_, err = New(Options{Stores: map[string]kv.Backend{
		"hot":  kv.NewMemoryBackend(),
		"cold": kv.NewMemoryBackend(),
	}})
	require.NoError(t, err)
}

func TestNewRejectsUnknownStorageType(t *testing.T) {
	_, err := New(Options{Storage: "not-a-backend"})
	require.Error(t, err)
	var optErr *triples.TripleStoreOptionsError
	require.True(t, errors.As(err, &optErr))
}

// S1
func TestScenarioInsertThenFindByEntityAndAttribute(t *testing.T) {
	s := newTestStore(t)

	row := triples.NewTripleRow("e1", usersName(), "Ada")
	row.Timestamp = triples.Timestamp{Counter: 1, ClientID: "c1"}
	require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))

	byEntity, err := s.FindByEntity("e1")
	require.NoError(t, err)
	require.Len(t, byEntity, 1)
	require.Equal(t, "Ada", byEntity[0].Value)

	byAttr, err := s.FindByAttribute(usersName())
	require.NoError(t, err)
	require.Len(t, byAttr, 1)
	require.True(t, byAttr[0].Equal(byEntity[0]))

	ts, found, err := s.FindMaxTimestamp("c1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, triples.Timestamp{Counter: 1, ClientID: "c1"}, ts)
}

// S2
func TestScenarioDuplicateInsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	row := triples.NewTripleRow("e1", usersName(), "Ada")
	row.Timestamp = triples.Timestamp{Counter: 1, ClientID: "c1"}
	require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))
	require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))

	rows, err := s.FindByEntity("e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	expired := row
	expired.Expired = true
	require.NoError(t, s.InsertTriples([]triples.TripleRow{expired}))

	rows, err = s.FindByEntity("e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Expired)
}

// S3
func TestScenarioSetValueKeepsPriorVersion(t *testing.T) {
	c := clock.NewClock("c1")
	s, err := New(Options{Storage: kv.NewMemoryBackend(), Clock: c})
	require.NoError(t, err)

	row := triples.NewTripleRow("e1", usersName(), "Ada")
	row.Timestamp = triples.Timestamp{Counter: 1, ClientID: "c1"}
	require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))
	// An explicit insert does not consult the clock; re-seed it from the
	// store, as a restart would, so the next transaction stamps (2, c1).
	require.NoError(t, c.AssignToStore(s))

	require.NoError(t, s.SetValues([]SetValueInput{
		{Entity: "e1", Attribute: usersName(), Value: "Grace"},
	}))

	rows, err := s.FindByEntityAttribute("e1", usersName())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, uint64(1), rows[0].Timestamp.Counter)
	require.Equal(t, uint64(2), rows[1].Timestamp.Counter)
	require.Equal(t, "Grace", rows[1].Value)
}

// S4
func TestScenarioSetValueBlockedByFutureFact(t *testing.T) {
	s, err := New(Options{Storage: kv.NewMemoryBackend()})
	require.NoError(t, err)

	future := triples.NewTripleRow("e1", usersName(), "X")
	future.Timestamp = triples.Timestamp{Counter: 5, ClientID: "c1"}
	require.NoError(t, s.InsertTriples([]triples.TripleRow{future}))

	err = s.Transact(func(tx *Transaction) error {
		tx.ts = &triples.Timestamp{Counter: 3, ClientID: "c1"}
		return tx.SetValues([]SetValueInput{
			{Entity: "e1", Attribute: usersName(), Value: "Y"},
		})
	})
	require.NoError(t, err)

	rows, err := s.FindByEntityAttribute("e1", usersName())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "X", rows[0].Value)
}

// S5
func TestScenarioFindByClientTimestampGreaterThan(t *testing.T) {
	s := newTestStore(t)

	for i := uint64(1); i <= 4; i++ {
		row := triples.NewTripleRow("e1", triples.Attr("users", "field", i), "v")
		row.Timestamp = triples.Timestamp{Counter: i, ClientID: "c1"}
		require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))
	}

	rows, err := s.FindByClientTimestamp("c1", index.OpGT, triples.Timestamp{Counter: 2, ClientID: "c1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[0].Timestamp.Before(rows[1].Timestamp))
	for _, r := range rows {
		require.True(t, r.Timestamp.Counter > 2)
	}
}

// S6
func TestScenarioExpireEntityTombstonesAndNotifies(t *testing.T) {
	s := newTestStore(t)

	row := triples.NewTripleRow("e1", usersName(), "Ada")
	row.Timestamp = triples.Timestamp{Counter: 1, ClientID: "c1"}
	require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))
	require.NoError(t, s.InsertTriples([]triples.TripleRow{
		func() triples.TripleRow {
			r := triples.NewTripleRow("e1", collectionAttribute, "users")
			r.Timestamp = triples.Timestamp{Counter: 1, ClientID: "c1"}
			return r
		}(),
	}))

	var inserted []triples.TripleRow
	var written []triples.TripleRow
	unsubInsert := s.OnInsert(func(r triples.TripleRow) { inserted = append(inserted, r) })
	defer unsubInsert()
	unsubWrite := s.OnWrite(func(r triples.TripleRow) { written = append(written, r) })
	defer unsubWrite()

	require.NoError(t, s.ExpireEntity("e1"))

	rows, err := s.FindByEntity("e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Expired)
	require.True(t, rows[0].Attribute.Equal(collectionAttribute))

	foundInsertedTombstone := false
	for _, r := range inserted {
		if r.Attribute.Equal(collectionAttribute) && r.Expired {
			foundInsertedTombstone = true
		}
	}
	require.True(t, foundInsertedTombstone)

	sawDelete := false
	for _, r := range written {
		if r.Attribute.Equal(usersName()) {
			sawDelete = true
		}
	}
	require.True(t, sawDelete)
}

func TestExpireEntityAttributesWritesTombstones(t *testing.T) {
	s := newTestStore(t)

	row := triples.NewTripleRow("e1", usersName(), "Ada")
	row.Timestamp = triples.Timestamp{Counter: 1, ClientID: "c1"}
	require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))

	require.NoError(t, s.ExpireEntityAttributes([]EntityAttribute{
		{Entity: "e1", Attribute: usersName()},
	}))

	rows, err := s.FindByEntityAttribute("e1", usersName())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Expired)
	require.Nil(t, rows[0].Value)
}

func TestMetadataTupleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	pair := []EntityAttribute{{Entity: "e1", Attribute: triples.Attr("owner")}}

	require.NoError(t, s.UpdateMetadataTuples([]triples.MetadataTuple{
		{Entity: "e1", Attribute: triples.Attr("owner"), Value: "alice"},
	}))

	found, err := s.ReadMetadataTuples(pair)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "alice", found[0].Value)

	require.NoError(t, s.DeleteMetadataTuples(pair))
	found, err = s.ReadMetadataTuples(pair)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestBeforeInsertHookCanVetoInsert(t *testing.T) {
	s := newTestStore(t)

	vetoErr := triples.NewWriteRuleError("no dice", nil)
	s.BeforeInsert(func(rows []triples.TripleRow, tx *Transaction) error {
		return vetoErr
	})

	row := triples.NewTripleRow("e1", usersName(), "Ada")
	err := s.InsertTriples([]triples.TripleRow{row})
	require.ErrorIs(t, err, vetoErr)

	rows, err := s.FindByEntity("e1")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestBeforeCommitHookRunsBeforeFlush(t *testing.T) {
	s := newTestStore(t)

	var ran bool
	s.BeforeCommit(func(tx *Transaction) error {
		ran = true
		return nil
	})

	row := triples.NewTripleRow("e1", usersName(), "Ada")
	require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))
	require.True(t, ran)
}

func TestTransactNonWriteRuleErrorPropagatesWithoutCancel(t *testing.T) {
	s := newTestStore(t)

	plain := errors.New("boom")
	err := s.Transact(func(tx *Transaction) error {
		row := triples.NewTripleRow("e1", usersName(), "Ada")
		if err := tx.InsertTriples([]triples.TripleRow{row}); err != nil {
			return err
		}
		return plain
	})
	require.ErrorIs(t, err, plain)
}

func TestSetStorageScopeRestrictsReads(t *testing.T) {
	hot := kv.NewMemoryBackend()
	cold := kv.NewMemoryBackend()
	s, err := New(Options{Stores: map[string]kv.Backend{"hot": hot, "cold": cold}})
	require.NoError(t, err)

	scoped := s.SetStorageScope([]string{"hot"})
	row := triples.NewTripleRow("e1", usersName(), "Ada")
	require.NoError(t, scoped.InsertTriples([]triples.TripleRow{row}))

	rows, err := scoped.FindByEntity("e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = s.FindByEntity("e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestClearRemovesEverythingInScope(t *testing.T) {
	s := newTestStore(t)

	row := triples.NewTripleRow("e1", usersName(), "Ada")
	require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))

	require.NoError(t, s.Clear())

	rows, err := s.FindByEntity("e1")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestFindValuesInRangeScansAttributeValues(t *testing.T) {
	s := newTestStore(t)

	for i := uint64(1); i <= 3; i++ {
		row := triples.NewTripleRow("e1", triples.Attr("scores"), float64(i))
		row.Timestamp = triples.Timestamp{Counter: i, ClientID: "c1"}
		require.NoError(t, s.InsertTriples([]triples.TripleRow{row}))
	}

	rows, err := s.FindValuesInRange(triples.Attr("scores"), nil, nil, index.Ascending)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}
