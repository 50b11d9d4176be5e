package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wbrown/tripledb/index"
	"github.com/wbrown/tripledb/internal/l85"
	"github.com/wbrown/tripledb/multistore"
	"github.com/wbrown/tripledb/triples"
)

// Transaction stages reads and writes against one multi-store
// transaction, exposing the same read/write contract as TripleStore plus
// Commit/Cancel/WithScope/hooks and a lazily-assigned commit timestamp
// (SPEC_FULL.md §4.G).
type Transaction struct {
	store        *TripleStore
	mtx          *multistore.Transaction
	beforeInsert []BeforeInsertHook
	beforeCommit []BeforeCommitHook

	ts     *triples.Timestamp
	parent *Transaction        // set on WithScope views; the timestamp comes from it
	dirty  []triples.TripleRow // EAV rows written this transaction; recorded, not read
}

// WithScope returns a sub-operator sharing this transaction's parent
// commit boundary, timestamp, and hooks, but whose backend operations are
// restricted to the named storages.
func (tx *Transaction) WithScope(names []string) *Transaction {
	return &Transaction{
		store:        tx.store,
		mtx:          tx.mtx.WithScope(names),
		beforeInsert: tx.beforeInsert,
		beforeCommit: tx.beforeCommit,
		ts:           tx.ts,
		parent:       tx,
	}
}

// GetTransactionTimestamp returns the timestamp every SetValue/
// ExpireEntity* write in this transaction is stamped with, obtaining one
// from the clock on first call and caching it thereafter.
func (tx *Transaction) GetTransactionTimestamp() (triples.Timestamp, error) {
	if tx.parent != nil {
		return tx.parent.GetTransactionTimestamp()
	}
	if tx.ts != nil {
		return *tx.ts, nil
	}
	t, err := tx.store.clock.NextTimestamp()
	if err != nil {
		return triples.Timestamp{}, fmt.Errorf("store: assigning transaction timestamp: %w", err)
	}
	tx.ts = &t
	return t, nil
}

// InsertTriples implements the 4-step insert protocol (SPEC_FULL.md
// §4.G): hook veto, undefined-value rejection, EAV idempotent-rewrite
// check, then a write to all three maintained indexes.
func (tx *Transaction) InsertTriples(rows []triples.TripleRow) error {
	if len(rows) == 0 {
		return nil
	}

	for _, hook := range tx.beforeInsert {
		if err := hook(rows, tx); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if triples.IsUndefined(row.Value) {
			return &triples.InvalidTripleStoreValueError{Value: row.Value}
		}
	}

	for _, row := range rows {
		if err := tx.insertOne(row); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Transaction) insertOne(row triples.TripleRow) error {
	existing, err := tx.scanExactEAV(row.Entity, row.Attribute, row.Value)
	if err != nil {
		return err
	}
	if len(existing) > 1 {
		return &triples.InvariantViolationError{Msg: fmt.Sprintf("multiple EAV rows for (%s %v = %v)", row.Entity, []interface{}(row.Attribute), row.Value)}
	}
	if len(existing) == 1 && existing[0].Expired == row.Expired {
		return nil // idempotent rewrite: identical fact already recorded
	}

	payload := index.EncodeRowValue(row.Expired)
	eavKey := index.EAVKey(row)
	if tx.store.logger.Core().Enabled(zap.DebugLevel) {
		tx.store.logger.Debug("indexing fact",
			zap.String("entity", row.Entity),
			zap.String("eav_key", l85.EncodeL85(eavKey)))
	}
	if err := tx.setAll(eavKey, payload); err != nil {
		return err
	}
	if err := tx.setAll(index.AVEKey(row), payload); err != nil {
		return err
	}
	if err := tx.setAll(index.ClientTimestampKey(row), payload); err != nil {
		return err
	}
	tx.dirty = append(tx.dirty, row)
	return nil
}

// primary is the one store index writes land in: the first name (sorted)
// in this transaction's current scope. Reads go through the multi-store's
// merge-sorted Scan across every scoped store, so writing to more than
// one of them here would surface the same logical row twice; a caller
// that genuinely wants a fact mirrored into a second store (an "outbox"
// pattern) does so explicitly with WithScope against that named store,
// sharing this same transaction's Commit (which commits each store in
// its own backend transaction).
func (tx *Transaction) primary() (string, error) {
	names, err := tx.mtx.Stores()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("store: transaction has no stores in scope")
	}
	return names[0], nil
}

func (tx *Transaction) setAll(key, value []byte) error {
	name, err := tx.primary()
	if err != nil {
		return err
	}
	return tx.mtx.Set(name, key, value)
}

func (tx *Transaction) removeAll(key []byte) error {
	name, err := tx.primary()
	if err != nil {
		return err
	}
	return tx.mtx.Remove(name, key)
}

// scanExactEAV finds every EAV row for the exact (entity, attribute,
// value) triple, at any timestamp — the "scan the EAV key" step of the
// insert protocol, which is defined over the fact's content rather than
// any one timestamped instance of it.
func (tx *Transaction) scanExactEAV(entity string, attribute triples.Attribute, value triples.Value) ([]triples.TripleRow, error) {
	q := index.EAVQuery{Entity: &entity, Attribute: attribute, Value: &value}
	cur, err := tx.mtx.Scan(index.EAVBounds(q, index.Ascending))
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []triples.TripleRow
	for cur.Next() {
		item := cur.Item()
		row, err := index.RowFromEAVKey(item.Key, item.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, cur.Err()
}

// DeleteTriples removes the EAV, AVE, and clientTimestamp keys for each
// row (VAE is reserved but never written, so there is nothing to remove
// there). Deletes are idempotent against the backend.
func (tx *Transaction) DeleteTriples(rows []triples.TripleRow) error {
	for _, row := range rows {
		if err := tx.removeAll(index.EAVKey(row)); err != nil {
			return err
		}
		if err := tx.removeAll(index.AVEKey(row)); err != nil {
			return err
		}
		if err := tx.removeAll(index.ClientTimestampKey(row)); err != nil {
			return err
		}
	}
	return nil
}

// SetValues implements the last-writer-wins protocol (invariant 4): for
// each input, an existing fact for (entity, attribute) with a strictly
// greater timestamp than this transaction's blocks the update.
func (tx *Transaction) SetValues(values []SetValueInput) error {
	if len(values) == 0 {
		return nil
	}
	t, err := tx.GetTransactionTimestamp()
	if err != nil {
		return err
	}

	var toInsert []triples.TripleRow
	for _, v := range values {
		existing, err := tx.findByEntityAttribute(v.Entity, v.Attribute)
		if err != nil {
			return err
		}
		blocked := false
		for _, row := range existing {
			if row.Timestamp.After(t) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		row := triples.NewTripleRow(v.Entity, v.Attribute, v.Value)
		row.Timestamp = t
		row.Expired = false
		toInsert = append(toInsert, row)
	}
	return tx.InsertTriples(toInsert)
}

func (tx *Transaction) findByEntityAttribute(entity string, attribute triples.Attribute) ([]triples.TripleRow, error) {
	q := index.EAVQuery{Entity: &entity, Attribute: attribute}
	cur, err := tx.mtx.Scan(index.EAVBounds(q, index.Ascending))
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []triples.TripleRow
	for cur.Next() {
		item := cur.Item()
		row, err := index.RowFromEAVKey(item.Key, item.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, cur.Err()
}

var collectionAttribute = triples.Attr("_collection")

// ExpireEntity marks entity tombstoned at the transaction timestamp: its
// _collection fact is re-inserted with expired=true, and every other
// fact currently held for entity is removed (invariant 5).
func (tx *Transaction) ExpireEntity(entity string) error {
	t, err := tx.GetTransactionTimestamp()
	if err != nil {
		return err
	}

	rows, err := tx.findByEntityAttribute(entity, collectionAttribute)
	if err != nil {
		return err
	}

	all, err := tx.findAllForEntity(entity)
	if err != nil {
		return err
	}
	if err := tx.DeleteTriples(all); err != nil {
		return err
	}

	var collectionValue triples.Value
	if len(rows) > 0 {
		collectionValue = rows[0].Value
	}
	tombstone := triples.NewTripleRow(entity, collectionAttribute, collectionValue)
	tombstone.Timestamp = t
	tombstone.Expired = true
	return tx.InsertTriples([]triples.TripleRow{tombstone})
}

func (tx *Transaction) findAllForEntity(entity string) ([]triples.TripleRow, error) {
	q := index.EAVQuery{Entity: &entity}
	cur, err := tx.mtx.Scan(index.EAVBounds(q, index.Ascending))
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []triples.TripleRow
	for cur.Next() {
		item := cur.Item()
		row, err := index.RowFromEAVKey(item.Key, item.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, cur.Err()
}

// ExpireEntityAttributes deletes existing facts for each (entity,
// attribute) pair, then inserts one tombstone fact per pair: value=nil,
// timestamp=t_tx, expired=true.
func (tx *Transaction) ExpireEntityAttributes(pairs []EntityAttribute) error {
	if len(pairs) == 0 {
		return nil
	}
	t, err := tx.GetTransactionTimestamp()
	if err != nil {
		return err
	}

	var toInsert []triples.TripleRow
	for _, p := range pairs {
		existing, err := tx.findByEntityAttribute(p.Entity, p.Attribute)
		if err != nil {
			return err
		}
		if err := tx.DeleteTriples(existing); err != nil {
			return err
		}
		row := triples.NewTripleRow(p.Entity, p.Attribute, nil)
		row.Timestamp = t
		row.Expired = true
		toInsert = append(toInsert, row)
	}
	return tx.InsertTriples(toInsert)
}

// UpdateMetadataTuples writes each metadata tuple directly (unversioned,
// distinct index family). Transaction-local listeners are notified
// through the standard commit-time Subscribe mechanism (component H),
// since metadata writes land in the same backend commit as everything
// else in this transaction.
func (tx *Transaction) UpdateMetadataTuples(tuples []triples.MetadataTuple) error {
	for _, m := range tuples {
		encoded, err := index.EncodeMetadataValue(m.Value)
		if err != nil {
			return fmt.Errorf("store: encoding metadata value: %w", err)
		}
		if err := tx.setAll(index.MetadataKey(m.Entity, m.Attribute), encoded); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMetadataTuples removes each named (entity, attribute) metadata
// tuple.
func (tx *Transaction) DeleteMetadataTuples(pairs []EntityAttribute) error {
	for _, p := range pairs {
		if err := tx.removeAll(index.MetadataKey(p.Entity, p.Attribute)); err != nil {
			return err
		}
	}
	return nil
}

// Commit flushes this transaction's staged writes. Before-commit hooks
// have already run by the time TripleStore.Transact calls this (it calls
// them between the user callback returning and Commit).
func (tx *Transaction) Commit() error {
	return tx.mtx.Commit()
}

// Cancel discards this transaction's staged writes without touching any
// backend.
func (tx *Transaction) Cancel() error {
	return tx.mtx.Cancel()
}
