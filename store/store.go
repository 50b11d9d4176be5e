// Package store implements the triple store's public surface (SPEC_FULL.md
// §4.F): read queries that run directly against the multi-store, the
// single `Transact` entry point every write goes through, hook
// registration, and insert/write subscriptions.
package store

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wbrown/tripledb/clock"
	"github.com/wbrown/tripledb/index"
	"github.com/wbrown/tripledb/kv"
	"github.com/wbrown/tripledb/multistore"
	"github.com/wbrown/tripledb/triples"
)

// Options configures a TripleStore. Exactly one of Storage or Stores must
// be set (SPEC_FULL.md §6 "Construction options").
type Options struct {
	// Storage is the convenience path: either a single kv.Backend (used
	// under the name "default") or a name->backend mapping. The store
	// applies TenantID as a Subspace prefix over whatever is given here.
	Storage interface{}

	// Stores is the pre-scoped path: a name->backend mapping the caller
	// has already arranged (already tenant-prefixed, already wired to
	// whatever physical engines it wants). The store does not apply any
	// further Subspace to these.
	Stores map[string]kv.Backend

	// TenantID defaults to "client".
	TenantID string

	// StorageScope restricts FindBy*/Transact to a subset of store
	// names. Defaults to every store.
	StorageScope []string

	// Clock defaults to clock.NewClock("").
	Clock clock.Clock

	Logger  *zap.Logger
	Metrics *Metrics
}

// TripleStore is the public entry point: reads run directly against its
// multi-store; every mutation goes through Transact.
type TripleStore struct {
	tenantID string
	multi    *multistore.MultiStore
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *Metrics

	mu           sync.RWMutex
	beforeInsert []BeforeInsertHook
	beforeCommit []BeforeCommitHook
}

// BeforeInsertHook runs before a batch of rows is indexed; returning an
// error vetoes the insert.
type BeforeInsertHook func(rows []triples.TripleRow, tx *Transaction) error

// BeforeCommitHook runs immediately before a transaction's writes are
// flushed to the backend.
type BeforeCommitHook func(tx *Transaction) error

// New constructs a TripleStore from opts.
func New(opts Options) (*TripleStore, error) {
	hasStorage := opts.Storage != nil
	hasStores := opts.Stores != nil
	if hasStorage == hasStores {
		return nil, &triples.TripleStoreOptionsError{Msg: "exactly one of Storage or Stores must be set"}
	}

	tenantID := opts.TenantID
	if tenantID == "" {
		tenantID = "client"
	}

	var multi *multistore.MultiStore
	if hasStorage {
		named, err := namedBackends(opts.Storage)
		if err != nil {
			return nil, err
		}
		multi = multistore.New(named).Subspace([]byte(tenantID + "/"))
	} else {
		multi = multistore.New(opts.Stores)
	}

	if len(opts.StorageScope) > 0 {
		multi = multi.WithScope(opts.StorageScope)
	}

	c := opts.Clock
	if c == nil {
		c = clock.NewClock("")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		// A fresh, private registry rather than prometheus.DefaultRegisterer:
		// nothing stops a process from constructing more than one
		// TripleStore (tests do this constantly), and MustRegister panics
		// on the second registration against a shared registry.
		metrics = NewMetrics(prometheus.NewRegistry())
	}

	s := &TripleStore{
		tenantID: tenantID,
		multi:    multi,
		clock:    c,
		logger:   logger,
		metrics:  metrics,
	}

	if mc, ok := c.(*clock.MonotonicClock); ok {
		if err := mc.AssignToStore(s); err != nil {
			return nil, fmt.Errorf("store: seeding clock: %w", err)
		}
	}

	return s, nil
}

func namedBackends(storage interface{}) (map[string]kv.Backend, error) {
	switch v := storage.(type) {
	case kv.Backend:
		return map[string]kv.Backend{"default": v}, nil
	case map[string]kv.Backend:
		return v, nil
	default:
		return nil, &triples.TripleStoreOptionsError{Msg: fmt.Sprintf("Storage must be a kv.Backend or map[string]kv.Backend, got %T", storage)}
	}
}

// SetStorageScope returns a logically identical TripleStore restricted to
// the named storages for every subsequent operation.
func (s *TripleStore) SetStorageScope(names []string) *TripleStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &TripleStore{
		tenantID:     s.tenantID,
		multi:        s.multi.WithScope(names),
		clock:        s.clock,
		logger:       s.logger,
		metrics:      s.metrics,
		beforeInsert: append([]BeforeInsertHook(nil), s.beforeInsert...),
		beforeCommit: append([]BeforeCommitHook(nil), s.beforeCommit...),
	}
}

// BeforeInsert registers hook at the store level; every future
// transaction copies the current hook list by reference at construction.
func (s *TripleStore) BeforeInsert(hook BeforeInsertHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeInsert = append(s.beforeInsert, hook)
}

// BeforeCommit registers hook at the store level.
func (s *TripleStore) BeforeCommit(hook BeforeCommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = append(s.beforeCommit, hook)
}

func (s *TripleStore) hooks() ([]BeforeInsertHook, []BeforeCommitHook) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]BeforeInsertHook(nil), s.beforeInsert...), append([]BeforeCommitHook(nil), s.beforeCommit...)
}

// Clear drops all data visible to this store's current scope.
func (s *TripleStore) Clear() error {
	return s.multi.Clear()
}

// Transact opens a transaction, invokes fn, then commits or cancels
// according to fn's return (SPEC_FULL.md §4.G "Commit/cancel").
func (s *TripleStore) Transact(fn func(tx *Transaction) error) error {
	timer := prometheus.NewTimer(s.metrics.TransactionDuration)
	defer timer.ObserveDuration()

	before, afterCommit := s.hooks()
	mtx := multistore.NewTransaction(s.multi, nil)
	tx := &Transaction{
		store:        s,
		mtx:          mtx,
		beforeInsert: before,
		beforeCommit: afterCommit,
	}

	err := fn(tx)
	if err != nil {
		var writeRule *triples.WriteRuleError
		if asWriteRuleError(err, &writeRule) {
			_ = tx.Cancel()
			s.metrics.TransactionsCancelled.Inc()
			s.logger.Debug("transaction cancelled by write rule", zap.Error(err))
			return err
		}
		s.logger.Debug("transaction callback returned error without cancelling", zap.Error(err))
		return err
	}

	for _, hook := range tx.beforeCommit {
		if err := hook(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		s.metrics.TransactionsFailed.Inc()
		return fmt.Errorf("store: commit: %w", err)
	}
	s.metrics.TransactionsCommitted.Inc()
	return nil
}

func asWriteRuleError(err error, target **triples.WriteRuleError) bool {
	for err != nil {
		if wr, ok := err.(*triples.WriteRuleError); ok {
			*target = wr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// InsertTriples stages and commits rows in one transaction.
func (s *TripleStore) InsertTriples(rows []triples.TripleRow) error {
	return s.Transact(func(tx *Transaction) error {
		return tx.InsertTriples(rows)
	})
}

// DeleteTriples stages and commits the removal of rows in one transaction.
func (s *TripleStore) DeleteTriples(rows []triples.TripleRow) error {
	return s.Transact(func(tx *Transaction) error {
		return tx.DeleteTriples(rows)
	})
}

// SetValueInput is one (entity, attribute, value) to write under
// last-writer-wins semantics (invariant 4).
type SetValueInput struct {
	Entity    string
	Attribute triples.Attribute
	Value     triples.Value
}

// SetValues applies every input under SetValue's last-writer-wins rule in
// one transaction.
func (s *TripleStore) SetValues(values []SetValueInput) error {
	return s.Transact(func(tx *Transaction) error {
		return tx.SetValues(values)
	})
}

// ExpireEntity expires e in one transaction.
func (s *TripleStore) ExpireEntity(entity string) error {
	return s.Transact(func(tx *Transaction) error {
		return tx.ExpireEntity(entity)
	})
}

// EntityAttribute names one (entity, attribute) pair.
type EntityAttribute struct {
	Entity    string
	Attribute triples.Attribute
}

// ExpireEntityAttributes expires the named (entity, attribute) pairs in
// one transaction.
func (s *TripleStore) ExpireEntityAttributes(pairs []EntityAttribute) error {
	return s.Transact(func(tx *Transaction) error {
		return tx.ExpireEntityAttributes(pairs)
	})
}

// UpdateMetadataTuples writes each metadata tuple in one transaction.
func (s *TripleStore) UpdateMetadataTuples(tuples []triples.MetadataTuple) error {
	return s.Transact(func(tx *Transaction) error {
		return tx.UpdateMetadataTuples(tuples)
	})
}

// DeleteMetadataTuples removes each named metadata tuple in one
// transaction.
func (s *TripleStore) DeleteMetadataTuples(pairs []EntityAttribute) error {
	return s.Transact(func(tx *Transaction) error {
		return tx.DeleteMetadataTuples(pairs)
	})
}

// --- Reads: run directly against the multi-store, outside any transaction. ---

func (s *TripleStore) scanRows(args kv.ScanArgs, decode func(key, value []byte) (triples.TripleRow, error)) ([]triples.TripleRow, error) {
	s.metrics.ScansStarted.Inc()
	cur, err := s.multi.Scan(args)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []triples.TripleRow
	for cur.Next() {
		item := cur.Item()
		row, err := decode(item.Key, item.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByCollection implements FindByCollection(c, dir).
func (s *TripleStore) FindByCollection(collection string, dir index.Direction) ([]triples.TripleRow, error) {
	return s.scanRows(index.CollectionBounds(collection, dir), index.RowFromEAVKey)
}

// FindByEAV implements FindByEAV([e?, a?, v?], dir).
func (s *TripleStore) FindByEAV(q index.EAVQuery, dir index.Direction) ([]triples.TripleRow, error) {
	return s.scanRows(index.EAVBounds(q, dir), index.RowFromEAVKey)
}

// FindByEntity implements FindByEntity(e).
func (s *TripleStore) FindByEntity(entity string) ([]triples.TripleRow, error) {
	return s.FindByEAV(index.EAVQuery{Entity: &entity}, index.Ascending)
}

// FindByEntityAttribute implements FindByEntityAttribute(e, a).
func (s *TripleStore) FindByEntityAttribute(entity string, attribute triples.Attribute) ([]triples.TripleRow, error) {
	return s.FindByEAV(index.EAVQuery{Entity: &entity, Attribute: attribute}, index.Ascending)
}

// FindByAVE implements FindByAVE([a?, v?, e?], dir).
func (s *TripleStore) FindByAVE(q index.AVEQuery, dir index.Direction) ([]triples.TripleRow, error) {
	return s.scanRows(index.AVEBounds(q, dir), index.RowFromAVEKey)
}

// FindByAttribute implements FindByAttribute(a).
func (s *TripleStore) FindByAttribute(attribute triples.Attribute) ([]triples.TripleRow, error) {
	return s.FindByAVE(index.AVEQuery{Attribute: attribute}, index.Ascending)
}

// FindValuesInRange implements FindValuesInRange(a, {gt?, lt?, dir?}).
func (s *TripleStore) FindValuesInRange(attribute triples.Attribute, gt, lt *index.ValueCursor, dir index.Direction) ([]triples.TripleRow, error) {
	return s.scanRows(index.FindValuesInRangeBounds(attribute, gt, lt, dir), index.RowFromAVEKey)
}

// FindByClientTimestamp implements FindByClientTimestamp(client, op, t).
func (s *TripleStore) FindByClientTimestamp(client string, op index.TimestampOp, t triples.Timestamp) ([]triples.TripleRow, error) {
	args, err := index.ClientTimestampBounds(client, op, t)
	if err != nil {
		return nil, err
	}
	return s.scanRows(args, index.RowFromClientTimestampKey)
}

// FindMaxTimestamp implements FindMaxTimestamp(client); it also satisfies
// clock.MaxTimestampSource, so a TripleStore can seed its own clock.
func (s *TripleStore) FindMaxTimestamp(client string) (triples.Timestamp, bool, error) {
	rows, err := s.scanRows(index.MaxTimestampBounds(client), index.RowFromClientTimestampKey)
	if err != nil {
		return triples.Timestamp{}, false, err
	}
	if len(rows) == 0 {
		return triples.Timestamp{}, false, nil
	}
	return rows[0].Timestamp, true, nil
}

// ReadMetadataTuples reads the metadata tuple for each named (entity,
// attribute) pair that is present; pairs with no recorded metadata are
// simply absent from the result, so the returned slice may be shorter
// than pairs.
func (s *TripleStore) ReadMetadataTuples(pairs []EntityAttribute) ([]triples.MetadataTuple, error) {
	out := make([]triples.MetadataTuple, 0, len(pairs))
	for _, p := range pairs {
		key := index.MetadataKey(p.Entity, p.Attribute)
		s.metrics.ScansStarted.Inc()
		cur, err := s.multi.Scan(kv.ScanArgs{Prefix: key})
		if err != nil {
			return nil, err
		}
		found := cur.Next()
		var item kv.KV
		if found {
			item = cur.Item()
		}
		scanErr := cur.Err()
		cur.Close()
		if scanErr != nil {
			return nil, scanErr
		}
		if !found {
			continue
		}
		val, err := index.DecodeMetadataValue(item.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, triples.MetadataTuple{Entity: p.Entity, Attribute: p.Attribute, Value: val})
	}
	return out, nil
}

// OnInsert subscribes to EAV writes, decoding each Set into a TripleRow.
func (s *TripleStore) OnInsert(cb func(triples.TripleRow)) func() {
	return subscribeEAV(s.multi, cb, false)
}

// OnWrite subscribes to both inserts and deletes. Deletes are decoded
// with Expired=false because the erased value is unavailable.
func (s *TripleStore) OnWrite(cb func(triples.TripleRow)) func() {
	return subscribeEAV(s.multi, cb, true)
}
