package store

import (
	"github.com/wbrown/tripledb/index"
	"github.com/wbrown/tripledb/kv"
	"github.com/wbrown/tripledb/multistore"
	"github.com/wbrown/tripledb/triples"
)

var eavFamilyRange = kv.Range{Prefix: index.EncodeTuple([]interface{}{index.FamilyEAV})}

// subscribeEAV implements component H: narrow the multi-store's raw
// WriteBatch notifications to the EAV family and decode each key into a
// TripleRow. includeDeletes selects OnWrite (both Sets and Removes) over
// OnInsert (Sets only).
func subscribeEAV(multi *multistore.MultiStore, cb func(triples.TripleRow), includeDeletes bool) func() {
	unsub, err := multi.Subscribe(eavFamilyRange, func(batch kv.WriteBatch) {
		for _, set := range batch.Sets {
			row, err := index.RowFromEAVKey(set.Key, set.Value)
			if err != nil {
				continue
			}
			cb(row)
		}
		if !includeDeletes {
			return
		}
		for _, key := range batch.Removes {
			row, err := index.RowFromEAVKeyOnly(key)
			if err != nil {
				continue
			}
			cb(row)
		}
	})
	if err != nil {
		// Subscribe fails only when multi's scope names a store that is
		// not configured (scope names are not checked when the scope is
		// set); the subscription then delivers nothing.
		return func() {}
	}
	return unsub
}
