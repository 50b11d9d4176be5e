package kv

import "sync"

// broker is the subscription registry embedded by every Backend
// implementation. It is deliberately storage-agnostic: a backend calls
// publish once per successful commit, and broker fans the batch out to
// whichever subscribers' Range it intersects.
type broker struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]subscriber
}

type subscriber struct {
	r  Range
	cb func(WriteBatch)
}

func newBroker() *broker {
	return &broker{subs: make(map[uint64]subscriber)}
}

func (b *broker) subscribe(r Range, cb func(WriteBatch)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{r: r, cb: cb}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// publish filters batch per-subscriber and invokes callbacks outside the
// lock, so a slow or reentrant subscriber can't block new subscriptions.
func (b *broker) publish(batch WriteBatch) {
	b.mu.Lock()
	subs := make([]subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		filtered := filterBatch(batch, s.r)
		if !filtered.Empty() {
			s.cb(filtered)
		}
	}
}

func filterBatch(batch WriteBatch, r Range) WriteBatch {
	var out WriteBatch
	for _, kv := range batch.Sets {
		if r.Contains(kv.Key) {
			out.Sets = append(out.Sets, kv)
		}
	}
	for _, k := range batch.Removes {
		if r.Contains(k) {
			out.Removes = append(out.Removes, k)
		}
	}
	return out
}
