// Package clock implements the hybrid logical clock that assigns every
// transaction its commit timestamp (SPEC_FULL.md §4.C). A clock is
// scoped to one client id and hands out strictly increasing
// (counter, client-id) pairs; restarting a process doesn't reset the
// counter, because AssignToStore reads the client's own high-water mark
// back out of the client-timestamp index before the first call.
package clock

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/wbrown/tripledb/triples"
)

// MaxTimestampSource is the read dependency a Clock needs to recover its
// last-used counter across restarts — satisfied by the triple store's
// FindMaxTimestamp.
type MaxTimestampSource interface {
	FindMaxTimestamp(clientID string) (triples.Timestamp, bool, error)
}

// Clock hands out the timestamps a Transaction stamps its writes with.
type Clock interface {
	// NextTimestamp returns the next strictly-increasing timestamp for
	// this clock's client id.
	NextTimestamp() (triples.Timestamp, error)

	// ClientID is the client id every timestamp this clock produces
	// carries.
	ClientID() string
}

// MonotonicClock is the default Clock: an in-process counter, seeded
// from the store's own history on AssignToStore.
type MonotonicClock struct {
	mu       sync.Mutex
	clientID string
	counter  uint64
	seeded   bool
}

// NewClock returns a clock for clientID. An empty clientID is replaced
// with a fresh github.com/google/uuid value, matching the default the
// teacher's tooling uses wherever it needs a disambiguating identifier.
func NewClock(clientID string) *MonotonicClock {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return &MonotonicClock{clientID: clientID}
}

// ClientID implements Clock.
func (c *MonotonicClock) ClientID() string { return c.clientID }

// AssignToStore binds the clock to src and seeds its counter one past
// the highest counter src has on record for this client, so timestamps
// stay monotone even after a process restart.
func (c *MonotonicClock) AssignToStore(src MaxTimestampSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	max, found, err := src.FindMaxTimestamp(c.clientID)
	if err != nil {
		return fmt.Errorf("clock: seeding from store: %w", err)
	}
	if found {
		c.counter = max.Counter + 1
	} else if c.counter == 0 {
		c.counter = 1
	}
	c.seeded = true
	return nil
}

// NextTimestamp implements Clock. It is safe to call before
// AssignToStore (useful in tests against a fresh, empty store); the
// counter then simply starts at 1.
func (c *MonotonicClock) NextTimestamp() (triples.Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counter == 0 {
		c.counter = 1
	}
	t := triples.Timestamp{Counter: c.counter, ClientID: c.clientID}
	c.counter++
	return t, nil
}
