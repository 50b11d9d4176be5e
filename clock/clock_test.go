package clock

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wbrown/tripledb/triples"
)

type fakeSource struct {
	max   triples.Timestamp
	found bool
	err   error
}

func (f fakeSource) FindMaxTimestamp(clientID string) (triples.Timestamp, bool, error) {
	return f.max, f.found, f.err
}

func TestMonotonicClockProducesIncreasingTimestamps(t *testing.T) {
	c := NewClock("client-a")

	t1, err := c.NextTimestamp()
	require.NoError(t, err)
	t2, err := c.NextTimestamp()
	require.NoError(t, err)

	require.True(t, t1.Before(t2))
	require.Equal(t, "client-a", t1.ClientID)
}

func TestMonotonicClockDefaultsClientID(t *testing.T) {
	c := NewClock("")
	require.NotEmpty(t, c.ClientID())
}

func TestAssignToStoreSeedsPastHighWaterMark(t *testing.T) {
	c := NewClock("client-a")
	src := fakeSource{max: triples.Timestamp{Counter: 41, ClientID: "client-a"}, found: true}
	require.NoError(t, c.AssignToStore(src))

	got, err := c.NextTimestamp()
	require.NoError(t, err)
	require.Equal(t, uint64(42), got.Counter)
}

func TestAssignToStoreStartsAtOneWhenEmpty(t *testing.T) {
	c := NewClock("client-a")
	require.NoError(t, c.AssignToStore(fakeSource{found: false}))

	got, err := c.NextTimestamp()
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Counter)
}
