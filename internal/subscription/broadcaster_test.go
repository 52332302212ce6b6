package subscription

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"road-monitor/internal/domain"
)

type fakeConn struct {
	mu       sync.Mutex
	payloads [][]byte
	sendErr  error
	closed   bool
}

func (c *fakeConn) Send(payload []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.payloads...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func persistedBatch(userID int64, ids ...int64) []domain.PersistedRecord {
	records := make([]domain.PersistedRecord, len(ids))
	for i, id := range ids {
		records[i] = domain.PersistedRecord{
			ID:        id,
			RoadState: domain.RoadStateBump,
			UserID:    userID,
			Timestamp: domain.Timestamp{Time: time.Date(2024, 3, 1, 10, 0, int(id), 0, time.UTC)},
		}
	}
	return records
}

func newTestBroadcaster(r *Registry) *Broadcaster {
	return NewBroadcaster(r, time.Second, zap.NewNop())
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}

	r.Register(5, c)
	assert.Equal(t, 1, r.Count())

	r.Unregister(5, c)
	r.Unregister(5, c)
	r.Unregister(6, c)
	assert.Equal(t, 0, r.Count())
}

func TestBroadcastWithoutSubscribersIsNoop(t *testing.T) {
	b := newTestBroadcaster(NewRegistry())

	// Must return immediately and not panic; nothing is buffered.
	b.Broadcast(5, persistedBatch(5, 1))
}

func TestBroadcastDeliversWholeBatchAsOneMessage(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.Register(5, c)

	newTestBroadcaster(r).Broadcast(5, persistedBatch(5, 1, 2, 3))

	msgs := c.received()
	require.Len(t, msgs, 1)

	var decoded []domain.PersistedRecord
	require.NoError(t, json.Unmarshal(msgs[0], &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, int64(1), decoded[0].ID)
	assert.Equal(t, int64(3), decoded[2].ID)

	// Timestamps ride the wire as ISO-8601 text.
	assert.Contains(t, string(msgs[0]), `"timestamp":"2024-03-01T10:00:01Z"`)
}

func TestBroadcastIsolationBetweenUsers(t *testing.T) {
	r := NewRegistry()
	five := &fakeConn{}
	six := &fakeConn{}
	r.Register(5, five)
	r.Register(6, six)

	newTestBroadcaster(r).Broadcast(5, persistedBatch(5, 1))

	assert.Len(t, five.received(), 1)
	assert.Empty(t, six.received(), "user 6 must not see user 5's batch")
}

func TestBroadcastFailedSendDropsOnlyThatConnection(t *testing.T) {
	r := NewRegistry()
	healthy := &fakeConn{}
	broken := &fakeConn{sendErr: errors.New("write: broken pipe")}
	r.Register(5, healthy)
	r.Register(5, broken)

	newTestBroadcaster(r).Broadcast(5, persistedBatch(5, 1))

	assert.Len(t, healthy.received(), 1, "healthy subscriber still gets the batch")
	assert.True(t, broken.isClosed())
	assert.False(t, healthy.isClosed())
	assert.Equal(t, 1, r.Count(), "broken connection removed from the registry")

	// The next broadcast reaches only the survivor.
	newTestBroadcaster(r).Broadcast(5, persistedBatch(5, 2))
	assert.Len(t, healthy.received(), 2)
}

func TestBroadcastAfterUnregisterSkipsConnection(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.Register(5, c)
	r.Unregister(5, c)

	newTestBroadcaster(r).Broadcast(5, persistedBatch(5, 1))
	assert.Empty(t, c.received())
}

func TestCloseAllClosesAndEmpties(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{}
	b := &fakeConn{}
	r.Register(5, a)
	r.Register(6, b)

	r.CloseAll()

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Equal(t, 0, r.Count())
}

func TestRegistryConcurrentMutationAndBroadcast(t *testing.T) {
	r := NewRegistry()
	b := newTestBroadcaster(r)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c := &fakeConn{}
				r.Register(5, c)
				r.Unregister(5, c)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Broadcast(5, persistedBatch(5, int64(j)))
			}
		}()
	}
	wg.Wait()
}
