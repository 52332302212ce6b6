package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"road-monitor/internal/domain"
	"road-monitor/internal/ingest"
	"road-monitor/internal/subscription"
)

type seqStore struct {
	nextID int64
}

func (s *seqStore) InsertBatch(ctx context.Context, records []domain.ProcessedRecord) ([]domain.PersistedRecord, error) {
	persisted := make([]domain.PersistedRecord, len(records))
	for i, rec := range records {
		s.nextID++
		persisted[i] = domain.PersistedRecord{
			ID:        s.nextID,
			RoadState: rec.RoadState,
			UserID:    rec.UserID,
			Z:         rec.Z,
			Timestamp: domain.Timestamp{Time: rec.Timestamp},
		}
	}
	return persisted, nil
}

type fixture struct {
	srv      *httptest.Server
	registry *subscription.Registry
	service  *ingest.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := subscription.NewRegistry()
	broadcaster := subscription.NewBroadcaster(registry, time.Second, zap.NewNop())
	service := ingest.NewService(&seqStore{}, broadcaster, nil, zap.NewNop())

	mux := http.NewServeMux()
	mux.Handle("GET /ws/{user_id}", NewHandler(registry, zap.NewNop()))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, registry: registry, service: service}
}

func (f *fixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *fixture) waitForSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.registry.Count() == n
	}, 2*time.Second, 10*time.Millisecond, "expected %d registered subscribers", n)
}

func batchFor(userID int64, n int) []domain.ProcessedRecord {
	records := make([]domain.ProcessedRecord, n)
	for i := range records {
		records[i] = domain.ProcessedRecord{
			RoadState: domain.RoadStateBump,
			UserID:    userID,
			Z:         float64(9000 + i),
			Timestamp: time.Now().UTC(),
		}
	}
	return records
}

func TestSubscriberReceivesOwnBatchExactlyOnce(t *testing.T) {
	f := newFixture(t)

	five := f.dial(t, "5")
	six := f.dial(t, "6")
	f.waitForSubscribers(t, 2)

	_, err := f.service.IngestProcessed(context.Background(), batchFor(5, 2))
	require.NoError(t, err)

	five.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := five.ReadMessage()
	require.NoError(t, err)

	var records []domain.PersistedRecord
	require.NoError(t, json.Unmarshal(msg, &records))
	require.Len(t, records, 2)
	assert.Equal(t, int64(5), records[0].UserID)
	assert.Equal(t, int64(1), records[0].ID)

	// The whole batch arrived as a single message; nothing else follows.
	five.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = five.ReadMessage()
	assert.Error(t, err, "only one message per ingested batch")

	// The concurrently connected user 6 subscriber sees nothing.
	six.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = six.ReadMessage()
	assert.Error(t, err, "user 6 must not receive user 5's batch")
}

func TestIngestSucceedsAfterSubscriberDisconnects(t *testing.T) {
	f := newFixture(t)

	conn := f.dial(t, "5")
	f.waitForSubscribers(t, 1)

	conn.Close()
	f.waitForSubscribers(t, 0)

	persisted, err := f.service.IngestProcessed(context.Background(), batchFor(5, 1))
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestInboundFramesAreHeartbeatsOnly(t *testing.T) {
	f := newFixture(t)

	conn := f.dial(t, "5")
	f.waitForSubscribers(t, 1)

	// Whatever the client sends is read and discarded.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"subscribe","user_id":6}`)))

	_, err := f.service.IngestProcessed(context.Background(), batchFor(5, 1))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"user_id":5`)
}

func TestSubscribeRejectsNonIntegerUserID(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/abc"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
