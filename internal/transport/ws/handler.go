package ws

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"road-monitor/internal/metrics"
	"road-monitor/internal/subscription"
)

// Handler upgrades GET /ws/{user_id} to a websocket and keeps the
// connection registered for broadcasts while it lives. Inbound frames are
// heartbeats only; they are read and discarded, never applied to state.
type Handler struct {
	registry *subscription.Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(registry *subscription.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The map client is served from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "user_id must be an integer", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriberConn{conn: conn}
	h.registry.Register(userID, sub)
	metrics.SubscribersActive.Add(1)
	h.logger.Info("subscriber connected", zap.Int64("user_id", userID))

	defer func() {
		h.registry.Unregister(userID, sub)
		sub.Close()
		metrics.SubscribersActive.Add(-1)
		h.logger.Info("subscriber disconnected", zap.Int64("user_id", userID))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// subscriberConn adapts a gorilla connection to subscription.Conn.
// gorilla permits one concurrent writer, so sends serialize on mu; the
// write deadline bounds each send.
type subscriberConn struct {
	conn *websocket.Conn

	mu       sync.Mutex
	closeOne sync.Once
	closeErr error
}

func (c *subscriberConn) Send(payload []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *subscriberConn) Close() error {
	c.closeOne.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
