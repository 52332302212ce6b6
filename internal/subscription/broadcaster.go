package subscription

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"road-monitor/internal/domain"
	"road-monitor/internal/metrics"
)

// Broadcaster fans a persisted batch out to every Active connection of the
// owning user. Delivery is fire-and-forget: a slow or broken subscriber is
// dropped, never reported back to the ingestion caller.
type Broadcaster struct {
	registry    *Registry
	sendTimeout time.Duration
	logger      *zap.Logger
}

func NewBroadcaster(registry *Registry, sendTimeout time.Duration, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		registry:    registry,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Broadcast sends records as one JSON-array message to each subscriber of
// userID. With no subscribers it returns immediately; there is no
// buffering or replay. Sends run concurrently and each is bounded by the
// send timeout, so one stalled connection cannot hold up ingestion past
// that bound. A failed send closes only the failing connection.
func (b *Broadcaster) Broadcast(userID int64, records []domain.PersistedRecord) {
	conns := b.registry.Subscribers(userID)
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(records)
	if err != nil {
		b.logger.Error("marshal broadcast payload",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c Conn) {
			defer wg.Done()
			if err := c.Send(payload, b.sendTimeout); err != nil {
				b.registry.Unregister(userID, c)
				c.Close()
				metrics.DeliveryFailures.Add(1)
				b.logger.Warn("dropping subscriber after failed send",
					zap.Int64("user_id", userID),
					zap.Error(err))
				return
			}
			metrics.BroadcastsDelivered.Add(1)
		}(c)
	}
	wg.Wait()
}
