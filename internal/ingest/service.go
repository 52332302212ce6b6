package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"road-monitor/internal/domain"
	"road-monitor/internal/metrics"
)

// RecordStore persists validated batches atomically and hands out
// strictly increasing ids in input order.
type RecordStore interface {
	InsertBatch(ctx context.Context, records []domain.ProcessedRecord) ([]domain.PersistedRecord, error)
}

// Broadcaster fans a persisted per-user slice out to live subscribers.
// It never reports failure; delivery problems are handled per connection.
type Broadcaster interface {
	Broadcast(userID int64, records []domain.PersistedRecord)
}

// LiveStateStore caches the newest persisted record per user.
type LiveStateStore interface {
	UpdateLiveState(ctx context.Context, rec domain.PersistedRecord) error
}

// PersistenceError marks a storage failure. The whole attempt was rolled
// back; the caller may resend the batch unchanged.
type PersistenceError struct {
	cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.cause
}

// Service validates, persists and fans out classified batches.
type Service struct {
	store       RecordStore
	broadcaster Broadcaster
	live        LiveStateStore
	logger      *zap.Logger
}

// NewService wires the ingestion path. live may be nil when no redis
// cache is configured.
func NewService(store RecordStore, broadcaster Broadcaster, live LiveStateStore, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		live:        live,
		logger:      logger,
	}
}

// Ingest validates the raw batch as a whole, then persists it. A single
// bad record rejects the entire batch with nothing written.
func (s *Service) Ingest(ctx context.Context, raw []domain.RawRecord) ([]domain.PersistedRecord, error) {
	records, err := domain.ValidateBatch(raw)
	if err != nil {
		metrics.BatchesRejected.Add(1)
		return nil, err
	}
	return s.IngestProcessed(ctx, records)
}

// IngestProcessed persists an already-validated batch, preserving input
// order, then triggers exactly one broadcast per distinct user_id in the
// batch with that user's sub-slice. Fan-out and live-state updates are
// decoupled from the result: once the store commits, Ingest reports
// success regardless of delivery.
func (s *Service) IngestProcessed(ctx context.Context, records []domain.ProcessedRecord) ([]domain.PersistedRecord, error) {
	persisted, err := s.store.InsertBatch(ctx, records)
	if err != nil {
		metrics.PersistenceFailures.Add(1)
		return nil, &PersistenceError{cause: err}
	}
	metrics.RecordsIngested.Add(int64(len(persisted)))

	for _, group := range groupByUser(persisted) {
		s.broadcaster.Broadcast(group.userID, group.records)

		if s.live != nil {
			newest := group.records[len(group.records)-1]
			if err := s.live.UpdateLiveState(ctx, newest); err != nil {
				s.logger.Warn("live state update failed",
					zap.Int64("user_id", group.userID),
					zap.Error(err))
			}
		}
	}

	return persisted, nil
}

type userGroup struct {
	userID  int64
	records []domain.PersistedRecord
}

// groupByUser splits a batch into per-user sub-slices, keeping each
// record's relative order and the order in which users first appear.
func groupByUser(records []domain.PersistedRecord) []userGroup {
	index := make(map[int64]int)
	var groups []userGroup
	for _, rec := range records {
		i, ok := index[rec.UserID]
		if !ok {
			i = len(groups)
			index[rec.UserID] = i
			groups = append(groups, userGroup{userID: rec.UserID})
		}
		groups[i].records = append(groups[i].records, rec)
	}
	return groups
}
