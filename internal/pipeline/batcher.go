package pipeline

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"road-monitor/internal/classifier"
	"road-monitor/internal/domain"
)

// BatchSink receives a timestamp-sorted batch of classified records.
type BatchSink interface {
	Save(ctx context.Context, records []domain.ProcessedRecord) error
}

// Batcher drains raw readings from a channel, classifies each one, and
// flushes accumulated records to the sink when the batch fills or the
// flush interval fires. Batches are sorted by timestamp before flushing,
// which keeps the ingestion side free of ordering responsibilities.
type Batcher struct {
	ch         <-chan domain.Reading
	classifier *classifier.Classifier
	sink       BatchSink
	batchSize  int
	flushMS    int
	logger     *zap.Logger
}

func NewBatcher(
	ch <-chan domain.Reading,
	c *classifier.Classifier,
	sink BatchSink,
	batchSize int,
	flushMS int,
	logger *zap.Logger,
) *Batcher {
	return &Batcher{
		ch:         ch,
		classifier: c,
		sink:       sink,
		batchSize:  batchSize,
		flushMS:    flushMS,
		logger:     logger,
	}
}

func (b *Batcher) Run(ctx context.Context) {
	batch := make([]domain.ProcessedRecord, 0, b.batchSize)
	ticker := time.NewTicker(time.Duration(b.flushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case reading, ok := <-b.ch:
			if !ok {
				if len(batch) > 0 {
					b.flush(ctx, batch)
				}
				return
			}
			rec, err := b.classifier.Process(reading)
			if err != nil {
				b.logger.Warn("dropping unclassifiable reading",
					zap.Int64("user_id", reading.UserID),
					zap.Error(err))
				continue
			}
			batch = append(batch, rec)
			if len(batch) >= b.batchSize {
				b.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			if len(batch) > 0 {
				b.flush(ctx, batch)
			}
			return
		}
	}
}

func (b *Batcher) flush(ctx context.Context, batch []domain.ProcessedRecord) {
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Timestamp.Before(batch[j].Timestamp)
	})

	err := b.sink.Save(ctx, batch)
	if err != nil {
		b.logger.Warn("batch save failed, retrying once",
			zap.Int("batch", len(batch)),
			zap.Error(err))
		time.Sleep(500 * time.Millisecond)
		if err = b.sink.Save(ctx, batch); err != nil {
			b.logger.Error("batch save permanently failed",
				zap.Int("batch", len(batch)),
				zap.Error(err))
		}
	}
}
