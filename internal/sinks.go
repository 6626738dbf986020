package internal

import (
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/domain"
	"github.com/vadiminshakov/balancewatch/internal/subscriber"
)

type batchSaver interface {
	Save(batch domain.AppliedBatch) error
}

// JournalSink writes every applied batch to the journal. A failed write is logged and the batch
// skipped; the cache stays authoritative.
func JournalSink(journal batchSaver, logger *zap.Logger) subscriber.BatchSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return subscriber.SinkFunc(func(batch domain.AppliedBatch) {
		if err := journal.Save(batch); err != nil {
			logger.Error("failed to journal applied batch",
				zap.String("kind", string(batch.Kind)),
				zap.Uint64("version", batch.Version),
				zap.Error(err),
			)
		}
	})
}
