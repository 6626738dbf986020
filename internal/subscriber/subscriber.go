// Package subscriber feeds account events into a balance cache.
package subscriber

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/cache"
	"github.com/vadiminshakov/balancewatch/internal/domain"
)

// BatchSink receives every batch written to the cache.
type BatchSink interface {
	Publish(batch domain.AppliedBatch)
}

// SinkFunc adapts a function to BatchSink.
type SinkFunc func(batch domain.AppliedBatch)

func (f SinkFunc) Publish(batch domain.AppliedBatch) { f(batch) }

// Stats counters of processed events.
type Stats struct {
	Received uint64
	Applied  uint64
	Ignored  uint64
	Rejected uint64
}

// StreamSubscriber single consumer owning all stream writes to the cache.
type StreamSubscriber struct {
	cache  *cache.BalanceCache
	sinks  []BatchSink
	logger *zap.Logger

	received atomic.Uint64
	applied  atomic.Uint64
	ignored  atomic.Uint64
	rejected atomic.Uint64
}

// New creates a subscriber writing to c and notifying sinks after every applied batch.
func New(c *cache.BalanceCache, logger *zap.Logger, sinks ...BatchSink) *StreamSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamSubscriber{cache: c, sinks: sinks, logger: logger}
}

// Run applies events in channel order until events is closed or ctx is done.
func (s *StreamSubscriber) Run(ctx context.Context, events <-chan domain.AccountEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.Handle(ev); err != nil {
				return err
			}
		}
	}
}

// Handle applies a single event. Only account updates and snapshots touch the cache.
func (s *StreamSubscriber) Handle(ev domain.AccountEvent) error {
	s.received.Add(1)

	if !ev.CarriesBalances() {
		s.ignored.Add(1)
		s.logger.Debug("ignoring account event", zap.String("type", string(ev.Type)))
		return nil
	}

	var (
		res  cache.ApplyResult
		kind = domain.BatchUpdate
		err  error
	)
	if ev.Type == domain.EventAccountSnapshot {
		if !s.cache.Initialized() {
			return errors.Wrap(domain.ErrInvalidState, "account snapshot before initialize")
		}
		kind = domain.BatchSnapshot
		res = s.cache.Resync(ev.Balances)
	} else {
		res, err = s.cache.ApplyUpdate(ev.Balances)
		if err != nil {
			return errors.Wrap(err, "apply account update")
		}
	}

	if n := len(res.Rejected); n > 0 {
		s.rejected.Add(uint64(n))
		for _, perr := range res.Rejected {
			s.logger.Warn("account update record rejected", zap.Error(perr))
		}
	}
	if !res.Changed {
		return nil
	}
	s.applied.Add(1)

	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	s.Publish(domain.NewAppliedBatch(ts, kind, res.Version, res.Balances))

	s.logger.Debug("account event applied",
		zap.String("kind", string(kind)),
		zap.Int("records", res.Applied),
		zap.Uint64("version", res.Version),
	)
	return nil
}

// Publish forwards a batch to all sinks.
func (s *StreamSubscriber) Publish(batch domain.AppliedBatch) {
	for _, sink := range s.sinks {
		sink.Publish(batch)
	}
}

// Stats returns a copy of the counters.
func (s *StreamSubscriber) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Applied:  s.applied.Load(),
		Ignored:  s.ignored.Load(),
		Rejected: s.rejected.Load(),
	}
}
