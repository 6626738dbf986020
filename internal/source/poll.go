package source

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

const (
	defaultPollInterval    = 10 * time.Second
	defaultMaxPollFailures = 5
)

type snapshotFunc func(ctx context.Context) ([]domain.BalanceRecord, error)

// PollOptions tune the stream of venues without a push account channel.
type PollOptions struct {
	Interval    time.Duration
	MaxFailures int
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = defaultPollInterval
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = defaultMaxPollFailures
	}
	return o
}

// poller turns periodic snapshots into account snapshot events.
// Every poll reports all balances, so an asset missing from a poll no longer exists on the venue.
type poller struct {
	opts     PollOptions
	snapshot snapshotFunc
	logger   *zap.Logger
}

func newPoller(opts PollOptions, snapshot snapshotFunc, logger *zap.Logger) *poller {
	return &poller{opts: opts.withDefaults(), snapshot: snapshot, logger: logger}
}

func (p *poller) startSession() string {
	return uuid.NewString()
}

func (p *poller) stream(ctx context.Context, out chan<- domain.AccountEvent) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			records, err := p.snapshot(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				failures++
				p.logger.Warn("balance poll failed", zap.Int("failures", failures), zap.Error(err))
				if failures >= p.opts.MaxFailures {
					return errors.Wrapf(err, "balance poll failed %d times in a row", failures)
				}
				continue
			}
			failures = 0

			event := domain.AccountEvent{Type: domain.EventAccountSnapshot, Time: time.Now(), Balances: records}
			if !send(ctx, out, event) {
				return nil
			}
		}
	}
}
