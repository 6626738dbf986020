package source

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

// HyperliquidSource spot balances of a Hyperliquid address, streamed by polling.
type HyperliquidSource struct {
	poller *poller
}

// NewHyperliquidSource creates a polling source for the account address.
func NewHyperliquidSource(info *hyperliquid.Info, accountAddr string, opts PollOptions, logger *zap.Logger) (*HyperliquidSource, error) {
	if info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}
	if accountAddr == "" {
		return nil, errors.New("hyperliquid account address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fetch := func(ctx context.Context) ([]domain.BalanceRecord, error) {
		st, err := info.SpotUserState(ctx, accountAddr)
		if err != nil {
			return nil, errors.Wrap(err, "get spot user state")
		}
		records := make([]domain.BalanceRecord, 0, len(st.Balances))
		for _, b := range st.Balances {
			records = append(records, hyperliquidRecord(b.Coin, b.Total, b.Hold))
		}
		return records, nil
	}

	return newHyperliquidSource(fetch, opts, logger), nil
}

func newHyperliquidSource(fetch snapshotFunc, opts PollOptions, logger *zap.Logger) *HyperliquidSource {
	return &HyperliquidSource{poller: newPoller(opts, fetch, logger.With(zap.String("source", "hyperliquid")))}
}

func (s *HyperliquidSource) Name() string { return "hyperliquid" }

func (s *HyperliquidSource) Snapshot(ctx context.Context) ([]domain.BalanceRecord, error) {
	return s.poller.snapshot(ctx)
}

func (s *HyperliquidSource) StartSession(context.Context) (string, error) {
	return s.poller.startSession(), nil
}

func (s *HyperliquidSource) KeepaliveSession(context.Context, string) error { return nil }

func (s *HyperliquidSource) CloseSession(context.Context, string) error { return nil }

func (s *HyperliquidSource) Stream(ctx context.Context, _ string, out chan<- domain.AccountEvent) error {
	return s.poller.stream(ctx, out)
}

// hyperliquidRecord splits the total into free and held (locked by open orders).
func hyperliquidRecord(coin, total, hold string) domain.BalanceRecord {
	t, err := decimal.NewFromString(total)
	if err != nil {
		return domain.BalanceRecord{Asset: coin, Free: total, Locked: hold}
	}
	h := decimal.Zero
	if hold != "" {
		h, err = decimal.NewFromString(hold)
		if err != nil {
			return domain.BalanceRecord{Asset: coin, Free: total, Locked: hold}
		}
	}
	free := t.Sub(h)
	if free.IsNegative() {
		free = decimal.Zero
	}
	return domain.NewBalanceRecord(coin, free, h)
}
