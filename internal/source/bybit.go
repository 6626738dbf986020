package source

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

const defaultBybitAccountType = "UNIFIED"

// BybitSource wallet balances of a Bybit account, streamed by polling.
type BybitSource struct {
	poller *poller
}

// NewBybitSource creates a polling source for the given account type (UNIFIED, CONTRACT, SPOT).
func NewBybitSource(client *bybit.Client, accountType string, opts PollOptions, logger *zap.Logger) (*BybitSource, error) {
	if client == nil {
		return nil, errors.New("bybit client is nil")
	}
	if accountType == "" {
		accountType = defaultBybitAccountType
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fetch := func(ctx context.Context) ([]domain.BalanceRecord, error) {
		res, err := client.V5().Account().GetWalletBalance(bybit.AccountTypeV5(accountType), nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get bybit wallet balance")
		}
		var records []domain.BalanceRecord
		for _, account := range res.Result.List {
			for _, coin := range account.Coin {
				records = append(records, bybitRecord(string(coin.Coin), coin.WalletBalance, coin.Locked))
			}
		}
		return records, nil
	}

	return newBybitSource(fetch, opts, logger), nil
}

func newBybitSource(fetch snapshotFunc, opts PollOptions, logger *zap.Logger) *BybitSource {
	return &BybitSource{poller: newPoller(opts, fetch, logger.With(zap.String("source", "bybit")))}
}

func (s *BybitSource) Name() string { return "bybit" }

func (s *BybitSource) Snapshot(ctx context.Context) ([]domain.BalanceRecord, error) {
	return s.poller.snapshot(ctx)
}

func (s *BybitSource) StartSession(context.Context) (string, error) {
	return s.poller.startSession(), nil
}

func (s *BybitSource) KeepaliveSession(context.Context, string) error { return nil }

func (s *BybitSource) CloseSession(context.Context, string) error { return nil }

func (s *BybitSource) Stream(ctx context.Context, _ string, out chan<- domain.AccountEvent) error {
	return s.poller.stream(ctx, out)
}

// bybitRecord derives the free amount from wallet and locked balances.
// Unparsable amounts are passed through so the cache reports them.
func bybitRecord(coin, wallet, locked string) domain.BalanceRecord {
	if locked == "" {
		return domain.BalanceRecord{Asset: coin, Free: wallet}
	}
	w, err := decimal.NewFromString(wallet)
	if err != nil {
		return domain.BalanceRecord{Asset: coin, Free: wallet, Locked: locked}
	}
	l, err := decimal.NewFromString(locked)
	if err != nil {
		return domain.BalanceRecord{Asset: coin, Free: wallet, Locked: locked}
	}
	free := w.Sub(l)
	if free.IsNegative() {
		free = decimal.Zero
	}
	return domain.NewBalanceRecord(coin, free, l)
}
