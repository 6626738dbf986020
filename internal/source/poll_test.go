package source

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/cache"
	"github.com/vadiminshakov/balancewatch/internal/domain"
)

func TestPoller_EmitsFullSnapshots(t *testing.T) {
	var calls atomic.Int32
	fetch := func(context.Context) ([]domain.BalanceRecord, error) {
		calls.Add(1)
		return []domain.BalanceRecord{{Asset: "BTC", Free: "1", Locked: "0"}}, nil
	}
	src := newBybitSource(fetch, PollOptions{Interval: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan domain.AccountEvent)
	errC := make(chan error, 1)
	go func() { errC <- src.Stream(ctx, "token", out) }()

	for i := 0; i < 2; i++ {
		ev := <-out
		assert.Equal(t, domain.EventAccountSnapshot, ev.Type)
		assert.Equal(t, []domain.BalanceRecord{{Asset: "BTC", Free: "1", Locked: "0"}}, ev.Balances)
	}

	cancel()
	require.NoError(t, <-errC)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestPoller_GivesUpAfterMaxFailures(t *testing.T) {
	boom := errors.New("rate limited")
	var calls atomic.Int32
	fetch := func(context.Context) ([]domain.BalanceRecord, error) {
		calls.Add(1)
		return nil, boom
	}
	src := newHyperliquidSource(fetch, PollOptions{Interval: time.Millisecond, MaxFailures: 3}, zap.NewNop())

	err := src.Stream(context.Background(), "token", make(chan domain.AccountEvent))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPoller_FailureCounterResets(t *testing.T) {
	var calls atomic.Int32
	fetch := func(context.Context) ([]domain.BalanceRecord, error) {
		n := calls.Add(1)
		if n%2 == 1 {
			return nil, errors.New("flaky")
		}
		return nil, nil
	}
	src := newBybitSource(fetch, PollOptions{Interval: time.Millisecond, MaxFailures: 2}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan domain.AccountEvent)
	errC := make(chan error, 1)
	go func() { errC <- src.Stream(ctx, "token", out) }()

	for i := 0; i < 3; i++ {
		<-out
	}
	cancel()
	require.NoError(t, <-errC)
}

func TestPollingSessions(t *testing.T) {
	src := newBybitSource(func(context.Context) ([]domain.BalanceRecord, error) { return nil, nil }, PollOptions{}, zap.NewNop())

	first, err := src.StartSession(context.Background())
	require.NoError(t, err)
	second, err := src.StartSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
	assert.NoError(t, src.KeepaliveSession(context.Background(), first))
	assert.NoError(t, src.CloseSession(context.Background(), first))
}

func TestPollOptions_Defaults(t *testing.T) {
	opts := PollOptions{}.withDefaults()
	assert.Equal(t, defaultPollInterval, opts.Interval)
	assert.Equal(t, defaultMaxPollFailures, opts.MaxFailures)
}

func TestBybitRecord(t *testing.T) {
	assert.Equal(t, domain.BalanceRecord{Asset: "USDT", Free: "7", Locked: "3"}, bybitRecord("USDT", "10", "3"))
	assert.Equal(t, domain.BalanceRecord{Asset: "BTC", Free: "0.5"}, bybitRecord("BTC", "0.5", ""))
	assert.Equal(t, domain.BalanceRecord{Asset: "ETH", Free: "oops", Locked: "1"}, bybitRecord("ETH", "oops", "1"))
	assert.Equal(t, domain.BalanceRecord{Asset: "SOL", Free: "0", Locked: "2"}, bybitRecord("SOL", "1", "2"))
}

func TestHyperliquidRecord(t *testing.T) {
	assert.Equal(t, domain.BalanceRecord{Asset: "HYPE", Free: "8", Locked: "2"}, hyperliquidRecord("HYPE", "10", "2"))
	assert.Equal(t, domain.BalanceRecord{Asset: "USDC", Free: "5", Locked: "0"}, hyperliquidRecord("USDC", "5", ""))
	assert.Equal(t, domain.BalanceRecord{Asset: "PURR", Free: "x", Locked: "1"}, hyperliquidRecord("PURR", "x", "1"))
}

func TestSimulateSource(t *testing.T) {
	src := NewSimulateSource(map[string]string{"USDT": "1000", "BTC": "0.1"})

	records, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.BalanceRecord{
		{Asset: "BTC", Free: "0.1", Locked: "0"},
		{Asset: "USDT", Free: "1000", Locked: "0"},
	}, records)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, src.Stream(ctx, "", nil))
}

func TestPoller_WithdrawnAssetLeavesCache(t *testing.T) {
	polls := [][]domain.BalanceRecord{
		{{Asset: "BTC", Free: "1", Locked: "0"}},
	}
	var calls atomic.Int32
	fetch := func(context.Context) ([]domain.BalanceRecord, error) {
		calls.Add(1)
		return polls[0], nil
	}
	src := newBybitSource(fetch, PollOptions{Interval: time.Millisecond}, zap.NewNop())

	c := cache.New(zap.NewNop())
	_, err := c.Initialize([]domain.BalanceRecord{{Asset: "BTC", Free: "1", Locked: "0"}, {Asset: "ETH", Free: "5", Locked: "0"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan domain.AccountEvent, 1)
	go func() { _ = src.Stream(ctx, "token", out) }()

	ev := <-out
	require.Equal(t, domain.EventAccountSnapshot, ev.Type)
	c.Resync(ev.Balances)

	_, err = c.Get("ETH")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, c.Len())
}
