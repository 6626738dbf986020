package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

func TestConvertUserDataEvent(t *testing.T) {
	t.Run("account position carries balances", func(t *testing.T) {
		ev := &binance.WsUserDataEvent{
			Event: binance.UserDataEventTypeOutboundAccountPosition,
			Time:  1700000000000,
		}
		ev.AccountUpdate.WsAccountUpdates = []binance.WsAccountUpdate{
			{Asset: "BTC", Free: "0.1", Locked: "0.0"},
			{Asset: "USDT", Free: "25.5", Locked: "4.5"},
		}

		got := convertUserDataEvent(ev)
		assert.Equal(t, domain.EventAccountUpdate, got.Type)
		assert.Equal(t, time.UnixMilli(1700000000000), got.Time)
		assert.Equal(t, []domain.BalanceRecord{
			{Asset: "BTC", Free: "0.1", Locked: "0.0"},
			{Asset: "USDT", Free: "25.5", Locked: "4.5"},
		}, got.Balances)
	})

	tests := []struct {
		event binance.UserDataEventType
		want  domain.EventType
	}{
		{binance.UserDataEventTypeBalanceUpdate, domain.EventBalanceDelta},
		{binance.UserDataEventTypeExecutionReport, domain.EventOrderUpdate},
		{binance.UserDataEventType("listenKeyExpired"), domain.EventUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			got := convertUserDataEvent(&binance.WsUserDataEvent{Event: tt.event})
			assert.Equal(t, tt.want, got.Type)
			assert.Empty(t, got.Balances)
			assert.False(t, got.CarriesBalances())
		})
	}
}

func TestSpotAndMarginBalances(t *testing.T) {
	spot := spotBalances(&binance.Account{Balances: []binance.Balance{{Asset: "BNB", Free: "1", Locked: "2"}}})
	assert.Equal(t, []domain.BalanceRecord{{Asset: "BNB", Free: "1", Locked: "2"}}, spot)

	margin := marginBalances(&binance.MarginAccount{UserAssets: []binance.UserAsset{{Asset: "UNI", Free: "3", Locked: "0.1"}}})
	assert.Equal(t, []domain.BalanceRecord{{Asset: "UNI", Free: "3", Locked: "0.1"}}, margin)

	assert.Nil(t, spotBalances(nil))
	assert.Nil(t, marginBalances(nil))
}

func newTestBinanceSource(t *testing.T, handler http.HandlerFunc) *BinanceSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := binance.NewClient("key", "secret")
	client.BaseURL = srv.URL
	src, err := NewBinanceSource(client, domain.MarketTypeSpot, zap.NewNop())
	require.NoError(t, err)
	return src
}

func TestBinanceSource_SnapshotAndSession(t *testing.T) {
	src := newTestBinanceSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v3/account" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"balances": []map[string]string{
					{"asset": "BTC", "free": "0.00100000", "locked": "0.00000000"},
					{"asset": "UNI", "free": "12.5", "locked": "1"},
				},
			})
		case r.URL.Path == "/api/v3/userDataStream" && r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]string{"listenKey": "lk-1"})
		default:
			http.NotFound(w, r)
		}
	})

	records, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.BalanceRecord{
		{Asset: "BTC", Free: "0.00100000", Locked: "0.00000000"},
		{Asset: "UNI", Free: "12.5", Locked: "1"},
	}, records)

	token, err := src.StartSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lk-1", token)
}

func TestBinanceSource_SnapshotError(t *testing.T) {
	src := newTestBinanceSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`))
	})

	_, err := src.Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get binance account")
}

func TestNewBinanceSource_Validation(t *testing.T) {
	_, err := NewBinanceSource(nil, domain.MarketTypeSpot, nil)
	assert.Error(t, err)

	_, err = NewBinanceSource(binance.NewClient("", ""), domain.MarketType("futures"), nil)
	assert.Error(t, err)
}

func TestBinanceSource_Stream(t *testing.T) {
	t.Run("forwards events in order until cancelled", func(t *testing.T) {
		src, err := NewBinanceSource(binance.NewClient("", ""), domain.MarketTypeSpot, zap.NewNop())
		require.NoError(t, err)

		stopped := make(chan struct{})
		src.wsServe = func(listenKey string, handler binance.WsUserDataHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
			assert.Equal(t, "lk", listenKey)
			doneC, stopC := make(chan struct{}), make(chan struct{})
			go func() {
				defer close(doneC)
				first := &binance.WsUserDataEvent{Event: binance.UserDataEventTypeOutboundAccountPosition}
				first.AccountUpdate.WsAccountUpdates = []binance.WsAccountUpdate{{Asset: "BTC", Free: "1", Locked: "0"}}
				handler(first)
				handler(&binance.WsUserDataEvent{Event: binance.UserDataEventTypeExecutionReport})
				<-stopC
				close(stopped)
			}()
			return doneC, stopC, nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		out := make(chan domain.AccountEvent, 4)
		errC := make(chan error, 1)
		go func() { errC <- src.Stream(ctx, "lk", out) }()

		first := <-out
		second := <-out
		assert.Equal(t, domain.EventAccountUpdate, first.Type)
		assert.Equal(t, domain.EventOrderUpdate, second.Type)

		cancel()
		require.NoError(t, <-errC)
		<-stopped
	})

	t.Run("reports remote termination", func(t *testing.T) {
		src, err := NewBinanceSource(binance.NewClient("", ""), domain.MarketTypeSpot, zap.NewNop())
		require.NoError(t, err)

		boom := errors.New("connection reset")
		src.wsServe = func(_ string, _ binance.WsUserDataHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
			doneC, stopC := make(chan struct{}), make(chan struct{})
			go func() {
				errHandler(boom)
				close(doneC)
			}()
			return doneC, stopC, nil
		}

		err = src.Stream(context.Background(), "lk", make(chan domain.AccountEvent))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("closed without error", func(t *testing.T) {
		src, err := NewBinanceSource(binance.NewClient("", ""), domain.MarketTypeSpot, zap.NewNop())
		require.NoError(t, err)

		src.wsServe = func(string, binance.WsUserDataHandler, binance.ErrHandler) (chan struct{}, chan struct{}, error) {
			doneC := make(chan struct{})
			close(doneC)
			return doneC, make(chan struct{}), nil
		}

		err = src.Stream(context.Background(), "lk", make(chan domain.AccountEvent))
		assert.ErrorIs(t, err, ErrStreamClosed)
	})

	t.Run("dial failure", func(t *testing.T) {
		src, err := NewBinanceSource(binance.NewClient("", ""), domain.MarketTypeSpot, zap.NewNop())
		require.NoError(t, err)

		src.wsServe = func(string, binance.WsUserDataHandler, binance.ErrHandler) (chan struct{}, chan struct{}, error) {
			return nil, nil, errors.New("dial tcp: refused")
		}

		err = src.Stream(context.Background(), "lk", make(chan domain.AccountEvent))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dial tcp")
	})
}
