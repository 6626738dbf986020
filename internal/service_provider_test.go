package internal

import (
	"testing"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/config"
	"github.com/vadiminshakov/balancewatch/internal/clients"
	"github.com/vadiminshakov/balancewatch/internal/domain"
)

func TestNewAccountSource(t *testing.T) {
	conf := config.Config{MarketType: domain.MarketTypeSpot, BybitAccountType: "UNIFIED"}

	tests := []struct {
		name             string
		client           any
		expectedName     string
		expectedErrorMsg string
	}{
		{
			name:             "Unsupported Client",
			client:           "kraken",
			expectedErrorMsg: "unsupported client type: string",
		},
		{
			name:         "Binance",
			client:       &binance.Client{},
			expectedName: "binance",
		},
		{
			name:         "Bybit",
			client:       &bybit.Client{},
			expectedName: "bybit",
		},
		{
			name:         "Simulate",
			client:       clients.NewSimulateClient(map[string]string{"USDT": "1"}),
			expectedName: "simulate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewAccountSource(tt.client, conf, zap.NewNop())

			if tt.expectedErrorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErrorMsg)
				assert.Nil(t, src)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, src.Name())
		})
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		conf     config.Config
		wantType any
		wantErr  bool
	}{
		{"binance", config.Config{Platform: config.PlatformBinance}, &binance.Client{}, false},
		{"bybit", config.Config{Platform: config.PlatformBybit}, &bybit.Client{}, false},
		{"simulate", config.Config{Platform: config.PlatformSimulate}, &clients.SimulateClient{}, false},
		{"hyperliquid bad key", config.Config{Platform: config.PlatformHyperliquid, Credentials: config.Credentials{PrivateKey: "zz"}}, nil, true},
		{"unknown", config.Config{Platform: "kraken"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.conf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, client)
		})
	}
}
