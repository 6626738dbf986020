package internal

import (
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/config"
	"github.com/vadiminshakov/balancewatch/internal/clients"
	"github.com/vadiminshakov/balancewatch/internal/source"
)

// NewClient builds the exchange client for the configured platform.
func NewClient(conf config.Config) (any, error) {
	switch conf.Platform {
	case config.PlatformBinance:
		return clients.NewBinanceClient(conf.Credentials.APIKey, conf.Credentials.APISecret, conf.Testnet), nil
	case config.PlatformBybit:
		return clients.NewBybitClient(conf.Credentials.APIKey, conf.Credentials.APISecret, conf.Testnet), nil
	case config.PlatformHyperliquid:
		baseURL := conf.HyperliquidBaseURL
		if baseURL == "" && conf.Testnet {
			baseURL = clients.HyperliquidTestnetURL
		}
		return clients.NewHyperliquidClient(conf.Credentials.PrivateKey, baseURL)
	case config.PlatformSimulate:
		return clients.NewSimulateClient(conf.SimulateWallet), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", conf.Platform)
	}
}

// NewAccountSource creates the account source matching the client type.
// This is the single point of truth for dispatching to platform-specific implementations.
func NewAccountSource(client any, conf config.Config, logger *zap.Logger) (source.AccountSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poll := source.PollOptions{Interval: conf.PollInterval, MaxFailures: conf.MaxPollFailures}

	switch c := client.(type) {
	case *binance.Client:
		return source.NewBinanceSource(c, conf.MarketType, logger)
	case *bybit.Client:
		return source.NewBybitSource(c, conf.BybitAccountType, poll, logger)
	case *clients.HyperliquidClient:
		return source.NewHyperliquidSource(c.Info(), c.AccountAddress(), poll, logger)
	case *clients.SimulateClient:
		return source.NewSimulateSource(c.Wallet()), nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}
