package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates a REST client. Testnet switches both REST and websocket endpoints.
func NewBinanceClient(apiKey, apiSecret string, testnet bool) *binance.Client {
	binance.UseTestnet = testnet
	client := binance.NewClient(apiKey, apiSecret)
	return client
}
