package clients

import (
	"github.com/hirokisan/bybit/v2"
)

const bybitTestnetBaseURL = "https://api-testnet.bybit.com"

func NewBybitClient(apiKey, apiSecret string, testnet bool) *bybit.Client {
	client := bybit.NewClient().WithAuth(apiKey, apiSecret)
	if testnet {
		client = client.WithBaseURL(bybitTestnetBaseURL)
	}

	return client
}
