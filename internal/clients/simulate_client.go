package clients

import (
	"maps"
)

// SimulateClient holds a fixed wallet instead of talking to an exchange.
type SimulateClient struct {
	wallet map[string]string
}

// NewSimulateClient creates a simulate client with a wallet of asset to free amount.
func NewSimulateClient(wallet map[string]string) *SimulateClient {
	return &SimulateClient{wallet: maps.Clone(wallet)}
}

// Wallet returns a copy of the configured wallet.
func (c *SimulateClient) Wallet() map[string]string {
	return maps.Clone(c.wallet)
}
