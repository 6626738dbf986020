// Package domain defines the balance records and events shared by sources, the cache and its readers.
package domain

// MarketType account segment whose balances are tracked.
type MarketType string

const (
	// MarketTypeSpot spot wallet.
	MarketTypeSpot MarketType = "spot"
	// MarketTypeMargin cross margin wallet.
	MarketTypeMargin MarketType = "margin"
)

// String returns the string representation.
func (m MarketType) String() string {
	return string(m)
}

// IsValid checks if the MarketType value is valid.
func (m MarketType) IsValid() bool {
	return m == MarketTypeSpot || m == MarketTypeMargin
}
