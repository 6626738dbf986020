package domain

import "time"

// EventType kind of account event delivered by a source.
type EventType string

const (
	// EventAccountUpdate carries the latest balances of the changed assets.
	EventAccountUpdate EventType = "account_update"
	// EventAccountSnapshot carries every balance of the account; assets not listed are gone.
	EventAccountSnapshot EventType = "account_snapshot"
	// EventBalanceDelta a deposit/withdrawal delta, not a balance.
	EventBalanceDelta EventType = "balance_delta"
	// EventOrderUpdate order execution report.
	EventOrderUpdate EventType = "order_update"
	// EventUnknown anything else the venue pushes.
	EventUnknown EventType = "unknown"
)

// AccountEvent incremental notification from the account stream.
type AccountEvent struct {
	Type     EventType
	Time     time.Time
	Balances []BalanceRecord
}

// CarriesBalances reports whether the event should be applied to a balance cache.
func (e AccountEvent) CarriesBalances() bool {
	return e.Type == EventAccountUpdate || e.Type == EventAccountSnapshot
}
