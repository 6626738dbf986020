// Package source adapts exchange SDKs into account sources: a one-time balance snapshot plus a
// stream of account events for the lifetime of a session.
package source

import (
	"context"
	"errors"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

// ErrStreamClosed the venue closed the stream without reporting an error.
var ErrStreamClosed = errors.New("account stream closed by remote")

// AccountSource server-authoritative account.
//
// Stream blocks until ctx is cancelled (returns nil) or the stream fails (returns an error).
// Events are sent to out in delivery order; sends block, so a full channel slows the receiver
// down instead of dropping events. Stream never closes out.
type AccountSource interface {
	Name() string
	Snapshot(ctx context.Context) ([]domain.BalanceRecord, error)
	StartSession(ctx context.Context) (string, error)
	KeepaliveSession(ctx context.Context, token string) error
	CloseSession(ctx context.Context, token string) error
	Stream(ctx context.Context, token string, out chan<- domain.AccountEvent) error
}

// send delivers the event unless ctx is done first.
func send(ctx context.Context, out chan<- domain.AccountEvent, event domain.AccountEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

var (
	_ AccountSource = (*BinanceSource)(nil)
	_ AccountSource = (*BybitSource)(nil)
	_ AccountSource = (*HyperliquidSource)(nil)
	_ AccountSource = (*SimulateSource)(nil)
)
