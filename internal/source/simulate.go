package source

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

// SimulateSource fixed wallet that never changes. Useful to run the read surface without credentials.
type SimulateSource struct {
	wallet map[string]string
}

// NewSimulateSource creates a source reporting the wallet (asset -> free amount).
func NewSimulateSource(wallet map[string]string) *SimulateSource {
	w := make(map[string]string, len(wallet))
	for asset, amount := range wallet {
		w[asset] = amount
	}
	return &SimulateSource{wallet: w}
}

func (s *SimulateSource) Name() string { return "simulate" }

func (s *SimulateSource) Snapshot(context.Context) ([]domain.BalanceRecord, error) {
	assets := make([]string, 0, len(s.wallet))
	for asset := range s.wallet {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	records := make([]domain.BalanceRecord, 0, len(assets))
	for _, asset := range assets {
		records = append(records, domain.BalanceRecord{Asset: asset, Free: s.wallet[asset], Locked: "0"})
	}
	return records, nil
}

func (s *SimulateSource) StartSession(context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *SimulateSource) KeepaliveSession(context.Context, string) error { return nil }

func (s *SimulateSource) CloseSession(context.Context, string) error { return nil }

// Stream blocks until ctx is cancelled; a simulated wallet has no updates.
func (s *SimulateSource) Stream(ctx context.Context, _ string, _ chan<- domain.AccountEvent) error {
	<-ctx.Done()
	return nil
}
