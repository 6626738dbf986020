package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AssetBalance balance of a single asset. Free and Locked are never negative.
type AssetBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// Total returns free plus locked amount.
func (b AssetBalance) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// Equal reports whether both balances describe the same state.
func (b AssetBalance) Equal(other AssetBalance) bool {
	return b.Asset == other.Asset && b.Free.Equal(other.Free) && b.Locked.Equal(other.Locked)
}

// BalanceRecord balance as decoded from an exchange payload, amounts not yet parsed.
type BalanceRecord struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// Parse converts the record into an AssetBalance.
// An empty locked amount is treated as zero, since several venues omit it.
func (r BalanceRecord) Parse() (AssetBalance, error) {
	asset := strings.TrimSpace(r.Asset)
	if asset == "" {
		return AssetBalance{}, &ParseError{Asset: r.Asset, Field: "asset", Value: r.Asset, Err: ErrEmptyAsset}
	}

	free, err := parseAmount(asset, "free", r.Free)
	if err != nil {
		return AssetBalance{}, err
	}

	locked := decimal.Zero
	if strings.TrimSpace(r.Locked) != "" {
		locked, err = parseAmount(asset, "locked", r.Locked)
		if err != nil {
			return AssetBalance{}, err
		}
	}

	return AssetBalance{Asset: asset, Free: free, Locked: locked}, nil
}

func parseAmount(asset, field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, &ParseError{Asset: asset, Field: field, Value: raw, Err: err}
	}
	if v.IsNegative() {
		return decimal.Zero, &ParseError{Asset: asset, Field: field, Value: raw, Err: ErrNegativeAmount}
	}
	return v, nil
}

// NewBalanceRecord builds a record from parsed amounts.
func NewBalanceRecord(asset string, free, locked decimal.Decimal) BalanceRecord {
	return BalanceRecord{Asset: asset, Free: free.String(), Locked: locked.String()}
}
