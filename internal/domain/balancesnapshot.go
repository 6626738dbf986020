package domain

import "time"

// BatchKind origin of an applied batch.
type BatchKind string

const (
	// BatchSnapshot full snapshot applied on initialize or resync.
	BatchSnapshot BatchKind = "snapshot"
	// BatchUpdate incremental update from the stream.
	BatchUpdate BatchKind = "update"
)

// AppliedBatch balances that were written to the cache in a single mutation.
type AppliedBatch struct {
	Timestamp time.Time      `json:"ts"`
	Kind      BatchKind      `json:"kind"`
	Version   uint64         `json:"version"`
	Balances  []AssetBalance `json:"balances"`
}

// NewAppliedBatch creates a new AppliedBatch.
func NewAppliedBatch(timestamp time.Time, kind BatchKind, version uint64, balances []AssetBalance) AppliedBatch {
	return AppliedBatch{
		Timestamp: timestamp,
		Kind:      kind,
		Version:   version,
		Balances:  balances,
	}
}

// AppliedBatchRecord bundles a batch with its journal index.
type AppliedBatchRecord struct {
	Index uint64
	Batch AppliedBatch
}
