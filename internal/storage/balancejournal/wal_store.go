// Package balancejournal keeps an append-only log of the batches applied to the balance cache.
package balancejournal

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

const (
	defaultJournalDir   = "./wal/balance"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	journalKeyPrefix    = "balance_batch_"
)

// WALStore persists applied batches in a WAL for audit and streaming purposes.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed journal under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init balance journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the batch to the WAL.
func (s *WALStore) Save(batch domain.AppliedBatch) error {
	if s == nil || s.wal == nil {
		return errors.New("balance journal is not initialized")
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "marshal applied batch")
	}

	key := journalKeyPrefix + string(batch.Kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// BatchesAfter returns all batches written after the provided WAL index.
func (s *WALStore) BatchesAfter(index uint64) ([]domain.AppliedBatchRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("balance journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.AppliedBatchRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, journalKeyPrefix) {
			continue
		}
		var batch domain.AppliedBatch
		if err := json.Unmarshal(payload, &batch); err != nil {
			return nil, errors.Wrapf(err, "decode applied batch %d", idx)
		}
		records = append(records, domain.AppliedBatchRecord{
			Index: idx,
			Batch: batch,
		})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("balance journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
