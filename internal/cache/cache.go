// Package cache keeps a local, always-latest view of an exchange account's balances.
//
// The cache is populated once from a full snapshot and then mutated in place by incremental
// updates in the order they arrive. Every record fully replaces the previous one for its asset.
package cache

import (
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

// Entry a single asset of a snapshot view.
type Entry struct {
	Asset   string              `json:"asset"`
	Balance domain.AssetBalance `json:"balance"`
}

// ApplyResult outcome of a mutation. Rejected records were dropped, the rest were applied.
type ApplyResult struct {
	Applied  int
	Rejected []*domain.ParseError
	// Balances records written by the mutation, in application order.
	Balances []domain.AssetBalance
	// Version cache version after the mutation.
	Version uint64
	// Changed reports whether the mutation altered the cache content.
	Changed bool
}

// BalanceCache in-memory mapping from asset to its latest balance.
// Safe for concurrent use: mutations and snapshot reads are mutually exclusive.
type BalanceCache struct {
	mu          sync.RWMutex
	balances    map[string]domain.AssetBalance
	assets      []string // sorted keys of balances
	initialized bool
	version     uint64
	logger      *zap.Logger
}

// New creates an empty, uninitialized cache.
func New(logger *zap.Logger) *BalanceCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceCache{
		balances: make(map[string]domain.AssetBalance),
		logger:   logger,
	}
}

// Initialize replaces the cache content with the snapshot.
// It must be called once before any update; a second call without Reset fails with
// domain.ErrInvalidState and leaves the cache untouched.
func (c *BalanceCache) Initialize(snapshot []domain.BalanceRecord) (ApplyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return ApplyResult{}, errors.Wrap(domain.ErrInvalidState, "cache already initialized")
	}

	return c.load(snapshot), nil
}

// Resync atomically resets the cache and initializes it from the snapshot.
// Readers observe either the previous content or the new one, never an empty cache.
// The version moves only when the snapshot differs from the current content.
func (c *BalanceCache) Resync(snapshot []domain.BalanceRecord) ApplyResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.load(snapshot)
}

// Reset drops all balances and returns the cache to the uninitialized state.
func (c *BalanceCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clear()
	c.initialized = false
	c.version++
}

// ApplyUpdate writes every record of the batch in order, last write wins.
// Records that fail to parse are dropped and reported; the remainder of the batch is still applied.
func (c *BalanceCache) ApplyUpdate(updates []domain.BalanceRecord) (ApplyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return ApplyResult{}, errors.Wrap(domain.ErrInvalidState, "update before initialize")
	}

	res := c.apply(updates)
	if res.Applied > 0 {
		res.Changed = true
		c.version++
	}
	res.Version = c.version
	return res, nil
}

// Get returns the balance of the asset or domain.ErrNotFound.
func (c *BalanceCache) Get(asset string) (domain.AssetBalance, error) {
	b, ok := c.Lookup(asset)
	if !ok {
		return domain.AssetBalance{}, errors.Wrapf(domain.ErrNotFound, "asset %s", asset)
	}
	return b, nil
}

// Lookup returns the balance of the asset and whether it is known.
// The asset is trimmed the same way records are on parse.
func (c *BalanceCache) Lookup(asset string) (domain.AssetBalance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.balances[strings.TrimSpace(asset)]
	return b, ok
}

// SnapshotView returns a point-in-time copy of all balances ordered by asset.
func (c *BalanceCache) SnapshotView() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	view := make([]Entry, 0, len(c.assets))
	for _, asset := range c.assets {
		view = append(view, Entry{Asset: asset, Balance: c.balances[asset]})
	}
	return view
}

// Len number of assets held.
func (c *BalanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.assets)
}

// Initialized reports whether a snapshot has been loaded since creation or the last Reset.
func (c *BalanceCache) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.initialized
}

// Version increases on every mutation that changed the cache.
func (c *BalanceCache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.version
}

// load must be called with the write lock held.
func (c *BalanceCache) load(snapshot []domain.BalanceRecord) ApplyResult {
	prev, wasInitialized := c.balances, c.initialized

	c.balances = make(map[string]domain.AssetBalance, len(snapshot))
	c.assets = c.assets[:0]
	res := c.apply(snapshot)
	c.initialized = true

	res.Changed = !wasInitialized || !sameBalances(prev, c.balances)
	if res.Changed {
		c.version++
	}
	res.Version = c.version
	return res
}

func sameBalances(a, b map[string]domain.AssetBalance) bool {
	if len(a) != len(b) {
		return false
	}
	for asset, x := range a {
		y, ok := b[asset]
		if !ok || !x.Equal(y) {
			return false
		}
	}
	return true
}

func (c *BalanceCache) clear() {
	clear(c.balances)
	c.assets = c.assets[:0]
}

func (c *BalanceCache) apply(records []domain.BalanceRecord) ApplyResult {
	var res ApplyResult
	for _, rec := range records {
		b, err := rec.Parse()
		if err != nil {
			var perr *domain.ParseError
			if !errors.As(err, &perr) {
				perr = &domain.ParseError{Asset: rec.Asset, Err: err}
			}
			res.Rejected = append(res.Rejected, perr)
			c.logger.Warn("dropping malformed balance record",
				zap.String("asset", rec.Asset),
				zap.String("field", perr.Field),
				zap.String("value", perr.Value),
				zap.Error(perr.Err),
			)
			continue
		}
		c.put(b)
		res.Applied++
		res.Balances = append(res.Balances, b)
	}
	return res
}

func (c *BalanceCache) put(b domain.AssetBalance) {
	if _, ok := c.balances[b.Asset]; !ok {
		idx, _ := slices.BinarySearch(c.assets, b.Asset)
		c.assets = slices.Insert(c.assets, idx, b.Asset)
	}
	c.balances[b.Asset] = b
}
