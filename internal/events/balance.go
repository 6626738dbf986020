package events

import (
	"sync"
	"sync/atomic"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

// BalanceBroadcaster fans out applied balance batches to all subscribers via buffered channels.
type BalanceBroadcaster struct {
	mu      sync.RWMutex
	subs    map[chan domain.AppliedBatch]struct{}
	buffer  int
	dropped atomic.Uint64
}

// NewBalanceBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBalanceBroadcaster(buffer int) *BalanceBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &BalanceBroadcaster{
		subs:   make(map[chan domain.AppliedBatch]struct{}),
		buffer: buffer,
	}
}

// Publish sends the batch to all subscribers. A reader that is not keeping up would miss the
// batch, so it is unsubscribed and its channel closed instead; it has to resubscribe and reload
// a full snapshot.
func (b *BalanceBroadcaster) Publish(batch domain.AppliedBatch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- batch:
		default:
			b.dropped.Add(1)
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Subscribe returns a channel that receives batches until Unsubscribe is called.
func (b *BalanceBroadcaster) Subscribe() chan domain.AppliedBatch {
	ch := make(chan domain.AppliedBatch, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *BalanceBroadcaster) Unsubscribe(ch chan domain.AppliedBatch) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers number of active subscribers.
func (b *BalanceBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped total slow subscribers cut off by Publish.
func (b *BalanceBroadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
