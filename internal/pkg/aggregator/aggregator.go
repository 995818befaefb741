// Package aggregator collects the records of one capture session.
package aggregator

import (
	"sync"
	"sync/atomic"

	"github.com/endorses/lippyguard/internal/pkg/types"
)

// Buffer is an append-only, concurrency-safe record list. A positive limit
// caps its length; records past the limit are counted and discarded.
type Buffer struct {
	mu      sync.Mutex
	records []*types.PacketRecord
	limit   int
	dropped atomic.Uint64
}

// New creates a Buffer. limit <= 0 means unbounded.
func New(limit int) *Buffer {
	return &Buffer{limit: limit}
}

// Append adds r and reports whether it was kept.
func (b *Buffer) Append(r *types.PacketRecord) bool {
	if r == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit > 0 && len(b.records) >= b.limit {
		b.dropped.Add(1)
		return false
	}
	b.records = append(b.records, r)
	return true
}

// Snapshot returns the records in append order. The slice is a copy; the
// records are shared.
func (b *Buffer) Snapshot() []*types.PacketRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.PacketRecord, len(b.records))
	copy(out, b.records)
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Dropped returns how many records were discarded by the limit.
func (b *Buffer) Dropped() uint64 {
	return b.dropped.Load()
}
