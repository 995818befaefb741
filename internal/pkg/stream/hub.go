// Package stream delivers finished session batches to WebSocket subscribers.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/endorses/lippyguard/internal/pkg/constants"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/endorses/lippyguard/internal/pkg/metrics"
	"github.com/endorses/lippyguard/internal/pkg/types"
)

// ErrTooManySubscribers is returned when the subscriber limit is reached.
var ErrTooManySubscribers = errors.New("subscriber limit reached")

// Hub fans session batches out to subscribers. A subscriber that is not
// keeping up loses batches instead of stalling the publisher.
type Hub struct {
	subscribers sync.Map // map[string]chan []byte
	count       atomic.Int64
	nextSubID   atomic.Uint64

	// Backpressure tracking
	broadcasts atomic.Uint64
	drops      atomic.Uint64

	maxSubscribers int
	metrics        *metrics.Metrics
}

// NewHub creates a hub. maxSubscribers <= 0 means no limit.
func NewHub(maxSubscribers int, m *metrics.Metrics) *Hub {
	return &Hub{
		maxSubscribers: maxSubscribers,
		metrics:        m,
	}
}

// Subscribe registers a subscriber and returns its ID and message channel.
func (h *Hub) Subscribe() (string, <-chan []byte, error) {
	n := h.count.Add(1)
	if h.maxSubscribers > 0 && n > int64(h.maxSubscribers) {
		h.count.Add(-1)
		return "", nil, ErrTooManySubscribers
	}

	id := "sub-" + strconv.FormatUint(h.nextSubID.Add(1), 10)
	ch := make(chan []byte, constants.SubscriberChannelBuffer)
	h.subscribers.Store(id, ch)
	if h.metrics != nil {
		h.metrics.Subscribers.Inc()
	}
	logger.Debug("Stream subscriber added", "subscriber_id", id, "subscribers", n)
	return id, ch, nil
}

// Unsubscribe removes a subscriber. Removing an unknown ID is a no-op.
func (h *Hub) Unsubscribe(id string) {
	if _, ok := h.subscribers.LoadAndDelete(id); !ok {
		return
	}
	h.count.Add(-1)
	if h.metrics != nil {
		h.metrics.Subscribers.Dec()
	}
	logger.Debug("Stream subscriber removed", "subscriber_id", id)
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// Publish encodes batch once and offers it to every subscriber.
func (h *Hub) Publish(_ context.Context, batch types.SessionBatch) error {
	msg, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode session batch: %w", err)
	}
	h.Broadcast(msg)
	return nil
}

// Broadcast offers msg to every subscriber without blocking.
func (h *Hub) Broadcast(msg []byte) {
	h.subscribers.Range(func(key, value any) bool {
		id := key.(string)
		ch := value.(chan []byte)

		h.broadcasts.Add(1)

		select {
		case ch <- msg:
		default:
			h.drops.Add(1)
			if h.metrics != nil {
				h.metrics.BatchesDropped.Inc()
			}
			logger.Warn("Subscriber channel full, dropping batch", "subscriber_id", id)
		}
		return true
	})
}

// BackpressureStats returns broadcast attempts and drops.
func (h *Hub) BackpressureStats() (broadcasts, drops uint64) {
	return h.broadcasts.Load(), h.drops.Load()
}
