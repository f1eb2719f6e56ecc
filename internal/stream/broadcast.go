package stream

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Broadcaster fans selection snapshots out to open streams. Each subscriber
// holds at most one pending snapshot; a newer one replaces it, so a slow
// client skips intermediate states but always converges on the latest.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]chan []int
	logger *slog.Logger
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]chan []int),
		logger: logger,
	}
}

// Publish delivers ids to every subscriber without blocking. It has the
// selection.Observer signature and runs under the store's lock.
func (b *Broadcaster) Publish(ids []int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ids:
			continue
		default:
		}
		// Replace the stale pending snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ids:
		default:
		}
	}
}

// Subscribe registers a new stream. The returned cancel must be called once
// the stream ends.
func (b *Broadcaster) Subscribe() (id string, updates <-chan []int, cancel func()) {
	id = uuid.NewString()
	ch := make(chan []int, 1)

	b.mu.Lock()
	b.subs[id] = ch
	n := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug("stream subscribed", "component", "stream", "stream_id", id, "subscribers", n)

	return id, ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Subscribers returns the number of registered streams.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
