package service

import (
	"sync"

	"github.com/hopoff/tripwatch/internal/domain"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this starts losing events — status updates are
// snapshots, so dropping stale ones is harmless.
const subscriberBuffer = 16

// EventHub fans trip events (status snapshots and alerts) out to display
// subscribers such as websocket connections. Publishing never blocks.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan domain.Event]struct{}
}

// NewEventHub constructs an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan domain.Event]struct{})}
}

// Subscribe registers a new subscriber and returns its event channel plus a
// cancel function. The channel is closed by cancel; cancelling twice is safe.
func (h *EventHub) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports the current subscriber count.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers ev to every subscriber that has buffer space left.
func (h *EventHub) Publish(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop rather than stall the tracker.
		}
	}
}
