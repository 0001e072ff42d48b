// Package livelog is the operator log: pipeline tasks report one-line events
// onto named channels and the dashboard tails them over the API's event
// stream. It is a live feed, not a durable log; nobody listening means the
// event is gone.
package livelog

import (
	"sync"

	"github.com/google/uuid"
)

// Event is one operator-log record: the channel it was reported on and the
// wire payload, a single-key JSON object {"<channel>":"<message>"}.
type Event struct {
	Channel string
	Payload []byte
}

// subscriberBuffer is each listener's backlog allowance. A listener that
// falls further behind than this is dropped rather than allowed to stall
// the hub.
const subscriberBuffer = 64

type subscriber struct {
	id       string
	ch       chan Event
	channels map[string]bool
}

func (s *subscriber) wants(channel string) bool {
	return len(s.channels) == 0 || s.channels[channel]
}

// Hub fans events out to every subscriber. One hub runs per process;
// Publish never blocks the caller.
type Hub struct {
	broadcast   chan Event
	register    chan *subscriber
	unregister  chan *subscriber
	subscribers map[*subscriber]bool

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewHub returns a hub ready for Run.
func NewHub() *Hub {
	return &Hub{
		broadcast:   make(chan Event, 256),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		subscribers: make(map[*subscriber]bool),
		done:        make(chan struct{}),
	}
}

// Run owns the subscriber set. It returns once Close is called, after
// closing every subscriber channel.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.subscribers[sub] = true
		case sub := <-h.unregister:
			if h.subscribers[sub] {
				delete(h.subscribers, sub)
				close(sub.ch)
			}
		case ev := <-h.broadcast:
			for sub := range h.subscribers {
				if !sub.wants(ev.Channel) {
					continue
				}
				select {
				case sub.ch <- ev:
				default:
					// Slow listener: cut it loose.
					delete(h.subscribers, sub)
					close(sub.ch)
				}
			}
		case <-h.done:
			for sub := range h.subscribers {
				delete(h.subscribers, sub)
				close(sub.ch)
			}
			return
		}
	}
}

// Publish hands an event to the hub without blocking. Events are dropped
// when the hub is saturated or already closed.
func (h *Hub) Publish(ev Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- ev:
	default:
	}
}

// Subscription is one listener's handle. Receive from C until it closes;
// call Cancel when done.
type Subscription struct {
	ID  string
	C   <-chan Event
	hub *Hub
	sub *subscriber
}

// Subscribe registers a listener. An empty channel filter receives
// everything. Returns nil if the hub is already closed.
func (h *Hub) Subscribe(channels []string) *Subscription {
	filter := make(map[string]bool, len(channels))
	for _, c := range channels {
		if c != "" {
			filter[c] = true
		}
	}
	sub := &subscriber{
		id:       uuid.NewString(),
		ch:       make(chan Event, subscriberBuffer),
		channels: filter,
	}
	select {
	case h.register <- sub:
		return &Subscription{ID: sub.id, C: sub.ch, hub: h, sub: sub}
	case <-h.done:
		return nil
	}
}

// Cancel removes the listener. Safe to call after the hub closed.
func (s *Subscription) Cancel() {
	select {
	case s.hub.unregister <- s.sub:
	case <-s.hub.done:
	}
}

// Close shuts the hub down. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}
