// Package linkevents fans out link lifecycle notifications (link up, link
// down, descriptor ready) to any number of subscribers, adapted from the
// CAN-frame pub/sub hub to this protocol's own event vocabulary.
package linkevents

import (
	"sync"

	"github.com/legacylink/legacylink-bridge/internal/logging"
	"github.com/legacylink/legacylink-bridge/internal/metrics"
)

// Kind identifies a link lifecycle event.
type Kind int

const (
	LinkUp Kind = iota
	LinkDown
	DescriptorReady
)

func (k Kind) String() string {
	switch k {
	case LinkUp:
		return "link_up"
	case LinkDown:
		return "link_down"
	case DescriptorReady:
		return "descriptor_ready"
	default:
		return "unknown"
	}
}

// Event is one notification broadcast to subscribers.
type Event struct {
	Kind Kind
	// JSONVersionID is populated for DescriptorReady events.
	JSONVersionID uint32
	// Err carries the cause for a LinkDown event, if any.
	Err error
}

// BackpressurePolicy controls what happens when a subscriber's queue is full.
type BackpressurePolicy int

const (
	PolicyDrop BackpressurePolicy = iota
	PolicyKick
)

// Subscriber is a registered listener's channel and lifecycle signal.
type Subscriber struct {
	Out       chan Event
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the subscriber is closed (idempotent).
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.Closed)
	})
}

// NewSubscriber returns a Subscriber with a buffered channel of size n.
func NewSubscriber(n int) *Subscriber {
	return &Subscriber{Out: make(chan Event, n), Closed: make(chan struct{})}
}

// Bus fans out link events to every registered Subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	Policy      BackpressurePolicy
}

// New creates an empty Bus with the drop backpressure policy.
func New() *Bus { return &Bus{subscribers: make(map[*Subscriber]struct{})} }

// Subscribe registers s with the bus.
func (b *Bus) Subscribe(s *Subscriber) {
	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetLinkSubscribers(n)
}

// Unsubscribe removes s from the bus; safe to call multiple times.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, s)
	n := len(b.subscribers)
	b.mu.Unlock()
	select {
	case <-s.Closed:
	default:
		s.Close()
	}
	metrics.SetLinkSubscribers(n)
}

// Publish broadcasts ev to every subscriber honoring the backpressure policy.
func (b *Bus) Publish(ev Event) {
	subs := b.Snapshot()
	metrics.SetLinkEventFanout(len(subs))
	for _, s := range subs {
		select {
		case s.Out <- ev:
		default:
			if b.Policy == PolicyKick {
				metrics.IncLinkEventKick()
				s.Close()
			} else {
				metrics.IncLinkEventDrop()
			}
		}
	}
	logging.L().Debug("link_event_published", "kind", ev.Kind, "subscribers", len(subs))
}

// Snapshot returns a slice copy of current subscribers.
func (b *Bus) Snapshot() []*Subscriber {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()
	return subs
}

// Count returns the number of active subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	n := len(b.subscribers)
	b.mu.RUnlock()
	return n
}
