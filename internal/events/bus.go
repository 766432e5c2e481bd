package events

import (
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tenantnotes/notes-client/internal/id"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

// Subscriber is a registered consumer of events.
type Subscriber struct {
	SubscribedAt time.Time
	Events       chan Event
	ID           string
	// types filters delivery; empty means "receive all".
	types []EventType
}

// Wants reports whether the subscriber receives events of type t.
func (s *Subscriber) Wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// Bus delivers events synchronously to every interested subscriber.
// Sends never block: a subscriber whose buffer is full misses the event and is
// expected to re-read the owning component's snapshot.
type Bus struct {
	subscribers map[string]*Subscriber
	logger      *slog.Logger
	mu          sync.RWMutex
	closed      bool
}

// NewBus creates a new event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a consumer for the given event types (all types if none given).
func (b *Bus) Subscribe(types ...EventType) *Subscriber {
	sub := &Subscriber{
		ID:           id.MustGenerate("sub"),
		Events:       make(chan Event, subscriberBuffer),
		SubscribedAt: time.Now(),
		types:        types,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.Events)
		return sub
	}
	b.subscribers[sub.ID] = sub

	b.logger.Debug("subscriber added",
		slog.String("subscriber_id", sub.ID),
		slog.Int("total_subscribers", len(b.subscribers)))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	sub, ok := b.subscribers[subscriberID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, subscriberID)
	total := len(b.subscribers)
	b.mu.Unlock()

	close(sub.Events)

	b.logger.Debug("subscriber removed",
		slog.String("subscriber_id", subscriberID),
		slog.Duration("duration", time.Since(sub.SubscribedAt)),
		slog.Int("total_subscribers", total))
}

// Emit delivers event to all subscribers that want it.
func (b *Bus) Emit(event Event) {
	var delivered, dropped, filtered int

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if !sub.Wants(event.Type) {
			filtered++
			continue
		}

		select {
		case sub.Events <- event:
			delivered++
		default:
			dropped++
			b.logger.Warn("dropped event for slow subscriber",
				slog.String("subscriber_id", sub.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	b.logger.Debug("event emitted",
		slog.String("event_type", string(event.Type)),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("filtered", filtered),
			slog.Int("dropped", dropped)))
}

// Subscribers returns an iterator over registered subscribers.
func (b *Bus) Subscribers() iter.Seq[*Subscriber] {
	return func(yield func(*Subscriber) bool) {
		b.mu.RLock()
		defer b.mu.RUnlock()

		for _, sub := range b.subscribers {
			if !yield(sub) {
				return
			}
		}
	}
}

// Count returns the number of subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Shutdown closes every subscriber channel; later emits are dropped.
func (b *Bus) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)

	b.logger.Info("event bus closed")
	return nil
}
