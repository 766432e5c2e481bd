// Package events fans tenant-state changes out to the consumers (screens) that render them.
package events

import "time"

// EventType represents the type of an Event.
type EventType string

const (
	// EventSessionChanged is emitted on every session state or identity change.
	EventSessionChanged EventType = "session.changed"
	// EventNotesLoaded is emitted when a load replaced the held notes.
	EventNotesLoaded EventType = "notes.loaded"
	// EventNotesChanged is emitted when a confirmed create, update or delete was applied.
	EventNotesChanged EventType = "notes.changed"
	// EventStatsChanged is emitted when a fresh stats snapshot was stored or invalidated.
	EventStatsChanged EventType = "stats.changed"
	// EventTenantUpgraded is emitted after an upgrade and the resync that follows it.
	EventTenantUpgraded EventType = "tenant.upgraded"
	// EventMemberInvited is emitted after a successful invite.
	EventMemberInvited EventType = "member.invited"
)

// Event is a single state change notification.
// Data carries the new immutable snapshot of whatever changed.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// New creates an event stamped with the current time.
func New(eventType EventType, data any) Event {
	return Event{
		Timestamp: time.Now(),
		Data:      data,
		Type:      eventType,
	}
}

// Emitter is implemented by the Bus; components depend on this instead of the Bus.
type Emitter interface {
	Emit(event Event)
}

// NoopEmitter discards events.
type NoopEmitter struct{}

// Emit implements Emitter.Emit as a no-op.
func (NoopEmitter) Emit(Event) {}
