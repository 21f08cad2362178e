package events

import "time"

// Kind is the dotted namespace name of an event, such as
// "turn_state.completed".
type Kind string

// Event is anything a session reports to its event handler. Receivers
// switch on the concrete type or on Kind.
type Event interface {
	Kind() Kind
	// OccurredAt is when the session produced the event.
	OccurredAt() time.Time
}

// Base is embedded in every event and stamps it at construction.
type Base struct {
	kind       Kind
	occurredAt time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, occurredAt: time.Now()}
}

func (b Base) Kind() Kind { return b.kind }

func (b Base) OccurredAt() time.Time { return b.occurredAt }
