package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCreated EventType = "Created"
	EventUpdated EventType = "Updated"
	EventDeleted EventType = "Deleted"
)

// Event represents a domain-change notification emitted after a committed mutation.
type Event struct {
	Type      EventType `json:"type"`
	EntityID  string    `json:"entityId"`
	EmittedAt time.Time `json:"emittedAt"`
	// Kind selects the destination topic and is not part of the payload.
	Kind string `json:"-"`
}
