package domain

import (
	"time"
)

// PurchaseEventType is the event type that feeds the order/spend aggregates.
// Comparison is case-insensitive; storage preserves the caller's casing.
const PurchaseEventType = "purchase"

// Properties is the event property bag. Same closed value shapes and decode
// rules as Traits.
type Properties = Traits

// Event is an immutable, append-only interaction record. ProfileID is null
// only for anonymous events the caller explicitly allowed.
type Event struct {
	ID         string     `json:"id"`
	ProfileID  *string    `json:"profile_id,omitempty"`
	EventType  string     `json:"event_type"`
	Properties Properties `json:"properties"`
	OccurredAt time.Time  `json:"occurred_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// EventCursor is a keyset cursor into a profile's newest-first event stream.
// It points at the last event already returned; the next page resumes
// strictly after it in (occurred_at DESC, id DESC) order, so iteration is
// restartable even while new events are appended.
type EventCursor struct {
	OccurredAt time.Time `json:"occurred_at"`
	ID         string    `json:"id"`
}
