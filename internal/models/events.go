package models

import "time"

// EventType identifies a domain event emitted by the engine.
type EventType string

const (
	EventEnrollmentPromoted EventType = "enrollment.promoted"
	EventCohortCancelled    EventType = "cohort.cancelled"
	EventPayoutComputed     EventType = "payout.computed"
)

// Event is the envelope delivered to the notification collaborator. Delivery
// failure never rolls back the state change that produced the event.
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}
