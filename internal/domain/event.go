package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventConnectionChanged   EventType = "connection.changed"
	EventTicketIssued        EventType = "ticket.issued"
	EventTicketConsumed      EventType = "ticket.consumed"
	EventTicketExpired       EventType = "ticket.expired"
	EventExtractionDelivered EventType = "extraction.delivered"
	EventBatchCompleted      EventType = "batch.completed"
	EventCacheCleared        EventType = "cache.cleared"
)

// Event is the envelope published on the event bus and forwarded to
// gateway clients.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event, marshaling payload as JSON. A payload that
// fails to marshal is dropped rather than blocking the notification.
func NewEvent(t EventType, payload any) Event {
	e := Event{Type: t, Timestamp: time.Now()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			e.Payload = raw
		}
	}
	return e
}

// ConnectionChangedPayload accompanies EventConnectionChanged.
type ConnectionChangedPayload struct {
	Role     AgentRole       `json:"role"`
	State    ConnectionState `json:"state"`
	Location string          `json:"location,omitempty"`
}

// ExtractionDeliveredPayload accompanies EventExtractionDelivered after a
// resumed agent finishes an extraction out-of-band.
type ExtractionDeliveredPayload struct {
	RequestID   string         `json:"request_id"`
	Kind        ExtractionKind `json:"kind"`
	WarehouseID string         `json:"warehouse_id"`
	ItemID      ItemID         `json:"item_id,omitempty"`
	BatchID     BatchID        `json:"batch_id,omitempty"`
	Weight      WeightValue    `json:"weight,omitempty"`
	Identifiers []ItemID       `json:"identifiers,omitempty"`
	Found       bool           `json:"found"`
}
