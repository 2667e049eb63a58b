package domain

import (
	"context"
	"fmt"
	"time"
)

// TicketTTL bounds how long an issued ticket stays consumable. A resumed
// agent that finds an older ticket discards it instead of extracting.
const TicketTTL = 30 * time.Second

// ExtractionKind says what a resumed extraction should produce.
type ExtractionKind string

const (
	ExtractIdentifiers ExtractionKind = "identifiers"
	ExtractWeight      ExtractionKind = "weight"
)

// TicketPayload describes the pending extraction a resumed agent must finish.
type TicketPayload struct {
	Kind        ExtractionKind `json:"kind"`
	WarehouseID string         `json:"warehouse_id"`
	BatchID     BatchID        `json:"batch_id,omitempty"`
	ItemID      ItemID         `json:"item_id,omitempty"`
}

// Key is the claim key a retrying caller uses to pick up a parked result
// after the resumed agent delivered it out-of-band.
func (p TicketPayload) Key() string {
	if p.Kind == ExtractWeight {
		return fmt.Sprintf("%s/%s/%s", p.Kind, p.WarehouseID, p.ItemID)
	}
	return fmt.Sprintf("%s/%s/%s", p.Kind, p.WarehouseID, p.BatchID)
}

// Ticket is the durable record of an extraction request that must survive
// the agent's page reload. Consumed exactly once, by the resumed agent or
// by expiry.
type Ticket struct {
	RequestID string        `json:"request_id"`
	Role      AgentRole     `json:"role"`
	Target    string        `json:"target"`
	Payload   TicketPayload `json:"payload"`
	IssuedAt  time.Time     `json:"issued_at"`
}

// Expired reports whether the ticket aged out relative to now.
func (t Ticket) Expired(now time.Time) bool {
	return now.Sub(t.IssuedAt) > TicketTTL
}

// TicketStore persists tickets across an agent's page reload. Process
// lifetime only. At most one unconsumed ticket exists per role: issuing a
// new one discards any stale predecessor.
type TicketStore interface {
	// Issue records t, replacing any unconsumed ticket for the same role.
	Issue(ctx context.Context, t Ticket) error
	// Consume removes and returns the ticket addressed to role.
	// Returns (nil, nil) when none exists and ErrTicketExpired when the
	// ticket aged out (the expired ticket is still removed).
	Consume(ctx context.Context, role AgentRole) (*Ticket, error)
	// SweepExpired removes every expired ticket and returns how many.
	SweepExpired(ctx context.Context) (int, error)
	Close() error
}
