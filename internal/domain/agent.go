package domain

import (
	"context"
	"time"
)

// AgentRole names one of the remote collection agents the core depends on.
type AgentRole string

const (
	RoleIdentifierSource AgentRole = "identifier-source"
	RoleWeightSource     AgentRole = "weight-source"
)

// RequiredRoles lists every agent role that must be connected before a
// navigate-resume deployment can serve batch requests.
var RequiredRoles = []AgentRole{RoleIdentifierSource, RoleWeightSource}

// ConnectionState is the registry's liveness verdict for one agent.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
)

// AgentConnection is the registry's view of a single agent. The registry is
// the sole owner and mutator; everyone else sees copies.
type AgentConnection struct {
	Role              AgentRole       `json:"role"`
	State             ConnectionState `json:"state"`
	LastKnownLocation string          `json:"last_known_location,omitempty"`
	LastSeen          time.Time       `json:"last_seen,omitempty"`
}

// ConnectionStatus is the answer handed to callers asking whether the
// deployment is ready for navigate-resume extractions.
type ConnectionStatus struct {
	AllConnected bool        `json:"all_connected"`
	MissingRoles []AgentRole `json:"missing_roles,omitempty"`
}

// ExtractionClient resolves batches and items against the remote collection
// agents. Two implementations exist: direct HTTP fetch and navigate-resume.
type ExtractionClient interface {
	// FetchIdentifiers returns the item identifiers listed for a batch,
	// duplicates preserved in page order.
	FetchIdentifiers(ctx context.Context, warehouseID string, batchID BatchID) ([]ItemID, error)
	// FetchWeight returns the weight recorded for a single item.
	FetchWeight(ctx context.Context, warehouseID string, itemID ItemID) (WeightValue, error)
}

// WeightCache stores resolved weights keyed by (warehouse region, item).
// Entries expire lazily; Clear drops the whole store.
type WeightCache interface {
	Get(warehouseID string, itemID ItemID) (WeightValue, bool)
	Put(warehouseID string, itemID ItemID, w WeightValue)
	Clear()
}

// ConnectionTracker receives agent lifecycle notifications. The connection
// registry implements it; transports report into it.
type ConnectionTracker interface {
	Announce(ctx context.Context, role AgentRole, location string)
	LocationChanged(ctx context.Context, role AgentRole, location string)
	AgentRemoved(ctx context.Context, role AgentRole)
}

// EventHandler processes a single published event.
type EventHandler func(ctx context.Context, event Event)

// EventBus is the in-process pub/sub channel used for connection-change
// notifications and asynchronous extraction delivery.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
}
