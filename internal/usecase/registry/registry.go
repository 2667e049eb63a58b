// Package registry tracks the liveness of each remote collection agent.
//
// Per role the state machine is: Disconnected → Connected on a readiness
// announcement whose location matches the role's expected pattern, and
// Connected → Disconnected when the agent disappears or navigates somewhere
// that no longer matches. There is no Connected → Connected edge without
// passing through the announcement path; an agent that navigated away must
// re-announce.
package registry

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"weighbridge/internal/domain"
)

// Registry is the sole owner and mutator of agent connection state.
type Registry struct {
	bus    domain.EventBus
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	expected map[domain.AgentRole]*regexp.Regexp
	conns    map[domain.AgentRole]*domain.AgentConnection
}

// New creates a registry. expected maps each required role to the location
// pattern an announcement must match to count as connected.
func New(expected map[domain.AgentRole]*regexp.Regexp, bus domain.EventBus, logger *slog.Logger) *Registry {
	conns := make(map[domain.AgentRole]*domain.AgentConnection, len(expected))
	for role := range expected {
		conns[role] = &domain.AgentConnection{Role: role, State: domain.StateDisconnected}
	}
	return &Registry{
		bus:      bus,
		logger:   logger,
		now:      time.Now,
		expected: expected,
		conns:    conns,
	}
}

// Announce records an agent's readiness at location. The agent becomes
// Connected only when the location matches the role's expected pattern.
func (r *Registry) Announce(ctx context.Context, role domain.AgentRole, location string) {
	r.transition(ctx, role, location, true)
}

// LocationChanged records that an agent navigated. Navigating outside the
// expected location disconnects; reconnection requires a fresh Announce, so
// a matching location here only refreshes an already-connected agent.
func (r *Registry) LocationChanged(ctx context.Context, role domain.AgentRole, location string) {
	r.transition(ctx, role, location, false)
}

// AgentRemoved marks an agent gone (its host closed or crashed).
func (r *Registry) AgentRemoved(ctx context.Context, role domain.AgentRole) {
	r.transition(ctx, role, "", false)
}

func (r *Registry) transition(ctx context.Context, role domain.AgentRole, location string, announce bool) {
	r.mu.Lock()
	conn, ok := r.conns[role]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("ignoring unknown agent role", "role", string(role))
		return
	}

	matches := false
	if pat := r.expected[role]; pat != nil && location != "" {
		matches = pat.MatchString(location)
	}

	var next domain.ConnectionState
	switch {
	case matches && announce:
		next = domain.StateConnected
	case matches && conn.State == domain.StateConnected:
		next = domain.StateConnected
	default:
		next = domain.StateDisconnected
	}

	changed := conn.State != next
	conn.State = next
	conn.LastKnownLocation = location
	if next == domain.StateConnected {
		conn.LastSeen = r.now()
	}
	r.mu.Unlock()

	if !changed {
		return
	}
	r.logger.Info("agent connection changed",
		"role", string(role), "state", string(next), "location", location)
	r.bus.Publish(ctx, domain.NewEvent(domain.EventConnectionChanged,
		domain.ConnectionChangedPayload{Role: role, State: next, Location: location}))
}

// AllConnected reports whether every required role is connected.
func (r *Registry) AllConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conn := range r.conns {
		if conn.State != domain.StateConnected {
			return false
		}
	}
	return true
}

// MissingRoles returns the roles currently disconnected, in stable order.
func (r *Registry) MissingRoles() []domain.AgentRole {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []domain.AgentRole
	for _, role := range domain.RequiredRoles {
		if conn, ok := r.conns[role]; ok && conn.State != domain.StateConnected {
			missing = append(missing, role)
		}
	}
	return missing
}

// Status answers the exposed connection-status query.
func (r *Registry) Status() domain.ConnectionStatus {
	missing := r.MissingRoles()
	return domain.ConnectionStatus{AllConnected: len(missing) == 0, MissingRoles: missing}
}

// Snapshot returns a copy of every tracked connection.
func (r *Registry) Snapshot() []domain.AgentConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AgentConnection, 0, len(r.conns))
	for _, role := range domain.RequiredRoles {
		if conn, ok := r.conns[role]; ok {
			out = append(out, *conn)
		}
	}
	return out
}
