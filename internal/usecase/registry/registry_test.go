package registry

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"testing"

	"weighbridge/internal/domain"
)

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, e domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }

func (b *recordingBus) count(t domain.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestRegistry(bus domain.EventBus) *Registry {
	expected := map[domain.AgentRole]*regexp.Regexp{
		domain.RoleIdentifierSource: regexp.MustCompile(`warehouse\.example/batches`),
		domain.RoleWeightSource:     regexp.MustCompile(`catalog\.example/items`),
	}
	return New(expected, bus, slog.Default())
}

func TestAnnounceConnects(t *testing.T) {
	bus := &recordingBus{}
	r := newTestRegistry(bus)
	ctx := context.Background()

	if r.AllConnected() {
		t.Fatal("fresh registry must not be all-connected")
	}

	r.Announce(ctx, domain.RoleIdentifierSource, "https://warehouse.example/batches/123")
	r.Announce(ctx, domain.RoleWeightSource, "https://catalog.example/items/X0001ABCDE")

	if !r.AllConnected() {
		t.Fatal("both roles announced at matching locations; want all-connected")
	}
	if got := bus.count(domain.EventConnectionChanged); got != 2 {
		t.Fatalf("change events = %d, want 2", got)
	}
}

func TestAnnounceAtWrongLocationStaysDisconnected(t *testing.T) {
	bus := &recordingBus{}
	r := newTestRegistry(bus)

	r.Announce(context.Background(), domain.RoleWeightSource, "https://elsewhere.example/login")

	if r.AllConnected() {
		t.Fatal("non-matching announcement must not connect")
	}
	if got := bus.count(domain.EventConnectionChanged); got != 0 {
		t.Fatalf("no state change expected, got %d events", got)
	}
}

func TestNavigationAwayDisconnects(t *testing.T) {
	bus := &recordingBus{}
	r := newTestRegistry(bus)
	ctx := context.Background()

	r.Announce(ctx, domain.RoleWeightSource, "https://catalog.example/items/a")
	r.LocationChanged(ctx, domain.RoleWeightSource, "https://catalog.example/login")

	missing := r.MissingRoles()
	if len(missing) != 2 {
		t.Fatalf("missing = %v, want both roles", missing)
	}
}

func TestLocationChangeWithinExpectedKeepsConnection(t *testing.T) {
	bus := &recordingBus{}
	r := newTestRegistry(bus)
	ctx := context.Background()

	r.Announce(ctx, domain.RoleWeightSource, "https://catalog.example/items/a")
	r.LocationChanged(ctx, domain.RoleWeightSource, "https://catalog.example/items/b")

	status := r.Status()
	if status.AllConnected {
		t.Fatal("identifier source never announced")
	}
	for _, role := range status.MissingRoles {
		if role == domain.RoleWeightSource {
			t.Fatal("weight source should still be connected")
		}
	}
	// Only the initial connect should have raised an event.
	if got := bus.count(domain.EventConnectionChanged); got != 1 {
		t.Fatalf("change events = %d, want 1", got)
	}
}

func TestLocationChangeAloneDoesNotConnect(t *testing.T) {
	bus := &recordingBus{}
	r := newTestRegistry(bus)

	// Matching location, but no announcement: reconnection goes through
	// the announcement path only.
	r.LocationChanged(context.Background(), domain.RoleWeightSource, "https://catalog.example/items/a")

	if len(r.MissingRoles()) != 2 {
		t.Fatal("location change without announce must not connect")
	}
}

func TestAgentRemovedDisconnects(t *testing.T) {
	bus := &recordingBus{}
	r := newTestRegistry(bus)
	ctx := context.Background()

	r.Announce(ctx, domain.RoleIdentifierSource, "https://warehouse.example/batches/1")
	r.AgentRemoved(ctx, domain.RoleIdentifierSource)

	if got := bus.count(domain.EventConnectionChanged); got != 2 {
		t.Fatalf("change events = %d, want connect+disconnect", got)
	}
	snap := r.Snapshot()
	for _, conn := range snap {
		if conn.Role == domain.RoleIdentifierSource && conn.State != domain.StateDisconnected {
			t.Fatal("removed agent must be disconnected")
		}
	}
}
