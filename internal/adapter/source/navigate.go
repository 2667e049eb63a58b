package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"weighbridge/internal/adapter/ticket"
	"weighbridge/internal/domain"
	"weighbridge/internal/extract"
)

// Content-materialization wait: after a reload the target page renders its
// data asynchronously, so extraction polls until something matches.
const (
	DefaultContentTimeout = 5 * time.Second
	DefaultPollInterval   = 250 * time.Millisecond
)

// AgentHost is a live agent resident in a host location. Navigating it
// destroys its in-memory state; recovery runs through the ticket store.
type AgentHost interface {
	Role() domain.AgentRole
	Location(ctx context.Context) (string, error)
	Navigate(ctx context.Context, target string) error
	Content(ctx context.Context) (string, error)
}

// NavigateConfig configures the navigate-resume client. Target templates
// carry two %s verbs: warehouse id, then batch or item id.
type NavigateConfig struct {
	IdentifierTarget string
	WeightTarget     string
	ContentTimeout   time.Duration
	PollInterval     time.Duration
}

// pendingResult is an extraction delivered out-of-band by a resumed agent,
// parked until the retrying caller claims it. Claimed at most once.
type pendingResult struct {
	kind   domain.ExtractionKind
	ids    []domain.ItemID
	weight domain.WeightValue
	found  bool
}

// NavigateClient implements domain.ExtractionClient over live page agents.
//
// When the agent already sits at the target, extraction happens in the same
// call. Otherwise the client checkpoints the request as a ticket, instructs
// the agent to navigate, and fails with ErrNavigationPending; the caller is
// expected to retry. When the agent's host re-initializes at the new
// location it consumes the ticket, extracts, and delivers the result
// asynchronously: weights write through to the cache, identifier lists are
// parked for the retry, and every delivery is published on the bus.
type NavigateClient struct {
	hosts   map[domain.AgentRole]AgentHost
	store   domain.TicketStore
	cache   domain.WeightCache
	bus     domain.EventBus
	tracker domain.ConnectionTracker
	logger  *slog.Logger
	cfg     NavigateConfig

	mu      sync.Mutex
	pending map[string]pendingResult
}

// NewNavigateClient builds a navigate-resume client over the given hosts.
func NewNavigateClient(
	hosts map[domain.AgentRole]AgentHost,
	store domain.TicketStore,
	cache domain.WeightCache,
	bus domain.EventBus,
	tracker domain.ConnectionTracker,
	cfg NavigateConfig,
	logger *slog.Logger,
) *NavigateClient {
	if cfg.ContentTimeout <= 0 {
		cfg.ContentTimeout = DefaultContentTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &NavigateClient{
		hosts:   hosts,
		store:   store,
		cache:   cache,
		bus:     bus,
		tracker: tracker,
		logger:  logger,
		cfg:     cfg,
		pending: make(map[string]pendingResult),
	}
}

// FetchIdentifiers implements domain.ExtractionClient.
func (c *NavigateClient) FetchIdentifiers(ctx context.Context, warehouseID string, batchID domain.BatchID) ([]domain.ItemID, error) {
	const op = "NavigateClient.FetchIdentifiers"

	payload := domain.TicketPayload{Kind: domain.ExtractIdentifiers, WarehouseID: warehouseID, BatchID: batchID}
	if res, ok := c.claim(payload.Key()); ok {
		if !res.found {
			return nil, domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("batch %s", batchID))
		}
		return res.ids, nil
	}

	host, ok := c.hosts[domain.RoleIdentifierSource]
	if !ok {
		return nil, domain.NewDomainError(op, domain.ErrAgentDisconnected, string(domain.RoleIdentifierSource))
	}
	target := fmt.Sprintf(c.cfg.IdentifierTarget, warehouseID, string(batchID))

	loc, err := host.Location(ctx)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if sameLocation(loc, target) {
		ids, found := c.awaitIdentifiers(ctx, host)
		if !found {
			return nil, domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("batch %s", batchID))
		}
		return ids, nil
	}

	if err := c.dispatch(ctx, host, target, payload); err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return nil, domain.NewDomainError(op, domain.ErrNavigationPending, target)
}

// FetchWeight implements domain.ExtractionClient.
func (c *NavigateClient) FetchWeight(ctx context.Context, warehouseID string, itemID domain.ItemID) (domain.WeightValue, error) {
	const op = "NavigateClient.FetchWeight"

	payload := domain.TicketPayload{Kind: domain.ExtractWeight, WarehouseID: warehouseID, ItemID: itemID}
	if res, ok := c.claim(payload.Key()); ok {
		if !res.found {
			return 0, domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("item %s", itemID))
		}
		return res.weight, nil
	}

	host, ok := c.hosts[domain.RoleWeightSource]
	if !ok {
		return 0, domain.NewDomainError(op, domain.ErrAgentDisconnected, string(domain.RoleWeightSource))
	}
	target := fmt.Sprintf(c.cfg.WeightTarget, warehouseID, string(itemID))

	loc, err := host.Location(ctx)
	if err != nil {
		return 0, domain.WrapOp(op, err)
	}
	if sameLocation(loc, target) {
		w, found := c.awaitWeight(ctx, host)
		if !found {
			return 0, domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("item %s", itemID))
		}
		return w, nil
	}

	if err := c.dispatch(ctx, host, target, payload); err != nil {
		return 0, domain.WrapOp(op, err)
	}
	return 0, domain.NewDomainError(op, domain.ErrNavigationPending, target)
}

// dispatch checkpoints the request and instructs the agent to navigate.
// The navigation is fire-and-forget: the reload destroys the agent's
// in-memory state, so nothing useful can be returned on this path.
func (c *NavigateClient) dispatch(ctx context.Context, host AgentHost, target string, payload domain.TicketPayload) error {
	t := domain.Ticket{
		RequestID: ticket.NewRequestID(),
		Role:      host.Role(),
		Target:    target,
		Payload:   payload,
		IssuedAt:  time.Now(),
	}
	if err := c.store.Issue(ctx, t); err != nil {
		return err
	}
	c.bus.Publish(ctx, domain.NewEvent(domain.EventTicketIssued, t))

	go func() {
		navCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := host.Navigate(navCtx, target); err != nil {
			c.logger.Warn("agent navigation failed",
				"role", string(host.Role()), "target", target, "error", err)
		}
	}()
	return nil
}

// HandleAgentLoad is the resume path, invoked by a host whenever its agent
// finishes (re-)loading a page. It re-announces the agent, consumes any
// pending ticket addressed to it, and finishes the checkpointed extraction.
func (c *NavigateClient) HandleAgentLoad(ctx context.Context, role domain.AgentRole, location string) {
	if c.tracker != nil {
		c.tracker.Announce(ctx, role, location)
	}

	t, err := c.store.Consume(ctx, role)
	if err != nil {
		c.logger.Info("pending ticket aged out before resume", "role", string(role), "error", err)
		c.bus.Publish(ctx, domain.NewEvent(domain.EventTicketExpired, map[string]string{"role": string(role)}))
		return
	}
	if t == nil {
		return
	}
	c.bus.Publish(ctx, domain.NewEvent(domain.EventTicketConsumed, t))

	if !sameLocation(location, t.Target) {
		// The agent surfaced somewhere else; the retrying caller will
		// issue a fresh ticket.
		c.logger.Warn("agent resumed at unexpected location",
			"role", string(role), "location", location, "target", t.Target)
		return
	}

	host, ok := c.hosts[role]
	if !ok {
		return
	}

	delivered := domain.ExtractionDeliveredPayload{
		RequestID:   t.RequestID,
		Kind:        t.Payload.Kind,
		WarehouseID: t.Payload.WarehouseID,
		ItemID:      t.Payload.ItemID,
		BatchID:     t.Payload.BatchID,
	}

	switch t.Payload.Kind {
	case domain.ExtractWeight:
		w, found := c.awaitWeight(ctx, host)
		delivered.Weight, delivered.Found = w, found
		if found {
			c.cache.Put(t.Payload.WarehouseID, t.Payload.ItemID, w)
		}
		c.park(t.Payload.Key(), pendingResult{kind: t.Payload.Kind, weight: w, found: found})
	case domain.ExtractIdentifiers:
		ids, found := c.awaitIdentifiers(ctx, host)
		delivered.Identifiers, delivered.Found = ids, found
		c.park(t.Payload.Key(), pendingResult{kind: t.Payload.Kind, ids: ids, found: found})
	}

	c.bus.Publish(ctx, domain.NewEvent(domain.EventExtractionDelivered, delivered))
}

// awaitWeight polls the agent's content until a weight extracts or the
// bounded wait elapses.
func (c *NavigateClient) awaitWeight(ctx context.Context, host AgentHost) (domain.WeightValue, bool) {
	var w domain.WeightValue
	found := c.awaitContent(ctx, host, func(body string) bool {
		var ok bool
		w, ok = extract.Weight(body)
		return ok
	})
	return w, found
}

// awaitIdentifiers polls the agent's content until identifiers extract or
// the bounded wait elapses.
func (c *NavigateClient) awaitIdentifiers(ctx context.Context, host AgentHost) ([]domain.ItemID, bool) {
	var ids []domain.ItemID
	found := c.awaitContent(ctx, host, func(body string) bool {
		ids = extract.Identifiers(body)
		return len(ids) > 0
	})
	return ids, found
}

func (c *NavigateClient) awaitContent(ctx context.Context, host AgentHost, matched func(string) bool) bool {
	deadline := time.Now().Add(c.cfg.ContentTimeout)
	for {
		body, err := host.Content(ctx)
		if err == nil && matched(body) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

// park stores a delivered result for exactly one retry pickup.
func (c *NavigateClient) park(key string, r pendingResult) {
	c.mu.Lock()
	c.pending[key] = r
	c.mu.Unlock()
}

// claim removes and returns a parked result.
func (c *NavigateClient) claim(key string) (pendingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	return r, ok
}

// sameLocation compares two locations by host and path, ignoring scheme
// and query noise the source appends on redirects within the same page.
func sameLocation(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ua.Host == ub.Host && ua.Path == ub.Path
}

// Compile-time interface check.
var _ domain.ExtractionClient = (*NavigateClient)(nil)
