package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighbridge/internal/adapter/cache"
	"weighbridge/internal/domain"
)

type stubStatus struct {
	status domain.ConnectionStatus
}

func (s *stubStatus) Status() domain.ConnectionStatus { return s.status }

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

func (b *recordingBus) types() []domain.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

func newService(client *stubClient, status ConnectionStatusProvider, requireAgents bool) (*Service, *recordingBus, *cache.WeightCache) {
	logger := slog.Default()
	wc := cache.New()
	bus := &recordingBus{}
	retry := RetryConfig{}
	svc := NewService(
		NewResolver(client, retry, logger),
		NewFetcher(client, wc, 5, retry, logger),
		wc,
		status,
		bus,
		requireAgents,
		logger,
	)
	return svc, bus, wc
}

func TestComputeBatchWeightSummary(t *testing.T) {
	client := &stubClient{
		identifiers: []domain.ItemID{"X0001ABCDE", "X0001ABCDE", "X0002FGHIJ"},
		weights: map[domain.ItemID]domain.WeightValue{
			"X0001ABCDE": 1.0,
			"X0002FGHIJ": 3.0,
		},
	}
	svc, bus, _ := newService(client, &stubStatus{}, false)

	res, err := svc.ComputeBatchWeightSummary(context.Background(), "us-east", "FBA123")
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalItems)
	assert.Equal(t, domain.WeightValue(1.67), res.AverageWeight)
	assert.Equal(t, domain.WeightValue(5.00), res.TotalWeight)
	assert.Equal(t, 2, res.UniqueItemCount)
	assert.Contains(t, bus.types(), domain.EventBatchCompleted)
}

func TestComputeEmptyBatchSkipsAggregation(t *testing.T) {
	svc, bus, _ := newService(&stubClient{}, &stubStatus{}, false)

	_, err := svc.ComputeBatchWeightSummary(context.Background(), "us-east", "FBA123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoIdentifiers), "got %v", err)
	assert.NotContains(t, bus.types(), domain.EventBatchCompleted)
}

func TestComputeAllWeightsUnresolved(t *testing.T) {
	client := &stubClient{
		identifiers: []domain.ItemID{"X0001ABCDE", "X0002FGHIJ"},
		weightErrs: map[domain.ItemID]error{
			"X0001ABCDE": domain.ErrNotFound,
			"X0002FGHIJ": domain.ErrSourceUnreachable,
		},
	}
	svc, _, _ := newService(client, &stubStatus{}, false)

	_, err := svc.ComputeBatchWeightSummary(context.Background(), "us-east", "FBA123")
	assert.True(t, errors.Is(err, domain.ErrNoWeightsResolved), "got %v", err)
}

func TestComputeRequiresConnectedAgents(t *testing.T) {
	client := &stubClient{identifiers: []domain.ItemID{"X0001ABCDE"}}
	status := &stubStatus{status: domain.ConnectionStatus{
		AllConnected: false,
		MissingRoles: []domain.AgentRole{domain.RoleWeightSource},
	}}
	svc, _, _ := newService(client, status, true)

	_, err := svc.ComputeBatchWeightSummary(context.Background(), "us-east", "FBA123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAgentDisconnected), "got %v", err)
	assert.Contains(t, err.Error(), string(domain.RoleWeightSource))
}

func TestClearCache(t *testing.T) {
	svc, bus, wc := newService(&stubClient{}, &stubStatus{}, false)
	wc.Put("us-east", "X0001ABCDE", 1.5)

	svc.ClearCache(context.Background())

	_, ok := wc.Get("us-east", "X0001ABCDE")
	assert.False(t, ok)
	assert.Contains(t, bus.types(), domain.EventCacheCleared)
}

func TestConnectionStatusPassthrough(t *testing.T) {
	status := &stubStatus{status: domain.ConnectionStatus{AllConnected: true}}
	svc, _, _ := newService(&stubClient{}, status, true)

	assert.True(t, svc.ConnectionStatus().AllConnected)
}
