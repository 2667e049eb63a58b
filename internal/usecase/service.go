package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"weighbridge/internal/domain"
	"weighbridge/internal/infra/tracer"
)

// ConnectionStatusProvider answers readiness queries. The connection
// registry implements it; direct deployments use one with no expected
// roles, which always reports ready.
type ConnectionStatusProvider interface {
	Status() domain.ConnectionStatus
}

// Service orchestrates the whole batch summary pipeline: resolve the batch
// into items, fan out weight fetches, and aggregate the survivors.
type Service struct {
	resolver *Resolver
	fetcher  *Fetcher
	cache    domain.WeightCache
	status   ConnectionStatusProvider
	bus      domain.EventBus
	logger   *slog.Logger

	// requireAgents gates batch computation on agent readiness. Set for
	// navigate-resume deployments, where an absent agent means every
	// extraction would dead-end.
	requireAgents bool
}

// NewService wires the orchestrator.
func NewService(
	resolver *Resolver,
	fetcher *Fetcher,
	cache domain.WeightCache,
	status ConnectionStatusProvider,
	bus domain.EventBus,
	requireAgents bool,
	logger *slog.Logger,
) *Service {
	return &Service{
		resolver:      resolver,
		fetcher:       fetcher,
		cache:         cache,
		status:        status,
		bus:           bus,
		requireAgents: requireAgents,
		logger:        logger,
	}
}

// ComputeBatchWeightSummary resolves, fetches, and aggregates one batch.
func (s *Service) ComputeBatchWeightSummary(ctx context.Context, warehouseID string, batchID domain.BatchID) (*domain.BatchResult, error) {
	const op = "Service.ComputeBatchWeightSummary"

	ctx, span := tracer.StartSpan(ctx, "batch.compute",
		trace.WithAttributes(
			tracer.StringAttr("batch.id", string(batchID)),
			tracer.StringAttr("warehouse.id", warehouseID),
		))
	defer span.End()

	if s.requireAgents {
		st := s.status.Status()
		if !st.AllConnected {
			err := domain.NewDomainError(op, domain.ErrAgentDisconnected,
				fmt.Sprintf("missing roles: %v", st.MissingRoles))
			tracer.RecordError(span, err)
			return nil, err
		}
	}

	resolveCtx, resolveSpan := tracer.StartSpan(ctx, "batch.resolve")
	ids, err := s.resolver.Resolve(resolveCtx, warehouseID, batchID)
	if err != nil {
		tracer.RecordError(resolveSpan, err)
		resolveSpan.End()
		tracer.RecordError(span, err)
		return nil, err
	}
	resolveSpan.SetAttributes(tracer.IntAttr("batch.items", len(ids)))
	resolveSpan.End()

	fetchCtx, fetchSpan := tracer.StartSpan(ctx, "batch.fetch_weights")
	weights := s.fetcher.FetchWeights(fetchCtx, warehouseID, ids)
	fetchSpan.SetAttributes(tracer.IntAttr("batch.weights_resolved", len(weights)))
	fetchSpan.End()

	res, err := Aggregate(batchID, ids, weights)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("batch summary computed",
		"batch", string(batchID),
		"items", res.TotalItems,
		"resolved", res.ItemsWithWeight,
		"average", float64(res.AverageWeight))
	s.bus.Publish(ctx, domain.NewEvent(domain.EventBatchCompleted, res))

	tracer.SetOK(span)
	return res, nil
}

// ClearCache drops every cached weight.
func (s *Service) ClearCache(ctx context.Context) {
	s.cache.Clear()
	s.logger.Info("weight cache cleared")
	s.bus.Publish(ctx, domain.NewEvent(domain.EventCacheCleared, nil))
}

// ConnectionStatus reports agent readiness for navigate-resume extraction.
func (s *Service) ConnectionStatus() domain.ConnectionStatus {
	return s.status.Status()
}
