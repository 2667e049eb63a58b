package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"weighbridge/internal/domain"
)

// Resolver turns a batch identifier into the item identifiers it contains.
// Duplicates are preserved: a repeated identifier is a repeated physical
// item and must count toward the totals.
type Resolver struct {
	client domain.ExtractionClient
	retry  RetryConfig
	logger *slog.Logger
}

// NewResolver creates a resolver over the given extraction client.
func NewResolver(client domain.ExtractionClient, retry RetryConfig, logger *slog.Logger) *Resolver {
	return &Resolver{client: client, retry: retry, logger: logger}
}

// Resolve fetches the batch's item identifiers.
func (r *Resolver) Resolve(ctx context.Context, warehouseID string, batchID domain.BatchID) ([]domain.ItemID, error) {
	const op = "Resolver.Resolve"

	ids, err := retryNavigation(ctx, r.retry, func() ([]domain.ItemID, error) {
		return r.client.FetchIdentifiers(ctx, warehouseID, batchID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewDomainError(op, domain.ErrNoIdentifiers, fmt.Sprintf("batch %s", batchID))
		}
		return nil, domain.WrapOp(op, err)
	}
	if len(ids) == 0 {
		return nil, domain.NewDomainError(op, domain.ErrNoIdentifiers, fmt.Sprintf("batch %s", batchID))
	}

	r.logger.Debug("batch resolved", "batch", string(batchID), "items", len(ids))
	return ids, nil
}
