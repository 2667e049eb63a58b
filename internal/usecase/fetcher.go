package usecase

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"weighbridge/internal/domain"
)

// Fetcher resolves weights for a set of items, cache-first, with bounded
// concurrent fan-out against the extraction client.
type Fetcher struct {
	client    domain.ExtractionClient
	cache     domain.WeightCache
	chunkSize int
	retry     RetryConfig
	logger    *slog.Logger
}

// NewFetcher creates a fetcher. chunkSize bounds in-flight remote fetches.
func NewFetcher(client domain.ExtractionClient, cache domain.WeightCache, chunkSize int, retry RetryConfig, logger *slog.Logger) *Fetcher {
	if chunkSize <= 0 {
		chunkSize = 5
	}
	return &Fetcher{client: client, cache: cache, chunkSize: chunkSize, retry: retry, logger: logger}
}

// FetchWeights returns the weights it could resolve, keyed by item id.
// Items are deduplicated before any remote call: the same identifier never
// costs more than one fetch per batch. Failures on individual items are
// logged and skipped; the batch degrades instead of failing.
func (f *Fetcher) FetchWeights(ctx context.Context, warehouseID string, ids []domain.ItemID) map[domain.ItemID]domain.WeightValue {
	unique := dedupe(ids)

	var mu sync.Mutex
	weights := make(map[domain.ItemID]domain.WeightValue, len(unique))

	for start := 0; start < len(unique); start += f.chunkSize {
		end := min(start+f.chunkSize, len(unique))

		// A plain Group, not WithContext: one item failing must not
		// cancel its siblings mid-flight.
		var g errgroup.Group
		for _, id := range unique[start:end] {
			g.Go(func() error {
				w, ok := f.fetchOne(ctx, warehouseID, id)
				if !ok {
					return nil
				}
				mu.Lock()
				weights[id] = w
				mu.Unlock()
				return nil
			})
		}
		g.Wait()

		if ctx.Err() != nil {
			break
		}
	}
	return weights
}

func (f *Fetcher) fetchOne(ctx context.Context, warehouseID string, id domain.ItemID) (domain.WeightValue, bool) {
	if w, ok := f.cache.Get(warehouseID, id); ok {
		return w, true
	}

	w, err := retryNavigation(ctx, f.retry, func() (domain.WeightValue, error) {
		return f.client.FetchWeight(ctx, warehouseID, id)
	})
	if err != nil {
		f.logger.Warn("weight unresolved", "item", string(id), "error", err)
		return 0, false
	}
	if !domain.ValidWeight(w) {
		f.logger.Warn("weight outside plausible range", "item", string(id), "weight", float64(w))
		return 0, false
	}

	f.cache.Put(warehouseID, id, w)
	return w, true
}

// dedupe preserves first-seen order.
func dedupe(ids []domain.ItemID) []domain.ItemID {
	seen := make(map[domain.ItemID]struct{}, len(ids))
	out := make([]domain.ItemID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
