package usecase

import (
	"fmt"

	"weighbridge/internal/domain"
)

// Aggregate folds resolved weights into a batch summary. The item list is
// the batch manifest: duplicates in it are distinct physical items, so a
// repeated identifier contributes its weight once per occurrence.
func Aggregate(batchID domain.BatchID, items []domain.ItemID, weights map[domain.ItemID]domain.WeightValue) (*domain.BatchResult, error) {
	const op = "Aggregate"

	res := &domain.BatchResult{
		BatchID:    batchID,
		TotalItems: len(items),
	}

	unique := make(map[domain.ItemID]struct{}, len(items))
	var total float64
	var minW, maxW domain.WeightValue
	for _, id := range items {
		unique[id] = struct{}{}

		w, ok := weights[id]
		if !ok {
			continue
		}
		if res.ItemsWithWeight == 0 || w < minW {
			minW = w
		}
		if res.ItemsWithWeight == 0 || w > maxW {
			maxW = w
		}
		total += float64(w)
		res.ItemsWithWeight++
	}
	res.UniqueItemCount = len(unique)

	if res.ItemsWithWeight == 0 {
		return nil, domain.NewDomainError(op, domain.ErrNoWeightsResolved,
			fmt.Sprintf("batch %s: 0 of %d items", batchID, len(items)))
	}

	res.TotalWeight = domain.Round2(domain.WeightValue(total))
	res.AverageWeight = domain.Round2(domain.WeightValue(total / float64(res.ItemsWithWeight)))
	res.MinWeight = domain.Round2(minW)
	res.MaxWeight = domain.Round2(maxW)
	return res, nil
}
