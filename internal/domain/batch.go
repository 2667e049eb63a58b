package domain

import (
	"math"
	"regexp"
)

// BatchID identifies a warehouse work batch. Opaque to the core; uniqueness
// is the caller's concern.
type BatchID string

// ItemID identifies a single physical item inside a batch.
type ItemID string

// itemIDPattern matches the identifier convention used by the collection
// agents: uppercase alphanumeric, letter-prefixed, at least 10 characters.
var itemIDPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{9,}$`)

// ValidItemID reports whether s looks like a real item identifier.
// Candidates that fail are discarded during extraction and never surfaced.
func ValidItemID(s string) bool {
	return itemIDPattern.MatchString(s)
}

// WeightValue is a weight in pounds.
type WeightValue float64

// Weights outside (0, 1000) lb are parsing noise (quantities, order totals,
// zip codes) and are treated as not found.
const (
	minValidWeight WeightValue = 0
	maxValidWeight WeightValue = 1000
)

// ValidWeight reports whether w falls inside the accepted range.
func ValidWeight(w WeightValue) bool {
	return w > minValidWeight && w < maxValidWeight
}

// Round2 rounds a weight to two decimal places, half up.
func Round2(w WeightValue) WeightValue {
	return WeightValue(math.Floor(float64(w)*100+0.5) / 100)
}

// BatchResult is the summary computed for one batch. Immutable once built.
type BatchResult struct {
	BatchID         BatchID     `json:"batch_id"`
	TotalItems      int         `json:"total_items"`
	ItemsWithWeight int         `json:"items_with_weight"`
	AverageWeight   WeightValue `json:"average_weight"`
	TotalWeight     WeightValue `json:"total_weight"`
	MinWeight       WeightValue `json:"min_weight"`
	MaxWeight       WeightValue `json:"max_weight"`
	UniqueItemCount int         `json:"unique_item_count"`
}
