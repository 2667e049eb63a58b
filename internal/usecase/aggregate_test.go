package usecase

import (
	"errors"
	"testing"

	"weighbridge/internal/domain"
)

func TestAggregateDuplicatesCountPerOccurrence(t *testing.T) {
	items := []domain.ItemID{"X0001ABCDE", "X0001ABCDE", "X0002FGHIJ"}
	weights := map[domain.ItemID]domain.WeightValue{
		"X0001ABCDE": 1.0,
		"X0002FGHIJ": 3.0,
	}

	res, err := Aggregate("FBA123", items, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", res.TotalItems)
	}
	if res.ItemsWithWeight != 3 {
		t.Errorf("ItemsWithWeight = %d, want 3", res.ItemsWithWeight)
	}
	if res.UniqueItemCount != 2 {
		t.Errorf("UniqueItemCount = %d, want 2", res.UniqueItemCount)
	}
	if res.TotalWeight != 5.00 {
		t.Errorf("TotalWeight = %v, want 5.00", res.TotalWeight)
	}
	// 5 / 3 = 1.666..., half-up to 1.67.
	if res.AverageWeight != 1.67 {
		t.Errorf("AverageWeight = %v, want 1.67", res.AverageWeight)
	}
	if res.MinWeight != 1.00 || res.MaxWeight != 3.00 {
		t.Errorf("Min/Max = %v/%v, want 1.00/3.00", res.MinWeight, res.MaxWeight)
	}
}

func TestAggregatePartialResolution(t *testing.T) {
	items := []domain.ItemID{"X0001ABCDE", "X0002FGHIJ", "X0003KLMNO"}
	weights := map[domain.ItemID]domain.WeightValue{
		"X0001ABCDE": 2.0,
		"X0003KLMNO": 4.0,
	}

	res, err := Aggregate("FBA123", items, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.TotalItems != 3 || res.ItemsWithWeight != 2 {
		t.Errorf("counts = %d/%d, want 3/2", res.TotalItems, res.ItemsWithWeight)
	}
	// The average divides by resolved items only.
	if res.AverageWeight != 3.00 {
		t.Errorf("AverageWeight = %v, want 3.00", res.AverageWeight)
	}
	if res.TotalWeight != 6.00 {
		t.Errorf("TotalWeight = %v, want 6.00", res.TotalWeight)
	}
}

func TestAggregateNothingResolved(t *testing.T) {
	items := []domain.ItemID{"X0001ABCDE", "X0002FGHIJ"}

	_, err := Aggregate("FBA123", items, nil)
	if !errors.Is(err, domain.ErrNoWeightsResolved) {
		t.Fatalf("err = %v, want ErrNoWeightsResolved", err)
	}
}

func TestAggregateRoundsHalfUp(t *testing.T) {
	items := []domain.ItemID{"X0001ABCDE", "X0002FGHIJ"}
	weights := map[domain.ItemID]domain.WeightValue{
		"X0001ABCDE": 1.0,
		"X0002FGHIJ": 1.125,
	}

	res, err := Aggregate("FBA123", items, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (1.0 + 1.125) / 2 = 1.0625, half-up to 1.06.
	if res.AverageWeight != 1.06 {
		t.Errorf("AverageWeight = %v, want 1.06", res.AverageWeight)
	}
	if res.TotalWeight != 2.13 {
		t.Errorf("TotalWeight = %v, want 2.13", res.TotalWeight)
	}
	if res.MaxWeight != 1.13 {
		t.Errorf("MaxWeight = %v, want 1.13", res.MaxWeight)
	}
}
