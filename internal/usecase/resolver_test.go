package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"weighbridge/internal/domain"
)

func TestResolvePreservesDuplicates(t *testing.T) {
	client := &stubClient{
		identifiers: []domain.ItemID{"X0001ABCDE", "X0001ABCDE", "X0002FGHIJ"},
	}
	r := NewResolver(client, RetryConfig{}, slog.Default())

	ids, err := r.Resolve(context.Background(), "us-east", "FBA123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("len(ids) = %d, want 3", len(ids))
	}
}

func TestResolveEmptyBatch(t *testing.T) {
	r := NewResolver(&stubClient{}, RetryConfig{}, slog.Default())

	_, err := r.Resolve(context.Background(), "us-east", "FBA123")
	if !errors.Is(err, domain.ErrNoIdentifiers) {
		t.Fatalf("err = %v, want ErrNoIdentifiers", err)
	}
}

func TestResolveNotFoundBecomesNoIdentifiers(t *testing.T) {
	r := NewResolver(&stubClient{identErr: domain.ErrNotFound}, RetryConfig{}, slog.Default())

	_, err := r.Resolve(context.Background(), "us-east", "FBA123")
	if !errors.Is(err, domain.ErrNoIdentifiers) {
		t.Fatalf("err = %v, want ErrNoIdentifiers", err)
	}
}

func TestResolvePropagatesTransportErrors(t *testing.T) {
	r := NewResolver(&stubClient{identErr: domain.ErrSourceUnreachable}, RetryConfig{}, slog.Default())

	_, err := r.Resolve(context.Background(), "us-east", "FBA123")
	if !errors.Is(err, domain.ErrSourceUnreachable) {
		t.Fatalf("err = %v, want ErrSourceUnreachable", err)
	}
}
