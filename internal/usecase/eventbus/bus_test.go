package eventbus

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"weighbridge/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventConnectionChanged, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventConnectionChanged {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), domain.NewEvent(domain.EventConnectionChanged, nil))
	bus.Close() // drain
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestTypedSubscriberIgnoresOtherTypes(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventTicketConsumed, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), domain.NewEvent(domain.EventBatchCompleted, nil))
	bus.Close()
	if got.Load() != 0 {
		t.Fatalf("expected 0, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), domain.NewEvent(domain.EventTicketIssued, nil))
	bus.Publish(context.Background(), domain.NewEvent(domain.EventCacheCleared, nil))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.EventTicketExpired, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	unsub()

	bus.Publish(context.Background(), domain.NewEvent(domain.EventTicketExpired, nil))
	bus.Close()
	if got.Load() != 0 {
		t.Fatalf("expected 0 after unsubscribe, got %d", got.Load())
	}
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) { got.Add(1) })

	bus.Close()
	bus.Publish(context.Background(), domain.NewEvent(domain.EventBatchCompleted, nil))
	if got.Load() != 0 {
		t.Fatalf("expected 0 after close, got %d", got.Load())
	}
}

func TestPanickingHandlerIsRecovered(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) { panic("boom") })
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) { got.Add(1) })

	bus.Publish(context.Background(), domain.NewEvent(domain.EventBatchCompleted, nil))
	bus.Close()
	if got.Load() != 1 {
		t.Fatalf("sibling handler should still run, got %d", got.Load())
	}
}
