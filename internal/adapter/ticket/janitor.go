package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"weighbridge/internal/domain"
)

// DefaultSweepInterval is how often the janitor looks for expired tickets.
const DefaultSweepInterval = 10 * time.Second

// Janitor periodically sweeps expired tickets. Consumption already treats
// expired tickets as gone, so the sweep is housekeeping plus the
// ticket.expired notification for observers.
type Janitor struct {
	store  domain.TicketStore
	bus    domain.EventBus
	logger *slog.Logger
	cron   *cron.Cron
}

// NewJanitor creates a janitor sweeping every interval.
func NewJanitor(store domain.TicketStore, bus domain.EventBus, interval time.Duration, logger *slog.Logger) (*Janitor, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	j := &Janitor{
		store:  store,
		bus:    bus,
		logger: logger,
		cron:   cron.New(),
	}
	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", interval), j.sweep); err != nil {
		return nil, fmt.Errorf("schedule ticket sweep: %w", err)
	}
	return j, nil
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := j.store.SweepExpired(ctx)
	if err != nil {
		j.logger.Error("ticket sweep failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.Debug("swept expired tickets", "count", n)
		j.bus.Publish(ctx, domain.NewEvent(domain.EventTicketExpired, map[string]int{"swept": n}))
	}
}

// Start begins sweeping in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
