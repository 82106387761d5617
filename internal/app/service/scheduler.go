package service

import (
	"context"
	"time"
)

// Scheduler drives the time-relative transitions: one fixed-interval tick
// sweeping every live roster. Rosters without a start time are skipped inside
// the sweep; dispatch is fire-and-forget, so a slow recipient never delays
// the next tick.
type Scheduler struct {
	events   *EventService
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(events *EventService, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{events: events, interval: interval, now: time.Now}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.events.Sweep(ctx, s.now())
		}
	}
}
