// Package engine provides the tick-based simulation loop.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Scheduler fires the simulation step at a fixed interval. A step that
// overruns the interval causes the next firing to be skipped rather
// than stacking a second step behind it.
type Scheduler struct {
	Interval time.Duration
	Step     func(ctx context.Context)

	busy atomic.Bool
}

// Run drives the loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scheduler started", "interval", s.Interval)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			if !s.busy.CompareAndSwap(false, true) {
				slog.Warn("tick still in flight, skipping interval")
				continue
			}
			go func() {
				defer s.busy.Store(false)
				s.Step(ctx)
			}()
		}
	}
}
