// Package schedule drives periodic processing runs.
package schedule

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

// Runner is one full pass: sync remote exports, process batch folders,
// dispatch the report.
type Runner interface {
	RunOnce(ctx context.Context) error
}

type Scheduler struct {
	runner   Runner
	interval time.Duration
	clock    clockwork.Clock
}

func New(runner Runner, interval time.Duration, clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{runner: runner, interval: interval, clock: clock}
}

// Run executes one pass immediately, then once per interval until the
// context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("schedule: stopping: %v", ctx.Err())
			return
		case <-ticker.Chan():
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.runner.RunOnce(ctx); err != nil {
		log.Printf("schedule: run failed: %v", err)
	}
}
