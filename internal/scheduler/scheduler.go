// Package scheduler paces the synchronous rules core.
// It does NOT know about cards or turns - it only calls steps with a delay
// between them, the way a presentation layer waits for animations.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/platform/metrics"
)

// Step runs one unit of work. Returning false ends the run.
type Step func(ctx context.Context) bool

// Scheduler is a caller-owned task runner. Cancelling means the next step is
// simply never invoked; a step already running finishes normally.
type Scheduler struct {
	delay   time.Duration
	logger  *logger.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// New creates a scheduler that waits delay between steps. Zero runs steps back to back.
func New(delay time.Duration, log *logger.Logger, m *metrics.Collector) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.Get()
	}
	return &Scheduler{delay: delay, logger: log, metrics: m}
}

// Delay returns the pause between steps.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// Run calls step until it returns false, ctx is done or Cancel is called.
// It blocks and returns the number of steps executed.
func (s *Scheduler) Run(ctx context.Context, step Step) int {
	s.mu.Lock()
	ctx, cancel := s.begin(ctx)
	s.mu.Unlock()
	return s.loop(ctx, cancel, step)
}

// begin installs a cancelable context for a new run. Callers hold s.mu.
func (s *Scheduler) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	return ctx, cancel
}

func (s *Scheduler) loop(ctx context.Context, cancel context.CancelFunc, step Step) int {
	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var tick <-chan time.Time
	if s.delay > 0 {
		ticker := time.NewTicker(s.delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	steps := 0
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return steps
			case <-tick:
			}
		}
		if ctx.Err() != nil {
			return steps
		}

		start := time.Now()
		more := step(ctx)
		s.metrics.RecordStep(time.Since(start))
		steps++

		if !more {
			return steps
		}
	}
}

// Go runs the steps in a goroutine and calls done with the step count when
// the run ends. It refuses to start while another run is active.
func (s *Scheduler) Go(ctx context.Context, step Step, done func(steps int)) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Scheduler busy, run refused")
		return false
	}
	ctx, cancel := s.begin(ctx)
	s.mu.Unlock()

	go func() {
		n := s.loop(ctx, cancel, step)
		if done != nil {
			done(n)
		}
	}()
	return true
}

// Cancel drops every remaining step of the current run.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
