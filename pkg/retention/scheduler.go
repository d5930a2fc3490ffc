package retention

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mailboxapi/pkg/domain"
)

const DefaultInterval = 6 * time.Hour

// SchedulerConfig sets the sweep cadence. Retention is used as given, so
// zero sweeps everything created before each tick.
type SchedulerConfig struct {
	Interval   time.Duration
	Retention  time.Duration
	RunOnStart bool
}

// Scheduler triggers a sweep on a fixed interval until stopped.
type Scheduler struct {
	sweeper *Sweeper
	cfg     SchedulerConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(sweeper *Sweeper, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{sweeper: sweeper, cfg: cfg}
}

// Start launches the ticker loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	slog.Info("retention scheduler started", "interval", s.cfg.Interval.String(), "retention", s.cfg.Retention.String())
	go s.loop(ctx, s.done)
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("retention scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if s.cfg.RunOnStart {
		s.runOnce(ctx, domain.TriggerStartup)
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, domain.TriggerSchedule)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, trigger domain.SweepTrigger) {
	// Failures are logged and recorded by Sweeper.Run.
	if _, err := s.sweeper.Run(ctx, trigger, s.cfg.Retention); errors.Is(err, ErrSweepInProgress) {
		slog.Info("retention sweep skipped, lock held elsewhere", "trigger", string(trigger))
	}
}
