// Package retention deletes mailbox rows that have outlived the configured
// retention window, either on a timer or on demand.
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
	"mailboxapi/pkg/store"
)

const DefaultRetention = 48 * time.Hour

var (
	// ErrSweepInProgress is returned when another sweep holds the lock.
	ErrSweepInProgress   = errors.New("sweep already in progress")
	ErrNegativeRetention = errors.New("retention must not be negative")
)

// Sweeper runs one retention pass against the store and records the run.
type Sweeper struct {
	store  store.RetentionStore
	locker Locker
	now    func() time.Time
}

// NewSweeper uses a process-local lock when locker is nil.
func NewSweeper(st store.RetentionStore, locker Locker) *Sweeper {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Sweeper{store: st, locker: locker, now: time.Now}
}

// Run deletes rows created before now-retention; a zero retention deletes
// everything created before now. A failed step stops the run and the error
// is logged, recorded and returned without retrying.
func (s *Sweeper) Run(ctx context.Context, trigger domain.SweepTrigger, retention time.Duration) (domain.SweepRun, error) {
	if retention < 0 {
		return domain.SweepRun{}, ErrNegativeRetention
	}
	release, ok, err := s.locker.Acquire(ctx)
	if err != nil {
		return domain.SweepRun{}, err
	}
	if !ok {
		return domain.SweepRun{}, ErrSweepInProgress
	}
	defer release()

	logger := util.LoggerFromContext(ctx).With("trigger", string(trigger))
	started := s.now().UTC()
	run := domain.SweepRun{
		ID:             util.NewID(),
		Trigger:        trigger,
		RetentionHours: int(retention / time.Hour),
		Cutoff:         started.Add(-retention),
		StartedAt:      started,
	}

	result, sweepErr := s.store.Sweep(ctx, run.Cutoff)
	run.Result = result
	run.FinishedAt = s.now().UTC()
	if sweepErr != nil {
		run.Error = sweepErr.Error()
		logger.Error("retention sweep failed", "err", sweepErr, "cutoff", run.Cutoff)
	} else {
		logger.Info("retention sweep finished",
			"cutoff", run.Cutoff,
			"deleted_emails", result.DeletedEmails,
			"deleted_notifications", result.DeletedNotifications,
			"deleted_messages", result.DeletedMessages,
			"deleted_orphaned_attachments", result.DeletedOrphanedAttachments,
			"deleted_orphaned_mappings", result.DeletedOrphanedMappings,
			"duration_ms", run.FinishedAt.Sub(started).Milliseconds(),
		)
	}

	// The run is recorded even when ctx was cancelled mid-sweep.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.SaveSweepRun(saveCtx, run); err != nil {
		logger.Warn("record sweep run failed", "err", err)
	}
	if sweepErr != nil {
		return run, fmt.Errorf("sweep: %w", sweepErr)
	}
	return run, nil
}

// Recent lists the latest recorded runs, newest first.
func (s *Sweeper) Recent(ctx context.Context, limit int) ([]domain.SweepRun, error) {
	return s.store.ListSweepRuns(ctx, limit)
}
