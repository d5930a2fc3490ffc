package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mailboxapi/pkg/domain"
	"mailboxapi/pkg/queue"
	"mailboxapi/pkg/retention"
	"mailboxapi/pkg/store"
)

// SweepOutcome is either a queued job or a finished inline run.
type SweepOutcome struct {
	Job *queue.SweepJob  `json:"job,omitempty"`
	Run *domain.SweepRun `json:"run,omitempty"`
}

// Queued reports whether the sweep was handed to the worker.
func (o SweepOutcome) Queued() bool {
	return o.Job != nil
}

// TriggerSweep enqueues a sweep when a queue is configured and runs it
// inline otherwise. A nil retentionHours uses the configured retention;
// zero deletes everything created before now.
func (a *App) TriggerSweep(ctx context.Context, caller domain.Identity, retentionHours *int) (SweepOutcome, error) {
	if caller.Role != domain.RoleAdmin {
		return SweepOutcome{}, ErrForbidden
	}
	window := a.retention
	if retentionHours != nil {
		if *retentionHours < 0 {
			return SweepOutcome{}, invalid("retentionHours", "retentionHours must not be negative")
		}
		window = time.Duration(*retentionHours) * time.Hour
	}
	if a.queue != nil {
		job, err := a.queue.Enqueue(ctx, int(window/time.Hour), caller.UserID)
		if err != nil {
			return SweepOutcome{}, fmt.Errorf("enqueue sweep: %w", err)
		}
		return SweepOutcome{Job: &job}, nil
	}
	run, err := a.sweeper.Run(ctx, domain.TriggerManual, window)
	if err != nil {
		if errors.Is(err, retention.ErrSweepInProgress) {
			return SweepOutcome{}, ErrSweepInProgress
		}
		return SweepOutcome{}, storeErr("sweep", err)
	}
	return SweepOutcome{Run: &run}, nil
}

func (a *App) SweepJob(ctx context.Context, caller domain.Identity, jobID string) (queue.SweepJob, error) {
	if caller.Role != domain.RoleAdmin {
		return queue.SweepJob{}, ErrForbidden
	}
	if a.queue == nil {
		return queue.SweepJob{}, ErrSweepJobNotFound
	}
	job, ok, err := a.queue.GetJob(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return queue.SweepJob{}, fmt.Errorf("get sweep job: %w", err)
	}
	if !ok {
		return queue.SweepJob{}, ErrSweepJobNotFound
	}
	return job, nil
}

func (a *App) RecentSweeps(ctx context.Context, caller domain.Identity, limit int) ([]domain.SweepRun, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	runs, err := a.sweeper.Recent(ctx, store.FeedLimit(limit))
	if err != nil {
		return nil, storeErr("list sweeps", err)
	}
	return runs, nil
}
