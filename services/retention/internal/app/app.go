package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"mailboxapi/pkg/domain"
	"mailboxapi/pkg/queue"
	"mailboxapi/pkg/retention"
	"mailboxapi/pkg/store"
)

const (
	defaultQueueStream = "mailbox:sweeps"
	defaultQueueGroup  = "retention"
)

// Config holds runtime configuration.
type Config struct {
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	Store          store.Store

	RedisAddr     string
	RedisPassword string

	QueueStream            string
	QueueGroup             string
	QueueConcurrency       int
	QueueMaxRetries        int
	QueueRetryDelaySeconds int

	// Retention is the scheduled sweep window; nil means
	// retention.DefaultRetention and zero sweeps everything.
	Retention  *time.Duration
	Interval   time.Duration
	RunOnStart bool
}

// App runs scheduled sweeps and consumes sweep jobs queued by the API.
type App struct {
	store       store.Store
	sweeper     *retention.Sweeper
	scheduler   *retention.Scheduler
	queue       *queue.RedisJobQueue
	concurrency int
	closers     []io.Closer
}

// New constructs the retention worker. The queue consumer is only built
// when Redis is configured.
func New(cfg Config) (*App, error) {
	if cfg.Retention != nil && *cfg.Retention < 0 {
		return nil, retention.ErrNegativeRetention
	}
	a := &App{concurrency: cfg.QueueConcurrency}
	dataStore := cfg.Store
	if dataStore == nil {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("database URL required")
		}
		gs, err := store.NewGormStore(cfg.DatabaseURL, store.WithPoolLimits(cfg.DBMaxOpenConns, cfg.DBMaxIdleConns))
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, gs)
		dataStore = gs
	}
	a.store = dataStore

	var locker retention.Locker
	redisAddr := strings.TrimSpace(cfg.RedisAddr)
	if redisAddr != "" {
		rl, err := retention.NewRedisLocker(redisAddr, cfg.RedisPassword, "", 0)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init sweep lock: %w", err)
		}
		a.closers = append(a.closers, rl)
		locker = rl

		stream := strings.TrimSpace(cfg.QueueStream)
		if stream == "" {
			stream = defaultQueueStream
		}
		group := strings.TrimSpace(cfg.QueueGroup)
		if group == "" {
			group = defaultQueueGroup
		}
		q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:       redisAddr,
			Password:   cfg.RedisPassword,
			Stream:     stream,
			Group:      group,
			MaxRetries: cfg.QueueMaxRetries,
			RetryDelay: time.Duration(cfg.QueueRetryDelaySeconds) * time.Second,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init sweep queue: %w", err)
		}
		a.closers = append(a.closers, q)
		a.queue = q
	}

	window := retention.DefaultRetention
	if cfg.Retention != nil {
		window = *cfg.Retention
	}
	a.sweeper = retention.NewSweeper(dataStore, locker)
	a.scheduler = retention.NewScheduler(a.sweeper, retention.SchedulerConfig{
		Interval:   cfg.Interval,
		Retention:  window,
		RunOnStart: cfg.RunOnStart,
	})
	return a, nil
}

// Start launches the scheduler and, when configured, the queue consumers.
func (a *App) Start(ctx context.Context) error {
	a.scheduler.Start(ctx)
	if a.queue == nil {
		return nil
	}
	if err := a.queue.Start(ctx, a.concurrency, a.process); err != nil {
		a.scheduler.Stop()
		return fmt.Errorf("start sweep consumers: %w", err)
	}
	slog.Info("sweep queue consumers started", "concurrency", a.concurrency)
	return nil
}

// Stop waits for the scheduler and in-flight jobs to finish. The context
// passed to Start must already be cancelled.
func (a *App) Stop() {
	a.scheduler.Stop()
	if a.queue != nil {
		a.queue.Wait()
	}
}

// Close releases connections opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}

// RecentRuns lists the latest recorded sweeps.
func (a *App) RecentRuns(ctx context.Context, limit int) ([]domain.SweepRun, error) {
	return a.sweeper.Recent(ctx, store.FeedLimit(limit))
}

// GetJob returns a queued sweep job by ID.
func (a *App) GetJob(ctx context.Context, id string) (queue.SweepJob, bool, error) {
	if a.queue == nil {
		return queue.SweepJob{}, false, nil
	}
	return a.queue.GetJob(ctx, id)
}

// process runs one queued sweep. A held lock is returned as an error so the
// queue retries the job later.
func (a *App) process(ctx context.Context, job queue.SweepJob) (domain.SweepResult, error) {
	run, err := a.sweeper.Run(ctx, domain.TriggerQueue, time.Duration(job.RetentionHours)*time.Hour)
	if err != nil {
		return domain.SweepResult{}, err
	}
	slog.Info("queued sweep finished", "job_id", job.ID, "requested_by", job.RequestedBy, "deleted", run.Result.Total())
	return run.Result, nil
}
