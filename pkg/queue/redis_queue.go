package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// SweepJob is a queued retention sweep and its latest known status.
type SweepJob struct {
	ID             string              `json:"id"`
	RetentionHours int                 `json:"retentionHours"`
	RequestedBy    string              `json:"requestedBy,omitempty"`
	Status         string              `json:"status"`
	ErrorMessage   string              `json:"errorMessage,omitempty"`
	Attempts       int                 `json:"attempts"`
	Result         *domain.SweepResult `json:"result,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Handler runs one job. A returned error schedules a retry until MaxRetries.
type Handler func(context.Context, SweepJob) (domain.SweepResult, error)

// RedisJobQueue delivers sweep jobs over a Redis stream consumer group and
// keeps per-job status in a hash that expires after JobTTL.
type RedisJobQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	once         sync.Once
	groupErr     error
	wg           sync.WaitGroup
}

type RedisQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
}

func NewRedisJobQueue(cfg RedisQueueConfig) (*RedisJobQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "retention"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}

	return &RedisJobQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		jobTTL:       positiveDuration(cfg.JobTTL, 24*time.Hour),
		maxRetries:   positiveInt(cfg.MaxRetries, 3),
		block:        positiveDuration(cfg.Block, 5*time.Second),
		claimIdle:    positiveDuration(cfg.ClaimIdle, 30*time.Second),
		retryDelay:   positiveDuration(cfg.RetryDelay, 2*time.Second),
		maxLen:       int64(positiveInt(int(cfg.MaxLen), 10000)),
		readCount:    int64(positiveInt(int(cfg.ReadCount), 10)),
		claimCount:   int64(positiveInt(int(cfg.ClaimCount), 10)),
	}, nil
}

// Enqueue records a queued job and appends it to the stream.
func (q *RedisJobQueue) Enqueue(ctx context.Context, retentionHours int, requestedBy string) (SweepJob, error) {
	if retentionHours < 0 {
		return SweepJob{}, errors.New("retentionHours must not be negative")
	}
	now := time.Now().UTC()
	job := SweepJob{
		ID:             util.NewID(),
		RetentionHours: retentionHours,
		RequestedBy:    strings.TrimSpace(requestedBy),
		Status:         StatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return SweepJob{}, fmt.Errorf("write job status: %w", err)
	}
	if err := q.client.XAdd(ctx, q.addArgs(job)).Err(); err != nil {
		return SweepJob{}, fmt.Errorf("enqueue sweep job: %w", err)
	}
	return job, nil
}

// GetJob returns the stored status of a job.
func (q *RedisJobQueue) GetJob(ctx context.Context, jobID string) (SweepJob, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return SweepJob{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return SweepJob{}, false, err
	}
	if len(data) == 0 {
		return SweepJob{}, false, nil
	}
	return decodeSweepJob(jobID, data), true, nil
}

// Start launches concurrency consumers that run until ctx is cancelled.
func (q *RedisJobQueue) Start(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.consumeLoop(ctx, consumer, handler)
		}()
	}
	return nil
}

// Wait blocks until every consumer started by Start has returned.
func (q *RedisJobQueue) Wait() {
	q.wg.Wait()
}

// Close releases the Redis client.
func (q *RedisJobQueue) Close() error {
	return q.client.Close()
}

func (q *RedisJobQueue) ensureGroup(ctx context.Context) error {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.groupErr = fmt.Errorf("create consumer group: %w", err)
		}
	})
	return q.groupErr
}

func (q *RedisJobQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	logger := slog.With("stream", q.stream, "consumer", consumer)
	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := q.claimPending(ctx, consumer)
		if err != nil && ctx.Err() == nil {
			logger.Warn("queue claim failed", "err", err)
		}
		for _, msg := range msgs {
			q.handleMessage(ctx, msg, handler)
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Warn("queue read failed", "err", err)
			if !sleepCtx(ctx, q.retryDelay) {
				return
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisJobQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}

func (q *RedisJobQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	jobID, _ := msg.Values["job_id"].(string)
	hours, err := strconv.Atoi(fmt.Sprint(msg.Values["retention_hours"]))
	if jobID == "" || err != nil || hours < 0 {
		slog.Warn("dropping malformed sweep job", "msg_id", msg.ID)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, jobID, hours)
	if err != nil {
		slog.Warn("mark job processing failed", "job_id", jobID, "err", err)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	result, err := handler(ctx, job)
	if err == nil {
		_ = q.markDone(ctx, job, result)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if job.Attempts >= q.maxRetries {
		slog.Error("sweep job failed", "job_id", jobID, "attempts", job.Attempts, "err", err)
		_ = q.markFailed(ctx, job, err.Error())
		q.ackAndDel(ctx, msg.ID)
		return
	}
	slog.Warn("sweep job will retry", "job_id", jobID, "attempts", job.Attempts, "err", err)
	_ = q.markQueued(ctx, job, err.Error())
	if !sleepCtx(ctx, q.retryDelay) {
		return
	}
	_ = q.requeueAndAck(ctx, msg.ID, job)
}

func (q *RedisJobQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

// requeueAndAck appends a fresh copy and acknowledges the old entry atomically.
func (q *RedisJobQueue) requeueAndAck(ctx context.Context, msgID string, job SweepJob) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, q.addArgs(job))
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisJobQueue) addArgs(job SweepJob) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":          job.ID,
			"retention_hours": strconv.Itoa(job.RetentionHours),
			"requested_by":    job.RequestedBy,
		},
	}
}

func (q *RedisJobQueue) markProcessing(ctx context.Context, jobID string, hours int) (SweepJob, error) {
	job, found, err := q.GetJob(ctx, jobID)
	if err != nil {
		return SweepJob{}, err
	}
	now := time.Now().UTC()
	if !found {
		job = SweepJob{ID: jobID, CreatedAt: now}
	}
	job.RetentionHours = hours
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = now
	if err := q.writeStatus(ctx, job); err != nil {
		return SweepJob{}, err
	}
	return job, nil
}

func (q *RedisJobQueue) markQueued(ctx context.Context, job SweepJob, errMsg string) error {
	job.Status = StatusQueued
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisJobQueue) markDone(ctx context.Context, job SweepJob, result domain.SweepResult) error {
	job.Status = StatusDone
	job.ErrorMessage = ""
	job.Result = &result
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisJobQueue) markFailed(ctx context.Context, job SweepJob, errMsg string) error {
	job.Status = StatusFailed
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisJobQueue) writeStatus(ctx context.Context, job SweepJob) error {
	key := q.jobKey(job.ID)
	payload := map[string]any{
		"id":             job.ID,
		"retentionHours": strconv.Itoa(job.RetentionHours),
		"requestedBy":    job.RequestedBy,
		"status":         job.Status,
		"error":          job.ErrorMessage,
		"attempts":       strconv.Itoa(job.Attempts),
		"createdAt":      job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt":      job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if job.Result != nil {
		raw, err := json.Marshal(job.Result)
		if err != nil {
			return err
		}
		payload["result"] = string(raw)
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, payload)
	pipe.Expire(ctx, key, q.jobTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisJobQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func decodeSweepJob(jobID string, data map[string]string) SweepJob {
	job := SweepJob{
		ID:           jobID,
		RequestedBy:  data["requestedBy"],
		Status:       data["status"],
		ErrorMessage: data["error"],
	}
	if n, err := strconv.Atoi(data["retentionHours"]); err == nil {
		job.RetentionHours = n
	}
	if n, err := strconv.Atoi(data["attempts"]); err == nil {
		job.Attempts = n
	}
	if v := data["result"]; v != "" {
		var res domain.SweepResult
		if err := json.Unmarshal([]byte(v), &res); err == nil {
			job.Result = &res
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, data["createdAt"]); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, data["updatedAt"]); err == nil {
		job.UpdatedAt = t
	}
	return job
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func positiveDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func positiveInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
