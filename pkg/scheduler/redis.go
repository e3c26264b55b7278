// Package scheduler is the batch queue asynchronous jobs go through. Job
// records live in Redis hashes; pending job ids sit in one list per queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
)

// Status is the lifecycle state of a queued job.
type Status string

const (
	Pending   Status = "PENDING"
	Running   Status = "RUNNING"
	Suspended Status = "SUSPENDED"
	Done      Status = "DONE"
	Exited    Status = "EXITED"
	Unknown   Status = "UNKNOWN"
)

// Active reports whether the job may still produce a result.
func (s Status) Active() bool {
	return s == Pending || s == Running || s == Suspended
}

func ParseStatus(s string) Status {
	switch Status(s) {
	case Pending, Running, Suspended, Done, Exited:
		return Status(s)
	}
	return Unknown
}

const DefaultQueue = "normal"

// DefaultRecordTTL keeps finished job records long enough for late polls.
const DefaultRecordTTL = 24 * time.Hour

// Options are attached to a submission.
type Options struct {
	Queue    string
	NoNotify bool
}

// Job is a dequeued task with its payload.
type Job struct {
	ID      string
	Queue   string
	Payload []byte
	Notify  bool
}

// RedisQueue keeps job records and pending lists in Redis.
type RedisQueue struct {
	client    *redis.Client
	keyPrefix string
	// finished records are kept this long so late polls still see DONE/EXITED
	recordTTL time.Duration
}

// NewRedisQueue connects to redisURL and checks the connection.
func NewRedisQueue(ctx context.Context, redisURL string, recordTTL time.Duration) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Connected to Redis", zap.String("addr", opts.Addr))
	return NewRedisQueueFromClient(client, recordTTL), nil
}

func NewRedisQueueFromClient(client *redis.Client, recordTTL time.Duration) *RedisQueue {
	return &RedisQueue{client: client, keyPrefix: "roundup:", recordTTL: recordTTL}
}

func (q *RedisQueue) jobKey(id string) string {
	return q.keyPrefix + "job:" + id
}

func (q *RedisQueue) queueKey(name string) string {
	if name == "" {
		name = DefaultQueue
	}
	return q.keyPrefix + "queue:" + name
}

// Submit stores the job record and pushes its id onto the queue.
func (q *RedisQueue) Submit(ctx context.Context, payload []byte, opts Options) (string, error) {
	id := uuid.NewString()
	queue := opts.Queue
	if queue == "" {
		queue = DefaultQueue
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(id), map[string]any{
		"status":    string(Pending),
		"queue":     queue,
		"payload":   string(payload),
		"notify":    !opts.NoNotify,
		"submitted": time.Now().UTC().Format(time.RFC3339),
	})
	pipe.LPush(ctx, q.queueKey(queue), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to submit job: %w", err)
	}

	logger.Debug("Submitted job", zap.String("job_id", id), zap.String("queue", queue))
	return id, nil
}

// Status never fails: a missing record or a lookup error is Unknown.
func (q *RedisQueue) Status(ctx context.Context, jobID string) Status {
	s, err := q.client.HGet(ctx, q.jobKey(jobID), "status").Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Job status lookup failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return Unknown
	}
	return ParseStatus(s)
}

// Dequeue blocks up to timeout for the next job on queue and marks it
// RUNNING. It returns nil, nil when the queue stayed empty. Suspended ids
// are skipped.
func (q *RedisQueue) Dequeue(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.queueKey(queue)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	id := res[1]

	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if len(fields) == 0 {
		logger.Warn("Dropping queued job without record", zap.String("job_id", id))
		return nil, nil
	}
	if Status(fields["status"]) != Pending {
		return nil, nil
	}
	if err := q.setStatus(ctx, id, Running, ""); err != nil {
		return nil, err
	}
	return &Job{
		ID:      id,
		Queue:   fields["queue"],
		Payload: []byte(fields["payload"]),
		Notify:  fields["notify"] == "1",
	}, nil
}

// Finish records DONE, or EXITED with the error message when jobErr is set.
func (q *RedisQueue) Finish(ctx context.Context, jobID string, jobErr error) error {
	if jobErr != nil {
		return q.setStatus(ctx, jobID, Exited, jobErr.Error())
	}
	return q.setStatus(ctx, jobID, Done, "")
}

// Suspend holds a pending job. Its id stays out of the queue until Resume.
func (q *RedisQueue) Suspend(ctx context.Context, jobID string) error {
	if s := q.Status(ctx, jobID); s != Pending {
		return fmt.Errorf("cannot suspend job %s in state %s", jobID, s)
	}
	queue, err := q.client.HGet(ctx, q.jobKey(jobID), "queue").Result()
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.queueKey(queue), 0, jobID)
	pipe.HSet(ctx, q.jobKey(jobID), "status", string(Suspended))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to suspend job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Resume(ctx context.Context, jobID string) error {
	if s := q.Status(ctx, jobID); s != Suspended {
		return fmt.Errorf("cannot resume job %s in state %s", jobID, s)
	}
	queue, err := q.client.HGet(ctx, q.jobKey(jobID), "queue").Result()
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), "status", string(Pending))
	pipe.LPush(ctx, q.queueKey(queue), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to resume job: %w", err)
	}
	return nil
}

func (q *RedisQueue) setStatus(ctx context.Context, jobID string, status Status, errMsg string) error {
	fields := map[string]any{
		"status":  string(status),
		"updated": time.Now().UTC().Format(time.RFC3339),
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), fields)
	if !status.Active() && q.recordTTL > 0 {
		pipe.Expire(ctx, q.jobKey(jobID), q.recordTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set job %s to %s: %w", jobID, status, err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
