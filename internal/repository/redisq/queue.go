package redisq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yunojang/backend/internal/domain/entity"
)

// ErrQueueUnavailable wraps any Redis transport failure. Callers should treat
// it as a retryable service error.
var ErrQueueUnavailable = errors.New("job queue unavailable")

// QueueName is the logical queue ingest jobs are scheduled on.
const QueueName = "uploads"

const (
	jobKeyPrefix = "ingest:job:"
	pendingKey   = "ingest:pending:" + QueueName

	// DefaultRetention bounds how long a job record (and with it the
	// idempotency dedup window) survives after its last update.
	DefaultRetention = 24 * time.Hour
)

// Queue is a Redis-backed job queue. Each job lives in a hash under its
// idempotency key; pending job IDs sit on a list workers block-pop from.
type Queue struct {
	client    *redis.Client
	retention time.Duration
}

func NewQueue(client *redis.Client, retention time.Duration) *Queue {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Queue{client: client, retention: retention}
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

// enqueueScript creates the job record, its retention TTL, and the pending
// list entry in one atomic step, so a transport failure can never leave a
// partial record behind. Returns 1 when this call created the job.
var enqueueScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "project_id", ARGV[1], "source_url", ARGV[2], "stage", ARGV[3], "progress", "0", "created_at", ARGV[4])
redis.call("EXPIRE", KEYS[1], ARGV[5])
redis.call("LPUSH", KEYS[2], ARGV[6])
return 1
`)

// Enqueue schedules the job unless one already lives under the same ID, in
// which case the existing job's current state is returned instead.
func (q *Queue) Enqueue(ctx context.Context, job *entity.IngestJob) (*entity.IngestJob, bool, error) {
	keys := []string{jobKey(job.ID), pendingKey}
	args := []interface{}{
		job.ProjectID,
		job.SourceURL,
		string(entity.StageQueued),
		job.CreatedAt.Format(time.RFC3339),
		int(q.retention.Seconds()),
		job.ID,
	}

	for attempt := 0; attempt < 2; attempt++ {
		created, err := enqueueScript.Run(ctx, q.client, keys, args...).Int()
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		if created == 1 {
			job.Stage = entity.StageQueued
			job.Progress = 0
			return job, true, nil
		}

		existing, err := q.Fetch(ctx, job.ID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
		// The record expired between the dedup check and the fetch; one more
		// round recreates it.
	}
	return nil, false, fmt.Errorf("%w: job record expired during enqueue", ErrQueueUnavailable)
}

// Fetch returns the job's current state, or nil when no record exists.
func (q *Queue) Fetch(ctx context.Context, jobID string) (*entity.IngestJob, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	job := &entity.IngestJob{
		ID:        jobID,
		ProjectID: fields["project_id"],
		SourceURL: fields["source_url"],
		Stage:     entity.Stage(fields["stage"]),
		ObjectKey: fields["s3_key"],
		Error:     fields["error"],
	}
	if raw, ok := fields["progress"]; ok {
		if progress, convErr := strconv.Atoi(raw); convErr == nil {
			job.Progress = progress
		}
	}
	if raw, ok := fields["created_at"]; ok {
		if createdAt, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			job.CreatedAt = createdAt
		}
	}
	return job, nil
}

// Dequeue blocks up to timeout for the next pending job. Returns nil when the
// wait times out or the popped record already expired.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*entity.IngestJob, error) {
	res, err := q.client.BRPop(ctx, timeout, pendingKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return q.Fetch(ctx, res[1])
}

// guardTransition rejects stage writes that would violate the job state
// machine, e.g. a redelivered job that already finished.
func (q *Queue) guardTransition(ctx context.Context, jobID string, to entity.Stage) error {
	current, err := q.client.HGet(ctx, jobKey(jobID), "stage").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if !entity.ValidTransition(entity.Stage(current), to) {
		return fmt.Errorf("invalid stage transition %s -> %s", current, to)
	}
	return nil
}

func (q *Queue) UpdateStage(ctx context.Context, jobID string, stage entity.Stage, progress int) error {
	if err := q.guardTransition(ctx, jobID, stage); err != nil {
		return err
	}
	return q.mutate(ctx, jobID, map[string]interface{}{
		"stage":    string(stage),
		"progress": progress,
	})
}

func (q *Queue) Complete(ctx context.Context, jobID, objectKey string) error {
	if err := q.guardTransition(ctx, jobID, entity.StageDone); err != nil {
		return err
	}
	return q.mutate(ctx, jobID, map[string]interface{}{
		"stage":    string(entity.StageDone),
		"progress": 100,
		"s3_key":   objectKey,
	})
}

func (q *Queue) Fail(ctx context.Context, jobID, reason string) error {
	if err := q.guardTransition(ctx, jobID, entity.StageFailed); err != nil {
		return err
	}
	return q.mutate(ctx, jobID, map[string]interface{}{
		"stage": string(entity.StageFailed),
		"error": reason,
	})
}

// mutate writes the fields and re-applies the retention TTL, so the record
// keeps expiring relative to its last update rather than its creation.
func (q *Queue) mutate(ctx context.Context, jobID string, fields map[string]interface{}) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(jobID), fields)
	pipe.Expire(ctx, jobKey(jobID), q.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}
