package redisq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yunojang/backend/internal/domain/entity"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueue(client, time.Hour), mr, client
}

func testJob(id string) *entity.IngestJob {
	return &entity.IngestJob{
		ID:        id,
		ProjectID: "p1",
		SourceURL: "https://example/video",
		CreatedAt: time.Now(),
	}
}

func TestEnqueueCreatesCompleteRecord(t *testing.T) {
	q, _, client := newTestQueue(t)
	ctx := context.Background()

	job, created, err := q.Enqueue(ctx, testJob("j1"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !created {
		t.Fatal("first enqueue must create the job")
	}
	if job.Stage != entity.StageQueued || job.Progress != 0 {
		t.Errorf("fresh job state: stage=%s progress=%d", job.Stage, job.Progress)
	}

	stored, err := q.Fetch(ctx, "j1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if stored == nil {
		t.Fatal("job record missing after enqueue")
	}
	if stored.ProjectID != "p1" || stored.SourceURL != "https://example/video" {
		t.Errorf("record incomplete: %+v", stored)
	}

	ttl, err := client.TTL(ctx, jobKey("j1")).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 {
		t.Errorf("job record has no retention TTL: %v", ttl)
	}

	pending, err := client.LRange(ctx, pendingKey, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(pending) != 1 || pending[0] != "j1" {
		t.Errorf("pending list: %v", pending)
	}
}

func TestEnqueueDuplicateReturnsExisting(t *testing.T) {
	q, _, client := newTestQueue(t)
	ctx := context.Background()

	if _, _, err := q.Enqueue(ctx, testJob("j1")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.UpdateStage(ctx, "j1", entity.StageDownloading, 5); err != nil {
		t.Fatalf("update stage: %v", err)
	}

	job, created, err := q.Enqueue(ctx, testJob("j1"))
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if created {
		t.Error("duplicate enqueue must not report creation")
	}
	if job.Stage != entity.StageDownloading {
		t.Errorf("duplicate must return current state, got stage %s", job.Stage)
	}
	if job.ProjectID != "p1" || job.SourceURL != "https://example/video" {
		t.Errorf("duplicate returned an incomplete record: %+v", job)
	}

	length, err := client.LLen(ctx, pendingKey).Result()
	if err != nil {
		t.Fatalf("llen: %v", err)
	}
	if length != 1 {
		t.Errorf("duplicate enqueue must not requeue: pending length %d", length)
	}
}

func TestEnqueueUnavailableLeavesNoState(t *testing.T) {
	q, mr, _ := newTestQueue(t)
	ctx := context.Background()

	mr.SetError("LOADING Redis is loading the dataset in memory")
	_, _, err := q.Enqueue(ctx, testJob("j1"))
	if !errors.Is(err, ErrQueueUnavailable) {
		t.Fatalf("expected ErrQueueUnavailable, got %v", err)
	}

	mr.SetError("")
	stored, err := q.Fetch(ctx, "j1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if stored != nil {
		t.Errorf("failed enqueue left job state behind: %+v", stored)
	}
	if mr.Exists(pendingKey) {
		t.Error("failed enqueue left a pending list entry behind")
	}
}

func TestDequeueReturnsPendingJob(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	if _, _, err := q.Enqueue(ctx, testJob("j1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil || job.ID != "j1" {
		t.Fatalf("dequeue: got %+v, want j1", job)
	}

	empty, err := q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue on empty queue: %v", err)
	}
	if empty != nil {
		t.Errorf("empty queue must time out to nil, got %+v", empty)
	}
}

func TestMutationsRefreshRetention(t *testing.T) {
	q, mr, client := newTestQueue(t)
	ctx := context.Background()

	if _, _, err := q.Enqueue(ctx, testJob("j1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	mr.FastForward(40 * time.Minute)
	if err := q.UpdateStage(ctx, "j1", entity.StageDownloading, 5); err != nil {
		t.Fatalf("update stage: %v", err)
	}
	ttl, err := client.TTL(ctx, jobKey("j1")).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl < 59*time.Minute {
		t.Errorf("update must reset retention, ttl %v", ttl)
	}

	mr.FastForward(40 * time.Minute)
	if err := q.UpdateStage(ctx, "j1", entity.StageUploading, 71); err != nil {
		t.Fatalf("update stage: %v", err)
	}
	if err := q.UpdateStage(ctx, "j1", entity.StageFinalizing, 93); err != nil {
		t.Fatalf("update stage: %v", err)
	}
	if err := q.Complete(ctx, "j1", "projects/p1/inputs/videos/v.mp4"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	ttl, err = client.TTL(ctx, jobKey("j1")).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl < 59*time.Minute {
		t.Errorf("complete must reset retention, ttl %v", ttl)
	}

	stored, err := q.Fetch(ctx, "j1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if stored.Stage != entity.StageDone || stored.Progress != 100 || stored.ObjectKey == "" {
		t.Errorf("completed record: %+v", stored)
	}
}

func TestStageGuardRejectsRedelivery(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	if _, _, err := q.Enqueue(ctx, testJob("j1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for _, step := range []struct {
		stage    entity.Stage
		progress int
	}{
		{entity.StageDownloading, 5},
		{entity.StageUploading, 71},
		{entity.StageFinalizing, 93},
	} {
		if err := q.UpdateStage(ctx, "j1", step.stage, step.progress); err != nil {
			t.Fatalf("advance to %s: %v", step.stage, err)
		}
	}
	if err := q.Complete(ctx, "j1", "projects/p1/inputs/videos/v.mp4"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := q.UpdateStage(ctx, "j1", entity.StageDownloading, 5); err == nil {
		t.Error("finished job must reject a restart")
	}
	if err := q.Fail(ctx, "j1", "late failure"); err == nil {
		t.Error("finished job must reject a failure mark")
	}
}

func TestFetchUnknownJob(t *testing.T) {
	q, _, _ := newTestQueue(t)

	job, err := q.Fetch(context.Background(), "nope")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if job != nil {
		t.Errorf("unknown job must be nil, got %+v", job)
	}
}
