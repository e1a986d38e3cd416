package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/yunojang/backend/internal/domain/entity"
	"github.com/yunojang/backend/pkg/utils"
)

// ErrInvalidPayload rejects an enqueue request before it ever reaches the
// queue.
var ErrInvalidPayload = errors.New("invalid ingest payload")

// ErrJobNotFound is returned for status lookups of unknown or expired jobs.
var ErrJobNotFound = errors.New("job not found")

type JobQueue interface {
	// Enqueue creates and schedules the job unless one already exists under
	// the same ID, in which case the existing job is returned with
	// created=false.
	Enqueue(ctx context.Context, job *entity.IngestJob) (*entity.IngestJob, bool, error)
	Fetch(ctx context.Context, jobID string) (*entity.IngestJob, error)
}

type RegisterUseCase struct {
	Queue JobQueue
}

func NewRegisterUseCase(queue JobQueue) *RegisterUseCase {
	return &RegisterUseCase{Queue: queue}
}

// RegisterSource resolves the idempotency key for the request and enqueues an
// ingest job, or rejoins the live job already registered under that key.
func (u *RegisterUseCase) RegisterSource(ctx context.Context, projectID, sourceURL, idemToken string) (*entity.IngestJob, bool, error) {
	if projectID == "" || sourceURL == "" {
		return nil, false, ErrInvalidPayload
	}

	job := &entity.IngestJob{
		ID:        utils.IdempotencyKey(idemToken, projectID, sourceURL),
		ProjectID: projectID,
		SourceURL: sourceURL,
		Stage:     entity.StageQueued,
		CreatedAt: time.Now(),
	}

	return u.Queue.Enqueue(ctx, job)
}

func (u *RegisterUseCase) JobStatus(ctx context.Context, jobID string) (*entity.IngestJob, error) {
	job, err := u.Queue.Fetch(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}
