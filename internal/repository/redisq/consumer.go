package redisq

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/yunojang/backend/internal/domain/entity"
)

type Pipeline interface {
	ProcessJob(ctx context.Context, job *entity.IngestJob) error
}

// IngestConsumer pulls jobs off the queue and hands them to the pipeline.
// Jobs run concurrently across workers; within one worker execution is
// strictly sequential.
type IngestConsumer struct {
	queue       *Queue
	pipeline    Pipeline
	concurrency int
	popTimeout  time.Duration
}

func NewIngestConsumer(queue *Queue, pipeline Pipeline, concurrency int) *IngestConsumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &IngestConsumer{
		queue:       queue,
		pipeline:    pipeline,
		concurrency: concurrency,
		popTimeout:  5 * time.Second,
	}
}

// Start blocks until ctx is cancelled and all workers have drained.
func (c *IngestConsumer) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go c.run(ctx, i, &wg)
	}
	wg.Wait()
	return nil
}

func (c *IngestConsumer) run(ctx context.Context, id int, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Printf("ingest worker %d shutting down", id)
			return
		default:
		}

		job, err := c.queue.Dequeue(ctx, c.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("ingest worker %d: dequeue failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		// The pipeline records the failure on the job itself; nothing left
		// to do here but log.
		if err := c.pipeline.ProcessJob(ctx, job); err != nil {
			log.Printf("ingest worker %d: job %s failed: %v", id, job.ID, err)
		}
	}
}
