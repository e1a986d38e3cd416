package usecase

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/yunojang/backend/internal/domain/entity"
	"github.com/yunojang/backend/pkg/utils"
)

// DownloadStatus is one raw progress sample from the video downloader.
type DownloadStatus struct {
	Finished        bool
	DownloadedBytes int64
	TotalBytes      int64
	ETA             int
}

type Downloader interface {
	// Download fetches the source into destDir and returns the local file
	// path. hook receives raw progress samples and may be nil.
	Download(ctx context.Context, sourceURL, destDir string, hook func(DownloadStatus)) (string, error)
}

type BlobStorage interface {
	UploadFile(ctx context.Context, key, localPath string) error
}

type ProgressPublisher interface {
	// Publish is fire-and-forget; transport failures never surface here.
	Publish(ctx context.Context, projectID string, event entity.ProgressEvent)
}

type JobTracker interface {
	UpdateStage(ctx context.Context, jobID string, stage entity.Stage, progress int) error
	Complete(ctx context.Context, jobID, objectKey string) error
	Fail(ctx context.Context, jobID, reason string) error
}

type Finalizer interface {
	Finalize(ctx context.Context, projectID, objectKey string) error
}

// IngestUseCase runs the worker-side download -> upload -> finalize state
// machine for one job at a time.
type IngestUseCase struct {
	Jobs       JobTracker
	Storage    BlobStorage
	Downloader Downloader
	Publisher  ProgressPublisher
	Finalizer  Finalizer
	WorkDir    string
}

func NewIngestUseCase(jobs JobTracker, storage BlobStorage, dl Downloader, pub ProgressPublisher, fin Finalizer, workDir string) *IngestUseCase {
	return &IngestUseCase{
		Jobs:       jobs,
		Storage:    storage,
		Downloader: dl,
		Publisher:  pub,
		Finalizer:  fin,
		WorkDir:    workDir,
	}
}

// ProcessJob executes the job to completion. On error the job is marked
// failed with the cause recorded and no finalize side effects run. The
// per-job scratch directory is removed on every exit path.
func (u *IngestUseCase) ProcessJob(ctx context.Context, job *entity.IngestJob) error {
	if job == nil || job.ProjectID == "" || job.SourceURL == "" {
		return ErrInvalidPayload
	}

	if err := os.MkdirAll(u.WorkDir, 0o755); err != nil {
		return u.fail(ctx, job, fmt.Errorf("prepare workdir: %w", err))
	}
	scratch, err := os.MkdirTemp(u.WorkDir, "ingest-")
	if err != nil {
		return u.fail(ctx, job, fmt.Errorf("create scratch dir: %w", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			log.Printf("failed to remove scratch dir %s: %v", scratch, rmErr)
		}
	}()

	reporter := newProgressReporter(job.ID, job.ProjectID, u.Publisher)

	if err := u.Jobs.UpdateStage(ctx, job.ID, entity.StageDownloading, downloadProgressStart); err != nil {
		return u.fail(ctx, job, fmt.Errorf("claim job: %w", err))
	}
	reporter.report(ctx, entity.ProgressEvent{
		Stage:    entity.StageDownloading,
		Status:   "download started",
		Progress: downloadProgressStart,
	})

	completedParts := 0
	hook := func(status DownloadStatus) {
		if status.Finished {
			if completedParts < downloadProgressParts {
				completedParts++
			}
			reporter.report(ctx, entity.ProgressEvent{
				Stage:    entity.StageDownloading,
				Status:   "download part finished",
				Progress: downloadProgressForParts(completedParts),
			})
			return
		}
		if status.TotalBytes <= 0 {
			return
		}
		ratio := float64(status.DownloadedBytes) / float64(status.TotalBytes)
		reporter.report(ctx, entity.ProgressEvent{
			Stage:    entity.StageDownloading,
			Status:   "downloading",
			Progress: mapDownloadProgress(ratio, completedParts),
			ETA:      status.ETA,
		})
	}

	localFile, err := u.Downloader.Download(ctx, job.SourceURL, scratch, hook)
	if err != nil {
		return u.fail(ctx, job, fmt.Errorf("download source: %w", err))
	}

	objectKey := utils.BuildObjectKey(job.ProjectID, localFile)

	if err := u.Jobs.UpdateStage(ctx, job.ID, entity.StageUploading, uploadProgressStart); err != nil {
		return u.fail(ctx, job, fmt.Errorf("enter upload stage: %w", err))
	}
	reporter.report(ctx, entity.ProgressEvent{
		Stage:    entity.StageUploading,
		Status:   "upload started",
		Progress: uploadProgressStart,
	})

	if err := u.Storage.UploadFile(ctx, objectKey, localFile); err != nil {
		return u.fail(ctx, job, fmt.Errorf("upload to blob storage: %w", err))
	}
	reporter.report(ctx, entity.ProgressEvent{
		Stage:    entity.StageUploading,
		Status:   "upload finished",
		Progress: uploadProgressDone,
	})

	if err := u.Jobs.UpdateStage(ctx, job.ID, entity.StageFinalizing, finalizeProgressStart); err != nil {
		return u.fail(ctx, job, fmt.Errorf("enter finalize stage: %w", err))
	}
	reporter.report(ctx, entity.ProgressEvent{
		Stage:    entity.StageFinalizing,
		Status:   "finalize started",
		Progress: finalizeProgressStart,
	})

	if err := u.Finalizer.Finalize(ctx, job.ProjectID, objectKey); err != nil {
		return u.fail(ctx, job, fmt.Errorf("finalize ingest: %w", err))
	}

	if err := u.Jobs.Complete(ctx, job.ID, objectKey); err != nil {
		return u.fail(ctx, job, fmt.Errorf("complete job: %w", err))
	}
	reporter.report(ctx, entity.ProgressEvent{
		Stage:    entity.StageDone,
		Status:   "finalize finished",
		Progress: finalizeProgressDone,
		S3Key:    objectKey,
	})

	return nil
}

// fail records the terminal failure on the job record. The original error is
// returned so the consumer can log it.
func (u *IngestUseCase) fail(ctx context.Context, job *entity.IngestJob, cause error) error {
	if err := u.Jobs.Fail(ctx, job.ID, cause.Error()); err != nil {
		log.Printf("failed to mark job %s failed: %v", job.ID, err)
	}
	return cause
}
