package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yunojang/backend/internal/domain/entity"
)

type ProjectRepo interface {
	// SetVideoSource updates the project status and video-source pointer.
	// Returns entity.ErrProjectNotFound when the project no longer exists.
	SetVideoSource(ctx context.Context, projectID, status, videoSource string) (*entity.Project, error)
}

type PipelineRepo interface {
	UpsertStage(ctx context.Context, projectID, stageID string, status entity.PipelineStatus, progress int) error
}

type JobStarter interface {
	Publish(ctx context.Context, body json.RawMessage) error
}

// FinalizeUseCase applies the downstream side effects of a completed upload:
// project record update, downstream processing job start, pipeline stage
// completion. Every step is safe to re-apply, so at-least-once redelivery of
// an already finalized job is a no-op rather than an error.
type FinalizeUseCase struct {
	Projects ProjectRepo
	Pipeline PipelineRepo
	Starter  JobStarter
}

func NewFinalizeUseCase(projects ProjectRepo, pipeline PipelineRepo, starter JobStarter) *FinalizeUseCase {
	return &FinalizeUseCase{Projects: projects, Pipeline: pipeline, Starter: starter}
}

func (u *FinalizeUseCase) Finalize(ctx context.Context, projectID, objectKey string) error {
	project, err := u.Projects.SetVideoSource(ctx, projectID, entity.ProjectStatusUploadDone, objectKey)
	if err != nil {
		return fmt.Errorf("update project %s: %w", projectID, err)
	}

	msg, err := json.Marshal(entity.ProcessRequest{
		ProjectID:   project.ProjectID,
		VideoSource: project.VideoSource,
	})
	if err != nil {
		return fmt.Errorf("marshal process request: %w", err)
	}
	if err := u.Starter.Publish(ctx, msg); err != nil {
		return fmt.Errorf("start processing job: %w", err)
	}

	if err := u.Pipeline.UpsertStage(ctx, projectID, "upload", entity.PipelineCompleted, 100); err != nil {
		return fmt.Errorf("complete upload stage: %w", err)
	}

	return nil
}
