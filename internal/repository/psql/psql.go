package psql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yunojang/backend/internal/domain/entity"
)

type GormProjectRepo struct {
	DB *gorm.DB
}

func NewGormProjectRepo(db *gorm.DB) *GormProjectRepo {
	return &GormProjectRepo{DB: db}
}

// CreateProject inserts the project row together with its default pipeline
// stages.
func (r *GormProjectRepo) CreateProject(ctx context.Context, project *entity.Project) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		for _, stageID := range entity.DefaultPipelineStages {
			stage := &entity.PipelineStage{
				ProjectID: project.ProjectID,
				StageID:   stageID,
				Status:    entity.PipelinePending,
				Progress:  0,
				UpdatedAt: time.Now(),
			}
			if err := tx.Create(stage).Error; err != nil {
				return fmt.Errorf("create pipeline stage %s: %w", stageID, err)
			}
		}
		return nil
	})
}

func (r *GormProjectRepo) GetProject(ctx context.Context, projectID string) (*entity.Project, error) {
	project := &entity.Project{}
	err := r.DB.WithContext(ctx).First(project, "project_id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// SetVideoSource moves the project to the given status and points it at the
// ingested object. Re-applying the same update is a no-op by construction.
func (r *GormProjectRepo) SetVideoSource(ctx context.Context, projectID, status, videoSource string) (*entity.Project, error) {
	project := &entity.Project{}
	err := r.DB.WithContext(ctx).First(project, "project_id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	project.Status = status
	project.VideoSource = videoSource
	project.UpdatedAt = time.Now()

	if err := r.DB.WithContext(ctx).Save(project).Error; err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	return project, nil
}

// UpsertStage sets the status and progress of one pipeline stage, creating
// the row when the project predates default stage seeding.
func (r *GormProjectRepo) UpsertStage(ctx context.Context, projectID, stageID string, status entity.PipelineStatus, progress int) error {
	stage := &entity.PipelineStage{}
	err := r.DB.WithContext(ctx).First(stage, "project_id = ? AND stage_id = ?", projectID, stageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stage = &entity.PipelineStage{
			ProjectID: projectID,
			StageID:   stageID,
			Status:    status,
			Progress:  progress,
			UpdatedAt: time.Now(),
		}
		if createErr := r.DB.WithContext(ctx).Create(stage).Error; createErr != nil {
			return fmt.Errorf("create pipeline stage: %w", createErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load pipeline stage: %w", err)
	}

	stage.Status = status
	stage.Progress = progress
	stage.UpdatedAt = time.Now()

	if err := r.DB.WithContext(ctx).Save(stage).Error; err != nil {
		return fmt.Errorf("save pipeline stage: %w", err)
	}
	return nil
}
