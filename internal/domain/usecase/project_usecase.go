package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yunojang/backend/internal/domain/entity"
)

type ProjectStore interface {
	CreateProject(ctx context.Context, project *entity.Project) error
	GetProject(ctx context.Context, projectID string) (*entity.Project, error)
}

type ProjectUseCase struct {
	Store ProjectStore
}

func NewProjectUseCase(store ProjectStore) *ProjectUseCase {
	return &ProjectUseCase{Store: store}
}

func (u *ProjectUseCase) CreateProject(ctx context.Context, title, ownerCode string) (*entity.Project, error) {
	now := time.Now()
	project := &entity.Project{
		ProjectID: uuid.New().String(),
		Title:     title,
		OwnerCode: ownerCode,
		Status:    entity.ProjectStatusUploadReady,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := u.Store.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (u *ProjectUseCase) GetProject(ctx context.Context, projectID string) (*entity.Project, error) {
	return u.Store.GetProject(ctx, projectID)
}
