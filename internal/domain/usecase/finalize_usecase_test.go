package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yunojang/backend/internal/domain/entity"
)

type fakeProjects struct {
	projects map[string]*entity.Project
	updates  int
}

func newFakeProjects(ids ...string) *fakeProjects {
	f := &fakeProjects{projects: map[string]*entity.Project{}}
	for _, id := range ids {
		f.projects[id] = &entity.Project{ProjectID: id, Status: entity.ProjectStatusUploadReady}
	}
	return f
}

func (f *fakeProjects) SetVideoSource(_ context.Context, projectID, status, videoSource string) (*entity.Project, error) {
	project, ok := f.projects[projectID]
	if !ok {
		return nil, entity.ErrProjectNotFound
	}
	f.updates++
	project.Status = status
	project.VideoSource = videoSource
	return project, nil
}

type fakePipeline struct {
	stages map[string]entity.PipelineStage
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{stages: map[string]entity.PipelineStage{}}
}

func (f *fakePipeline) UpsertStage(_ context.Context, projectID, stageID string, status entity.PipelineStatus, progress int) error {
	f.stages[projectID+"/"+stageID] = entity.PipelineStage{
		ProjectID: projectID,
		StageID:   stageID,
		Status:    status,
		Progress:  progress,
	}
	return nil
}

type fakeStarter struct {
	published []json.RawMessage
	err       error
}

func (f *fakeStarter) Publish(_ context.Context, body json.RawMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, body)
	return nil
}

func TestFinalizeHappyPath(t *testing.T) {
	projects := newFakeProjects("p1")
	pipeline := newFakePipeline()
	starter := &fakeStarter{}
	uc := NewFinalizeUseCase(projects, pipeline, starter)

	if err := uc.Finalize(context.Background(), "p1", "projects/p1/inputs/videos/a.mp4"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	project := projects.projects["p1"]
	if project.Status != entity.ProjectStatusUploadDone {
		t.Errorf("project status: got %s, want %s", project.Status, entity.ProjectStatusUploadDone)
	}
	if project.VideoSource != "projects/p1/inputs/videos/a.mp4" {
		t.Errorf("video source not set: %s", project.VideoSource)
	}

	if len(starter.published) != 1 {
		t.Fatalf("expected one downstream job start, got %d", len(starter.published))
	}
	var req entity.ProcessRequest
	if err := json.Unmarshal(starter.published[0], &req); err != nil {
		t.Fatalf("unmarshal process request: %v", err)
	}
	if req.ProjectID != "p1" || req.VideoSource != project.VideoSource {
		t.Errorf("unexpected process request: %+v", req)
	}

	stage, ok := pipeline.stages["p1/upload"]
	if !ok {
		t.Fatal("upload stage was not updated")
	}
	if stage.Status != entity.PipelineCompleted || stage.Progress != 100 {
		t.Errorf("upload stage: got %s/%d, want COMPLETED/100", stage.Status, stage.Progress)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	projects := newFakeProjects("p1")
	pipeline := newFakePipeline()
	starter := &fakeStarter{}
	uc := NewFinalizeUseCase(projects, pipeline, starter)
	ctx := context.Background()

	if err := uc.Finalize(ctx, "p1", "key.mp4"); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	if err := uc.Finalize(ctx, "p1", "key.mp4"); err != nil {
		t.Fatalf("second finalize must not error: %v", err)
	}

	project := projects.projects["p1"]
	if project.Status != entity.ProjectStatusUploadDone || project.VideoSource != "key.mp4" {
		t.Errorf("project end state changed on re-finalize: %+v", project)
	}
	stage := pipeline.stages["p1/upload"]
	if stage.Status != entity.PipelineCompleted || stage.Progress != 100 {
		t.Errorf("upload stage end state changed on re-finalize: %+v", stage)
	}
}

func TestFinalizeProjectNotFound(t *testing.T) {
	projects := newFakeProjects()
	pipeline := newFakePipeline()
	starter := &fakeStarter{}
	uc := NewFinalizeUseCase(projects, pipeline, starter)

	err := uc.Finalize(context.Background(), "gone", "key.mp4")
	if !errors.Is(err, entity.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if len(starter.published) != 0 {
		t.Error("downstream job must not start for a missing project")
	}
	if len(pipeline.stages) != 0 {
		t.Error("pipeline stage must not be updated for a missing project")
	}
}
