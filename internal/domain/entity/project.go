package entity

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProjectStatusUploadReady = "upload_ready"
	ProjectStatusUploadDone  = "upload_done"
)

type PipelineStatus string

const (
	PipelinePending   PipelineStatus = "PENDING"
	PipelineRunning   PipelineStatus = "RUNNING"
	PipelineCompleted PipelineStatus = "COMPLETED"
	PipelineFailed    PipelineStatus = "FAILED"
)

type Project struct {
	ProjectID   string `gorm:"primaryKey;type:uuid" json:"project_id"`
	Title       string `gorm:"not null" json:"title"`
	OwnerCode   string `gorm:"index" json:"owner_code"`
	Status      string `gorm:"not null;type:text" json:"status"`
	VideoSource string `json:"video_source,omitempty"`
	Progress    int    `json:"progress"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// PipelineStage is one named step of a project's workflow. The ingest
// finalizer only ever touches the "upload" stage.
type PipelineStage struct {
	ProjectID string         `gorm:"primaryKey;type:uuid" json:"project_id"`
	StageID   string         `gorm:"primaryKey" json:"stage_id"`
	Status    PipelineStatus `gorm:"not null;type:text" json:"status"`
	Progress  int            `json:"progress"`
	UpdatedAt time.Time
}

// DefaultPipelineStages are created alongside every new project.
var DefaultPipelineStages = []string{"upload", "transcribe", "translate", "export"}
