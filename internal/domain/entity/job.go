package entity

import (
	"errors"
	"time"
)

// ErrProjectNotFound is returned when an update targets a project that no
// longer exists. Terminal for the ingest job that triggered it.
var ErrProjectNotFound = errors.New("project not found")

type Stage string

const (
	StageQueued      Stage = "queued"
	StageDownloading Stage = "downloading"
	StageUploading   Stage = "uploading"
	StageFinalizing  Stage = "finalizing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// IngestJob is the unit of work moving a remote video source into blob
// storage. The job ID doubles as the idempotency key.
type IngestJob struct {
	ID        string    `json:"job_id"`
	ProjectID string    `json:"project_id"`
	SourceURL string    `json:"source_url"`
	Stage     Stage     `json:"stage"`
	Progress  int       `json:"progress"`
	ObjectKey string    `json:"s3_key,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProgressEvent is broadcast on the project's progress channel. Ephemeral,
// never persisted.
type ProgressEvent struct {
	JobID    string `json:"job_id"`
	Stage    Stage  `json:"stage"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	ETA      int    `json:"eta,omitempty"`
	S3Key    string `json:"s3_key,omitempty"`
}

// ProcessRequest asks the downstream processing service to pick up a project
// whose source video just landed in blob storage.
type ProcessRequest struct {
	ProjectID   string `json:"project_id"`
	VideoSource string `json:"video_source"`
}

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// QueueStatus maps the pipeline stage onto the queue-level status exposed to
// callers.
func (s Stage) QueueStatus() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageDone:
		return "finished"
	case StageFailed:
		return "failed"
	default:
		return "started"
	}
}

// ValidTransition enforces the allowed stage machine edges. "failed" is
// reachable from any non-terminal stage.
func ValidTransition(from, to Stage) bool {
	if to == StageFailed {
		return !from.Terminal()
	}
	switch from {
	case StageQueued:
		return to == StageDownloading
	case StageDownloading:
		return to == StageUploading
	case StageUploading:
		return to == StageFinalizing
	case StageFinalizing:
		return to == StageDone
	default:
		return false
	}
}
