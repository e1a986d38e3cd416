package usecase

import (
	"context"

	"github.com/yunojang/backend/internal/domain/entity"
)

// Fixed partition of the 0-100 scale across the pipeline stages. Progress
// displays depend on these exact boundaries.
const (
	downloadProgressParts = 2
	downloadProgressStart = 5
	downloadProgressMax   = 70
	uploadProgressStart   = 71
	uploadProgressDone    = 92
	finalizeProgressStart = 93
	finalizeProgressDone  = 100
)

func clampProgress(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

func downloadPartSpan() float64 {
	parts := downloadProgressParts
	if parts < 1 {
		parts = 1
	}
	return float64(downloadProgressMax-downloadProgressStart) / float64(parts)
}

// downloadProgressForParts maps the number of fully downloaded parts onto the
// download span floor.
func downloadProgressForParts(completed int) int {
	if completed > downloadProgressParts {
		completed = downloadProgressParts
	}
	span := downloadPartSpan()
	return clampProgress(int(downloadProgressStart + float64(completed)*span))
}

// mapDownloadProgress maps a byte ratio within the current part on top of the
// completed-parts floor. ratio is in [0,1].
func mapDownloadProgress(ratio float64, completedParts int) int {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	span := downloadPartSpan()
	progress := float64(downloadProgressStart) + float64(completedParts)*span + ratio*span
	return clampProgress(int(progress))
}

// progressReporter collapses raw stage events into a monotone series and
// publishes each distinct value at most once.
type progressReporter struct {
	jobID     string
	projectID string
	publisher ProgressPublisher
	last      int
}

func newProgressReporter(jobID, projectID string, publisher ProgressPublisher) *progressReporter {
	return &progressReporter{
		jobID:     jobID,
		projectID: projectID,
		publisher: publisher,
		last:      -1,
	}
}

// report publishes the event unless its clamped progress does not advance the
// last published value. Publishing is observability only; there is nothing to
// propagate on failure.
func (r *progressReporter) report(ctx context.Context, event entity.ProgressEvent) {
	event.Progress = clampProgress(event.Progress)
	if event.Progress <= r.last {
		return
	}
	r.last = event.Progress
	event.JobID = r.jobID
	if r.publisher != nil {
		r.publisher.Publish(ctx, r.projectID, event)
	}
}
