package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/yunojang/backend/internal/domain/entity"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []entity.ProgressEvent
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event entity.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) all() []entity.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.ProgressEvent(nil), p.events...)
}

func TestDownloadPartitionBoundaries(t *testing.T) {
	cases := []struct {
		name string
		got  int
		want int
	}{
		{"no parts done", downloadProgressForParts(0), 5},
		{"one of two parts", downloadProgressForParts(1), 37},
		{"both parts", downloadProgressForParts(2), 70},
		{"parts overflow clamps", downloadProgressForParts(5), 70},
		{"upload start", uploadProgressStart, 71},
		{"upload done", uploadProgressDone, 92},
		{"finalize start", finalizeProgressStart, 93},
		{"finalize done", finalizeProgressDone, 100},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestMapDownloadProgress(t *testing.T) {
	if got := mapDownloadProgress(0, 0); got != 5 {
		t.Errorf("ratio 0: got %d, want 5", got)
	}
	if got := mapDownloadProgress(1, 0); got != 37 {
		t.Errorf("ratio 1, part 0: got %d, want 37", got)
	}
	if got := mapDownloadProgress(0.5, 1); got != 53 {
		t.Errorf("ratio 0.5, part 1: got %d, want 53", got)
	}
	if got := mapDownloadProgress(1, 1); got != 70 {
		t.Errorf("ratio 1, part 1: got %d, want 70", got)
	}
	if got := mapDownloadProgress(-2, 0); got != 5 {
		t.Errorf("negative ratio: got %d, want 5", got)
	}
	if got := mapDownloadProgress(9, 1); got != 70 {
		t.Errorf("overshoot ratio: got %d, want 70", got)
	}
}

func TestMapDownloadProgressMonotone(t *testing.T) {
	last := -1
	for part := 0; part < downloadProgressParts; part++ {
		for i := 0; i <= 100; i++ {
			got := mapDownloadProgress(float64(i)/100, part)
			if got < last {
				t.Fatalf("progress regressed: %d after %d (part %d, ratio %d%%)", got, last, part, i)
			}
			if got < 0 || got > 100 {
				t.Fatalf("progress out of range: %d", got)
			}
			last = got
		}
		got := downloadProgressForParts(part + 1)
		if got < last {
			t.Fatalf("part boundary regressed: %d after %d", got, last)
		}
		last = got
	}
}

func TestReporterSuppressesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	reporter := newProgressReporter("job-1", "p1", pub)
	ctx := context.Background()

	reporter.report(ctx, entity.ProgressEvent{Stage: entity.StageDownloading, Progress: 37})
	reporter.report(ctx, entity.ProgressEvent{Stage: entity.StageDownloading, Progress: 37})

	events := pub.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 publish for duplicate value, got %d", len(events))
	}
	if events[0].JobID != "job-1" {
		t.Errorf("job id not stamped: %q", events[0].JobID)
	}
}

func TestReporterNeverGoesBackward(t *testing.T) {
	pub := &capturePublisher{}
	reporter := newProgressReporter("job-1", "p1", pub)
	ctx := context.Background()

	inputs := []int{5, 20, 12, 20, 37, 36, 70, 71, 92, 93, 100, 100}
	for _, p := range inputs {
		reporter.report(ctx, entity.ProgressEvent{Stage: entity.StageDownloading, Progress: p})
	}

	events := pub.all()
	last := -1
	for _, ev := range events {
		if ev.Progress <= last {
			t.Fatalf("published non-increasing value %d after %d", ev.Progress, last)
		}
		if ev.Progress < 0 || ev.Progress > 100 {
			t.Fatalf("published value out of range: %d", ev.Progress)
		}
		last = ev.Progress
	}
	if len(events) != 8 {
		t.Errorf("expected 8 published values, got %d", len(events))
	}
}

func TestReporterClampsOutOfRange(t *testing.T) {
	pub := &capturePublisher{}
	reporter := newProgressReporter("job-1", "p1", pub)
	ctx := context.Background()

	reporter.report(ctx, entity.ProgressEvent{Stage: entity.StageDone, Progress: 250})

	events := pub.all()
	if len(events) != 1 || events[0].Progress != 100 {
		t.Fatalf("expected single clamped publish of 100, got %+v", events)
	}
}
