package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/nbrem108/sprintdeck/internal/classify"
	"github.com/nbrem108/sprintdeck/internal/model"
	"github.com/nbrem108/sprintdeck/internal/storage"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return NewRecorder(s, nil)
}

func TestRecorderLifecycleEvents(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	r.ExportStarted(ctx, "p1", model.FormatMarkdown)
	r.ExportCompleted(ctx, "p1", model.FormatMarkdown, 2048, 420*time.Millisecond, false)
	r.ExportStarted(ctx, "p2", model.FormatPDF)
	r.ExportFailed(ctx, "p2", model.FormatPDF, "RENDERER_ERROR", "render blew up")

	agg, err := r.Aggregates()
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalStarted != 2 || agg.TotalCompleted != 1 || agg.TotalFailed != 1 {
		t.Errorf("aggregates = %+v", agg)
	}
	if agg.ByFormat["markdown"] != 1 {
		t.Errorf("by_format = %v", agg.ByFormat)
	}

	events, err := r.RecentEvents(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Errorf("events = %d, want 4", len(events))
	}
}

func TestRecorderErrorLog(t *testing.T) {
	r := newTestRecorder(t)

	cl := classify.New(0)
	ee := cl.Classify(context.DeadlineExceeded, 2, classify.Context{
		Format: model.FormatPDF, Quality: model.QualityHigh, SlideCount: 9,
	})
	r.RecordError(ee)
	r.RecordError(nil) // must be a no-op

	counts, err := r.ErrorCounts()
	if err != nil {
		t.Fatal(err)
	}
	if counts[string(classify.NetworkTimeout)] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
