package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nbrem108/sprintdeck/internal/export"
	"github.com/nbrem108/sprintdeck/internal/model"
	"github.com/nbrem108/sprintdeck/internal/storage"
)

type fakeJobStore struct {
	mu        sync.Mutex
	jobs      []*storage.Job
	completed map[string]string // id -> result path
	failed    map[string]string // id -> error message
}

func newFakeJobStore(jobs ...*storage.Job) *fakeJobStore {
	return &fakeJobStore{
		jobs:      jobs,
		completed: make(map[string]string),
		failed:    make(map[string]string),
	}
}

func (f *fakeJobStore) ClaimNextJob(types []string) (*storage.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, j := range f.jobs {
		if j.Status == "pending" && j.Type == types[0] {
			j.Status = "running"
			return f.jobs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeJobStore) CompleteJob(id, resultPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = resultPath
	return nil
}

func (f *fakeJobStore) FailJob(id string, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errMsg
	return nil
}

type fakeRunner struct {
	err   error
	calls int
}

func (f *fakeRunner) Export(_ context.Context, p *model.Presentation, _, _ []model.Issue,
	_ *model.SprintMetrics, opts model.ExportOptions, _ model.ProgressFunc) (*export.Outcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &export.Outcome{
		Result: &model.ExportResult{
			Payload:  []byte("artifact bytes"),
			FileName: "deck." + opts.Format.Extension(),
			ByteSize: 14,
			Format:   opts.Format,
		},
	}, nil
}

func exportJob(t *testing.T, id string) *storage.Job {
	t.Helper()
	payload, err := json.Marshal(Payload{
		Presentation: &model.Presentation{
			ID:    "p1",
			Title: "Sprint 3 Review",
			Slides: []model.Slide{
				{Kind: model.SlideTitle, Title: "Sprint 3 Review"},
			},
		},
		Options: model.ExportOptions{Format: model.FormatMarkdown, Quality: model.QualityMedium},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &storage.Job{ID: id, Type: JobType, Status: "pending", PayloadJSON: string(payload)}
}

func TestRunOnceWritesArtifactAndCompletes(t *testing.T) {
	dir := t.TempDir()
	store := newFakeJobStore(exportJob(t, "job1"))
	runner := &fakeRunner{}
	w := NewWorker(store, runner, dir, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("no job processed")
	}
	if runner.calls != 1 {
		t.Errorf("runner calls = %d, want 1", runner.calls)
	}

	path, ok := store.completed["job1"]
	if !ok {
		t.Fatalf("job not completed; failed = %v", store.failed)
	}
	if !strings.HasPrefix(filepath.Base(path), "job1-") {
		t.Errorf("artifact path %q not prefixed with job id", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "artifact bytes" {
		t.Errorf("artifact content = %q", data)
	}
}

func TestRunOnceNoJobs(t *testing.T) {
	w := NewWorker(newFakeJobStore(), &fakeRunner{}, t.TempDir(), 0)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("reported a processed job on an empty queue")
	}
}

func TestRunOnceExportFailureFailsJob(t *testing.T) {
	store := newFakeJobStore(exportJob(t, "job2"))
	runner := &fakeRunner{err: errors.New("renderer exploded")}
	w := NewWorker(store, runner, t.TempDir(), 0)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("no job processed")
	}
	if msg, ok := store.failed["job2"]; !ok || !strings.Contains(msg, "renderer exploded") {
		t.Errorf("failed jobs = %v", store.failed)
	}
	if len(store.completed) != 0 {
		t.Errorf("completed jobs = %v, want none", store.completed)
	}
}

func TestRunOnceBadPayloadFailsJob(t *testing.T) {
	store := newFakeJobStore(&storage.Job{
		ID: "job3", Type: JobType, Status: "pending", PayloadJSON: "{not json",
	})
	w := NewWorker(store, &fakeRunner{}, t.TempDir(), 0)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("no job processed")
	}
	if _, ok := store.failed["job3"]; !ok {
		t.Errorf("job with bad payload not failed: %v", store.failed)
	}
}
