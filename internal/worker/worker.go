// Package worker drains queued export jobs from the SQLite job queue,
// runs them through the export pipeline, and writes the artifacts to
// the export directory.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nbrem108/sprintdeck/internal/export"
	"github.com/nbrem108/sprintdeck/internal/model"
	"github.com/nbrem108/sprintdeck/internal/storage"
)

// JobType is the queue type this worker claims.
const JobType = "export_render"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id, resultPath string) error
	FailJob(id string, errMsg string) error
}

// Runner runs one export end to end.
type Runner interface {
	Export(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
		metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*export.Outcome, error)
}

// Payload is the JSON body of one queued export job.
type Payload struct {
	Presentation *model.Presentation  `json:"presentation"`
	Issues       []model.Issue        `json:"issues,omitempty"`
	Upcoming     []model.Issue        `json:"upcoming,omitempty"`
	Metrics      *model.SprintMetrics `json:"metrics,omitempty"`
	Options      model.ExportOptions  `json:"options"`
}

// Worker polls the queue and processes export_render jobs.
type Worker struct {
	store  JobStore
	runner Runner
	outDir string
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to
// 500ms. Artifacts land under outDir.
func NewWorker(store JobStore, runner Runner, outDir string, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		runner: runner,
		outDir: outDir,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. Returns true if a job was
// processed, regardless of whether it succeeded.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	path, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("export job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID, path); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}

	outcome, err := w.runner.Export(ctx, payload.Presentation, payload.Issues, payload.Upcoming,
		payload.Metrics, payload.Options, nil)
	if err != nil {
		return "", fmt.Errorf("running export: %w", err)
	}

	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	// Job id prefixes the name so repeated exports never collide.
	path := filepath.Join(w.outDir, fmt.Sprintf("%s-%s", job.ID, outcome.Result.FileName))
	if err := os.WriteFile(path, outcome.Result.Payload, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}

	w.logger.Info("export job complete",
		"job_id", job.ID, "format", outcome.Result.Format,
		"bytes", outcome.Result.ByteSize, "cache_hit", outcome.CacheHit, "path", path)
	return path, nil
}
