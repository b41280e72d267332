// Package analytics persists export lifecycle events and classified
// failures. Recording is fire-and-forget; a storage failure is logged
// and never surfaces to the pipeline.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nbrem108/sprintdeck/internal/classify"
	"github.com/nbrem108/sprintdeck/internal/model"
	"github.com/nbrem108/sprintdeck/internal/storage"
)

// Recorder writes export events to the store.
type Recorder struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder. logger may be nil.
func NewRecorder(store *storage.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

func (r *Recorder) save(e storage.ExportEvent) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	if err := r.store.SaveExportEvent(e); err != nil {
		r.logger.Warn("dropping analytics event", "event", e.Event, "err", err)
	}
}

// ExportStarted records the beginning of an export.
func (r *Recorder) ExportStarted(_ context.Context, presentationID string, format model.Format) {
	r.save(storage.ExportEvent{
		PresentationID: presentationID,
		Format:         string(format),
		Event:          "started",
	})
}

// ExportCompleted records a successful export, cached or rendered.
func (r *Recorder) ExportCompleted(_ context.Context, presentationID string, format model.Format,
	byteSize int, duration time.Duration, cacheHit bool) {
	r.save(storage.ExportEvent{
		PresentationID: presentationID,
		Format:         string(format),
		Event:          "completed",
		ByteSize:       byteSize,
		DurationMS:     duration.Milliseconds(),
		CacheHit:       cacheHit,
	})
}

// ExportFailed records a terminal export failure.
func (r *Recorder) ExportFailed(_ context.Context, presentationID string, format model.Format,
	code string, message string) {
	r.save(storage.ExportEvent{
		PresentationID: presentationID,
		Format:         string(format),
		Event:          "failed",
		ErrorCode:      code,
		Message:        message,
	})
}

// RecordError persists one classified failure to the error log.
func (r *Recorder) RecordError(e *classify.ExportError) {
	if e == nil {
		return
	}
	entry := storage.ErrorEntry{
		ID:          uuid.NewString(),
		CreatedAt:   e.Timestamp,
		Code:        string(e.Code),
		Message:     e.Message,
		Recoverable: e.Recoverable,
		Attempt:     e.Attempt,
		Format:      string(e.Context.Format),
		Quality:     string(e.Context.Quality),
		SlideCount:  e.Context.SlideCount,
	}
	if err := r.store.SaveErrorEntry(entry); err != nil {
		r.logger.Warn("dropping error log entry", "code", e.Code, "err", err)
	}
}

// RecentErrors returns the newest error log entries first.
func (r *Recorder) RecentErrors(limit int) ([]storage.ErrorEntry, error) {
	return r.store.RecentErrors(limit)
}

// Aggregates returns export totals across the whole event log.
func (r *Recorder) Aggregates() (storage.ExportAggregates, error) {
	return r.store.Aggregates()
}

// RecentEvents returns the newest events first.
func (r *Recorder) RecentEvents(limit int) ([]storage.ExportEvent, error) {
	return r.store.RecentExportEvents(limit)
}

// ErrorCounts aggregates the persisted error log by taxonomy code.
func (r *Recorder) ErrorCounts() (map[string]int, error) {
	return r.store.ErrorCountsByCode()
}
