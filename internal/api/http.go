// Package api exposes the export pipeline over HTTP (chi) and MCP.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nbrem108/sprintdeck/internal/analytics"
	"github.com/nbrem108/sprintdeck/internal/cache"
	"github.com/nbrem108/sprintdeck/internal/classify"
	"github.com/nbrem108/sprintdeck/internal/export"
	"github.com/nbrem108/sprintdeck/internal/model"
	"github.com/nbrem108/sprintdeck/internal/storage"
	"github.com/nbrem108/sprintdeck/internal/worker"
)

const maxRequestBodySize = 10 << 20 // 10MB

// ExportRunner runs one export end to end.
type ExportRunner interface {
	Export(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
		metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*export.Outcome, error)
}

// AppDeps holds the wired pipeline pieces the HTTP layer serves.
type AppDeps struct {
	Exporter   ExportRunner
	Store      *storage.Store
	Cache      *cache.ResultCache
	Classifier *classify.Classifier
	Recorder   *analytics.Recorder
	Formats    []model.Format
	Token      string
}

// ExportRequest is the JSON body for POST /export and POST /exports.
type ExportRequest struct {
	Presentation *model.Presentation  `json:"presentation"`
	Issues       []model.Issue        `json:"issues,omitempty"`
	Upcoming     []model.Issue        `json:"upcoming,omitempty"`
	Metrics      *model.SprintMetrics `json:"metrics,omitempty"`
	Options      model.ExportOptions  `json:"options"`
}

// NewAppHandler builds the authenticated application router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/export", handleExport(deps))
		r.Post("/exports", handleEnqueueExport(deps))
		r.Get("/exports/{id}", handleGetExportJob(deps))
		r.Get("/formats", handleFormats(deps))
		r.Get("/stats", handleStats(deps))
		r.Get("/history", handleHistory(deps))
		r.Get("/errors", handleErrors(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeExportRequest(w http.ResponseWriter, r *http.Request) (*ExportRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return nil, false
	}
	if req.Presentation == nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "presentation is required")
		return nil, false
	}
	return &req, true
}

func handleExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeExportRequest(w, r)
		if !ok {
			return
		}

		outcome, err := deps.Exporter.Export(r.Context(), req.Presentation, req.Issues, req.Upcoming,
			req.Metrics, req.Options, nil)
		if err != nil {
			var ee *classify.ExportError
			if errors.As(err, &ee) {
				deps.Recorder.RecordError(ee)
			}
			writeExportError(w, err)
			return
		}

		res := outcome.Result
		writeJSON(w, http.StatusOK, map[string]any{
			"file_name":      res.FileName,
			"format":         res.Format,
			"byte_size":      res.ByteSize,
			"content_base64": base64.StdEncoding.EncodeToString(res.Payload),
			"metadata": map[string]any{
				"slide_count": res.Meta.SlideCount,
				"duration_ms": res.Meta.Duration.Milliseconds(),
				"quality":     res.Meta.Quality,
			},
			"cache_hit":      outcome.CacheHit,
			"attempts":       outcome.Attempts,
			"quality_report": outcome.Report,
		})
	}
}

func handleEnqueueExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeExportRequest(w, r)
		if !ok {
			return
		}
		if err := req.Options.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		payload, err := json.Marshal(worker.Payload{
			Presentation: req.Presentation,
			Issues:       req.Issues,
			Upcoming:     req.Upcoming,
			Metrics:      req.Metrics,
			Options:      req.Options,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
			return
		}

		job := storage.Job{
			ID:          uuid.New().String(),
			Type:        worker.JobType,
			PayloadJSON: string(payload),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     job.ID,
			"status": "queued",
		})
	}
}

func handleGetExportJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := deps.Store.GetJob(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "export job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":          job.ID,
			"status":      job.Status,
			"attempts":    job.Attempts,
			"last_error":  job.LastError,
			"result_path": job.ResultPath,
			"created_at":  job.CreatedAt,
			"updated_at":  job.UpdatedAt,
		})
	}
}

func handleFormats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type formatInfo struct {
			Format    model.Format `json:"format"`
			Extension string       `json:"extension"`
		}
		infos := make([]formatInfo, 0, len(deps.Formats))
		for _, f := range deps.Formats {
			infos = append(infos, formatInfo{Format: f, Extension: f.Extension()})
		}
		writeJSON(w, http.StatusOK, infos)
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		agg, err := deps.Recorder.Aggregates()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to aggregate events: %v", err)
			return
		}
		errCounts, err := deps.Recorder.ErrorCounts()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count errors: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"exports":        agg,
			"cache":          deps.Cache.Stats(),
			"errors_by_code": errCounts,
			"recovery_rate":  deps.Classifier.RecoveryRate(),
		})
	}
}

func handleHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		events, err := deps.Recorder.RecentEvents(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load history: %v", err)
			return
		}
		if events == nil {
			events = []storage.ExportEvent{}
		}

		type eventView struct {
			CreatedAt      string `json:"created_at"`
			PresentationID string `json:"presentation_id"`
			Format         string `json:"format"`
			Event          string `json:"event"`
			ByteSize       int    `json:"byte_size,omitempty"`
			DurationMS     int64  `json:"duration_ms,omitempty"`
			CacheHit       bool   `json:"cache_hit,omitempty"`
			ErrorCode      string `json:"error_code,omitempty"`
		}
		views := make([]eventView, len(events))
		for i, e := range events {
			views[i] = eventView{
				CreatedAt:      e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
				PresentationID: e.PresentationID,
				Format:         e.Format,
				Event:          e.Event,
				ByteSize:       e.ByteSize,
				DurationMS:     e.DurationMS,
				CacheHit:       e.CacheHit,
				ErrorCode:      e.ErrorCode,
			}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleErrors(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		entries, err := deps.Recorder.RecentErrors(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load error log: %v", err)
			return
		}
		if entries == nil {
			entries = []storage.ErrorEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// writeExportError renders a classified failure: the user-facing
// message and suggested actions, never the internal cause chain.
func writeExportError(w http.ResponseWriter, err error) {
	var ee *classify.ExportError
	if !errors.As(err, &ee) {
		httpError(w, http.StatusInternalServerError, "api_error", "export failed: %v", err)
		return
	}

	status := http.StatusBadGateway
	switch ee.Code {
	case classify.ValidationError, classify.FormatError:
		status = http.StatusBadRequest
	case classify.PermissionError:
		status = http.StatusForbidden
	}

	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":        ee.Code,
			"message":     classify.UserMessage(ee),
			"recoverable": ee.Recoverable,
			"suggestions": classify.SuggestRecoveryActions(ee),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
