package render

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// MetricsRenderer emits a machine-readable JSON summary of the sprint
// instead of a document. Slide content is reduced to counts.
type MetricsRenderer struct{}

type metricsPayload struct {
	GeneratedAt    time.Time               `json:"generated_at"`
	Presentation   string                  `json:"presentation"`
	Sprint         string                  `json:"sprint,omitempty"`
	SlideCount     int                     `json:"slide_count"`
	SlidesByKind   map[model.SlideKind]int `json:"slides_by_kind"`
	Metrics        *model.SprintMetrics    `json:"metrics,omitempty"`
	CompletionRate float64                 `json:"completion_rate"`
	Issues         []metricsIssue          `json:"issues"`
	IssuesByStatus map[string]int          `json:"issues_by_status"`
	Upcoming       []metricsIssue          `json:"upcoming,omitempty"`
}

type metricsIssue struct {
	Key         string  `json:"key"`
	Summary     string  `json:"summary"`
	Status      string  `json:"status"`
	Type        string  `json:"type,omitempty"`
	StoryPoints float64 `json:"story_points,omitempty"`
}

func (r *MetricsRenderer) Render(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
	metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*model.ExportResult, error) {

	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	payload := metricsPayload{
		GeneratedAt:    time.Now().UTC(),
		Presentation:   p.Title,
		Sprint:         p.SprintName,
		SlideCount:     len(p.Slides),
		SlidesByKind:   p.CountByKind(),
		Metrics:        metrics,
		IssuesByStatus: make(map[string]int),
		Issues:         make([]metricsIssue, 0, len(issues)),
	}
	if metrics != nil {
		payload.CompletionRate = metrics.CompletionRate()
	}
	for _, is := range issues {
		payload.Issues = append(payload.Issues, toMetricsIssue(is))
		payload.IssuesByStatus[is.Status]++
	}
	for _, is := range upcoming {
		payload.Upcoming = append(payload.Upcoming, toMetricsIssue(is))
	}

	reportSlide(onProgress, len(p.Slides)-1, len(p.Slides), "metrics summary")

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding metrics payload: %w", err)
	}
	return finishResult(p, model.FormatMetrics, opts, data), nil
}

func toMetricsIssue(is model.Issue) metricsIssue {
	return metricsIssue{
		Key:         is.Key,
		Summary:     is.Summary,
		Status:      is.Status,
		Type:        is.Type,
		StoryPoints: is.StoryPoints,
	}
}
