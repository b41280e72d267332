package render

import (
	"context"
	"fmt"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// DigestRenderer produces a compact PDF digest: a cover page with the
// sprint numbers plus one line per delivered issue. Advanced mode adds
// a per-story page with the full description and the quality notes.
type DigestRenderer struct {
	Advanced bool
}

func (r *DigestRenderer) Render(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
	metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*model.ExportResult, error) {

	format := model.FormatDigest
	if r.Advanced {
		format = model.FormatAdvancedDigest
	}

	doc := newPDFDoc(p.Title)

	cover := doc.addPage()
	cover.heading(p.Title)
	if p.SprintName != "" {
		cover.line(p.SprintName)
		cover.line("")
	}
	if metrics != nil {
		cover.line(fmt.Sprintf("Completion: %.0f%%", metrics.CompletionRate()))
		cover.line(fmt.Sprintf("Points: %.1f / %.1f", metrics.CompletedPoints, metrics.PlannedPoints))
		cover.line(fmt.Sprintf("Issues: %d / %d", metrics.IssuesCompleted, metrics.IssuesPlanned))
		cover.line("")
	}
	cover.line("Delivered:")
	for _, is := range issues {
		cover.line(fmt.Sprintf("- %s %s (%s)", is.Key, is.Summary, is.Status))
	}
	if len(upcoming) > 0 {
		cover.line("")
		cover.line(fmt.Sprintf("Up next: %d items", len(upcoming)))
	}
	reportSlide(onProgress, 0, 1+advancedPages(r.Advanced, issues), "digest cover")

	if r.Advanced {
		for i, is := range issues {
			if err := checkCtx(ctx); err != nil {
				return nil, err
			}
			page := doc.addPage()
			page.heading(fmt.Sprintf("%s  %s", is.Key, is.Summary))
			page.line("Status: " + is.Status)
			if is.Assignee != "" {
				page.line("Assignee: " + is.Assignee)
			}
			if is.StoryPoints > 0 {
				page.line(fmt.Sprintf("Points: %.1f", is.StoryPoints))
			}
			page.paragraph(is.Description)
			reportSlide(onProgress, i+1, 1+len(issues), is.Key)
		}
		if metrics != nil && len(metrics.Quality) > 0 {
			page := doc.addPage()
			page.heading("Quality Notes")
			for _, k := range sortedMapKeys(metrics.Quality) {
				page.line(fmt.Sprintf("%s: %s", k, metrics.Quality[k]))
			}
		}
	}

	payload, err := doc.bytes()
	if err != nil {
		return nil, fmt.Errorf("assembling digest pdf: %w", err)
	}
	return finishResult(p, format, opts, payload), nil
}

func advancedPages(advanced bool, issues []model.Issue) int {
	if !advanced {
		return 0
	}
	return len(issues)
}
