package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// ExecutiveRenderer produces a one-page Markdown brief: outcome
// headline, key numbers, and the demo highlights, nothing else.
type ExecutiveRenderer struct{}

func (r *ExecutiveRenderer) Render(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
	metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*model.ExportResult, error) {

	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Executive Summary: %s\n\n", p.Title)
	if p.SprintName != "" {
		fmt.Fprintf(&b, "_%s_\n\n", p.SprintName)
	}

	if metrics != nil {
		fmt.Fprintf(&b, "**Sprint completion: %.0f%%** (%d of %d issues, %.1f of %.1f points)\n\n",
			metrics.CompletionRate(),
			metrics.IssuesCompleted, metrics.IssuesPlanned,
			metrics.CompletedPoints, metrics.PlannedPoints)
	}

	slides := sortedSlides(p)
	if s, ok := firstOfKind(slides, model.SlideSummary); ok && s.Content != "" {
		fmt.Fprintf(&b, "%s\n\n", s.Content)
	}

	byKey := issueByKey(issues)
	var highlights []string
	for _, s := range slides {
		if s.Kind != model.SlideDemoStory {
			continue
		}
		if is, ok := byKey[s.IssueKey]; ok {
			highlights = append(highlights, fmt.Sprintf("- **%s** %s", is.Key, is.Summary))
		} else if s.Title != "" {
			highlights = append(highlights, "- "+s.Title)
		}
	}
	if len(highlights) > 0 {
		b.WriteString("## Highlights\n\n")
		b.WriteString(strings.Join(highlights, "\n"))
		b.WriteString("\n\n")
	}

	if len(upcoming) > 0 {
		fmt.Fprintf(&b, "## Next Sprint\n\n%d items queued.\n\n", len(upcoming))
	}

	reportSlide(onProgress, len(slides)-1, len(slides), "executive brief")
	return finishResult(p, model.FormatExecutive, opts, []byte(b.String())), nil
}

func firstOfKind(slides []model.Slide, kind model.SlideKind) (model.Slide, bool) {
	for _, s := range slides {
		if s.Kind == kind {
			return s, true
		}
	}
	return model.Slide{}, false
}
