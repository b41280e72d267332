package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// MarkdownRenderer produces a full sprint-review document in Markdown.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
	metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*model.ExportResult, error) {

	var b strings.Builder
	slides := sortedSlides(p)
	byKey := issueByKey(issues)

	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	if p.SprintName != "" {
		fmt.Fprintf(&b, "_%s_\n\n", p.SprintName)
	}

	for i, s := range slides {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		writeMarkdownSlide(&b, s, byKey, metrics)
		reportSlide(onProgress, i, len(slides), s.Title)
	}

	if len(upcoming) > 0 {
		b.WriteString("## Upcoming Work\n\n")
		for _, is := range upcoming {
			fmt.Fprintf(&b, "- **%s** %s\n", is.Key, is.Summary)
		}
		b.WriteString("\n")
	}

	return finishResult(p, model.FormatMarkdown, opts, []byte(b.String())), nil
}

func writeMarkdownSlide(b *strings.Builder, s model.Slide, byKey map[string]model.Issue, metrics *model.SprintMetrics) {
	switch s.Kind {
	case model.SlideTitle:
		// Title slide content is already the document heading.
		if s.Content != "" {
			fmt.Fprintf(b, "%s\n\n", s.Content)
		}
	case model.SlideMetrics:
		fmt.Fprintf(b, "## %s\n\n", s.Title)
		writeMetricsTable(b, s, metrics)
	case model.SlideDemoStory:
		fmt.Fprintf(b, "## %s\n\n", s.Title)
		if is, ok := byKey[s.IssueKey]; ok {
			fmt.Fprintf(b, "**%s** — %s (%s)\n\n", is.Key, is.Summary, is.Status)
			if is.Assignee != "" {
				fmt.Fprintf(b, "Assignee: %s\n\n", is.Assignee)
			}
			if is.Description != "" {
				fmt.Fprintf(b, "%s\n\n", is.Description)
			}
		}
		if s.Content != "" {
			fmt.Fprintf(b, "%s\n\n", s.Content)
		}
	default:
		fmt.Fprintf(b, "## %s\n\n", s.Title)
		if s.Content != "" {
			fmt.Fprintf(b, "%s\n\n", s.Content)
		}
	}
}

func writeMetricsTable(b *strings.Builder, s model.Slide, metrics *model.SprintMetrics) {
	b.WriteString("| Metric | Value |\n|---|---|\n")
	if metrics != nil {
		fmt.Fprintf(b, "| Planned points | %.1f |\n", metrics.PlannedPoints)
		fmt.Fprintf(b, "| Completed points | %.1f |\n", metrics.CompletedPoints)
		fmt.Fprintf(b, "| Completion rate | %.0f%% |\n", metrics.CompletionRate())
		fmt.Fprintf(b, "| Issues completed | %d / %d |\n", metrics.IssuesCompleted, metrics.IssuesPlanned)
		if metrics.TestCoverage > 0 {
			fmt.Fprintf(b, "| Test coverage | %.1f%% |\n", metrics.TestCoverage)
		}
	}
	for _, k := range sortedMapKeys(s.Fields) {
		fmt.Fprintf(b, "| %s | %s |\n", k, s.Fields[k])
	}
	b.WriteString("\n")
	if metrics != nil && len(metrics.Quality) > 0 {
		b.WriteString("### Quality Checklist\n\n")
		for _, k := range sortedMapKeys(metrics.Quality) {
			fmt.Fprintf(b, "- %s: %s\n", k, metrics.Quality[k])
		}
		b.WriteString("\n")
	}
}

func sortedMapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
