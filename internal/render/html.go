package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// HTMLRenderer produces a standalone HTML document.
type HTMLRenderer struct{}

var htmlTmpl = template.Must(template.New("deck").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 2rem auto; max-width: 52rem; color: #1d2733; }
section.slide { border-bottom: 1px solid #dfe3e8; padding: 1.5rem 0; }
h1 { font-size: 1.9rem; } h2 { font-size: 1.3rem; }
table { border-collapse: collapse; } td, th { border: 1px solid #cbd2d9; padding: 0.3rem 0.7rem; }
.issue-key { color: #3b6ea5; font-weight: 600; }
.sprint { color: #5f6b76; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .SprintName}}<p class="sprint">{{.SprintName}}</p>{{end}}
{{range .Slides}}
<section class="slide" data-kind="{{.Kind}}">
<h2>{{.Title}}</h2>
{{if .IssueHTML}}{{.IssueHTML}}{{end}}
{{if .Content}}<p>{{.Content}}</p>{{end}}
{{if .Rows}}<table><tbody>{{range .Rows}}<tr><th>{{.Label}}</th><td>{{.Value}}</td></tr>{{end}}</tbody></table>{{end}}
</section>
{{end}}
{{if .Upcoming}}
<section class="slide" data-kind="upcoming">
<h2>Upcoming Work</h2>
<ul>{{range .Upcoming}}<li><span class="issue-key">{{.Key}}</span> {{.Summary}}</li>{{end}}</ul>
</section>
{{end}}
</body>
</html>
`))

type htmlRow struct{ Label, Value string }

type htmlSlide struct {
	Kind      model.SlideKind
	Title     string
	Content   string
	IssueHTML template.HTML
	Rows      []htmlRow
}

type htmlDoc struct {
	Title      string
	SprintName string
	Slides     []htmlSlide
	Upcoming   []model.Issue
}

func (r *HTMLRenderer) Render(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
	metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*model.ExportResult, error) {

	slides := sortedSlides(p)
	byKey := issueByKey(issues)

	doc := htmlDoc{Title: p.Title, SprintName: p.SprintName, Upcoming: upcoming}
	for i, s := range slides {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		hs := htmlSlide{Kind: s.Kind, Title: s.Title, Content: s.Content}

		switch s.Kind {
		case model.SlideMetrics:
			hs.Rows = metricsRows(s, metrics)
		case model.SlideDemoStory:
			if is, ok := byKey[s.IssueKey]; ok {
				hs.IssueHTML = issueHTML(is)
			} else if s.IssueKey != "" {
				// Missing issue is a partial failure: keep the slide.
				slog.Warn("html render: demo-story issue not found", "issue_key", s.IssueKey, "slide", s.Title)
			}
		}

		doc.Slides = append(doc.Slides, hs)
		reportSlide(onProgress, i, len(slides), s.Title)
	}

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("executing html template: %w", err)
	}
	return finishResult(p, model.FormatHTML, opts, buf.Bytes()), nil
}

func metricsRows(s model.Slide, metrics *model.SprintMetrics) []htmlRow {
	var rows []htmlRow
	if metrics != nil {
		rows = append(rows,
			htmlRow{"Planned points", fmt.Sprintf("%.1f", metrics.PlannedPoints)},
			htmlRow{"Completed points", fmt.Sprintf("%.1f", metrics.CompletedPoints)},
			htmlRow{"Completion rate", fmt.Sprintf("%.0f%%", metrics.CompletionRate())},
			htmlRow{"Issues completed", fmt.Sprintf("%d / %d", metrics.IssuesCompleted, metrics.IssuesPlanned)},
		)
	}
	for _, k := range sortedMapKeys(s.Fields) {
		rows = append(rows, htmlRow{k, s.Fields[k]})
	}
	return rows
}

func issueHTML(is model.Issue) template.HTML {
	esc := template.HTMLEscapeString
	out := fmt.Sprintf(`<p><span class="issue-key">%s</span> %s (%s)</p>`,
		esc(is.Key), esc(is.Summary), esc(is.Status))
	if is.Description != "" {
		out += fmt.Sprintf("<p>%s</p>", esc(is.Description))
	}
	return template.HTML(out)
}
