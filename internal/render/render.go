// Package render holds the renderer contract, the format registry, and
// one renderer per supported output format.
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// Renderer turns a presentation into one output format's bytes.
// Implementations must not mutate the presentation or issues, must
// declare the format they were registered under, and should report
// per-slide progress for multi-slide formats. Partial asset failures
// are logged as warnings, not surfaced as errors, unless the content
// is unrecoverable.
type Renderer interface {
	Render(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
		metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*model.ExportResult, error)
}

// Registry is a format-keyed table of renderers. Registration is an
// explicit startup step; lookups of unregistered formats fail fast.
type Registry struct {
	mu        sync.RWMutex
	renderers map[model.Format]Renderer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[model.Format]Renderer)}
}

// Register binds a renderer to a format, replacing any previous binding.
func (r *Registry) Register(f model.Format, renderer Renderer) {
	r.mu.Lock()
	r.renderers[f] = renderer
	r.mu.Unlock()
}

// Lookup returns the renderer for a format or an error naming the
// unregistered format.
func (r *Registry) Lookup(f model.Format) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[f]
	if !ok {
		return nil, fmt.Errorf("no renderer registered for format %q", f)
	}
	return renderer, nil
}

// Formats returns the registered formats in sorted order.
func (r *Registry) Formats() []model.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Format, 0, len(r.renderers))
	for f := range r.renderers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewDefaultRegistry returns a registry with every built-in renderer
// registered under its format.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(model.FormatMarkdown, &MarkdownRenderer{})
	r.Register(model.FormatHTML, &HTMLRenderer{})
	r.Register(model.FormatPDF, &PDFRenderer{})
	r.Register(model.FormatMetrics, &MetricsRenderer{})
	r.Register(model.FormatExecutive, &ExecutiveRenderer{})
	r.Register(model.FormatDigest, &DigestRenderer{})
	r.Register(model.FormatAdvancedDigest, &DigestRenderer{Advanced: true})
	return r
}

// reportSlide emits a rendering-stage progress event for slide i of n.
func reportSlide(onProgress model.ProgressFunc, i, n int, title string) {
	if onProgress == nil || n == 0 {
		return
	}
	onProgress(model.Progress{
		Current:    i + 1,
		Total:      n,
		Stage:      model.StageRendering,
		Message:    title,
		Percentage: float64(i+1) / float64(n) * 100,
	})
}

// fileName builds "<slug>-<sprint>.<ext>" from the presentation title.
func fileName(p *model.Presentation, f model.Format) string {
	slug := strings.ToLower(strings.TrimSpace(p.Title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "sprint-review"
	}
	return fmt.Sprintf("%s.%s", slug, f.Extension())
}

// finishResult wraps payload bytes into an ExportResult.
func finishResult(p *model.Presentation, f model.Format, opts model.ExportOptions, payload []byte) *model.ExportResult {
	return &model.ExportResult{
		Payload:  payload,
		FileName: fileName(p, f),
		ByteSize: len(payload),
		Format:   f,
		Meta: model.ResultMeta{
			SlideCount: len(p.Slides),
			Quality:    opts.Quality,
		},
	}
}

// issueByKey indexes issues for demo-story slide lookups.
func issueByKey(issues []model.Issue) map[string]model.Issue {
	m := make(map[string]model.Issue, len(issues))
	for _, is := range issues {
		m[is.Key] = is
	}
	return m
}

// sortedSlides returns the slides ordered by their Order field without
// mutating the caller's slice.
func sortedSlides(p *model.Presentation) []model.Slide {
	slides := make([]model.Slide, len(p.Slides))
	copy(slides, p.Slides)
	sort.SliceStable(slides, func(i, j int) bool { return slides[i].Order < slides[j].Order })
	return slides
}

// checkCtx returns the context error, if any, as a render failure.
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("render cancelled: %w", ctx.Err())
	default:
		return nil
	}
}
