// Package export is the pipeline entry point: it validates input,
// consults the result cache, dispatches to a registered renderer inside
// a classification-driven retry loop, and gates the produced artifact.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nbrem108/sprintdeck/internal/cache"
	"github.com/nbrem108/sprintdeck/internal/classify"
	"github.com/nbrem108/sprintdeck/internal/model"
	"github.com/nbrem108/sprintdeck/internal/quality"
	"github.com/nbrem108/sprintdeck/internal/render"
)

// Recorder receives pipeline lifecycle events. Implementations must be
// fire-and-forget; the exporter ignores their failures.
type Recorder interface {
	ExportStarted(ctx context.Context, presentationID string, format model.Format)
	ExportCompleted(ctx context.Context, presentationID string, format model.Format,
		byteSize int, duration time.Duration, cacheHit bool)
	ExportFailed(ctx context.Context, presentationID string, format model.Format,
		code string, message string)
}

// Retry defaults.
const (
	DefaultMaxAttempts       = 3
	DefaultBaseDelay         = 500 * time.Millisecond
	DefaultBackoffMultiplier = 2.0
	DefaultAttemptTimeout    = 30 * time.Second
)

// Config tunes the retry loop. Zero values take the defaults.
type Config struct {
	MaxAttempts       int           // total attempts, including the first
	BaseDelay         time.Duration // delay before attempt 2
	BackoffMultiplier float64
	AttemptTimeout    time.Duration // wall-clock budget per render attempt
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	return c
}

// Exporter orchestrates one export call end to end. Safe for concurrent
// use; the cache and classifier carry their own locking.
type Exporter struct {
	registry   *render.Registry
	cache      *cache.ResultCache
	classifier *classify.Classifier
	gate       *quality.Gate
	recorder   Recorder
	cfg        Config
	logger     *slog.Logger
}

// New wires an Exporter. registry, cache, classifier, and gate are
// required; recorder may be nil (events are dropped); logger may be nil
// (the default logger is used).
func New(registry *render.Registry, c *cache.ResultCache, cl *classify.Classifier,
	gate *quality.Gate, recorder Recorder, cfg Config, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		registry:   registry,
		cache:      c,
		classifier: cl,
		gate:       gate,
		recorder:   recorder,
		cfg:        cfg.withDefaults(),
		logger:     logger,
	}
}

// Outcome is what Export returns on success: the artifact plus the
// delivery facts callers and handlers report on.
type Outcome struct {
	Result   *model.ExportResult
	CacheHit bool
	Attempts int
	Report   *quality.Report // nil on cache hits
	Duration time.Duration
}

// Export runs the full pipeline for one presentation. On failure it
// returns a *classify.ExportError describing the terminal failure.
func (e *Exporter) Export(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
	metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*Outcome, error) {

	started := time.Now()
	progress := newProgressGuard(onProgress)
	ctxInfo := classify.Context{Format: opts.Format, Quality: opts.Quality}
	if p != nil {
		ctxInfo.SlideCount = len(p.Slides)
	}

	fail := func(err *classify.ExportError) (*Outcome, error) {
		if e.recorder != nil && p != nil {
			e.recorder.ExportFailed(ctx, p.ID, opts.Format, string(err.Code), err.Message)
		}
		return nil, err
	}

	// Input validation never retries.
	progress.report(model.StagePreparing, 2, "validating input")
	if p == nil || len(p.Slides) == 0 {
		return fail(e.classifier.Classify(fmt.Errorf("empty presentation: no slides to export"), 1, ctxInfo))
	}
	if err := opts.Validate(); err != nil {
		return fail(e.classifier.Classify(err, 1, ctxInfo))
	}
	ctxInfo.Quality = opts.Quality // Validate fills an empty tier

	if e.recorder != nil {
		e.recorder.ExportStarted(ctx, p.ID, opts.Format)
	}

	// Defensive copy: renderers must never observe caller mutations.
	p = p.Clone()

	key := Fingerprint(p, opts)
	progress.report(model.StagePreparing, 8, "checking result cache")
	if cached := e.cache.Get(key); cached != nil {
		e.logger.Debug("export cache hit", "key", key[:12], "format", opts.Format)
		progress.report(model.StageFinalizing, 100, "served from cache")
		duration := time.Since(started)
		if e.recorder != nil {
			e.recorder.ExportCompleted(ctx, p.ID, opts.Format, cached.ByteSize, duration, true)
		}
		return &Outcome{Result: cached, CacheHit: true, Duration: duration}, nil
	}

	renderer, err := e.registry.Lookup(opts.Format)
	if err != nil {
		return fail(e.classifier.Classify(err, 1, ctxInfo))
	}

	result, attempts, rerr := e.renderWithRetry(ctx, renderer, p, issues, upcoming, metrics, opts, progress, ctxInfo)
	if rerr != nil {
		e.logger.Warn("export failed",
			"presentation", p.ID, "format", opts.Format,
			"code", rerr.Code, "attempts", attempts, "err", rerr.Message)
		return fail(rerr)
	}

	progress.report(model.StageProcessing, 88, "stamping result metadata")
	result.Meta.SlideCount = len(p.Slides)
	result.Meta.Duration = time.Since(started)
	result.Meta.Quality = opts.Quality

	if err := e.cache.Set(key, result, cache.ContextSnapshot{
		PresentationID: p.ID,
		SlideCount:     len(p.Slides),
		Format:         opts.Format,
		Quality:        opts.Quality,
	}); err != nil {
		// An uncacheable result is still a deliverable result.
		e.logger.Warn("export result not cached", "key", key[:12], "err", err)
	}

	progress.report(model.StageProcessing, 94, "running quality gate")
	report := e.gate.Validate(result, p, opts)
	if !report.Passed {
		e.logger.Warn("quality gate did not pass",
			"presentation", p.ID, "format", opts.Format,
			"status", report.Status, "score", report.Score,
			"recommendations", report.Recommendations)
	}

	progress.report(model.StageFinalizing, 100, "export complete")
	duration := time.Since(started)
	if e.recorder != nil {
		e.recorder.ExportCompleted(ctx, p.ID, opts.Format, result.ByteSize, duration, false)
	}
	return &Outcome{
		Result:   result,
		Attempts: attempts,
		Report:   &report,
		Duration: duration,
	}, nil
}

// renderWithRetry runs the renderer under a per-attempt budget and
// retries classified recoverable failures with exponential backoff.
func (e *Exporter) renderWithRetry(ctx context.Context, renderer render.Renderer,
	p *model.Presentation, issues, upcoming []model.Issue, metrics *model.SprintMetrics,
	opts model.ExportOptions, progress *progressGuard, ctxInfo classify.Context) (*model.ExportResult, int, *classify.ExportError) {

	renderProgress := func(pr model.Progress) {
		// Map the renderer's 0-100 into the rendering band, keeping
		// the per-slide counters renderers attach.
		progress.emit(model.Progress{
			Current:    pr.Current,
			Total:      pr.Total,
			Stage:      model.StageRendering,
			Message:    pr.Message,
			Percentage: 10 + pr.Percentage*0.75,
		})
	}

	var last *classify.ExportError
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		result, err := renderer.Render(attemptCtx, p, issues, upcoming, metrics, opts, renderProgress)
		budgetExpired := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		if err == nil {
			if attempt > 1 {
				e.classifier.MarkRecovered(attempt - 1)
			}
			return result, attempt, nil
		}
		if budgetExpired {
			err = fmt.Errorf("%w after %s: %v", classify.ErrAttemptTimeout, e.cfg.AttemptTimeout, err)
		}
		if ctx.Err() != nil {
			// Caller cancellation is terminal regardless of classification.
			return nil, attempt, e.classifier.Classify(
				fmt.Errorf("export cancelled: %w", ctx.Err()), attempt, ctxInfo)
		}

		last = e.classifier.Classify(err, attempt, ctxInfo)
		if !last.Recoverable || attempt == e.cfg.MaxAttempts {
			return nil, attempt, last
		}

		delay := time.Duration(float64(e.cfg.BaseDelay) * math.Pow(e.cfg.BackoffMultiplier, float64(attempt-1)))
		e.logger.Debug("retrying render",
			"attempt", attempt, "code", last.Code, "delay", delay, "format", opts.Format)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, e.classifier.Classify(
				fmt.Errorf("export cancelled during backoff: %w", ctx.Err()), attempt, ctxInfo)
		case <-timer.C:
		}
	}
	return nil, e.cfg.MaxAttempts, last
}

// progressGuard makes the reported percentage monotonic non-decreasing
// and clamped to [0,100] no matter what the stages emit.
type progressGuard struct {
	fn   model.ProgressFunc
	last float64
}

func newProgressGuard(fn model.ProgressFunc) *progressGuard {
	return &progressGuard{fn: fn}
}

func (g *progressGuard) report(stage model.ProgressStage, pct float64, msg string) {
	g.emit(model.Progress{Stage: stage, Message: msg, Percentage: pct})
}

func (g *progressGuard) emit(p model.Progress) {
	if g.fn == nil {
		return
	}
	if p.Percentage < g.last {
		p.Percentage = g.last
	}
	if p.Percentage > 100 {
		p.Percentage = 100
	}
	g.last = p.Percentage
	g.fn(p)
}
