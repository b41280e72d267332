// Package quality validates produced export artifacts after rendering.
// A single ordered rule list replaces separate scoring and validation
// passes; every rule is independent and failure of one never stops the
// others from running.
package quality

import (
	"time"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// Severity ranks how much a failing rule should count against the
// artifact.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Status is the terminal verdict of one gate run.
type Status string

const (
	StatusPassed             Status = "passed"
	StatusPassedWithWarnings Status = "passed-with-warnings"
	StatusFailedCritical     Status = "failed-critical"
)

// Result is one rule's outcome.
type Result struct {
	Rule     string         `json:"rule"`
	Passed   bool           `json:"passed"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// Report aggregates every rule outcome for one export.
type Report struct {
	Results         []Result     `json:"results"`
	Score           float64      `json:"score"`
	Passed          bool         `json:"passed"`
	Status          Status       `json:"status"`
	Recommendations []string     `json:"recommendations,omitempty"`
	Format          model.Format `json:"format"`
	CheckedAt       time.Time    `json:"checked_at"`
}

// Config holds the severity weights and the pass threshold. These are
// product defaults, not invariants; callers may tune them.
type Config struct {
	CriticalWeight float64
	WarningWeight  float64
	InfoWeight     float64
	PassThreshold  float64
}

// DefaultConfig returns the stock weighting.
func DefaultConfig() Config {
	return Config{
		CriticalWeight: 0.5,
		WarningWeight:  0.3,
		InfoWeight:     0.2,
		PassThreshold:  80,
	}
}

func (c Config) weight(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return c.CriticalWeight
	case SeverityWarning:
		return c.WarningWeight
	default:
		return c.InfoWeight
	}
}

// Input bundles what the rules inspect.
type Input struct {
	Result       *model.ExportResult
	Presentation *model.Presentation
	Options      model.ExportOptions
}

// Rule is one independent validation check.
type Rule struct {
	ID       string
	Severity Severity
	Check    func(in Input) (passed bool, message string, details map[string]any)
}

// recommendations maps a failing rule id to its remediation hint. New
// rules add a row here, nothing else changes.
var recommendations = map[string]string{
	ruleFileIntegrity:        "regenerate the export; the produced file does not parse",
	ruleContentCompleteness:  "re-run the export; slides are missing from the artifact",
	ruleFormatCompliance:     "check the requested format against the produced file name",
	ruleSizeThreshold:        "reduce quality tier or slide count to shrink the artifact",
	ruleProcessingTime:       "enable compression or lower the quality tier to speed up rendering",
	ruleAccessibility:        "add a document title and language so screen readers can announce it",
	rulePerformance:          "disable embedded images or lower quality to reduce per-slide weight",
	ruleSecurity:             "regenerate the export; the artifact carries active content that escaping should have neutralized",
	ruleMetadataCompleteness: "re-run the export; result metadata was not fully stamped",
}

// Gate runs the rule list and scores the outcome.
type Gate struct {
	cfg   Config
	rules []Rule
}

// NewGate builds a gate with the default rule list. Zero-valued weights
// fall back to the defaults.
func NewGate(cfg Config) *Gate {
	def := DefaultConfig()
	if cfg.CriticalWeight <= 0 {
		cfg.CriticalWeight = def.CriticalWeight
	}
	if cfg.WarningWeight <= 0 {
		cfg.WarningWeight = def.WarningWeight
	}
	if cfg.InfoWeight <= 0 {
		cfg.InfoWeight = def.InfoWeight
	}
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = def.PassThreshold
	}
	return &Gate{cfg: cfg, rules: defaultRules()}
}

// Validate runs every rule against the artifact and returns the report.
// It never returns an error; a broken artifact is a failing report.
func (g *Gate) Validate(result *model.ExportResult, p *model.Presentation, opts model.ExportOptions) Report {
	in := Input{Result: result, Presentation: p, Options: opts}

	report := Report{
		Results:   make([]Result, 0, len(g.rules)),
		CheckedAt: time.Now().UTC(),
	}
	if result != nil {
		report.Format = result.Format
	}

	var weightSum, passSum float64
	criticalFailures, otherFailures := 0, 0

	for _, rule := range g.rules {
		passed, msg, details := rule.Check(in)
		report.Results = append(report.Results, Result{
			Rule:     rule.ID,
			Passed:   passed,
			Severity: rule.Severity,
			Message:  msg,
			Details:  details,
		})

		w := g.cfg.weight(rule.Severity)
		weightSum += w
		if passed {
			passSum += w
			continue
		}
		if rule.Severity == SeverityCritical {
			criticalFailures++
		} else {
			otherFailures++
		}
		if rec, ok := recommendations[rule.ID]; ok {
			report.Recommendations = append(report.Recommendations, rec)
		}
	}

	if weightSum > 0 {
		report.Score = passSum / weightSum * 100
	}

	switch {
	case criticalFailures > 0:
		report.Status = StatusFailedCritical
		report.Passed = false
	case otherFailures > 0 || report.Score < g.cfg.PassThreshold:
		report.Status = StatusPassedWithWarnings
		report.Passed = report.Score >= g.cfg.PassThreshold
	default:
		report.Status = StatusPassed
		report.Passed = true
	}
	return report
}
