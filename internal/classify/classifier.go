// Package classify maps raw render failures onto a small error taxonomy
// and keeps a bounded history of classified failures for diagnostics.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// Code is a taxonomy code for a classified export failure.
type Code string

const (
	NetworkTimeout  Code = "NETWORK_TIMEOUT"
	MemoryError     Code = "MEMORY_ERROR"
	PermissionError Code = "PERMISSION_ERROR"
	FormatError     Code = "FORMAT_ERROR"
	RendererError   Code = "RENDERER_ERROR"
	AssetError      Code = "ASSET_ERROR"
	ValidationError Code = "VALIDATION_ERROR"
	UnknownError    Code = "UNKNOWN_ERROR"
)

// recoverable is the fixed set of codes eligible for automatic retry.
var recoverable = map[Code]bool{
	NetworkTimeout: true,
	MemoryError:    true,
	RendererError:  true,
	AssetError:     true,
}

// Recoverable reports whether a code is eligible for retry.
func (c Code) Recoverable() bool { return recoverable[c] }

// Context is the snapshot of export state captured with each error.
type Context struct {
	Format     model.Format  `json:"format"`
	Quality    model.Quality `json:"quality"`
	SlideCount int           `json:"slide_count"`
}

// ExportError is a classified failure. Never mutated after creation.
type ExportError struct {
	Code        Code      `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Attempt     int       `json:"attempt"`
	Timestamp   time.Time `json:"timestamp"`
	Context     Context   `json:"context"`
	cause       error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s: %s (attempt %d)", e.Code, e.Message, e.Attempt)
}

// Unwrap exposes the raw failure for errors.Is/As chains.
func (e *ExportError) Unwrap() error { return e.cause }

// ErrAttemptTimeout marks a render attempt that exceeded its wall-clock
// budget. The orchestrator wraps deadline errors with it so they map to
// RENDERER_ERROR rather than the keyword-matched network code.
var ErrAttemptTimeout = errors.New("render attempt exceeded time budget")

// rule is one (predicate -> code) classification entry. Rules run in
// order; the first match wins. New failure kinds are added by appending
// or inserting entries, not by editing branches.
type rule struct {
	match func(err error, lower string) bool
	code  Code
}

func keywords(words ...string) func(error, string) bool {
	return func(_ error, lower string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
}

var rules = []rule{
	{func(err error, _ string) bool { return errors.Is(err, ErrAttemptTimeout) }, RendererError},
	{func(err error, _ string) bool { return errors.Is(err, context.DeadlineExceeded) }, NetworkTimeout},
	{keywords("permission", "unauthorized", "forbidden", "access denied"), PermissionError},
	{keywords("out of memory", "memory", "allocation failed"), MemoryError},
	{keywords("timeout", "timed out", "network", "connection refused", "connection reset", "no such host"), NetworkTimeout},
	{keywords("unsupported format", "unknown format", "format"), FormatError},
	{keywords("image", "asset", "chart", "font", "embed"), AssetError},
	{keywords("invalid", "validation", "malformed", "quality tier", "empty presentation"), ValidationError},
	{keywords("render", "template", "encode"), RendererError},
}

// Classifier turns raw errors into ExportErrors and records them.
// Safe for concurrent use.
type Classifier struct {
	mu         sync.Mutex
	history    []*ExportError
	maxHistory int
	recovered  int // errors followed by a later successful attempt
}

// DefaultMaxHistory bounds the error history; oldest entries are pruned.
const DefaultMaxHistory = 100

// New creates a Classifier. maxHistory <= 0 uses DefaultMaxHistory.
func New(maxHistory int) *Classifier {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Classifier{maxHistory: maxHistory}
}

// Classify maps err onto the taxonomy, records it in the history, and
// returns the immutable classified error. attempt is 1-based.
func (c *Classifier) Classify(err error, attempt int, ctxInfo Context) *ExportError {
	var ee *ExportError
	if errors.As(err, &ee) {
		// Already classified upstream; record as-is.
		c.record(ee)
		return ee
	}

	code := UnknownError
	lower := strings.ToLower(err.Error())
	for _, r := range rules {
		if r.match(err, lower) {
			code = r.code
			break
		}
	}

	ee = &ExportError{
		Code:        code,
		Message:     err.Error(),
		Recoverable: code.Recoverable(),
		Attempt:     attempt,
		Timestamp:   time.Now().UTC(),
		Context:     ctxInfo,
		cause:       err,
	}
	c.record(ee)
	return ee
}

func (c *Classifier) record(e *ExportError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, e)
	if len(c.history) > c.maxHistory {
		c.history = c.history[len(c.history)-c.maxHistory:]
	}
}

// MarkRecovered notes that a previously classified failure was followed
// by a successful attempt, feeding the recovery-rate statistic.
func (c *Classifier) MarkRecovered(n int) {
	c.mu.Lock()
	c.recovered += n
	c.mu.Unlock()
}

// History returns a copy of the recorded errors, oldest first.
func (c *Classifier) History() []*ExportError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ExportError, len(c.history))
	copy(out, c.history)
	return out
}

// CountsByCode aggregates the history by taxonomy code.
func (c *Classifier) CountsByCode() map[Code]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[Code]int)
	for _, e := range c.history {
		counts[e.Code]++
	}
	return counts
}

// RecoveryRate returns the fraction of recorded errors that were
// followed by a successful attempt, in [0,1].
func (c *Classifier) RecoveryRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return 0
	}
	return float64(c.recovered) / float64(len(c.history))
}

// suggestions maps taxonomy codes to human-actionable remediation
// hints, decoupled from the retry mechanics.
var suggestions = map[Code][]string{
	NetworkTimeout: {
		"Check your network connection",
		"Retry the export once connectivity is restored",
	},
	MemoryError: {
		"Reduce the quality tier (e.g. high -> medium)",
		"Export fewer slides per deck",
		"Disable image embedding",
	},
	PermissionError: {
		"Verify the tracker API token has read access",
		"Check file permissions on the export directory",
	},
	FormatError: {
		"Use one of the supported formats (run `sprintdeck formats`)",
	},
	RendererError: {
		"Retry the export",
		"Try a different output format",
	},
	AssetError: {
		"Disable image embedding and retry",
		"Verify referenced asset URLs are reachable",
	},
	ValidationError: {
		"Ensure the presentation has at least one slide",
		"Check the export options for invalid values",
	},
	UnknownError: {
		"Retry the export",
		"Check the server log for details",
	},
}

// SuggestRecoveryActions returns remediation hints for a classified error.
func SuggestRecoveryActions(e *ExportError) []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(suggestions[e.Code]))
	copy(out, suggestions[e.Code])
	return out
}

// userMessages maps taxonomy codes to the single terminal message shown
// to end users. Internal details stay in the history.
var userMessages = map[Code]string{
	NetworkTimeout:  "The export timed out talking to a remote service. Check your connection and try again.",
	MemoryError:     "The export ran out of memory. Try a lower quality tier or fewer slides.",
	PermissionError: "The export was denied access to a required resource.",
	FormatError:     "The requested export format is not supported.",
	RendererError:   "The renderer failed to produce the document. Please try again.",
	AssetError:      "Some assets could not be loaded for the export.",
	ValidationError: "The presentation or export options are invalid.",
	UnknownError:    "The export failed for an unexpected reason.",
}

// UserMessage returns the human-readable message for a classified error.
func UserMessage(e *ExportError) string {
	if e == nil {
		return userMessages[UnknownError]
	}
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	return userMessages[UnknownError]
}
