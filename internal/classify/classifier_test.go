package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nbrem108/sprintdeck/internal/model"
)

func TestClassify_KeywordTable(t *testing.T) {
	tests := []struct {
		msg  string
		want Code
	}{
		{"connection refused by host", NetworkTimeout},
		{"request timed out after 30s", NetworkTimeout},
		{"out of memory while rasterizing chart", MemoryError},
		{"permission denied opening output file", PermissionError},
		{"access denied for board 7", PermissionError},
		{"unsupported format docx", FormatError},
		{"failed to embed image sprint-chart.png", AssetError},
		{"template render failed at slide 3", RendererError},
		{"empty presentation", ValidationError},
		{`unknown quality tier "ultra"`, ValidationError},
		{"something inexplicable happened", UnknownError},
	}

	c := New(0)
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			ee := c.Classify(errors.New(tt.msg), 1, Context{})
			if ee.Code != tt.want {
				t.Errorf("Classify(%q).Code = %s, want %s", tt.msg, ee.Code, tt.want)
			}
			if ee.Recoverable != tt.want.Recoverable() {
				t.Errorf("Recoverable = %v, want %v", ee.Recoverable, tt.want.Recoverable())
			}
		})
	}
}

func TestClassify_AttemptTimeoutBeatsKeywords(t *testing.T) {
	c := New(0)
	err := fmt.Errorf("%w: network stalled", ErrAttemptTimeout)
	ee := c.Classify(err, 2, Context{})
	if ee.Code != RendererError {
		t.Errorf("attempt-timeout classified as %s, want RENDERER_ERROR", ee.Code)
	}
	if !ee.Recoverable {
		t.Error("attempt-timeout should be recoverable")
	}
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	c := New(0)
	ee := c.Classify(context.DeadlineExceeded, 1, Context{})
	if ee.Code != NetworkTimeout {
		t.Errorf("deadline exceeded classified as %s, want NETWORK_TIMEOUT", ee.Code)
	}
}

func TestClassify_AlreadyClassifiedPassesThrough(t *testing.T) {
	c := New(0)
	orig := c.Classify(errors.New("permission denied"), 1, Context{Format: model.FormatPDF})
	again := c.Classify(fmt.Errorf("wrapped: %w", orig), 2, Context{})
	if again != orig {
		t.Error("wrapped ExportError should be returned unchanged")
	}
	if got := len(c.History()); got != 2 {
		t.Errorf("history length = %d, want 2 (both classifications recorded)", got)
	}
}

func TestClassify_RecordsAttemptAndContext(t *testing.T) {
	c := New(0)
	ctxInfo := Context{Format: model.FormatHTML, Quality: model.QualityHigh, SlideCount: 5}
	ee := c.Classify(errors.New("render failed"), 3, ctxInfo)
	if ee.Attempt != 3 {
		t.Errorf("Attempt = %d, want 3", ee.Attempt)
	}
	if ee.Context != ctxInfo {
		t.Errorf("Context = %+v, want %+v", ee.Context, ctxInfo)
	}
	if ee.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestHistory_BoundedOldestPruned(t *testing.T) {
	c := New(3)
	for i := 0; i < 5; i++ {
		c.Classify(fmt.Errorf("render failed #%d", i), 1, Context{})
	}
	h := c.History()
	if len(h) != 3 {
		t.Fatalf("history length = %d, want 3", len(h))
	}
	if h[0].Message != "render failed #2" {
		t.Errorf("oldest surviving entry = %q, want %q", h[0].Message, "render failed #2")
	}
}

func TestCountsByCodeAndRecoveryRate(t *testing.T) {
	c := New(0)
	c.Classify(errors.New("timed out"), 1, Context{})
	c.Classify(errors.New("timed out again"), 2, Context{})
	c.Classify(errors.New("permission denied"), 1, Context{})
	c.MarkRecovered(2)

	counts := c.CountsByCode()
	if counts[NetworkTimeout] != 2 || counts[PermissionError] != 1 {
		t.Errorf("CountsByCode = %v", counts)
	}
	rate := c.RecoveryRate()
	if rate < 0.66 || rate > 0.67 {
		t.Errorf("RecoveryRate = %v, want ~0.667", rate)
	}
}

func TestSuggestRecoveryActions(t *testing.T) {
	c := New(0)
	ee := c.Classify(errors.New("out of memory"), 1, Context{})
	actions := SuggestRecoveryActions(ee)
	if len(actions) == 0 {
		t.Fatal("no recovery actions for MEMORY_ERROR")
	}
	// Mutating the returned slice must not affect the table.
	actions[0] = "mutated"
	if again := SuggestRecoveryActions(ee); again[0] == "mutated" {
		t.Error("suggestion table was mutated through the returned slice")
	}
}

func TestUserMessage(t *testing.T) {
	if UserMessage(nil) == "" {
		t.Error("UserMessage(nil) should fall back to the unknown message")
	}
	c := New(0)
	ee := c.Classify(errors.New("unsupported format xyz"), 1, Context{})
	msg := UserMessage(ee)
	if msg == "" || msg == ee.Message {
		t.Errorf("UserMessage should be a canned message, got %q", msg)
	}
}
