package report

import (
	"strings"
	"testing"
	"time"

	"github.com/nbrem108/sprintdeck/internal/model"
)

func TestComposeBuildsExpectedSlides(t *testing.T) {
	sprint := &model.Sprint{
		ID:        42,
		Name:      "Sprint 42",
		State:     "closed",
		Goal:      "Ship the export pipeline",
		StartDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
	}
	issues := []model.Issue{
		{Key: "SD-101", Summary: "Rework checkout", Status: "Done"},
		{Key: "SD-102", Summary: "Fix cart race", Status: "In Progress"},
		{Key: "SD-103", Summary: "Ship digests", Status: "Closed"},
	}
	metrics := &model.SprintMetrics{PlannedPoints: 40, CompletedPoints: 30}

	p := Compose(sprint, issues, metrics)

	if p.ID == "" {
		t.Error("presentation ID not assigned")
	}
	if p.Title != "Sprint 42 Review" || p.SprintName != "Sprint 42" {
		t.Errorf("title = %q, sprint = %q", p.Title, p.SprintName)
	}

	counts := p.CountByKind()
	if counts[model.SlideTitle] != 1 || counts[model.SlideSummary] != 1 ||
		counts[model.SlideMetrics] != 1 || counts[model.SlideCorporate] != 1 {
		t.Errorf("slide counts = %v", counts)
	}
	// Only delivered issues get demo slides.
	if counts[model.SlideDemoStory] != 2 {
		t.Errorf("demo slides = %d, want 2", counts[model.SlideDemoStory])
	}

	for i, s := range p.Slides {
		if s.Order != i {
			t.Errorf("slide %d has order %d", i, s.Order)
		}
	}

	if !strings.Contains(p.Slides[0].Content, "Ship the export pipeline") {
		t.Errorf("title slide content = %q", p.Slides[0].Content)
	}
	summary := p.Slides[1].Content
	if !strings.Contains(summary, "Delivered 2 of 3 issues") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, "75%") {
		t.Errorf("summary missing completion rate: %q", summary)
	}
}

func TestComposeWithoutSprint(t *testing.T) {
	p := Compose(nil, nil, nil)
	if p.Title != "Sprint Review" {
		t.Errorf("title = %q", p.Title)
	}
	if len(p.Slides) != 4 {
		t.Errorf("slides = %d, want 4 (no demo stories)", len(p.Slides))
	}
	if p.Slides[2].Fields != nil {
		t.Errorf("metrics fields = %v, want nil without sprint facts", p.Slides[2].Fields)
	}
}
