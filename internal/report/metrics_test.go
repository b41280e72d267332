package report

import (
	"testing"

	"github.com/nbrem108/sprintdeck/internal/model"
)

func TestDeriveMetrics(t *testing.T) {
	issues := []model.Issue{
		{Key: "SD-1", Status: "Done", StoryPoints: 5},
		{Key: "SD-2", Status: "Resolved", StoryPoints: 3},
		{Key: "SD-3", Status: "In Progress", StoryPoints: 8},
		{Key: "SD-4", Status: "To Do"},
	}

	m := DeriveMetrics(issues)

	if m.IssuesPlanned != 4 {
		t.Errorf("IssuesPlanned = %d, want 4", m.IssuesPlanned)
	}
	if m.IssuesCompleted != 2 {
		t.Errorf("IssuesCompleted = %d, want 2", m.IssuesCompleted)
	}
	if m.PlannedPoints != 16 {
		t.Errorf("PlannedPoints = %v, want 16", m.PlannedPoints)
	}
	if m.CompletedPoints != 8 {
		t.Errorf("CompletedPoints = %v, want 8", m.CompletedPoints)
	}
	if got := m.CompletionRate(); got != 50 {
		t.Errorf("CompletionRate = %v, want 50", got)
	}
}

func TestDeriveMetricsEmpty(t *testing.T) {
	m := DeriveMetrics(nil)
	if m.IssuesPlanned != 0 || m.PlannedPoints != 0 {
		t.Errorf("metrics = %+v, want zeroes", m)
	}
	if m.CompletionRate() != 0 {
		t.Errorf("CompletionRate = %v, want 0", m.CompletionRate())
	}
}
