package model

import "time"

// Issue is a normalized issue-tracker record. The tracker client maps
// provider payloads into this shape; the pipeline treats it as plain data.
type Issue struct {
	Key         string   `json:"key"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Type        string   `json:"type,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	StoryPoints float64  `json:"story_points,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Sprint is a normalized sprint record.
type Sprint struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Goal      string    `json:"goal,omitempty"`
	StartDate time.Time `json:"start_date,omitempty"`
	EndDate   time.Time `json:"end_date,omitempty"`
}

// SprintMetrics carries the user-edited metrics for a sprint review.
// Quality checklist values are free-form label -> rating entries.
type SprintMetrics struct {
	PlannedPoints   float64           `json:"planned_points"`
	CompletedPoints float64           `json:"completed_points"`
	IssuesPlanned   int               `json:"issues_planned"`
	IssuesCompleted int               `json:"issues_completed"`
	TestCoverage    float64           `json:"test_coverage,omitempty"`
	Quality         map[string]string `json:"quality,omitempty"`
}

// CompletionRate returns completed/planned points as a percentage,
// or 0 when nothing was planned.
func (m *SprintMetrics) CompletionRate() float64 {
	if m == nil || m.PlannedPoints <= 0 {
		return 0
	}
	return m.CompletedPoints / m.PlannedPoints * 100
}
