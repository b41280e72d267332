package report

import (
	"strings"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// DeriveMetrics computes sprint metrics from tracker issues: planned
// covers every issue in the sprint, completed only those in a done
// status. Callers may overwrite any field before composing the report.
func DeriveMetrics(issues []model.Issue) *model.SprintMetrics {
	m := &model.SprintMetrics{IssuesPlanned: len(issues)}
	for _, is := range issues {
		m.PlannedPoints += is.StoryPoints
		if doneStatuses[strings.ToLower(is.Status)] {
			m.IssuesCompleted++
			m.CompletedPoints += is.StoryPoints
		}
	}
	return m
}
