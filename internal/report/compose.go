// Package report assembles a sprint-review presentation from tracker
// data and user-edited metrics. Composition is pure data shaping; the
// render package decides how slides look per format.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// doneStatuses are the tracker states treated as delivered work.
var doneStatuses = map[string]bool{
	"done":     true,
	"closed":   true,
	"resolved": true,
}

// Compose builds a presentation for one sprint: a title slide, a
// summary, the metrics slide, one demo-story slide per delivered issue,
// and a closing slide.
func Compose(sprint *model.Sprint, issues []model.Issue, metrics *model.SprintMetrics) *model.Presentation {
	name := "Sprint Review"
	sprintName := ""
	if sprint != nil {
		name = fmt.Sprintf("%s Review", sprint.Name)
		sprintName = sprint.Name
	}

	p := &model.Presentation{
		ID:         uuid.NewString(),
		Title:      name,
		SprintName: sprintName,
		CreatedAt:  time.Now().UTC(),
	}

	order := 0
	add := func(s model.Slide) {
		s.Order = order
		order++
		p.Slides = append(p.Slides, s)
	}

	add(model.Slide{
		Kind:    model.SlideTitle,
		Title:   name,
		Content: sprintGoal(sprint),
	})
	add(model.Slide{
		Kind:    model.SlideSummary,
		Title:   "Sprint Summary",
		Content: summaryText(sprint, issues, metrics),
	})
	add(model.Slide{
		Kind:   model.SlideMetrics,
		Title:  "Sprint Metrics",
		Fields: metricsFields(sprint),
	})
	for _, is := range issues {
		if !doneStatuses[strings.ToLower(is.Status)] {
			continue
		}
		add(model.Slide{
			Kind:     model.SlideDemoStory,
			Title:    fmt.Sprintf("Demo: %s", is.Summary),
			IssueKey: is.Key,
		})
	}
	add(model.Slide{
		Kind:    model.SlideCorporate,
		Title:   "Thank You",
		Content: "Questions and feedback welcome.",
	})

	return p
}

func sprintGoal(sprint *model.Sprint) string {
	if sprint == nil || sprint.Goal == "" {
		return ""
	}
	return "Goal: " + sprint.Goal
}

func summaryText(sprint *model.Sprint, issues []model.Issue, metrics *model.SprintMetrics) string {
	done := 0
	for _, is := range issues {
		if doneStatuses[strings.ToLower(is.Status)] {
			done++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Delivered %d of %d issues this sprint.", done, len(issues))
	if metrics != nil && metrics.PlannedPoints > 0 {
		fmt.Fprintf(&b, " Completed %.1f of %.1f story points (%.0f%%).",
			metrics.CompletedPoints, metrics.PlannedPoints, metrics.CompletionRate())
	}
	if sprint != nil && !sprint.EndDate.IsZero() {
		fmt.Fprintf(&b, " Sprint ended %s.", sprint.EndDate.Format("January 2, 2006"))
	}
	return b.String()
}

// metricsFields carries sprint-level facts the renderers print next to
// the numeric metrics they receive separately.
func metricsFields(sprint *model.Sprint) map[string]string {
	if sprint == nil {
		return nil
	}
	fields := make(map[string]string)
	if !sprint.StartDate.IsZero() && !sprint.EndDate.IsZero() {
		fields["Duration"] = fmt.Sprintf("%s to %s",
			sprint.StartDate.Format("Jan 2"), sprint.EndDate.Format("Jan 2"))
	}
	if sprint.State != "" {
		fields["State"] = sprint.State
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
