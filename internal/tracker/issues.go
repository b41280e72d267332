package tracker

import (
	"context"
	"fmt"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// issuePage mirrors GET /rest/agile/1.0/sprint/{id}/issue.
type issuePage struct {
	Issues     []issueEntry `json:"issues"`
	Total      int          `json:"total"`
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
}

type issueEntry struct {
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Labels      []string   `json:"labels"`
	Status      namedField `json:"status"`
	IssueType   namedField `json:"issuetype"`
	Priority    namedField `json:"priority"`
	Assignee    struct {
		DisplayName string `json:"displayName"`
	} `json:"assignee"`
	// Story points live in a site-configurable custom field; this is
	// the common cloud default.
	StoryPoints float64 `json:"customfield_10016"`
}

type namedField struct {
	Name string `json:"name"`
}

// FetchSprintIssues returns every issue assigned to a sprint.
func (c *Client) FetchSprintIssues(ctx context.Context, sprintID int) ([]model.Issue, error) {
	var out []model.Issue
	startAt := 0
	for {
		var page issuePage
		path := fmt.Sprintf("/rest/agile/1.0/sprint/%d/issue?startAt=%d", sprintID, startAt)
		if err := c.get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("fetching issues for sprint %d: %w", sprintID, err)
		}
		for _, e := range page.Issues {
			out = append(out, normalizeIssue(e))
		}
		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			return out, nil
		}
	}
}

func normalizeIssue(e issueEntry) model.Issue {
	return model.Issue{
		Key:         e.Key,
		Summary:     e.Fields.Summary,
		Description: e.Fields.Description,
		Status:      e.Fields.Status.Name,
		Type:        e.Fields.IssueType.Name,
		Priority:    e.Fields.Priority.Name,
		Assignee:    e.Fields.Assignee.DisplayName,
		StoryPoints: e.Fields.StoryPoints,
		Labels:      e.Fields.Labels,
		URL:         e.Self,
	}
}
