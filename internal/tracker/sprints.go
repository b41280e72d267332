package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// sprintPage mirrors GET /rest/agile/1.0/board/{id}/sprint.
type sprintPage struct {
	Values []sprintEntry `json:"values"`
	IsLast bool          `json:"isLast"`
}

type sprintEntry struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Goal      string `json:"goal"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// FetchSprints returns every sprint on a board, newest state first per
// the tracker's ordering. Dates the tracker omits stay zero-valued.
func (c *Client) FetchSprints(ctx context.Context, boardID int) ([]model.Sprint, error) {
	var out []model.Sprint
	startAt := 0
	for {
		var page sprintPage
		path := fmt.Sprintf("/rest/agile/1.0/board/%d/sprint?startAt=%d", boardID, startAt)
		if err := c.get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("fetching sprints for board %d: %w", boardID, err)
		}
		for _, e := range page.Values {
			out = append(out, normalizeSprint(e))
		}
		if page.IsLast || len(page.Values) == 0 {
			return out, nil
		}
		startAt += len(page.Values)
	}
}

// FetchActiveSprint returns the board's single active sprint, or an
// error when none is running.
func (c *Client) FetchActiveSprint(ctx context.Context, boardID int) (*model.Sprint, error) {
	var page sprintPage
	path := fmt.Sprintf("/rest/agile/1.0/board/%d/sprint?state=active", boardID)
	if err := c.get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("fetching active sprint for board %d: %w", boardID, err)
	}
	if len(page.Values) == 0 {
		return nil, fmt.Errorf("board %d has no active sprint", boardID)
	}
	s := normalizeSprint(page.Values[0])
	return &s, nil
}

func normalizeSprint(e sprintEntry) model.Sprint {
	return model.Sprint{
		ID:        e.ID,
		Name:      e.Name,
		State:     e.State,
		Goal:      e.Goal,
		StartDate: parseTrackerTime(e.StartDate),
		EndDate:   parseTrackerTime(e.EndDate),
	}
}

// parseTrackerTime accepts the tracker's timestamp variants and returns
// the zero time for anything unparseable.
func parseTrackerTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
