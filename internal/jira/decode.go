package jira

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kiracore/leadcycle/internal/ticket"
)

// Layouts accepted for Jira timestamps, most common first
var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseTime parses a timestamp in any layout Jira is known to emit
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

type searchResponse struct {
	Total      *int              `json:"total"`
	StartAt    int               `json:"startAt"`
	MaxResults int               `json:"maxResults"`
	Issues     []json.RawMessage `json:"issues"`
}

type rawIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Created   string `json:"created"`
		Summary   string `json:"summary"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Status struct {
			StatusCategory struct {
				Name string `json:"name"`
			} `json:"statusCategory"`
		} `json:"status"`
	} `json:"fields"`
	Changelog *struct {
		Total     *int         `json:"total"`
		Histories []rawHistory `json:"histories"`
	} `json:"changelog"`
}

type rawHistory struct {
	Created string `json:"created"`
	Items   []struct {
		Field    string  `json:"field"`
		ToString *string `json:"toString"`
	} `json:"items"`
}

// decodePage turns a search response body into a page of tickets
func decodePage(body []byte) (*SearchPage, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if resp.Total == nil {
		return nil, ErrMissingTotal
	}

	page := &SearchPage{
		Total:      *resp.Total,
		StartAt:    resp.StartAt,
		MaxResults: resp.MaxResults,
		Tickets:    make([]ticket.Ticket, 0, len(resp.Issues)),
	}
	for i, raw := range resp.Issues {
		t, err := decodeIssue(raw)
		if err != nil {
			return nil, fmt.Errorf("issue %d: %w", resp.StartAt+i, err)
		}
		page.Tickets = append(page.Tickets, t)
	}
	return page, nil
}

func decodeIssue(raw json.RawMessage) (ticket.Ticket, error) {
	var ri rawIssue
	if err := json.Unmarshal(raw, &ri); err != nil {
		return ticket.Ticket{}, err
	}
	if ri.Key == "" {
		return ticket.Ticket{}, fmt.Errorf("issue has no key")
	}

	created, err := ParseTime(ri.Fields.Created)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("%s: created: %w", ri.Key, err)
	}

	t := ticket.Ticket{
		Key:            ri.Key,
		Created:        created,
		Summary:        ri.Fields.Summary,
		IssueType:      ri.Fields.IssueType.Name,
		StatusCategory: ri.Fields.Status.StatusCategory.Name,
		Raw:            raw,
	}

	if ri.Changelog == nil || ri.Changelog.Histories == nil {
		return t, nil
	}
	t.HasHistory = true
	// expand=changelog is capped per issue; the newest entries may be cut off
	if total := ri.Changelog.Total; total != nil && *total > len(ri.Changelog.Histories) {
		t.HistoryTruncated = true
	}

	for _, h := range ri.Changelog.Histories {
		at, err := ParseTime(h.Created)
		if err != nil {
			// an undatable change cannot be ordered, so it cannot be a start or completion
			continue
		}
		for _, item := range h.Items {
			if item.ToString == nil || *item.ToString == "" {
				continue
			}
			t.Transitions = append(t.Transitions, ticket.Transition{Label: *item.ToString, At: at})
		}
	}
	return t, nil
}
