package ticket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedHistory marks a ticket whose source record carried no changelog.
// It is recoverable: such a ticket simply has no transitions.
var ErrMalformedHistory = errors.New("ticket history missing")

// Transition is one recorded status change
type Transition struct {
	Label string    `json:"label"` // target state, e.g. "In Progress"
	At    time.Time `json:"at"`
}

// Ticket is an issue-tracker record with its transition history.
// Transitions keep the order returned by the source and are not assumed sorted.
type Ticket struct {
	Key            string       `json:"key"`
	Created        time.Time    `json:"created"`
	Summary        string       `json:"summary"`
	IssueType      string       `json:"issue_type"`
	StatusCategory string       `json:"status_category"`
	Transitions    []Transition `json:"transitions"`

	// HasHistory is false when the record had no changelog section at all
	HasHistory bool `json:"has_history"`

	// HistoryTruncated is set when the source returned fewer history entries than it holds
	HistoryTruncated bool `json:"history_truncated,omitempty"`

	// Raw is the record as received, used for field-filtered report output
	Raw json.RawMessage `json:"-"`
}

// CheckHistory reports ErrMalformedHistory for tickets without a changelog
func (t Ticket) CheckHistory() error {
	if !t.HasHistory {
		return fmt.Errorf("%s: %w", t.Key, ErrMalformedHistory)
	}
	return nil
}
