package metrics

import (
	"time"

	"github.com/kiracore/leadcycle/internal/ticket"
)

// Extract returns the oldest (oldest=true) or newest transition into label.
// Labels match exactly and case-sensitively. ok is false when the ticket never
// entered the state, including when it has no history.
func Extract(t ticket.Ticket, label string, oldest bool) (at time.Time, ok bool) {
	for _, tr := range t.Transitions {
		if tr.Label != label {
			continue
		}
		if !ok {
			at, ok = tr.At, true
			continue
		}
		if oldest && tr.At.Before(at) {
			at = tr.At
		} else if !oldest && tr.At.After(at) {
			at = tr.At
		}
	}
	return at, ok
}

// Oldest returns the first time the ticket entered label
func Oldest(t ticket.Ticket, label string) (time.Time, bool) {
	return Extract(t, label, true)
}

// Newest returns the most recent time the ticket entered label
func Newest(t ticket.Ticket, label string) (time.Time, bool) {
	return Extract(t, label, false)
}
