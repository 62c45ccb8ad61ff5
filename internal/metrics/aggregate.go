package metrics

import (
	"errors"
	"math"

	"github.com/kiracore/leadcycle/internal/ticket"
)

// ErrEmptyInput is returned when there are no tickets to average over
var ErrEmptyInput = errors.New("no matching tickets")

const (
	DefaultStartLabel = "In Progress"
	DefaultDoneLabel  = "Done"
)

// Options controls which states mark start and completion of work
type Options struct {
	StartLabel string
	DoneLabel  string

	// DivideByQualifying averages over qualifying tickets only.
	// The default divides by every ticket passed in.
	DivideByQualifying bool
}

// Result holds the aggregate lead and cycle time for one pass
type Result struct {
	LeadTimeDays  float64 `json:"avg_lead_time_days"`
	CycleTimeDays float64 `json:"avg_cycle_time_days"`

	Total       int      `json:"total"`
	Qualifying  int      `json:"qualifying"`
	Skipped     int      `json:"skipped"`
	SkippedKeys []string `json:"skipped_keys,omitempty"`
}

// Aggregate computes average lead time (completion - creation) and cycle time
// (completion - start of work) in days.
//
// A ticket contributes only when it has both a start and a completion
// transition. Tickets that reached done without ever being in progress are
// counted as skipped. Unless DivideByQualifying is set, skipped tickets still
// count in the divisor, so the averages are spread over the whole population.
func Aggregate(tickets []ticket.Ticket, opts Options) (Result, error) {
	if len(tickets) == 0 {
		return Result{}, ErrEmptyInput
	}
	if opts.StartLabel == "" {
		opts.StartLabel = DefaultStartLabel
	}
	if opts.DoneLabel == "" {
		opts.DoneLabel = DefaultDoneLabel
	}

	res := Result{Total: len(tickets)}

	// float64 seconds; a time.Duration sum wraps at ~292 years of total time
	var leadSeconds, cycleSeconds float64

	for _, t := range tickets {
		started, okStart := Oldest(t, opts.StartLabel)
		completed, okDone := Newest(t, opts.DoneLabel)
		if !okStart || !okDone {
			res.Skipped++
			res.SkippedKeys = append(res.SkippedKeys, t.Key)
			continue
		}

		leadSeconds += completed.Sub(t.Created).Seconds()
		cycleSeconds += completed.Sub(started).Seconds()
		res.Qualifying++
	}

	divisor := res.Total
	if opts.DivideByQualifying {
		divisor = res.Qualifying
	}
	if divisor > 0 {
		res.LeadTimeDays = days(leadSeconds) / float64(divisor)
		res.CycleTimeDays = days(cycleSeconds) / float64(divisor)
	}

	return res, nil
}

const secondsPerDay = 24 * 60 * 60

func days(seconds float64) float64 {
	return seconds / secondsPerDay
}

// Round1 rounds to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
