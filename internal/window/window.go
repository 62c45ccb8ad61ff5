package window

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxMonthsAgo bounds how far back a month range may start
const MaxMonthsAgo = 12

// ErrInvalidWindow is returned for windows that violate their bounds
var ErrInvalidWindow = errors.New("invalid report window")

// Kind identifies the window variant
type Kind int

const (
	KindAdHocDays Kind = iota + 1
	KindPriorMonth
	KindMonthRange
)

func (k Kind) String() string {
	switch k {
	case KindAdHocDays:
		return "adhoc"
	case KindPriorMonth:
		return "monthly"
	case KindMonthRange:
		return "range"
	default:
		return "unknown"
	}
}

// Window is the resolved time range a report covers. The zero value is not
// valid; use AdHocDays, PriorMonth, MonthRange or Parse.
type Window struct {
	kind       Kind
	days       int
	startMonth int // whole months before the current one
	endMonth   int
}

// AdHocDays covers the trailing n days up to the end of today
func AdHocDays(n int) (Window, error) {
	if n < 1 {
		return Window{}, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidWindow, n)
	}
	return Window{kind: KindAdHocDays, days: n}, nil
}

// PriorMonth covers the whole calendar month before the current one
func PriorMonth() Window {
	return Window{kind: KindPriorMonth, startMonth: 1, endMonth: 1}
}

// MonthRange covers whole months from start months ago through end months ago.
// Requires 0 <= end <= start <= 12; arguments are never swapped.
func MonthRange(start, end int) (Window, error) {
	if end < 0 || start > MaxMonthsAgo || start < end {
		return Window{}, fmt.Errorf("%w: month range must satisfy 0 <= end <= start <= %d, got start=%d end=%d",
			ErrInvalidWindow, MaxMonthsAgo, start, end)
	}
	return Window{kind: KindMonthRange, startMonth: start, endMonth: end}, nil
}

// Parse reads "days:N", "prior-month" or "months:START-END"
func Parse(s string) (Window, error) {
	s = strings.TrimSpace(strings.ToLower(s))

	switch {
	case s == "prior-month" || s == "monthly":
		return PriorMonth(), nil

	case strings.HasPrefix(s, "days:"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "days:"))
		if err != nil {
			return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, s, err)
		}
		return AdHocDays(n)

	case strings.HasPrefix(s, "months:"):
		parts := strings.SplitN(strings.TrimPrefix(s, "months:"), "-", 2)
		if len(parts) != 2 {
			return Window{}, fmt.Errorf("%w: %q: expected months:START-END", ErrInvalidWindow, s)
		}
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, s, err)
		}
		end, err := strconv.Atoi(parts[1])
		if err != nil {
			return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, s, err)
		}
		return MonthRange(start, end)
	}

	return Window{}, fmt.Errorf("%w: %q (use days:N, prior-month or months:START-END)", ErrInvalidWindow, s)
}

// Kind returns the window variant
func (w Window) Kind() Kind { return w.kind }

// Days returns the trailing day count for ad-hoc windows
func (w Window) Days() int { return w.days }

// Months returns how many months ago the range starts and ends
func (w Window) Months() (start, end int) { return w.startMonth, w.endMonth }

// IsZero reports whether the window was never constructed
func (w Window) IsZero() bool { return w.kind == 0 }

func (w Window) String() string {
	switch w.kind {
	case KindAdHocDays:
		return fmt.Sprintf("last %d days", w.days)
	case KindPriorMonth:
		return "prior month"
	case KindMonthRange:
		return fmt.Sprintf("%d to %d months ago", w.startMonth, w.endMonth)
	default:
		return "unset"
	}
}

// Spec returns the Parse form of the window
func (w Window) Spec() string {
	switch w.kind {
	case KindAdHocDays:
		return fmt.Sprintf("days:%d", w.days)
	case KindPriorMonth:
		return "prior-month"
	case KindMonthRange:
		return fmt.Sprintf("months:%d-%d", w.startMonth, w.endMonth)
	default:
		return ""
	}
}

// Clause renders the window as a JQL filter on field (usually "resolved")
func (w Window) Clause(field string) string {
	switch w.kind {
	case KindAdHocDays:
		return fmt.Sprintf("%s >= startOfDay(-%d) AND %s <= endOfDay()", field, w.days, field)
	case KindPriorMonth, KindMonthRange:
		return fmt.Sprintf("%s >= startOfMonth(%s) AND %s <= endOfMonth(%s)",
			field, offset(w.startMonth), field, offset(w.endMonth))
	default:
		return ""
	}
}

func offset(months int) string {
	if months == 0 {
		return ""
	}
	return fmt.Sprintf("-%d", months)
}

// Bounds resolves the window against now, in now's location.
// End is the last instant inside the window.
func (w Window) Bounds(now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	loc := now.Location()

	switch w.kind {
	case KindAdHocDays:
		start = time.Date(y, m, d-w.days, 0, 0, 0, 0, loc)
		end = time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
	case KindPriorMonth, KindMonthRange:
		start = time.Date(y, m-time.Month(w.startMonth), 1, 0, 0, 0, 0, loc)
		end = time.Date(y, m-time.Month(w.endMonth)+1, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
	}
	return start, end
}
