package db

import "time"

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one invocation of the report command
type Run struct {
	ID      string `json:"id"`
	Project string `json:"project"`

	WindowKind  string    `json:"window_kind"`
	WindowSpec  string    `json:"window_spec"`
	WindowLabel string    `json:"window_label"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	JQL         string    `json:"jql"`

	Status string `json:"status"`

	Tickets       int     `json:"tickets"`
	Qualifying    int     `json:"qualifying"`
	Skipped       int     `json:"skipped"`
	LeadTimeDays  float64 `json:"lead_time_days"`
	CycleTimeDays float64 `json:"cycle_time_days"`

	ReportPath   string     `json:"report_path,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running
func (r Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Outcome is what a completed run produced
type Outcome struct {
	Tickets       int
	Qualifying    int
	Skipped       int
	LeadTimeDays  float64
	CycleTimeDays float64
	ReportPath    string
}

// ProjectTrend is one row of the project_trend view
type ProjectTrend struct {
	Project          string  `json:"project"`
	WindowSpec       string  `json:"window_spec"`
	Runs             int     `json:"runs"`
	AvgLeadTimeDays  float64 `json:"avg_lead_time_days"`
	AvgCycleTimeDays float64 `json:"avg_cycle_time_days"`
	LastRunAt        string  `json:"last_run_at"`
}
