package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no run matches an id
var ErrRunNotFound = errors.New("run not found")

// fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// now is replaced in tests
var now = func() time.Time { return time.Now().UTC() }

// RecordRunStart inserts r as a running run, assigning its id and start time
func (db *DB) RecordRunStart(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Status = StatusRunning
	r.StartedAt = now()

	_, err := db.Exec(`INSERT INTO report_runs
		(id, project, window_kind, window_spec, window_label, period_start, period_end, jql, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Project, r.WindowKind, r.WindowSpec, r.WindowLabel,
		formatTime(r.PeriodStart), formatTime(r.PeriodEnd), r.JQL,
		r.Status, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordRunComplete stores the final metrics of a run
func (db *DB) RecordRunComplete(id string, o Outcome) error {
	res, err := db.Exec(`UPDATE report_runs SET
		status = ?, tickets = ?, qualifying = ?, skipped = ?,
		lead_time_days = ?, cycle_time_days = ?, report_path = ?, completed_at = ?
		WHERE id = ?`,
		StatusCompleted, o.Tickets, o.Qualifying, o.Skipped,
		o.LeadTimeDays, o.CycleTimeDays, nullString(o.ReportPath), formatTime(now()), id)
	if err != nil {
		return fmt.Errorf("failed to record run completion: %w", err)
	}
	return expectOne(res, id)
}

// RecordRunFailed marks a run as failed with the error that ended it
func (db *DB) RecordRunFailed(id string, runErr error) error {
	msg := "unknown error"
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := db.Exec(`UPDATE report_runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		StatusFailed, msg, formatTime(now()), id)
	if err != nil {
		return fmt.Errorf("failed to record run failure: %w", err)
	}
	return expectOne(res, id)
}

// RunFilter narrows ListRuns
type RunFilter struct {
	Project string
	Status  string
	Limit   int
}

const runColumns = `id, project, window_kind, window_spec, window_label, period_start, period_end, jql,
	status, tickets, qualifying, skipped, lead_time_days, cycle_time_days,
	report_path, error_message, started_at, completed_at`

// ListRuns returns runs newest first
func (db *DB) ListRuns(f RunFilter) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM report_runs"
	var where []string
	var args []interface{}

	if f.Project != "" {
		where = append(where, "project = ?")
		args = append(args, f.Project)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns the run with id, accepting any unique id prefix
func (db *DB) GetRun(id string) (*Run, error) {
	// literal prefix match; % and _ are not wildcards
	rows, err := db.Query("SELECT "+runColumns+" FROM report_runs WHERE substr(id, 1, length(?)) = ? LIMIT 2", id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// GetProjectTrends returns per-window averages over completed runs
func (db *DB) GetProjectTrends(project string) ([]ProjectTrend, error) {
	query := `SELECT project, window_spec, runs, avg_lead_time_days, avg_cycle_time_days, last_run_at
		FROM project_trend`
	var args []interface{}
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY project, window_spec"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []ProjectTrend
	for rows.Next() {
		var t ProjectTrend
		var lead, cycle sql.NullFloat64
		if err := rows.Scan(&t.Project, &t.WindowSpec, &t.Runs, &lead, &cycle, &t.LastRunAt); err != nil {
			return nil, err
		}
		t.AvgLeadTimeDays = lead.Float64
		t.AvgCycleTimeDays = cycle.Float64
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var periodStart, periodEnd, reportPath, errMsg, completedAt sql.NullString
	var lead, cycle sql.NullFloat64
	var startedAt string

	err := s.Scan(&r.ID, &r.Project, &r.WindowKind, &r.WindowSpec, &r.WindowLabel,
		&periodStart, &periodEnd, &r.JQL,
		&r.Status, &r.Tickets, &r.Qualifying, &r.Skipped, &lead, &cycle,
		&reportPath, &errMsg, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	r.ReportPath = reportPath.String
	r.ErrorMessage = errMsg.String
	r.LeadTimeDays = lead.Float64
	r.CycleTimeDays = cycle.Float64

	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("run %s: %w", r.ID, err)
	}
	if periodStart.Valid {
		r.PeriodStart, _ = parseTime(periodStart.String)
	}
	if periodEnd.Valid {
		r.PeriodEnd, _ = parseTime(periodEnd.String)
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err == nil {
			r.CompletedAt = &t
		}
	}
	return &r, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
