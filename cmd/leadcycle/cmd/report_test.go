package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiracore/leadcycle/internal/config"
	"github.com/kiracore/leadcycle/internal/db"
	"github.com/kiracore/leadcycle/internal/jira"
	"github.com/kiracore/leadcycle/internal/prompt"
	"github.com/kiracore/leadcycle/internal/report"
	"github.com/kiracore/leadcycle/internal/ticket"
	"github.com/kiracore/leadcycle/internal/window"
)

type fakeSearcher struct {
	tickets []ticket.Ticket
	err     error
	jql     []string
}

func (f *fakeSearcher) Search(_ context.Context, req jira.SearchRequest) (*jira.SearchPage, error) {
	f.jql = append(f.jql, req.JQL)
	if f.err != nil {
		return nil, f.err
	}
	page := &jira.SearchPage{Total: len(f.tickets), StartAt: req.StartAt, MaxResults: req.MaxResults}
	if req.MaxResults > 0 && req.StartAt < len(f.tickets) {
		end := min(req.StartAt+req.MaxResults, len(f.tickets))
		page.Tickets = f.tickets[req.StartAt:end]
	}
	return page, nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func sampleTickets() []ticket.Ticket {
	return []ticket.Ticket{
		{
			Key:        "FOO-1",
			Created:    day(1),
			Summary:    "Fix login",
			IssueType:  "Bug",
			HasHistory: true,
			Transitions: []ticket.Transition{
				{Label: "In Progress", At: day(3)},
				{Label: "Done", At: day(11)},
			},
		},
		{
			Key:         "FOO-2",
			Created:     day(2),
			Summary:     "Straight to done",
			IssueType:   "Story",
			HasHistory:  true,
			Transitions: []ticket.Transition{{Label: "Done", At: day(4)}},
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Jira.URL = "https://example.atlassian.net"
	cfg.Jira.Username = "alice@example.com"
	cfg.Jira.Token = "secret"
	cfg.Query.Project = "FOO"
	cfg.Report.Output = filepath.Join(t.TempDir(), "out", report.DefaultFileName)
	return cfg
}

func testStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPipeline_DryRun(t *testing.T) {
	cfg := testConfig(t)
	w, err := window.AdHocDays(30)
	require.NoError(t, err)

	var out bytes.Buffer
	searcher := &fakeSearcher{}
	p := pipeline{
		cfg:      cfg,
		sel:      prompt.Selection{Window: w, GenerateReport: true},
		out:      &out,
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		dryRun:   true,
		searcher: searcher,
	}
	require.NoError(t, p.run(context.Background()))

	assert.Contains(t, out.String(), "[DRY RUN] Window: last 30 days (2024-01-31 to 2024-03-01)")
	assert.Contains(t, out.String(), "resolved >= startOfDay(-30) AND resolved <= endOfDay()")
	assert.Contains(t, out.String(), "Would write report to "+cfg.Report.Output)
	assert.Empty(t, searcher.jql, "dry run must not call Jira")
	assert.NoFileExists(t, cfg.Report.Output)
}

func TestPipeline_WritesReportAndRecordsRun(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t)

	var out bytes.Buffer
	p := pipeline{
		cfg:      cfg,
		sel:      prompt.Selection{Window: window.PriorMonth(), GenerateReport: true},
		out:      &out,
		format:   "table",
		now:      time.Now(),
		store:    store,
		searcher: &fakeSearcher{tickets: sampleTickets()},
	}
	require.NoError(t, p.run(context.Background()))

	// FOO-1: lead 10 days, cycle 8 days; FOO-2 skipped but still in the divisor
	assert.Contains(t, out.String(), "5.0 days")
	assert.Contains(t, out.String(), "4.0 days")
	assert.Contains(t, out.String(), "Skipped 1 issue(s).")
	assert.Contains(t, out.String(), "Report written to "+cfg.Report.Output)

	f, err := os.Open(cfg.Report.Output)
	require.NoError(t, err)
	defer f.Close()
	lead, cycle, err := report.ReadAverages(f)
	require.NoError(t, err)
	assert.Equal(t, 5.0, lead)
	assert.Equal(t, 4.0, cycle)

	runs, err := store.ListRuns(db.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.StatusCompleted, runs[0].Status)
	assert.Equal(t, "FOO", runs[0].Project)
	assert.Equal(t, "prior-month", runs[0].WindowSpec)
	assert.Equal(t, 2, runs[0].Tickets)
	assert.Equal(t, 1, runs[0].Skipped)
	assert.InDelta(t, 5.0, runs[0].LeadTimeDays, 1e-9)
	assert.Equal(t, cfg.Report.Output, runs[0].ReportPath)
}

func TestPipeline_DivideByQualifying(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.DivideByQualifying = true

	var out bytes.Buffer
	p := pipeline{
		cfg:      cfg,
		sel:      prompt.Selection{Window: window.PriorMonth()},
		out:      &out,
		format:   "json",
		now:      time.Now(),
		searcher: &fakeSearcher{tickets: sampleTickets()},
	}
	require.NoError(t, p.run(context.Background()))

	assert.Contains(t, out.String(), `"avg_lead_time_days": 10`)
	assert.Contains(t, out.String(), `"avg_cycle_time_days": 8`)
	assert.NotContains(t, out.String(), "report_path")
	assert.NoFileExists(t, cfg.Report.Output)
}

func TestPipeline_RetrievalFailure(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t)

	p := pipeline{
		cfg:      cfg,
		sel:      prompt.Selection{Window: window.PriorMonth(), GenerateReport: true},
		out:      &bytes.Buffer{},
		now:      time.Now(),
		store:    store,
		searcher: &fakeSearcher{err: &jira.StatusError{Code: 401, Body: "unauthorized"}},
	}
	err := p.run(context.Background())
	require.Error(t, err)

	var rerr *jira.RetrievalError
	assert.True(t, errors.As(err, &rerr))
	assert.NoFileExists(t, cfg.Report.Output)

	runs, err := store.ListRuns(db.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "401")
}

func TestPipeline_NoTickets(t *testing.T) {
	cfg := testConfig(t)

	p := pipeline{
		cfg:      cfg,
		sel:      prompt.Selection{Window: window.PriorMonth(), GenerateReport: true},
		out:      &bytes.Buffer{},
		now:      time.Now(),
		searcher: &fakeSearcher{},
	}
	err := p.run(context.Background())
	assert.ErrorContains(t, err, "no matching tickets for prior month")
	assert.NoFileExists(t, cfg.Report.Output)
}

func TestJiraFields(t *testing.T) {
	got := jiraFields([]string{
		"key",
		"fields.summary",
		"fields.resolutiondate",
		"fields.status.statusCategory.name",
		"fields.customfield_10010.value",
		"fields.resolutiondate",
	})
	assert.Equal(t, []string{"created", "summary", "issuetype", "status", "resolutiondate", "customfield_10010"}, got)
}

func resetWindowFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		windowSpec, reportDays, priorMonth = "", 0, false
		monthsStart, monthsEnd = -1, -1
		interactive = false
	}
	reset()
	t.Cleanup(reset)
}

func TestSelectWindow_Flags(t *testing.T) {
	tests := []struct {
		name    string
		set     func()
		want    string
		wantErr string
	}{
		{name: "window spec", set: func() { windowSpec = "days:90" }, want: "days:90"},
		{name: "days", set: func() { reportDays = 180 }, want: "days:180"},
		{name: "prior month", set: func() { priorMonth = true }, want: "prior-month"},
		{name: "month range", set: func() { monthsStart, monthsEnd = 3, 1 }, want: "months:3-1"},
		{name: "inverted range", set: func() { monthsStart, monthsEnd = 1, 3 }, wantErr: "invalid"},
		{name: "half range", set: func() { monthsStart = 3 }, wantErr: "must be used together"},
		{name: "conflict", set: func() { windowSpec = "days:30"; priorMonth = true }, wantErr: "choose one of"},
		{name: "bad spec", set: func() { windowSpec = "weeks:2" }, wantErr: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetWindowFlags(t)
			tt.set()

			sel, err := selectWindow(strings.NewReader(""), &bytes.Buffer{})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.Window.Spec())
			assert.True(t, sel.GenerateReport)
		})
	}
}

func TestSelectWindow_NonInteractiveWithoutWindow(t *testing.T) {
	resetWindowFlags(t)

	_, err := selectWindow(strings.NewReader("1\n"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "no report window given")
}

func TestSelectWindow_Interactive(t *testing.T) {
	resetWindowFlags(t)
	interactive = true

	var out bytes.Buffer
	sel, err := selectWindow(strings.NewReader("4\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, window.KindPriorMonth, sel.Window.Kind())
	assert.False(t, sel.GenerateReport)
	assert.NotEmpty(t, out.String())
}
