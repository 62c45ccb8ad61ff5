package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiracore/leadcycle/internal/config"
	"github.com/kiracore/leadcycle/internal/db"
	"github.com/kiracore/leadcycle/internal/jira"
	"github.com/kiracore/leadcycle/internal/metrics"
	"github.com/kiracore/leadcycle/internal/paths"
	"github.com/kiracore/leadcycle/internal/prompt"
	"github.com/kiracore/leadcycle/internal/report"
	"github.com/kiracore/leadcycle/internal/window"
)

var (
	windowSpec    string
	reportDays    int
	priorMonth    bool
	monthsStart   int
	monthsEnd     int
	noReport      bool
	reportOutput  string
	reportProject string
	interactive   bool
	noHistory     bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute lead and cycle time for a report window",
	Long: `Fetch every ticket completed in the report window, compute average lead
and cycle time, print a summary and write the tickets to a CSV report.

Windows:
  days:N           the N days up to today (30, 90, 180 are common)
  prior-month      the previous calendar month
  months:S-E       from S months ago through E months ago (0 <= E <= S <= 12)

Without a window flag the interactive menu is shown when stdin is a terminal.

Examples:
  leadcycle report --window days:90
  leadcycle report --prior-month --no-report
  leadcycle report --months-start 11 --months-end 1 -o q4.csv
  leadcycle report --window days:30 --dry-run`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&windowSpec, "window", "w", "", "report window (days:N, prior-month, months:S-E)")
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "report on the N days up to today")
	reportCmd.Flags().BoolVar(&priorMonth, "prior-month", false, "report on the previous calendar month")
	reportCmd.Flags().IntVar(&monthsStart, "months-start", -1, "first month of a range, in months ago")
	reportCmd.Flags().IntVar(&monthsEnd, "months-end", -1, "last month of a range, in months ago")
	reportCmd.Flags().BoolVar(&noReport, "no-report", false, "print the summary only, do not write a CSV report")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "CSV report path (default from report.output)")
	reportCmd.Flags().StringVarP(&reportProject, "project", "p", "", "Jira project key (default from query.project)")
	reportCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "choose the window from a menu")
	reportCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this run in the history database")
	reportCmd.Flags().StringVar(&format, "format", "table", "summary format (table, json)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if reportProject != "" {
		cfg.Query.Project = reportProject
	}
	if reportOutput != "" {
		cfg.Report.Output = reportOutput
	}

	result := cfg.Validate()
	for _, w := range result.Warnings {
		slog.Debug("config warning", "field", w.Field, "message", w.Message)
	}
	if err := result.Err(); err != nil {
		return err
	}

	sel, err := selectWindow(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if noReport {
		sel.GenerateReport = false
	}

	p := pipeline{
		cfg:    cfg,
		sel:    sel,
		out:    cmd.OutOrStdout(),
		format: format,
		now:    time.Now(),
		dryRun: dryRun,
	}

	if !dryRun {
		if cfg.Jira.Username == "" || cfg.Jira.Token == "" {
			return fmt.Errorf("jira credentials missing: set jira.username and LEADCYCLE_JIRA_TOKEN")
		}
		if cfg.History.Enabled && !noHistory {
			store, err := openHistory(cfg)
			if err != nil {
				slog.Warn("run history unavailable", "error", err)
			} else {
				defer store.Close()
				p.store = store
			}
		}
	}

	return p.run(cmd.Context())
}

// selectWindow resolves the window from flags, falling back to the menu
func selectWindow(in io.Reader, out io.Writer) (prompt.Selection, error) {
	set := 0
	var w window.Window
	var err error

	if windowSpec != "" {
		set++
		w, err = window.Parse(windowSpec)
	}
	if reportDays != 0 {
		set++
		w, err = window.AdHocDays(reportDays)
	}
	if priorMonth {
		set++
		w = window.PriorMonth()
	}
	if monthsStart >= 0 || monthsEnd >= 0 {
		set++
		if monthsStart < 0 || monthsEnd < 0 {
			return prompt.Selection{}, fmt.Errorf("--months-start and --months-end must be used together")
		}
		w, err = window.MonthRange(monthsStart, monthsEnd)
	}

	if set > 1 {
		return prompt.Selection{}, fmt.Errorf("choose one of --window, --days, --prior-month or --months-start/--months-end")
	}
	if err != nil {
		return prompt.Selection{}, err
	}
	if set == 1 && !interactive {
		return prompt.Selection{Window: w, GenerateReport: true}, nil
	}

	if !interactive {
		if f, ok := in.(*os.File); !ok || !isTerminal(f) {
			return prompt.Selection{}, fmt.Errorf("no report window given: use --window or --interactive")
		}
	}
	return prompt.NewSelector(in, out).Select()
}

func openHistory(cfg *config.Config) (*db.DB, error) {
	if cfg.History.Path == "" {
		if err := paths.EnsureDataDir(); err != nil {
			return nil, err
		}
	}
	store, err := db.Open(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// pipeline runs one report from query to summary
type pipeline struct {
	cfg    *config.Config
	sel    prompt.Selection
	out    io.Writer
	format string
	now    time.Time
	dryRun bool

	// store is nil when history is disabled
	store *db.DB
	// searcher overrides the Jira client
	searcher jira.Searcher
}

func (p *pipeline) run(ctx context.Context) error {
	cfg := p.cfg
	w := p.sel.Window

	query := jira.Query{
		Project:    cfg.Query.Project,
		Statuses:   cfg.Query.Statuses,
		IssueTypes: cfg.Query.IssueTypes,
		DateField:  cfg.Query.DateField,
		OrderBy:    cfg.Query.OrderBy,
	}
	jql := jira.BuildJQL(query, w)
	from, to := w.Bounds(p.now)

	slog.Info("resolved report window",
		"window", w.String(),
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly))
	slog.Debug("query", "jql", jql)

	if p.dryRun {
		fmt.Fprintf(p.out, "[DRY RUN] Window: %s (%s to %s)\n", w, from.Format(time.DateOnly), to.Format(time.DateOnly))
		fmt.Fprintf(p.out, "[DRY RUN] JQL: %s\n", jql)
		if p.sel.GenerateReport {
			fmt.Fprintf(p.out, "[DRY RUN] Would write report to %s\n", cfg.Report.Output)
		}
		return nil
	}

	var run *db.Run
	if p.store != nil {
		run = &db.Run{
			Project:     cfg.Query.Project,
			WindowKind:  w.Kind().String(),
			WindowSpec:  w.Spec(),
			WindowLabel: w.String(),
			PeriodStart: from,
			PeriodEnd:   to,
			JQL:         jql,
		}
		if err := p.store.RecordRunStart(run); err != nil {
			slog.Warn("failed to record run", "error", err)
			run = nil
		}
	}

	res, reportPath, err := p.execute(ctx, jql)
	if run != nil {
		p.finishRun(run.ID, res, reportPath, err)
	}
	if err != nil {
		return err
	}

	return report.PrintSummary(p.out, report.Summary{
		Window:     w.String(),
		From:       from,
		To:         to,
		Result:     res,
		ReportPath: reportPath,
	}, p.format)
}

// execute fetches, aggregates and writes the report. Nothing is written when
// retrieval fails.
func (p *pipeline) execute(ctx context.Context, jql string) (metrics.Result, string, error) {
	cfg := p.cfg

	searcher := p.searcher
	if searcher == nil {
		client, err := jira.NewClient(jira.ClientConfig{
			BaseURL:  cfg.Jira.URL,
			Username: cfg.Jira.Username,
			Token:    cfg.Jira.Token,
			Timeout:  cfg.Jira.Timeout,
			Retries:  cfg.Jira.Retries,
		})
		if err != nil {
			return metrics.Result{}, "", err
		}
		searcher = client
	}

	tickets, err := jira.FetchAll(ctx, searcher, jql, jira.FetchOptions{
		PageSize: cfg.Jira.PageSize,
		Fields:   jiraFields(cfg.Report.Fields),
	})
	if err != nil {
		return metrics.Result{}, "", err
	}

	res, err := metrics.Aggregate(tickets, metrics.Options{
		StartLabel:         cfg.Workflow.StartState,
		DoneLabel:          cfg.Workflow.DoneState,
		DivideByQualifying: cfg.Workflow.DivideByQualifying,
	})
	if errors.Is(err, metrics.ErrEmptyInput) {
		return metrics.Result{}, "", fmt.Errorf("no matching tickets for %s", p.sel.Window)
	}
	if err != nil {
		return metrics.Result{}, "", err
	}
	slog.Info("computed averages",
		"tickets", res.Total,
		"qualifying", res.Qualifying,
		"skipped", res.Skipped)

	if !p.sel.GenerateReport {
		return res, "", nil
	}
	if err := report.WriteFile(cfg.Report.Output, tickets, cfg.Report.Fields, res); err != nil {
		return res, "", err
	}
	slog.Info("report written", "path", cfg.Report.Output, "rows", len(tickets))
	return res, cfg.Report.Output, nil
}

func (p *pipeline) finishRun(id string, res metrics.Result, reportPath string, runErr error) {
	var err error
	if runErr != nil {
		err = p.store.RecordRunFailed(id, runErr)
	} else {
		err = p.store.RecordRunComplete(id, db.Outcome{
			Tickets:       res.Total,
			Qualifying:    res.Qualifying,
			Skipped:       res.Skipped,
			LeadTimeDays:  res.LeadTimeDays,
			CycleTimeDays: res.CycleTimeDays,
			ReportPath:    reportPath,
		})
	}
	if err != nil {
		slog.Warn("failed to update run history", "run", id, "error", err)
	}
}

// jiraFields maps report columns to the top-level Jira fields that carry them
func jiraFields(columns []string) []string {
	fields := []string{"created", "summary", "issuetype", "status"}
	seen := map[string]bool{"created": true, "summary": true, "issuetype": true, "status": true}

	for _, c := range columns {
		name, ok := strings.CutPrefix(c, "fields.")
		if !ok {
			continue
		}
		name, _, _ = strings.Cut(name, ".")
		if name != "" && !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}
	return fields
}
