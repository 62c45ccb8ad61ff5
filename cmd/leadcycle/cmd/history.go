package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kiracore/leadcycle/internal/config"
	"github.com/kiracore/leadcycle/internal/db"
	"github.com/kiracore/leadcycle/internal/metrics"
	"github.com/kiracore/leadcycle/internal/paths"
)

var (
	historyPath    string
	backupPath     string
	historyLimit   int
	historyProject string
	historyStatus  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past report runs",
	Long: `Every report run is recorded in a local SQLite database with its window,
query and final averages.

Examples:
  leadcycle history list                   # Recent runs
  leadcycle history list --project FOO     # Runs for one project
  leadcycle history show 3f2a              # One run by id prefix
  leadcycle history trend                  # Averages per project and window
  leadcycle history status                 # Database statistics
  leadcycle history backup -o history.db   # Backup database
  leadcycle history export > runs.json     # Export to JSON`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent report runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openHistoryForRead()
		if err != nil {
			return err
		}
		defer database.Close()

		runs, err := database.ListRuns(db.RunFilter{
			Project: historyProject,
			Status:  historyStatus,
			Limit:   historyLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if format == "json" {
			return writeJSON(out, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded yet.")
			return nil
		}

		table := newTable(out, []string{"ID", "Started", "Project", "Window", "Status", "Tickets", "Lead", "Cycle"})
		for _, r := range runs {
			table.Append([]string{
				shortID(r.ID),
				humanize.Time(r.StartedAt),
				r.Project,
				r.WindowLabel,
				r.Status,
				fmt.Sprintf("%d", r.Tickets),
				formatDays(r, r.LeadTimeDays),
				formatDays(r, r.CycleTimeDays),
			})
		}
		table.Render()
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one report run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openHistoryForRead()
		if err != nil {
			return err
		}
		defer database.Close()

		run, err := database.GetRun(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format == "json" {
			return writeJSON(out, run)
		}

		fmt.Fprintf(out, "Run:        %s\n", run.ID)
		fmt.Fprintf(out, "Project:    %s\n", run.Project)
		fmt.Fprintf(out, "Window:     %s (%s to %s)\n", run.WindowLabel,
			run.PeriodStart.Format(time.DateOnly), run.PeriodEnd.Format(time.DateOnly))
		fmt.Fprintf(out, "Status:     %s\n", run.Status)
		fmt.Fprintf(out, "Started:    %s (%s)\n", run.StartedAt.Local().Format(time.DateTime), humanize.Time(run.StartedAt))
		if run.CompletedAt != nil {
			fmt.Fprintf(out, "Duration:   %s\n", run.Duration().Round(time.Millisecond))
		}
		fmt.Fprintf(out, "JQL:        %s\n", run.JQL)
		switch run.Status {
		case db.StatusCompleted:
			fmt.Fprintf(out, "Tickets:    %d (%d qualifying, %d skipped)\n", run.Tickets, run.Qualifying, run.Skipped)
			fmt.Fprintf(out, "Lead time:  %s days\n", formatDays(*run, run.LeadTimeDays))
			fmt.Fprintf(out, "Cycle time: %s days\n", formatDays(*run, run.CycleTimeDays))
			if run.ReportPath != "" {
				fmt.Fprintf(out, "Report:     %s\n", run.ReportPath)
			}
		case db.StatusFailed:
			fmt.Fprintf(out, "Error:      %s\n", run.ErrorMessage)
		}
		return nil
	},
}

var historyTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show average lead and cycle time per project and window",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openHistoryForRead()
		if err != nil {
			return err
		}
		defer database.Close()

		trends, err := database.GetProjectTrends(historyProject)
		if err != nil {
			return fmt.Errorf("failed to load trends: %w", err)
		}

		out := cmd.OutOrStdout()
		if format == "json" {
			return writeJSON(out, trends)
		}
		if len(trends) == 0 {
			fmt.Fprintln(out, "No completed runs recorded yet.")
			return nil
		}

		table := newTable(out, []string{"Project", "Window", "Runs", "Avg Lead", "Avg Cycle", "Last Run"})
		for _, t := range trends {
			last := t.LastRunAt
			if ts, err := time.Parse(time.RFC3339Nano, t.LastRunAt); err == nil {
				last = humanize.Time(ts)
			}
			table.Append([]string{
				t.Project,
				t.WindowSpec,
				fmt.Sprintf("%d", t.Runs),
				fmt.Sprintf("%.1f", metrics.Round1(t.AvgLeadTimeDays)),
				fmt.Sprintf("%.1f", metrics.Round1(t.AvgCycleTimeDays)),
				last,
			})
		}
		table.Render()
		return nil
	},
}

var historyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show history database status and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openHistoryForRead()
		if err != nil {
			return err
		}
		defer database.Close()

		stats, err := database.GetStats()
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		out := cmd.OutOrStdout()
		if format == "json" {
			return writeJSON(out, stats)
		}

		lastRun := "Never"
		if !stats.LastRun.IsZero() {
			lastRun = fmt.Sprintf("%s (%s)", stats.LastRun.Local().Format(time.DateTime), humanize.Time(stats.LastRun))
		}

		table := newTable(out, []string{"Property", "Value"})
		table.Append([]string{"Path", stats.Path})
		table.Append([]string{"Size", humanize.Bytes(uint64(stats.Size))})
		table.Append([]string{"Schema Version", fmt.Sprintf("%d", stats.SchemaVersion)})
		table.Append([]string{"Runs", humanize.Comma(int64(stats.Runs))})
		table.Append([]string{"Completed", humanize.Comma(int64(stats.Completed))})
		table.Append([]string{"Failed", humanize.Comma(int64(stats.Failed))})
		table.Append([]string{"Projects", fmt.Sprintf("%d", stats.Projects)})
		table.Append([]string{"Last Run", lastRun})
		table.Render()
		return nil
	},
}

var historyPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the history database path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveHistoryPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var historyBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup the history database",
	Long: `Creates a backup copy of the history database.

If no output path is specified, creates a timestamped backup in
~/.local/share/leadcycle/backups/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openHistoryForRead()
		if err != nil {
			return err
		}
		defer database.Close()

		dest := backupPath
		if dest == "" {
			if err := paths.EnsureBackupDir(); err != nil {
				return fmt.Errorf("failed to create backup directory: %w", err)
			}
			timestamp := time.Now().Format("20060102-150405")
			dest = filepath.Join(paths.BackupDir(), fmt.Sprintf("history-%s.db", timestamp))
		}

		if err := database.Backup(dest); err != nil {
			return fmt.Errorf("failed to backup database: %w", err)
		}

		info, err := os.Stat(dest)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ History backed up to: %s (%s)\n", dest, humanize.Bytes(uint64(info.Size())))
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to JSON",
	Long: `Exports every recorded run as JSON.

Output goes to stdout. Redirect to a file:
  leadcycle history export > runs.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openHistoryForRead()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Export(cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("failed to export history: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyTrendCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyPathCmd)
	historyCmd.AddCommand(historyBackupCmd)
	historyCmd.AddCommand(historyExportCmd)

	historyCmd.PersistentFlags().StringVar(&historyPath, "db", "", "history database path (default from history.path)")
	for _, c := range []*cobra.Command{historyListCmd, historyShowCmd, historyTrendCmd, historyStatusCmd} {
		c.Flags().StringVar(&format, "format", "table", "output format (table, json)")
	}
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to show (0 for all)")
	historyListCmd.Flags().StringVarP(&historyProject, "project", "p", "", "only runs for this project")
	historyListCmd.Flags().StringVar(&historyStatus, "status", "", "only runs with this status (running, completed, failed)")
	historyTrendCmd.Flags().StringVarP(&historyProject, "project", "p", "", "only this project")
	historyBackupCmd.Flags().StringVarP(&backupPath, "output", "o", "", "backup output path")
}

// resolveHistoryPath applies --db over history.path over the default
func resolveHistoryPath() (string, error) {
	if historyPath != "" {
		return historyPath, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	if cfg.History.Path != "" {
		return cfg.History.Path, nil
	}
	return db.DefaultDBPath(), nil
}

func openHistoryForRead() (*db.DB, error) {
	path, err := resolveHistoryPath()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Init(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return database, nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDays(r db.Run, days float64) string {
	if r.Status != db.StatusCompleted {
		return "-"
	}
	return fmt.Sprintf("%.1f", metrics.Round1(days))
}
