package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/kiracore/leadcycle/internal/metrics"
)

// SkipExplanation tells the reader why some tickets do not contribute
const SkipExplanation = `Skipped issues are those that went from "Created" or "Backlog" to "Done" ` +
	`without ever being "In Progress". This is an important distinction for ` +
	`calculating Cycle Time properly.`

// Summary is everything shown to the user after a run
type Summary struct {
	Window     string         `json:"window"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Result     metrics.Result `json:"result"`
	ReportPath string         `json:"report_path,omitempty"`
}

// PrintSummary writes s as a table (default) or as JSON
func PrintSummary(w io.Writer, s Summary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "", "table":
	default:
		return fmt.Errorf("unknown format %q (use table or json)", format)
	}

	fmt.Fprintf(w, "\nLead / Cycle Time: %s\n", s.Window)
	if !s.From.IsZero() {
		fmt.Fprintf(w, "Period: %s to %s\n", s.From.Format("2006-01-02"), s.To.Format("2006-01-02"))
	}
	fmt.Fprintln(w)

	res := s.Result
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorders(tablewriter.Border{Left: true, Top: true, Right: true, Bottom: true})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	table.Append([]string{"Tickets", strconv.Itoa(res.Total)})
	table.Append([]string{"Qualifying", strconv.Itoa(res.Qualifying)})
	table.Append([]string{"Skipped", strconv.Itoa(res.Skipped)})
	table.Append([]string{"Avg Lead Time", formatDays(res.LeadTimeDays) + " days"})
	table.Append([]string{"Avg Cycle Time", formatDays(res.CycleTimeDays) + " days"})
	table.Render()

	if res.Skipped > 0 {
		fmt.Fprintf(w, "\nSkipped %d issue(s).\n%s\n", res.Skipped, SkipExplanation)
	}
	if s.ReportPath != "" {
		fmt.Fprintf(w, "\nReport written to %s\n", s.ReportPath)
	}
	return nil
}
