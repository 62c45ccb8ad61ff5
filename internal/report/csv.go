package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kiracore/leadcycle/internal/metrics"
	"github.com/kiracore/leadcycle/internal/ticket"
)

const (
	DefaultFileName  = "lead_cycle_time_report.csv"
	LeadTimeColumn   = "Avg Lead Time"
	CycleTimeColumn  = "Avg Cycle Time"
	createdLayoutCSV = "2006-01-02T15:04:05.000-0700"
)

// DefaultFields are the ticket columns written when none are configured
var DefaultFields = []string{
	"key",
	"fields.summary",
	"fields.issuetype.name",
	"fields.created",
	"fields.resolutiondate",
	"fields.status.statusCategory.name",
}

// ErrNoAverages is returned when a report carries no average values
var ErrNoAverages = errors.New("report has no averages")

// WriteCSV writes one row per ticket with the configured field columns, followed
// by the two average columns. The averages appear on the first data row only.
func WriteCSV(w io.Writer, tickets []ticket.Ticket, fields []string, res metrics.Result) error {
	if len(fields) == 0 {
		fields = DefaultFields
	}

	cw := csv.NewWriter(w)
	header := append(append([]string{}, fields...), LeadTimeColumn, CycleTimeColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	lead := formatDays(res.LeadTimeDays)
	cycle := formatDays(res.CycleTimeDays)

	for i, t := range tickets {
		row, err := fieldValues(t, fields)
		if err != nil {
			return fmt.Errorf("%s: %w", t.Key, err)
		}
		if i == 0 {
			row = append(row, lead, cycle)
		} else {
			row = append(row, "", "")
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes the report to path, creating parent directories as needed
func WriteFile(path string, tickets []ticket.Ticket, fields []string, res metrics.Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := WriteCSV(f, tickets, fields, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadAverages reads the average lead and cycle time back out of a report
func ReadAverages(r io.Reader) (lead, cycle float64, err error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read report: %w", err)
	}
	if len(records) == 0 {
		return 0, 0, ErrNoAverages
	}

	leadIdx, cycleIdx := -1, -1
	for i, name := range records[0] {
		switch name {
		case LeadTimeColumn:
			leadIdx = i
		case CycleTimeColumn:
			cycleIdx = i
		}
	}
	if leadIdx < 0 || cycleIdx < 0 {
		return 0, 0, fmt.Errorf("%w: missing average columns", ErrNoAverages)
	}

	for _, row := range records[1:] {
		if row[leadIdx] == "" {
			continue
		}
		if lead, err = strconv.ParseFloat(row[leadIdx], 64); err != nil {
			return 0, 0, fmt.Errorf("invalid %s: %w", LeadTimeColumn, err)
		}
		if cycle, err = strconv.ParseFloat(row[cycleIdx], 64); err != nil {
			return 0, 0, fmt.Errorf("invalid %s: %w", CycleTimeColumn, err)
		}
		return lead, cycle, nil
	}
	return 0, 0, ErrNoAverages
}

func formatDays(v float64) string {
	return strconv.FormatFloat(metrics.Round1(v), 'f', 1, 64)
}

// fieldValues resolves dotted paths against the ticket's raw issue JSON. Tickets
// without raw JSON fall back to their decoded fields.
func fieldValues(t ticket.Ticket, fields []string) ([]string, error) {
	row := make([]string, len(fields))

	if len(t.Raw) == 0 {
		for i, path := range fields {
			row[i] = knownField(t, path)
		}
		return row, nil
	}

	dec := json.NewDecoder(bytes.NewReader(t.Raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode raw issue: %w", err)
	}

	for i, path := range fields {
		v, err := cellValue(lookup(doc, path))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", path, err)
		}
		row[i] = v
	}
	return row, nil
}

func lookup(doc any, path string) any {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return cur
}

func cellValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func knownField(t ticket.Ticket, path string) string {
	switch path {
	case "key":
		return t.Key
	case "fields.summary":
		return t.Summary
	case "fields.issuetype.name":
		return t.IssueType
	case "fields.status.statusCategory.name":
		return t.StatusCategory
	case "fields.created":
		if t.Created.IsZero() {
			return ""
		}
		return t.Created.Format(createdLayoutCSV)
	default:
		return ""
	}
}
