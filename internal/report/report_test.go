package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiracore/leadcycle/internal/metrics"
	"github.com/kiracore/leadcycle/internal/ticket"
)

const rawIssue = `{
  "key": "FOO-1",
  "fields": {
    "summary": "Fix, \"quoted\" login",
    "issuetype": {"name": "Bug"},
    "created": "2024-01-01T00:00:00.000+0000",
    "resolutiondate": null,
    "status": {"statusCategory": {"name": "Done"}},
    "customfield_10016": 5,
    "labels": ["api", "auth"]
  }
}`

func sampleResult() metrics.Result {
	return metrics.Result{
		LeadTimeDays:  25.0 / 3,
		CycleTimeDays: 20.0 / 3,
		Total:         3,
		Qualifying:    2,
		Skipped:       1,
		SkippedKeys:   []string{"FOO-2"},
	}
}

func sampleTickets() []ticket.Ticket {
	return []ticket.Ticket{
		{Key: "FOO-1", Raw: []byte(rawIssue)},
		{Key: "FOO-2", Summary: "No raw", IssueType: "Story", Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Key: "FOO-3", Summary: "Third", IssueType: "Story"},
	}
}

func readRecords(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteCSV_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTickets(), nil, sampleResult()))

	records := readRecords(t, buf.Bytes())
	require.Len(t, records, 4)

	assert.Equal(t, append(append([]string{}, DefaultFields...), "Avg Lead Time", "Avg Cycle Time"), records[0])

	first := records[1]
	assert.Equal(t, "FOO-1", first[0])
	assert.Equal(t, `Fix, "quoted" login`, first[1])
	assert.Equal(t, "Bug", first[2])
	assert.Equal(t, "2024-01-01T00:00:00.000+0000", first[3])
	assert.Equal(t, "", first[4], "null renders as empty cell")
	assert.Equal(t, "Done", first[5])
	assert.Equal(t, "8.3", first[6])
	assert.Equal(t, "6.7", first[7])

	second := records[2]
	assert.Equal(t, "FOO-2", second[0])
	assert.Equal(t, "No raw", second[1])
	assert.Equal(t, "2024-01-02T03:04:05.000+0000", second[3])

	for _, row := range records[2:] {
		assert.Empty(t, row[6])
		assert.Empty(t, row[7])
	}
}

func TestWriteCSV_CustomFields(t *testing.T) {
	var buf bytes.Buffer
	fields := []string{"key", "fields.customfield_10016", "fields.labels", "fields.missing.path", "fields.issuetype"}
	require.NoError(t, WriteCSV(&buf, sampleTickets()[:1], fields, sampleResult()))

	records := readRecords(t, buf.Bytes())
	require.Len(t, records, 2)
	assert.Equal(t, []string{"FOO-1", "5", `["api","auth"]`, "", `{"name":"Bug"}`, "8.3", "6.7"}, records[1])
}

func TestWriteCSV_NoIndexColumn(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTickets(), []string{"key"}, sampleResult()))

	records := readRecords(t, buf.Bytes())
	for _, row := range records {
		assert.Len(t, row, 3)
	}
}

func TestReport_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", DefaultFileName)
	res := sampleResult()

	require.NoError(t, WriteFile(path, sampleTickets(), DefaultFields, res))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lead, cycle, err := ReadAverages(f)
	require.NoError(t, err)
	assert.Equal(t, metrics.Round1(res.LeadTimeDays), lead)
	assert.Equal(t, metrics.Round1(res.CycleTimeDays), cycle)
}

func TestReadAverages_Errors(t *testing.T) {
	_, _, err := ReadAverages(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoAverages)

	_, _, err = ReadAverages(strings.NewReader("key,summary\nFOO-1,x\n"))
	assert.ErrorIs(t, err, ErrNoAverages)

	_, _, err = ReadAverages(strings.NewReader("key,Avg Lead Time,Avg Cycle Time\n"))
	assert.ErrorIs(t, err, ErrNoAverages)

	_, _, err = ReadAverages(strings.NewReader("key,Avg Lead Time,Avg Cycle Time\nFOO-1,abc,1.0\n"))
	assert.Error(t, err)
}

func TestPrintSummary_Table(t *testing.T) {
	var buf bytes.Buffer
	err := PrintSummary(&buf, Summary{
		Window:     "last 90 days",
		From:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Result:     sampleResult(),
		ReportPath: DefaultFileName,
	}, "table")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "last 90 days")
	assert.Contains(t, out, "2024-01-01 to 2024-03-31")
	assert.Contains(t, out, "8.3 days")
	assert.Contains(t, out, "6.7 days")
	assert.Contains(t, out, "Skipped 1 issue(s).")
	assert.Contains(t, out, SkipExplanation)
	assert.Contains(t, out, "Report written to "+DefaultFileName)
}

func TestPrintSummary_NoSkips(t *testing.T) {
	res := sampleResult()
	res.Skipped, res.SkippedKeys = 0, nil

	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, Summary{Window: "prior month", Result: res}, ""))
	assert.NotContains(t, buf.String(), "Skipped issues are")
}

func TestPrintSummary_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, Summary{Window: "prior month", Result: sampleResult()}, "json"))

	var got struct {
		Window string `json:"window"`
		Result struct {
			Lead    float64  `json:"avg_lead_time_days"`
			Skipped int      `json:"skipped"`
			Keys    []string `json:"skipped_keys"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "prior month", got.Window)
	assert.InDelta(t, 8.333, got.Result.Lead, 0.001)
	assert.Equal(t, 1, got.Result.Skipped)
	assert.Equal(t, []string{"FOO-2"}, got.Result.Keys)
}

func TestPrintSummary_UnknownFormat(t *testing.T) {
	err := PrintSummary(&bytes.Buffer{}, Summary{}, "xml")
	assert.Error(t, err)
}
