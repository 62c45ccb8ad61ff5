package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiracore/leadcycle/internal/ticket"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}

func TestExtract_EmptyHistory(t *testing.T) {
	tk := ticket.Ticket{Key: "FOO-1"}

	for _, oldest := range []bool{true, false} {
		_, ok := Extract(tk, "Done", oldest)
		assert.False(t, ok, "oldest=%v", oldest)
	}
}

func TestExtract_RepeatedLabel(t *testing.T) {
	tk := ticket.Ticket{
		Key: "FOO-2",
		Transitions: []ticket.Transition{
			{Label: "Done", At: ts(t, "2024-03-10T12:00:00Z")},
			{Label: "In Progress", At: ts(t, "2024-03-01T09:00:00Z")},
			{Label: "Done", At: ts(t, "2024-03-02T12:00:00Z")},
			{Label: "Done", At: ts(t, "2024-03-20T08:00:00+05:00")},
			{Label: "Done", At: ts(t, "2024-03-05T00:00:00Z")},
		},
	}

	oldest, ok := Oldest(tk, "Done")
	require.True(t, ok)
	assert.True(t, oldest.Equal(ts(t, "2024-03-02T12:00:00Z")))

	newest, ok := Newest(tk, "Done")
	require.True(t, ok)
	assert.True(t, newest.Equal(ts(t, "2024-03-20T03:00:00Z")))
}

func TestExtract_ZoneAwareComparison(t *testing.T) {
	// 01:00+02:00 is 23:00Z the previous day, so it is the older instant
	tk := ticket.Ticket{
		Transitions: []ticket.Transition{
			{Label: "In Progress", At: ts(t, "2024-05-02T00:30:00Z")},
			{Label: "In Progress", At: ts(t, "2024-05-02T01:00:00+02:00")},
		},
	}

	got, ok := Oldest(tk, "In Progress")
	require.True(t, ok)
	assert.True(t, got.Equal(ts(t, "2024-05-01T23:00:00Z")))
}

func TestExtract_LabelMatching(t *testing.T) {
	tk := ticket.Ticket{
		Transitions: []ticket.Transition{
			{Label: "done", At: ts(t, "2024-01-01T00:00:00Z")},
			{Label: "Done ", At: ts(t, "2024-01-02T00:00:00Z")},
			{Label: "In Review", At: ts(t, "2024-01-03T00:00:00Z")},
		},
	}

	tests := []struct {
		name  string
		label string
		want  bool
	}{
		{"case differs", "Done", false},
		{"exact lowercase", "done", true},
		{"trailing space is significant", "Done ", true},
		{"unrelated label", "In Progress", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Newest(tk, tt.label)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestExtract_SingleMatch(t *testing.T) {
	at := ts(t, "2024-07-04T10:00:00-04:00")
	tk := ticket.Ticket{Transitions: []ticket.Transition{{Label: "Done", At: at}}}

	oldest, ok := Oldest(tk, "Done")
	require.True(t, ok)
	newest, ok := Newest(tk, "Done")
	require.True(t, ok)

	assert.True(t, oldest.Equal(at))
	assert.True(t, newest.Equal(at))
}
