package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiracore/leadcycle/internal/ticket"
)

func sampleTickets(t *testing.T) []ticket.Ticket {
	return []ticket.Ticket{
		{
			Key:     "FOO-1",
			Created: ts(t, "2024-01-01T00:00:00Z"),
			Transitions: []ticket.Transition{
				{Label: "In Progress", At: ts(t, "2024-01-05T00:00:00Z")},
				{Label: "Done", At: ts(t, "2024-01-15T00:00:00Z")},
			},
		},
		{
			Key:     "FOO-2",
			Created: ts(t, "2024-01-01T00:00:00Z"),
			Transitions: []ticket.Transition{
				{Label: "Done", At: ts(t, "2024-01-10T00:00:00Z")},
			},
		},
		{
			Key:     "FOO-3",
			Created: ts(t, "2024-02-01T00:00:00Z"),
			Transitions: []ticket.Transition{
				{Label: "In Progress", At: ts(t, "2024-02-02T00:00:00Z")},
				{Label: "Done", At: ts(t, "2024-02-12T00:00:00Z")},
			},
		},
	}
}

func TestAggregate_Empty(t *testing.T) {
	_, err := Aggregate(nil, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyInput))

	_, err = Aggregate([]ticket.Ticket{}, Options{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestAggregate_SkippedTicketStaysInDivisor(t *testing.T) {
	res, err := Aggregate(sampleTickets(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Qualifying)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"FOO-2"}, res.SkippedKeys)

	// lead: 14d + 11d over 3 tickets, cycle: 10d + 10d over 3 tickets
	assert.InDelta(t, 25.0/3, res.LeadTimeDays, 1e-9)
	assert.InDelta(t, 20.0/3, res.CycleTimeDays, 1e-9)
	assert.Equal(t, 8.3, Round1(res.LeadTimeDays))
	assert.Equal(t, 6.7, Round1(res.CycleTimeDays))
}

func TestAggregate_DivideByQualifying(t *testing.T) {
	opts := Options{}
	opts.DivideByQualifying = true

	res, err := Aggregate(sampleTickets(t), opts)
	require.NoError(t, err)

	assert.InDelta(t, 12.5, res.LeadTimeDays, 1e-9)
	assert.InDelta(t, 10.0, res.CycleTimeDays, 1e-9)
}

func TestAggregate_AllSkipped(t *testing.T) {
	tickets := []ticket.Ticket{
		{Key: "FOO-1", Created: ts(t, "2024-01-01T00:00:00Z")},
		{Key: "FOO-2", Created: ts(t, "2024-01-01T00:00:00Z"), HasHistory: true},
	}

	for _, byQualifying := range []bool{false, true} {
		opts := Options{}
		opts.DivideByQualifying = byQualifying

		res, err := Aggregate(tickets, opts)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Skipped)
		assert.Zero(t, res.LeadTimeDays)
		assert.Zero(t, res.CycleTimeDays)
	}
}

func TestAggregate_SubDayPrecision(t *testing.T) {
	// 36h lead and 12h cycle must not be truncated to whole days
	tickets := []ticket.Ticket{
		{
			Key:     "FOO-9",
			Created: ts(t, "2024-06-01T00:00:00Z"),
			Transitions: []ticket.Transition{
				{Label: "In Progress", At: ts(t, "2024-06-02T00:00:00Z")},
				{Label: "Done", At: ts(t, "2024-06-02T12:00:00Z")},
			},
		},
	}

	res, err := Aggregate(tickets, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, res.LeadTimeDays, 1e-9)
	assert.InDelta(t, 0.5, res.CycleTimeDays, 1e-9)
}

func TestAggregate_LongLivedPopulation(t *testing.T) {
	// 300 tickets of 400 days each add up to far more than a time.Duration holds
	created := ts(t, "2022-01-01T00:00:00Z")
	done := created.AddDate(0, 0, 400)

	tickets := make([]ticket.Ticket, 300)
	for i := range tickets {
		tickets[i] = ticket.Ticket{
			Key:     fmt.Sprintf("FOO-%d", i+1),
			Created: created,
			Transitions: []ticket.Transition{
				{Label: "In Progress", At: done.AddDate(0, 0, -1)},
				{Label: "Done", At: done},
			},
		}
	}

	res, err := Aggregate(tickets, Options{})
	require.NoError(t, err)
	assert.Equal(t, 300, res.Qualifying)
	assert.InDelta(t, 400.0, res.LeadTimeDays, 1e-9)
	assert.InDelta(t, 1.0, res.CycleTimeDays, 1e-9)
}

func TestAggregate_CustomLabels(t *testing.T) {
	tickets := []ticket.Ticket{
		{
			Key:     "FOO-4",
			Created: ts(t, "2024-01-01T00:00:00Z"),
			Transitions: []ticket.Transition{
				{Label: "Doing", At: ts(t, "2024-01-03T00:00:00Z")},
				{Label: "Ready To Release", At: ts(t, "2024-01-05T00:00:00Z")},
			},
		},
	}

	res, err := Aggregate(tickets, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	res, err = Aggregate(tickets, Options{StartLabel: "Doing", DoneLabel: "Ready To Release"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Skipped)
	assert.InDelta(t, 4.0, res.LeadTimeDays, 1e-9)
	assert.InDelta(t, 2.0, res.CycleTimeDays, 1e-9)
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{8.333333, 8.3},
		{6.666666, 6.7},
		{0.25, 0.3},
		{12, 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round1(tt.in))
	}
}
