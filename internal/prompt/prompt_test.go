package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiracore/leadcycle/internal/window"
)

func run(t *testing.T, input string) (Selection, string, error) {
	t.Helper()
	var out bytes.Buffer
	sel, err := NewSelector(strings.NewReader(input), &out).Select()
	return sel, out.String(), err
}

func TestSelect_Choices(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantSpec   string
		wantReport bool
	}{
		{"adhoc 30", "1\n1\n", "days:30", true},
		{"adhoc 90", "1\n2\n", "days:90", true},
		{"adhoc 180", " 1 \n 3 \n", "days:180", true},
		{"monthly", "2\n", "prior-month", true},
		{"range", "3\n11\n1\n", "months:11-1", true},
		{"quick", "4\n", "prior-month", false},
		{"no trailing newline", "4", "prior-month", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, _, err := run(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSpec, sel.Window.Spec())
			assert.Equal(t, tt.wantReport, sel.GenerateReport)
		})
	}
}

func TestSelect_InvalidInputReprompts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantSpec string
		wantMsg  string
	}{
		{"unknown menu option", "9\n2\n", "prior-month", "Please select one of the viable options."},
		{"unknown adhoc period", "1\n7\n1\n2\n", "days:90", "Please select one of the viable options."},
		{"reversed range", "3\n1\n11\n3\n11\n1\n", "months:11-1", "Please provide viable numbers"},
		{"range too far back", "3\n13\n1\n4\n", "prior-month", "Please provide viable numbers"},
		{"non-numeric month", "3\nabc\n1\n2\n", "prior-month", "Please provide viable numbers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, out, err := run(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSpec, sel.Window.Spec())
			assert.Contains(t, out, tt.wantMsg)
		})
	}
}

func TestSelect_ManyInvalidAnswersDoNotRecurse(t *testing.T) {
	input := strings.Repeat("x\n", 10000) + "2\n"
	sel, _, err := run(t, input)
	require.NoError(t, err)
	assert.Equal(t, window.KindPriorMonth, sel.Window.Kind())
}

func TestSelect_EOF(t *testing.T) {
	for _, input := range []string{"", "1\n", "3\n11\n", "x\n"} {
		_, _, err := run(t, input)
		assert.ErrorIs(t, err, ErrAborted, "input %q", input)
	}
}
