package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kiracore/leadcycle/internal/window"
)

// ErrAborted is returned when input ends before a choice is made
var ErrAborted = errors.New("selection aborted")

const menu = `
Which type of report do you want to generate?
  1. ad-hoc    lead time for a number of days preceding today (30, 90, 180)
  2. monthly   lead time for last month
  3. range     a range of whole months
  4. quick     lead and cycle time for last month, no report
> `

const adHocMenu = `
Select the period: 1. 30 days, 2. 90 days, 3. 180 days
> `

const rangeHelp = `
Specify how many whole months ago the report should start (up to 12) and end,
e.g. start 11 (eleven months ago) and end 1 (last month).
`

var adHocDays = map[string]int{"1": 30, "2": 90, "3": 180}

// Selection is the outcome of the interactive menu
type Selection struct {
	Window         window.Window
	GenerateReport bool
}

// Selector asks the user which report to run
type Selector struct {
	in  *bufio.Reader
	out io.Writer
}

// NewSelector creates a selector reading answers from in and writing prompts to out
func NewSelector(in io.Reader, out io.Writer) *Selector {
	return &Selector{in: bufio.NewReader(in), out: out}
}

// Select shows the menu until a valid choice is made. Invalid answers restart
// the menu; end of input returns ErrAborted.
func (s *Selector) Select() (Selection, error) {
	for {
		choice, err := s.ask(menu)
		if err != nil {
			return Selection{}, err
		}

		sel, ok, err := s.resolve(choice)
		if err != nil {
			return Selection{}, err
		}
		if ok {
			return sel, nil
		}
	}
}

func (s *Selector) resolve(choice string) (Selection, bool, error) {
	switch choice {
	case "1":
		answer, err := s.ask(adHocMenu)
		if err != nil {
			return Selection{}, false, err
		}
		n, ok := adHocDays[answer]
		if !ok {
			s.retry("Please select one of the viable options.")
			return Selection{}, false, nil
		}
		w, err := window.AdHocDays(n)
		if err != nil {
			return Selection{}, false, err
		}
		return Selection{Window: w, GenerateReport: true}, true, nil

	case "2":
		return Selection{Window: window.PriorMonth(), GenerateReport: true}, true, nil

	case "3":
		fmt.Fprint(s.out, rangeHelp)
		start, err := s.askInt("\nHow many months ago should the report start?\n> ")
		if err != nil {
			return Selection{}, false, err
		}
		end, err := s.askInt("\nHow many months ago should the report end?\n> ")
		if err != nil {
			return Selection{}, false, err
		}
		w, err := window.MonthRange(start, end)
		if errors.Is(err, window.ErrInvalidWindow) {
			s.retry("Please provide viable numbers at this prompt.")
			return Selection{}, false, nil
		}
		if err != nil {
			return Selection{}, false, err
		}
		return Selection{Window: w, GenerateReport: true}, true, nil

	case "4":
		return Selection{Window: window.PriorMonth(), GenerateReport: false}, true, nil
	}

	s.retry("Please select one of the viable options.")
	return Selection{}, false, nil
}

// askInt returns -1 for non-numeric answers so range validation rejects them
func (s *Selector) askInt(question string) (int, error) {
	answer, err := s.ask(question)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(answer)
	if convErr != nil {
		return -1, nil
	}
	return n, nil
}

func (s *Selector) ask(question string) (string, error) {
	fmt.Fprint(s.out, question)

	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Selector) retry(msg string) {
	fmt.Fprintf(s.out, "\n%s\n", msg)
}
