package crawler

import (
	"fmt"
	"time"

	"pricepipe/internal/browser/browsertest"
	"pricepipe/internal/wait"
)

var today = time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC)

func testPolicies(clock *wait.FakeClock) (elements, download wait.Policy) {
	elements = wait.Policy{Timeout: 30 * time.Second, Interval: 500 * time.Millisecond, Clock: clock}
	download = wait.Policy{Timeout: 60 * time.Second, Interval: time.Second, Clock: clock}
	return elements, download
}

func numbered(format string, from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf(format, i))
	}
	return out
}

func addDateControls(s *browsertest.Session, field DateField) {
	s.Add(dateSelect(field.Label(), 1), &browsertest.Node{Values: []string{"2023년", "2024년", "2025년"}})
	s.Add(dateSelect(field.Label(), 2), &browsertest.Node{Values: numbered("%02d월", 1, 12)})
	s.Add(dateSelect(field.Label(), 3), &browsertest.Node{Values: numbered("%02d일", 1, 31)})
}

func addFilter(s *browsertest.Session, f FilterSelection) {
	s.Add(filterHeader(f.Title), nil)
	s.Add(filterOption(f.OptionText), nil)
}

// newSheet returns a session laid out like the price sheet with every control
// of the default query present and clickable.
func newSheet() *browsertest.Session {
	s := browsertest.NewSession()
	s.Add(selPageReady, nil)
	addDateControls(s, DateStart)
	addDateControls(s, DateEnd)
	s.Add(selItemSelect, &browsertest.Node{Options: []string{"배추", "무", "양파"}})
	for _, f := range DefaultQuerySpec().Filters {
		addFilter(s, f)
	}
	s.Add(selSearchInput, nil)
	s.Add(selFilterOK, nil)
	s.Add(selQueryConfirm, nil)
	s.Add(selExportButton, nil)
	return s
}

func call(op, selector, arg string) string {
	return browsertest.Call{Op: op, Selector: selector, Arg: arg}.String()
}
