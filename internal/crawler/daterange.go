package crawler

import "time"

// DateRange is the inclusive span of trading days requested from the sheet.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange derives the query range from today: the sheet publishes with a
// lag, so the window is today-3 through today-2. Only the calendar date of
// today is used.
func NewDateRange(today time.Time) DateRange {
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	return DateRange{
		Start: day.AddDate(0, 0, -3),
		End:   day.AddDate(0, 0, -2),
	}
}

func (r DateRange) String() string {
	return r.Start.Format(time.DateOnly) + ".." + r.End.Format(time.DateOnly)
}
