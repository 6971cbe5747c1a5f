package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pricepipe/internal/browser"
	apperrors "pricepipe/internal/errors"
	"pricepipe/internal/wait"
)

// DateField identifies one of the sheet's date control groups.
type DateField string

const (
	DateStart DateField = "start"
	DateEnd   DateField = "end"
)

// Label returns the text the page shows next to the field's selects.
func (f DateField) Label() string {
	switch f {
	case DateStart:
		return "시작일"
	case DateEnd:
		return "종료일"
	default:
		return string(f)
	}
}

// DateParts formats t the way the year, month and day options are valued.
func DateParts(t time.Time) (year, month, day string) {
	return fmt.Sprintf("%d년", t.Year()),
		fmt.Sprintf("%02d월", int(t.Month())),
		fmt.Sprintf("%02d일", t.Day())
}

// DateFieldSetter drives a year/month/day triple of <select> controls.
type DateFieldSetter struct {
	page *page
}

// NewDateFieldSetter creates a setter on session.
func NewDateFieldSetter(session browser.Session, policy wait.Policy, delays Delays, logger *slog.Logger) *DateFieldSetter {
	return &DateFieldSetter{page: newPage(session, policy, delays, logger)}
}

// SetDate selects year, then month, then day. The month and day selects are
// re-rendered after each change, so each part settles before the next.
func (s *DateFieldSetter) SetDate(ctx context.Context, field DateField, date time.Time) error {
	year, month, day := DateParts(date)
	parts := []struct {
		name   string
		value  string
		settle time.Duration
	}{
		{"year", year, s.page.delays.DatePart},
		{"month", month, s.page.delays.DatePart},
		{"day", day, s.page.delays.DateDone},
	}

	for i, part := range parts {
		selector := dateSelect(field.Label(), i+1)
		el, err := s.page.present(ctx, selector)
		if err != nil {
			return apperrors.NewElementNotFoundError(fmt.Sprintf("%s date %s select", field, part.name), err).
				WithContext("selector", selector)
		}
		if err := el.SelectByValue(ctx, part.value); err != nil {
			if errors.Is(err, browser.ErrOptionNotFound) {
				return apperrors.NewOptionNotFoundError(fmt.Sprintf("%s date %s", field, part.name), part.value, err)
			}
			return apperrors.NewBrowserError(fmt.Sprintf("select %s date %s", field, part.name), err)
		}
		s.page.settle(part.settle)
	}

	s.page.logger.InfoContext(ctx, "Date set",
		slog.String("field", string(field)),
		slog.String("date", date.Format(time.DateOnly)))
	return nil
}
