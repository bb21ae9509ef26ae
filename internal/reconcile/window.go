package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidWindow = errors.New("invalid reporting window")

// Window is a half-open [Start, End) range; a nil bound is unbounded.
type Window struct {
	Kind  string     `json:"kind"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && !t.Before(*w.End) {
		return false
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads YYYY-MM-DD as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidWindow, s)
	}
	return t, nil
}

// ResolveWindow turns a named period into a window relative to now. A custom
// period missing either bound covers everything.
func ResolveWindow(period, start, end string, now time.Time) (Window, error) {
	now = now.UTC()
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "", "all":
		return Window{Kind: "all"}, nil
	case "today":
		s := startOfDay(now)
		return Window{Kind: "today", Start: &s}, nil
	case "week", "this-week":
		s := now.AddDate(0, 0, -7)
		return Window{Kind: "week", Start: &s}, nil
	case "month", "this-month":
		s := startOfMonth(now)
		return Window{Kind: "month", Start: &s}, nil
	case "custom":
		if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
			return Window{Kind: "all"}, nil
		}
		return customWindow(start, end)
	default:
		return Window{}, fmt.Errorf("%w: unknown period %q", ErrInvalidWindow, period)
	}
}

func customWindow(start, end string) (Window, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Window{}, err
	}
	if e.Before(s) {
		return Window{}, fmt.Errorf("%w: end date before start date", ErrInvalidWindow)
	}
	e = e.AddDate(0, 0, 1)
	return Window{Kind: "custom", Start: &s, End: &e}, nil
}

// MonthRange returns [first of month, first of next month) for YYYY-MM.
func MonthRange(ym string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(ym), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: month %q must be YYYY-MM", ErrInvalidWindow, ym)
	}
	return t, t.AddDate(0, 1, 0), nil
}

// TaxPeriod is the range used by the per-product tax breakdown.
type TaxPeriod struct {
	Kind         string    `json:"kind"`
	Month        string    `json:"month,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"-"`
	EndInclusive string    `json:"end_inclusive"`
}

func (p TaxPeriod) Window() Window {
	s, e := p.Start, p.End
	return Window{Kind: p.Kind, Start: &s, End: &e}
}

// ResolveTaxPeriod prefers a YYYY-MM month, then a complete custom range,
// and defaults to the current calendar month.
func ResolveTaxPeriod(month, start, end string, now time.Time) (TaxPeriod, error) {
	if strings.TrimSpace(month) != "" {
		s, e, err := MonthRange(month)
		if err != nil {
			return TaxPeriod{}, err
		}
		return newTaxPeriod("month", s.Format("2006-01"), s, e), nil
	}

	if strings.TrimSpace(start) != "" && strings.TrimSpace(end) != "" {
		w, err := customWindow(start, end)
		if err != nil {
			return TaxPeriod{}, err
		}
		return newTaxPeriod("custom", "", *w.Start, *w.End), nil
	}

	s := startOfMonth(now)
	return newTaxPeriod("month", s.Format("2006-01"), s, s.AddDate(0, 1, 0)), nil
}

func newTaxPeriod(kind, month string, start, end time.Time) TaxPeriod {
	return TaxPeriod{
		Kind:         kind,
		Month:        month,
		Start:        start,
		End:          end,
		EndInclusive: end.AddDate(0, 0, -1).Format(DateLayout),
	}
}
