package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Period selects the dashboard date window.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodDay   Period = "day"
)

// ParsePeriod accepts the English names and their Spanish aliases. Blank means all.
func ParsePeriod(raw string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "todos":
		return PeriodAll, nil
	case "month", "mes":
		return PeriodMonth, nil
	case "year", "año", "anio":
		return PeriodYear, nil
	case "day", "dia", "día":
		return PeriodDay, nil
	}
	return "", shared.NewValidationError("period", fmt.Sprintf("unknown period %q: use all, month, year or day", raw))
}

// DateRange is an inclusive calendar window. A nil range means unbounded.
type DateRange struct {
	From shared.Date `json:"from"`
	To   shared.Date `json:"to"`
}

// PeriodQuery is a parsed dashboard request. Zero Month or Year means current.
type PeriodQuery struct {
	Period Period
	Month  int
	Year   int
}

// Resolve turns the query into a date range relative to today.
func (q PeriodQuery) Resolve(today time.Time) (*DateRange, error) {
	year := q.Year
	if year == 0 {
		year = today.Year()
	}
	month := q.Month
	if month == 0 {
		month = int(today.Month())
	}
	if month < 1 || month > 12 {
		return nil, shared.NewValidationError("month", "must be between 1 and 12")
	}
	if year < 1900 || year > 9999 {
		return nil, shared.NewValidationError("year", "must be a four digit year")
	}

	switch q.Period {
	case PeriodAll, "":
		return nil, nil
	case PeriodMonth:
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return &DateRange{From: shared.NewDate(start), To: shared.NewDate(start.AddDate(0, 1, -1))}, nil
	case PeriodYear:
		return &DateRange{
			From: shared.NewDate(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)),
			To:   shared.NewDate(time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)),
		}, nil
	case PeriodDay:
		d := shared.NewDate(today)
		return &DateRange{From: d, To: d}, nil
	}
	return nil, shared.NewValidationError("period", fmt.Sprintf("unknown period %q", q.Period))
}

// key identifies the resolved window for request coalescing.
func rangeKey(r *DateRange) string {
	if r == nil {
		return "all"
	}
	return r.From.String() + ".." + r.To.String()
}
