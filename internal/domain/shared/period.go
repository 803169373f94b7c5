package shared

import (
	"fmt"
	"time"
)

// Period is a calendar month of a given year.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, InvalidInputError{Field: "month", Reason: fmt.Sprintf("%d is outside 1..12", month)}
	}
	if year < 2000 || year > 2100 {
		return Period{}, InvalidInputError{Field: "year", Reason: fmt.Sprintf("%d is out of range", year)}
	}
	return Period{Year: year, Month: month}, nil
}

// PeriodOf returns the month containing t in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Index is a monotonic month counter, suitable for ordering and range checks.
func (p Period) Index() int {
	return p.Year*12 + p.Month - 1
}

func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

func (p Period) String() string {
	return fmt.Sprintf("%02d/%d", p.Month, p.Year)
}

// Clock is the server time source. Callers never supply "now".
type Clock interface {
	Now() time.Time
}

type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	return c.toLocal(time.Now())
}

func (c SystemClock) toLocal(t time.Time) time.Time {
	if c.Location == nil {
		return t
	}
	return t.In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time {
	return c.At
}
