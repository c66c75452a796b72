// Package ledger holds the month arithmetic and roll-forward rules of the
// monthly stock ledger. It does no I/O.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPeriod is returned for a month outside 1..12 or a non-positive year.
var ErrInvalidPeriod = errors.New("invalid year/month")

// Period is a calendar month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewPeriod validates year and month.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: %d-%d", ErrInvalidPeriod, year, month)
	}
	return p, nil
}

// ParsePeriod reads "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return PeriodOf(t), nil
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// PeriodOfDate reads the month of a "YYYY-MM-DD" date.
func PeriodOfDate(date string) (Period, error) {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return Period{}, fmt.Errorf("%w: date %q", ErrInvalidPeriod, date)
	}
	return PeriodOf(t), nil
}

func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= 1 && p.Month <= 12
}

// Next is the following month, rolling December into January.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Prev is the preceding month, rolling January back into December.
func (p Period) Prev() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Ordinal numbers months consecutively so that later months compare greater.
func (p Period) Ordinal() int {
	return p.Year*12 + p.Month - 1
}

// Compare returns -1, 0 or +1.
func (p Period) Compare(o Period) int {
	switch a, b := p.Ordinal(), o.Ordinal(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (p Period) Before(o Period) bool { return p.Compare(o) < 0 }
func (p Period) After(o Period) bool  { return p.Compare(o) > 0 }

// MonthsUntil counts months from p to o; negative when o is earlier.
func (p Period) MonthsUntil(o Period) int {
	return o.Ordinal() - p.Ordinal()
}

// Days is the number of days in the month.
func (p Period) Days() int {
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstDay is the first date of the month as "YYYY-MM-DD".
func (p Period) FirstDay() string {
	return fmt.Sprintf("%04d-%02d-01", p.Year, p.Month)
}

// LastDay is the last date of the month as "YYYY-MM-DD".
func (p Period) LastDay() string {
	return fmt.Sprintf("%04d-%02d-%02d", p.Year, p.Month, p.Days())
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Timeline lists every month from..to inclusive. It is empty when to is before from.
func Timeline(from, to Period) []Period {
	n := from.MonthsUntil(to) + 1
	if n <= 0 {
		return nil
	}
	out := make([]Period, 0, n)
	for p := from; !p.After(to); p = p.Next() {
		out = append(out, p)
	}
	return out
}
