package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestPeriodNextPrevRollover(t *testing.T) {
	dec := Period{Year: 2024, Month: 12}
	if got := dec.Next(); got != (Period{Year: 2025, Month: 1}) {
		t.Fatalf("Next of %s = %s", dec, got)
	}
	jan := Period{Year: 2025, Month: 1}
	if got := jan.Prev(); got != dec {
		t.Fatalf("Prev of %s = %s", jan, got)
	}
	mid := Period{Year: 2024, Month: 9}
	if mid.Next().Prev() != mid {
		t.Fatalf("Next/Prev not inverse for %s", mid)
	}
}

func TestPeriodCompare(t *testing.T) {
	a := Period{Year: 2024, Month: 12}
	b := Period{Year: 2025, Month: 1}
	if !a.Before(b) || b.Before(a) || !b.After(a) {
		t.Fatalf("ordering of %s and %s is wrong", a, b)
	}
	if a.Compare(a) != 0 {
		t.Fatalf("Compare with itself should be 0")
	}
	if n := a.MonthsUntil(Period{Year: 2034, Month: 12}); n != 120 {
		t.Fatalf("MonthsUntil = %d, want 120", n)
	}
}

func TestNewPeriodValidation(t *testing.T) {
	tests := []struct {
		year, month int
		ok          bool
	}{
		{2024, 9, true},
		{2024, 0, false},
		{2024, 13, false},
		{0, 5, false},
	}
	for _, tt := range tests {
		_, err := NewPeriod(tt.year, tt.month)
		if tt.ok && err != nil {
			t.Errorf("NewPeriod(%d, %d) unexpected error: %v", tt.year, tt.month, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("NewPeriod(%d, %d) = %v, want ErrInvalidPeriod", tt.year, tt.month, err)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-09")
	if err != nil || p != (Period{Year: 2024, Month: 9}) {
		t.Fatalf("ParsePeriod = %v, %v", p, err)
	}
	if _, err := ParsePeriod("2024/09"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	d, err := PeriodOfDate("2025-01-31")
	if err != nil || d != (Period{Year: 2025, Month: 1}) {
		t.Fatalf("PeriodOfDate = %v, %v", d, err)
	}
	if got := PeriodOf(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)); got.Days() != 29 {
		t.Fatalf("Days for %s = %d", got, got.Days())
	}
}

func TestTimeline(t *testing.T) {
	months := Timeline(Period{Year: 2024, Month: 9}, Period{Year: 2034, Month: 12})
	if len(months) != 124 {
		t.Fatalf("timeline length = %d, want 124", len(months))
	}
	for i := 1; i < len(months); i++ {
		if months[i-1].Next() != months[i] {
			t.Fatalf("gap between %s and %s", months[i-1], months[i])
		}
	}
	if got := Timeline(Period{Year: 2025, Month: 1}, Period{Year: 2024, Month: 12}); len(got) != 0 {
		t.Fatalf("reversed timeline should be empty, got %d", len(got))
	}
	if p := (Period{Year: 2024, Month: 9}); p.FirstDay() != "2024-09-01" || p.LastDay() != "2024-09-30" {
		t.Fatalf("bounds = %s..%s", p.FirstDay(), p.LastDay())
	}
}
