package domain

import (
	"fmt"
	"time"
)

// Date is a calendar day in the ledger's time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate reads the YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, s)
	}
	return DateOf(t), nil
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// YearMonth keys the monthly summary.
type YearMonth struct {
	Year  int
	Month time.Month
}

func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (m YearMonth) Before(o YearMonth) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m YearMonth) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

type DailyTotal struct {
	Date  Date `json:"date"`
	Total int  `json:"total"`
}

type MonthlyTotal struct {
	Month YearMonth `json:"month"`
	Total int       `json:"total"`
}

type ItemTotal struct {
	Item  string `json:"item"`
	Total int    `json:"total"`
}

// Metric selects what a summary adds up.
type Metric int

const (
	MetricSumQuantity Metric = iota
	MetricCountEntries
)

func (m Metric) Value(e LedgerEntry) int {
	if m == MetricCountEntries {
		return 1
	}
	return e.Quantity
}

func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", "quantity":
		return MetricSumQuantity, nil
	case "count":
		return MetricCountEntries, nil
	}
	return 0, fmt.Errorf("%w: unknown metric %q", ErrValidation, s)
}
