/*
calendar.go - Calendar dates and working-day arithmetic

PURPOSE:
  Turns a date range plus half-day flags into a decimal working-day count.
  This is the single source of truth for "how many days does this request
  consume": intake, balance reservation, and commit all use its output.

CORRECTNESS NOTE:
  All comparisons operate on calendar dates, never on timestamps. A Date is
  normalized to UTC midnight at construction; holiday lookups key on the
  calendar date string. Mixing zoned instants into day arithmetic is the
  classic off-by-one bug this type exists to prevent.

HALF-DAY RULES:
  - Single-day request: 0.5 if either boundary flag is a half day, else 1.0.
    A single day is never double-discounted to 0.
  - Multi-day start: 0.5 only for an AFTERNOON start (a MORNING start means
    the absence covers the whole first day).
  - Multi-day end: 0.5 only for a MORNING end.

SEE ALSO:
  - request.go: Uses WorkingDays at intake
  - balance.go: Consumes the resulting decimal day count
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Calendar date, not an instant
// =============================================================================

// Date is a calendar date normalized to UTC midnight.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar date in the instant's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func Today() Date { return DateOf(time.Now()) }

// Comparison
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }
func (d Date) IsZero() bool       { return d.t.IsZero() }

// Arithmetic and properties
func (d Date) AddDays(n int) Date     { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Year() int              { return d.t.Year() }
func (d Date) Month() time.Month      { return d.t.Month() }
func (d Date) Day() int               { return d.t.Day() }
func (d Date) Weekday() time.Weekday  { return d.t.Weekday() }
func (d Date) Time() time.Time        { return d.t }
func (d Date) String() string         { return d.t.Format("2006-01-02") }

// =============================================================================
// WORKING WEEK - Which weekdays count as working days
// =============================================================================

// WorkingWeek is the set of weekdays an office works. Supplied per office so
// Sunday-Thursday weeks work the same as Monday-Friday ones.
type WorkingWeek map[time.Weekday]bool

// NewWorkingWeek builds a working week from the given weekdays.
func NewWorkingWeek(days ...time.Weekday) WorkingWeek {
	w := make(WorkingWeek, len(days))
	for _, d := range days {
		w[d] = true
	}
	return w
}

// DefaultWorkingWeek is Monday through Friday.
func DefaultWorkingWeek() WorkingWeek {
	return NewWorkingWeek(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
}

func (w WorkingWeek) Contains(d time.Weekday) bool { return w[d] }

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is a non-working calendar date for an office.
type Holiday struct {
	ID     string
	Office OfficeID // empty = applies to all offices
	Date   Date
	Name   string
}

// HolidaySet provides exact calendar-date holiday lookup.
// Keys are date strings, so lookups can never be perturbed by time-of-day
// or timezone components.
type HolidaySet map[string]bool

func NewHolidaySet(holidays ...Holiday) HolidaySet {
	s := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		s.Add(h.Date)
	}
	return s
}

func (s HolidaySet) Add(d Date)           { s[d.String()] = true }
func (s HolidaySet) Contains(d Date) bool { return s[d.String()] }

// =============================================================================
// WORKING-DAY CALCULATOR
// =============================================================================

var (
	half = decimal.NewFromFloat(0.5)
	one  = decimal.NewFromInt(1)
)

// WorkingDays computes the decimal day count a request consumes.
//
// Iterates each calendar date from start to end inclusive. A date contributes
// only if its weekday is in week and it is not a holiday. Stateless and safe
// for concurrent use.
//
// Returns ErrInvalidRange if end is before start.
func WorkingDays(start, end Date, startHalf, endHalf HalfDay, week WorkingWeek, holidays HolidaySet) (decimal.Decimal, error) {
	if end.Before(start) {
		return decimal.Zero, &InvalidRangeError{Start: start, End: end}
	}

	total := decimal.Zero
	single := start.Equal(end)

	for d := start; !d.After(end); d = d.AddDays(1) {
		if !week.Contains(d.Weekday()) {
			continue
		}
		if holidays.Contains(d) {
			continue
		}

		contribution := one
		switch {
		case single:
			// A single day is 0.5 as soon as either flag is a half day;
			// two half-day flags still mean 0.5, not 0.
			if startHalf != FullDay || endHalf != FullDay {
				contribution = half
			}
		case d.Equal(start):
			if startHalf == Afternoon {
				contribution = half
			}
		case d.Equal(end):
			if endHalf == Morning {
				contribution = half
			}
		}

		total = total.Add(contribution)
	}

	return total, nil
}
