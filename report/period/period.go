// Package period derives the reporting month a report belongs to.
package period

import (
	"fmt"
	"time"
)

// DefaultCutoffDay is the last day of a month on which reports still count
// toward the previous month.
const DefaultCutoffDay = 24

var monthNames = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// Period is a reporting month.
type Period struct {
	Year  int
	Month time.Month
}

// String renders the period as "<Месяц> <Год>".
func (p Period) String() string {
	if p.Month < time.January || p.Month > time.December {
		return fmt.Sprintf("%d", p.Year)
	}
	return fmt.Sprintf("%s %d", monthNames[p.Month-1], p.Year)
}

// Previous returns the calendar month before p.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Calculator maps a moment to its reporting period in a fixed time zone.
type Calculator struct {
	Location  *time.Location
	CutoffDay int
}

// NewCalculator returns a Calculator for loc. A nil loc means UTC and a
// non-positive cutoff falls back to DefaultCutoffDay.
func NewCalculator(loc *time.Location, cutoffDay int) Calculator {
	if loc == nil {
		loc = time.UTC
	}
	if cutoffDay <= 0 {
		cutoffDay = DefaultCutoffDay
	}
	return Calculator{Location: loc, CutoffDay: cutoffDay}
}

// For returns the reporting period for now: the previous calendar month up to
// and including the cutoff day, the current month afterwards.
func (c Calculator) For(now time.Time) Period {
	c = NewCalculator(c.Location, c.CutoffDay)
	local := now.In(c.Location)
	current := Period{Year: local.Year(), Month: local.Month()}
	if local.Day() <= c.CutoffDay {
		return current.Previous()
	}
	return current
}

// For is a shorthand for NewCalculator(loc, DefaultCutoffDay).For(now).
func For(now time.Time, loc *time.Location) Period {
	return NewCalculator(loc, DefaultCutoffDay).For(now)
}
