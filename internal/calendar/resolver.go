// Package calendar decides which dates are working days for a jurisdiction and
// moves dates forward by calendar or business days.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
)

// CustomHoliday is a recurring non-working (day, month) that is not part of the
// jurisdiction's public holiday calendar, e.g. a firm's year-end shutdown.
type CustomHoliday struct {
	Day   int        `yaml:"day" json:"day"`
	Month time.Month `yaml:"month" json:"month"`
}

type monthDay struct {
	month time.Month
	day   int
}

// Resolver answers working-day questions. It holds no mutable state and is safe
// for concurrent use.
type Resolver struct {
	jurisdiction string
	holidays     []*cal.Holiday
	custom       map[monthDay]struct{}
}

// NewResolver builds a resolver for jurisdiction with the given custom holidays.
func NewResolver(jurisdiction string, custom []CustomHoliday) (*Resolver, error) {
	holidays, ok := lookupJurisdiction(jurisdiction)
	if !ok {
		return nil, fmt.Errorf("calendar: unknown jurisdiction %q (supported: %s)", jurisdiction, strings.Join(Jurisdictions(), ", "))
	}

	set := make(map[monthDay]struct{}, len(custom))
	for _, c := range custom {
		if c.Month < time.January || c.Month > time.December || c.Day < 1 || c.Day > 31 {
			return nil, fmt.Errorf("calendar: invalid custom holiday %d/%d", c.Day, c.Month)
		}
		set[monthDay{month: c.Month, day: c.Day}] = struct{}{}
	}

	return &Resolver{jurisdiction: jurisdiction, holidays: holidays, custom: set}, nil
}

// Jurisdiction returns the code the resolver was built for.
func (r *Resolver) Jurisdiction() string {
	return r.jurisdiction
}

// IsWorkingDay is true for Monday to Friday dates that are neither a public
// holiday (actual or observed) nor a custom holiday. Time of day is ignored.
func (r *Resolver) IsWorkingDay(date time.Time) bool {
	d := truncate(date)

	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	if _, ok := r.custom[monthDay{month: d.Month(), day: d.Day()}]; ok {
		return false
	}

	return !r.isPublicHoliday(d)
}

// IsHoliday is the negation of IsWorkingDay.
func (r *Resolver) IsHoliday(date time.Time) bool {
	return !r.IsWorkingDay(date)
}

// NextWorkingDay returns date if it is a working day, otherwise the earliest
// later working day. The scan is unbounded.
func (r *Resolver) NextWorkingDay(date time.Time) time.Time {
	d := truncate(date)
	for !r.IsWorkingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// OffsetWorkingDays steps one calendar day at a time and counts only working
// days until n have been passed. The start date is never counted. n == 0
// returns date unchanged, without rolling a non-working date forward.
func (r *Resolver) OffsetWorkingDays(date time.Time, n int) time.Time {
	if n == 0 {
		return date
	}

	step := 1
	if n < 0 {
		step, n = -1, -n
	}

	d := truncate(date)
	for n > 0 {
		d = d.AddDate(0, 0, step)
		if r.IsWorkingDay(d) {
			n--
		}
	}
	return d
}

// OffsetCalendarDays adds n calendar days (n may be negative) with no holiday awareness.
func (r *Resolver) OffsetCalendarDays(date time.Time, n int) time.Time {
	return truncate(date).AddDate(0, 0, n)
}

func (r *Resolver) isPublicHoliday(d time.Time) bool {
	for _, h := range r.holidays {
		actual, observed := h.Calc(d.Year())
		if sameDay(actual, d) || sameDay(observed, d) {
			return true
		}
	}
	return false
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
