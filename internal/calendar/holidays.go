package calendar

import (
	"slices"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
)

// Observance shifts for holidays that fall on a weekend.
var (
	weekendToMonday = []cal.AltDay{
		{Day: time.Saturday, Offset: 2},
		{Day: time.Sunday, Offset: 1},
	}
	// Christmas and Boxing Day both push two days so they never share a Monday.
	weekendPlusTwo = []cal.AltDay{
		{Day: time.Saturday, Offset: 2},
		{Day: time.Sunday, Offset: 2},
	}
)

var (
	newYearsDay = &cal.Holiday{
		Name: "New Year's Day", Month: time.January, Day: 1,
		Observed: weekendToMonday, Func: cal.CalcDayOfMonth,
	}
	australiaDay = &cal.Holiday{
		Name: "Australia Day", Month: time.January, Day: 26,
		Observed: weekendToMonday, Func: cal.CalcDayOfMonth,
	}
	goodFriday = &cal.Holiday{
		Name: "Good Friday", Offset: -2, Func: cal.CalcEasterOffset,
	}
	easterSaturday = &cal.Holiday{
		Name: "Easter Saturday", Offset: -1, Func: cal.CalcEasterOffset,
	}
	easterMonday = &cal.Holiday{
		Name: "Easter Monday", Offset: 1, Func: cal.CalcEasterOffset,
	}
	anzacDay = &cal.Holiday{
		Name: "Anzac Day", Month: time.April, Day: 25, Func: cal.CalcDayOfMonth,
	}
	christmasDay = &cal.Holiday{
		Name: "Christmas Day", Month: time.December, Day: 25,
		Observed: weekendPlusTwo, Func: cal.CalcDayOfMonth,
	}
	boxingDay = &cal.Holiday{
		Name: "Boxing Day", Month: time.December, Day: 26,
		Observed: weekendPlusTwo, Func: cal.CalcDayOfMonth,
	}
)

func nthMonday(name string, month time.Month, n int) *cal.Holiday {
	return &cal.Holiday{
		Name: name, Month: month, Weekday: time.Monday, Offset: n,
		Func: cal.CalcWeekdayOffset,
	}
}

var national = []*cal.Holiday{
	newYearsDay, australiaDay, goodFriday, easterMonday, anzacDay, christmasDay, boxingDay,
}

// jurisdictions maps a state/territory code to its public holiday calendar.
var jurisdictions = map[string][]*cal.Holiday{
	"NSW": withNational(
		easterSaturday,
		nthMonday("King's Birthday", time.June, 2),
		nthMonday("Labour Day", time.October, 1),
	),
	"ACT": withNational(
		easterSaturday,
		nthMonday("Canberra Day", time.March, 2),
		nthMonday("Reconciliation Day", time.May, -1),
		nthMonday("King's Birthday", time.June, 2),
		nthMonday("Labour Day", time.October, 1),
	),
	"VIC": withNational(
		easterSaturday,
		nthMonday("Labour Day", time.March, 2),
		nthMonday("King's Birthday", time.June, 2),
	),
	"QLD": withNational(
		easterSaturday,
		nthMonday("Labour Day", time.May, 1),
		nthMonday("King's Birthday", time.October, 1),
	),
	"SA": withNational(
		easterSaturday,
		nthMonday("Adelaide Cup Day", time.March, 2),
		nthMonday("King's Birthday", time.June, 2),
		nthMonday("Labour Day", time.October, 1),
	),
	"WA": withNational(
		nthMonday("Labour Day", time.March, 1),
		nthMonday("Western Australia Day", time.June, 1),
		nthMonday("King's Birthday", time.September, -1),
	),
	"TAS": withNational(
		nthMonday("Eight Hours Day", time.March, 2),
		nthMonday("King's Birthday", time.June, 2),
	),
	"NT": withNational(
		easterSaturday,
		nthMonday("May Day", time.May, 1),
		nthMonday("King's Birthday", time.June, 2),
		nthMonday("Picnic Day", time.August, 1),
	),
}

func withNational(extra ...*cal.Holiday) []*cal.Holiday {
	out := make([]*cal.Holiday, 0, len(national)+len(extra))
	out = append(out, national...)
	return append(out, extra...)
}

// Jurisdictions returns the supported jurisdiction codes, sorted.
func Jurisdictions() []string {
	codes := make([]string, 0, len(jurisdictions))
	for code := range jurisdictions {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

func lookupJurisdiction(code string) ([]*cal.Holiday, bool) {
	holidays, ok := jurisdictions[strings.ToUpper(strings.TrimSpace(code))]
	return holidays, ok
}
