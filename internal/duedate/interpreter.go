// Package duedate turns free-text "due" values such as "27/12/2024" or
// "5 business days" into concrete dates relative to a contract date.
package duedate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"matter_intake_backend/internal/calendar"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ISODate is the output layout for resolved dates.
const ISODate = "2006-01-02"

// MaxOffsetDays is the largest relative offset Resolve accepts, about ten
// years. Larger counts have no value.
const MaxOffsetDays = 3660

type datePattern struct {
	re      *regexp.Regexp
	layouts []string
	clean   func(string) string
}

var ordinalSuffix = regexp.MustCompile(`(?i)(\d{1,2})(st|nd|rd|th)\b`)

// titleMonth capitalises month names so time.Parse accepts "27 december 2024".
// A Caser is stateful, so one is built per call.
func titleMonth(s string) string {
	return cases.Title(language.English).String(s)
}

// absolutePatterns is ordered: the first regex that matches decides the layouts tried.
var absolutePatterns = []datePattern{
	{re: regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`), layouts: []string{"2-1-2006"}},
	{re: regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`), layouts: []string{"2/1/2006"}},
	{re: regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`), layouts: []string{"2.1.2006"}},
	{re: regexp.MustCompile(`^\d{1,2} \d{1,2} \d{4}$`), layouts: []string{"2 1 2006"}},
	{re: regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{2}$`), layouts: []string{"2-1-06"}},
	{re: regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2}$`), layouts: []string{"2/1/06"}},
	{re: regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{2}$`), layouts: []string{"2.1.06"}},
	{re: regexp.MustCompile(`^\d{1,2} \d{1,2} \d{2}$`), layouts: []string{"2 1 06"}},
	{
		re:      regexp.MustCompile(`(?i)^\d{1,2}(st|nd|rd|th)?(\s+of)?\s+[a-z]+,?\s+\d{4}$`),
		layouts: []string{"2 January 2006", "2 Jan 2006"},
		clean: func(s string) string {
			s = ordinalSuffix.ReplaceAllString(s, "$1")
			s = strings.ReplaceAll(s, ",", "")
			s = strings.Replace(strings.ToLower(s), " of ", " ", 1)
			return titleMonth(strings.Join(strings.Fields(s), " "))
		},
	},
	{re: regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), layouts: []string{ISODate}},
}

// isoFallback is tried when no pattern matched or the matched pattern failed to parse.
var isoFallback = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", ISODate}

var (
	firstInteger = regexp.MustCompile(`\d+`)
	businessWord = regexp.MustCompile(`(?i)biz|business|work`)
)

// Interpreter resolves due values against a calendar.
type Interpreter struct {
	cal       *calendar.Resolver
	inclusive bool
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithInclusive sets whether the reference day counts as day one of an offset.
// The default is inclusive.
func WithInclusive(inclusive bool) Option {
	return func(i *Interpreter) { i.inclusive = inclusive }
}

// New creates an Interpreter over cal.
func New(cal *calendar.Resolver, opts ...Option) *Interpreter {
	i := &Interpreter{cal: cal, inclusive: true}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Resolve converts raw into a date relative to reference. ok is false when
// raw cannot be interpreted or reference is nil or zero.
func (i *Interpreter) Resolve(raw string, reference *time.Time) (time.Time, bool) {
	if reference == nil || reference.IsZero() {
		return time.Time{}, false
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}

	if abs, ok := parseAbsolute(value, reference.Location()); ok {
		return i.cal.NextWorkingDay(abs), true
	}

	if !strings.Contains(strings.ToLower(value), "days") {
		return time.Time{}, false
	}

	match := firstInteger.FindString(value)
	if match == "" {
		return time.Time{}, false
	}
	count, err := strconv.Atoi(match)
	if err != nil || count > MaxOffsetDays {
		return time.Time{}, false
	}

	if count > 0 && i.inclusive {
		count--
	}

	if businessWord.MatchString(value) {
		start := i.cal.NextWorkingDay(*reference)
		return i.cal.OffsetWorkingDays(start, count), true
	}

	return i.cal.NextWorkingDay(i.cal.OffsetCalendarDays(*reference, count)), true
}

// ResolveISO is Resolve formatted as YYYY-MM-DD, or "" when there is no value.
func (i *Interpreter) ResolveISO(raw string, reference *time.Time) string {
	d, ok := i.Resolve(raw, reference)
	if !ok {
		return ""
	}
	return d.Format(ISODate)
}

func parseAbsolute(value string, loc *time.Location) (time.Time, bool) {
	for _, p := range absolutePatterns {
		if !p.re.MatchString(value) {
			continue
		}
		candidate := value
		if p.clean != nil {
			candidate = p.clean(value)
		}
		for _, layout := range p.layouts {
			if t, err := time.ParseInLocation(layout, candidate, loc); err == nil {
				return t, true
			}
		}
		break
	}

	for _, layout := range isoFallback {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
