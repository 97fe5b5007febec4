package duedate

import (
	"testing"
	"time"

	"matter_intake_backend/internal/calendar"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInterpreter(t *testing.T, opts ...Option) *Interpreter {
	t.Helper()
	cal, err := calendar.NewResolver("NSW", []calendar.CustomHoliday{
		{Day: 27, Month: time.December},
		{Day: 30, Month: time.December},
		{Day: 31, Month: time.December},
	})
	require.NoError(t, err)
	return New(cal, opts...)
}

func ref(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestResolveOffsets(t *testing.T) {
	in := newInterpreter(t)

	cases := []struct {
		name      string
		raw       string
		reference *time.Time
		want      string
	}{
		{"calendar days inclusive", "5 days", ref(2025, time.January, 13), "2025-01-17"},
		{"business days inclusive", "5 business days", ref(2025, time.January, 13), "2025-01-17"},
		{"business days from saturday rolls first", "5 business days", ref(2025, time.January, 18), "2025-01-24"},
		{"working keyword", "10 working days", ref(2025, time.January, 13), "2025-01-24"},
		{"calendar days landing on weekend roll forward", "6 days", ref(2025, time.January, 13), "2025-01-20"},
		{"calendar days across observed holiday", "14 days", ref(2025, time.January, 14), "2025-01-28"},
		{"case insensitive days", "3 DAYS", ref(2025, time.January, 13), "2025-01-15"},
		{"zero days keeps reference", "0 days", ref(2025, time.January, 13), "2025-01-13"},
		{"biz abbreviation", "within 2 biz days", ref(2025, time.January, 13), "2025-01-14"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, in.ResolveISO(tc.raw, tc.reference))
		})
	}
}

func TestResolveAbsoluteDates(t *testing.T) {
	in := newInterpreter(t)
	reference := ref(2025, time.January, 13)

	cases := []struct {
		raw  string
		want string
	}{
		{"14/01/2025", "2025-01-14"},
		{"14-1-2025", "2025-01-14"},
		{"14.01.2025", "2025-01-14"},
		{"14 01 2025", "2025-01-14"},
		{"14/01/25", "2025-01-14"},
		{"14th January 2025", "2025-01-14"},
		{"3rd of Feb, 2025", "2025-02-03"},
		{"2025-01-14", "2025-01-14"},
		{"2025-01-14T09:30:00Z", "2025-01-14"},
		// Shutdown day, weekend and New Year's Day are skipped.
		{"27/12/2024", "2025-01-02"},
		{"18/01/2025", "2025-01-20"},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, in.ResolveISO(tc.raw, reference))
		})
	}
}

func TestResolveNoValue(t *testing.T) {
	in := newInterpreter(t)

	_, ok := in.Resolve("5 days", nil)
	assert.False(t, ok, "missing reference")

	zero := time.Time{}
	_, ok = in.Resolve("5 days", &zero)
	assert.False(t, ok, "zero reference")

	_, ok = in.Resolve("next week", ref(2025, time.January, 13))
	assert.False(t, ok, "no days keyword")

	_, ok = in.Resolve("some days", ref(2025, time.January, 13))
	assert.False(t, ok, "no count")

	assert.Equal(t, "", in.ResolveISO("", ref(2025, time.January, 13)))
}

func TestResolveCapsOffset(t *testing.T) {
	in := newInterpreter(t)
	start := ref(2025, time.January, 13)

	d, ok := in.Resolve("3660 days", start)
	require.True(t, ok)
	assert.True(t, d.After(start.AddDate(10, 0, -1)))

	_, ok = in.Resolve("3661 days", start)
	assert.False(t, ok, "calendar days above the cap")

	_, ok = in.Resolve("2000000000 business days", start)
	assert.False(t, ok, "business days above the cap")

	_, ok = in.Resolve("99999999999999999999 days", start)
	assert.False(t, ok, "overflowing count")
}

func TestResolveExclusiveOffsets(t *testing.T) {
	in := newInterpreter(t, WithInclusive(false))

	assert.Equal(t, "2025-01-20", in.ResolveISO("5 business days", ref(2025, time.January, 13)))
	assert.Equal(t, "2025-01-20", in.ResolveISO("5 days", ref(2025, time.January, 13)))
}
