package race

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextrace/internal/model"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func testResolver(t *testing.T) TimeResolver {
	return TimeResolver{Display: mustLoc(t, "Europe/Berlin")}
}

func TestResolveISOFieldsAnyPrecedenceSlot(t *testing.T) {
	tr := testResolver(t)
	want := time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)

	for _, field := range []string{
		model.FieldStartTimeLocal,
		model.FieldStartTimeUTC,
		model.FieldDateScheduled,
		model.FieldRaceDate,
	} {
		t.Run(field, func(t *testing.T) {
			got, ok := tr.Resolve(model.Record{field: "2025-07-20T15:30:00-04:00"})
			require.True(t, ok)
			assert.True(t, got.Equal(want), "got %s", got)
			assert.Equal(t, "Europe/Berlin", got.Location().String())
		})
	}
}

func TestResolveISOForms(t *testing.T) {
	tr := testResolver(t)
	berlin := mustLoc(t, "Europe/Berlin")

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"utc designator", "2025-07-20T19:30:00Z", time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)},
		{"fractional seconds", "2025-07-20T19:30:00.000Z", time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)},
		{"no seconds", "2025-07-20T15:30-04:00", time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)},
		{"basic offset", "2025-07-20T15:30:00-0400", time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)},
		{"hour-only offset", "2025-07-20T15:30:00-04", time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)},
		{"hour-only offset without seconds", "2025-07-20T21:30+02", time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)},
		{"no offset reads as display zone", "2025-07-20T21:30:00", time.Date(2025, 7, 20, 21, 30, 0, 0, berlin)},
		{"bare date is display midnight", "2025-07-20", time.Date(2025, 7, 20, 0, 0, 0, 0, berlin)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tr.Resolve(model.Record{model.FieldStartTimeUTC: tt.in})
			require.True(t, ok)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestResolveISOPrecedence(t *testing.T) {
	tr := testResolver(t)
	r := model.Record{
		model.FieldStartTimeUTC:   "2025-07-20T10:00:00Z",
		model.FieldStartTimeLocal: "2025-07-20T15:30:00-04:00",
	}

	got, ok := tr.Resolve(r)
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)))
}

func TestResolveDateClockMatchesISO(t *testing.T) {
	tr := testResolver(t)

	iso, ok := tr.Resolve(model.Record{model.FieldStartTimeLocal: "2025-07-20T15:30:00-04:00"})
	require.True(t, ok)

	pair, ok := tr.Resolve(model.Record{
		model.FieldDate: "2025-07-20",
		model.FieldTime: "3:30 PM ET",
	})
	require.True(t, ok)
	assert.True(t, pair.Equal(iso), "pair %s iso %s", pair, iso)
	assert.Equal(t, iso.Location(), pair.Location())
}

func TestResolveDateClockForms(t *testing.T) {
	tr := testResolver(t)

	tests := []struct {
		name string
		rec  model.Record
		want time.Time
	}{
		{
			name: "hour only",
			rec:  model.Record{model.FieldDate: "2025-07-20", model.FieldTime: "7 PM ET"},
			want: time.Date(2025, 7, 20, 23, 0, 0, 0, time.UTC),
		},
		{
			name: "lowercase meridiem and zone",
			rec:  model.Record{model.FieldDate: "2025-07-20", model.FieldTime: "3:30pm et"},
			want: time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC),
		},
		{
			name: "standard time abbreviation in winter",
			rec:  model.Record{model.FieldDate: "2026-02-15", model.FieldTime: "2:30 PM EST"},
			want: time.Date(2026, 2, 15, 19, 30, 0, 0, time.UTC),
		},
		{
			name: "explicit time zone field",
			rec: model.Record{
				model.FieldDate:     "2025-07-20",
				model.FieldTime:     "2:00 PM CT",
				model.FieldTimeZone: "America/Chicago",
			},
			want: time.Date(2025, 7, 20, 19, 0, 0, 0, time.UTC),
		},
		{
			name: "abbreviation does not pick the zone",
			rec:  model.Record{model.FieldDate: "2025-07-20", model.FieldTime: "3:30 PM PT"},
			want: time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC),
		},
		{
			name: "UTC suffix is stripped, event zone applies",
			rec:  model.Record{model.FieldDate: "2025-07-20", model.FieldTime: "3:30 PM UTC"},
			want: time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC),
		},
		{
			name: "GMT suffix",
			rec:  model.Record{model.FieldDate: "2025-07-20", model.FieldTime: "3:30 PM GMT"},
			want: time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC),
		},
		{
			name: "four letter suffix",
			rec:  model.Record{model.FieldDate: "2025-07-20", model.FieldTime: "3:30 PM AKDT"},
			want: time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC),
		},
		{
			name: "HST suffix with time_zone field",
			rec: model.Record{
				model.FieldDate:     "2025-07-20",
				model.FieldTime:     "1:30 PM HST",
				model.FieldTimeZone: "Pacific/Honolulu",
			},
			want: time.Date(2025, 7, 20, 23, 30, 0, 0, time.UTC),
		},
		{
			name: "time_local beats time",
			rec: model.Record{
				model.FieldDate:      "2025-07-20",
				model.FieldTimeLocal: "1:00 PM",
				model.FieldTime:      "9:00 PM",
			},
			want: time.Date(2025, 7, 20, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "race_time after unparseable iso field",
			rec: model.Record{
				model.FieldStartTimeLocal: "next sunday",
				model.FieldDate:           "2025-07-20",
				model.FieldRaceTime:       "12:00 PM",
			},
			want: time.Date(2025, 7, 20, 16, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tr.Resolve(tt.rec)
			require.True(t, ok)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestResolveCustomEventZone(t *testing.T) {
	tr := TimeResolver{Display: time.UTC, EventZone: mustLoc(t, "America/Los_Angeles")}

	got, ok := tr.Resolve(model.Record{model.FieldDate: "2025-07-20", model.FieldTime: "12:30 PM"})
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)))
}

func TestResolveUnresolved(t *testing.T) {
	tr := testResolver(t)

	tests := []struct {
		name string
		rec  model.Record
	}{
		{"empty", model.Record{}},
		{"date without clock", model.Record{model.FieldDate: "2025-07-20"}},
		{"clock without date", model.Record{model.FieldTime: "3:30 PM ET"}},
		{"garbage iso", model.Record{model.FieldStartTimeUTC: "soon"}},
		{"24h clock", model.Record{model.FieldDate: "2025-07-20", model.FieldTime: "15:30"}},
		{"unknown zone", model.Record{
			model.FieldDate:     "2025-07-20",
			model.FieldTime:     "3:30 PM",
			model.FieldTimeZone: "Mars/Olympus",
		}},
		{"zone word too long", model.Record{model.FieldDate: "2025-07-20", model.FieldTime: "3:30 PM Eastern"}},
		{"non-string timing", model.Record{model.FieldStartTimeLocal: map[string]any{"t": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tr.Resolve(tt.rec)
			assert.False(t, ok)
		})
	}
}

func TestCandidatesAndConflicts(t *testing.T) {
	tr := testResolver(t)

	agree := model.Record{
		model.FieldStartTimeLocal: "2025-07-20T15:30:00-04:00",
		model.FieldDate:           "2025-07-20",
		model.FieldTime:           "3:30 PM ET",
	}
	cs := tr.Candidates(agree)
	require.Len(t, cs, 2)
	assert.Equal(t, StrategyISO, cs[0].Strategy)
	assert.Equal(t, model.FieldStartTimeLocal, cs[0].Field)
	assert.Equal(t, StrategyDateClock, cs[1].Strategy)
	assert.False(t, tr.Conflicting(agree))

	disagree := agree.Clone()
	disagree[model.FieldTime] = "7:00 PM ET"
	assert.True(t, tr.Conflicting(disagree))

	assert.Empty(t, tr.Candidates(model.Record{}))
}

func TestCleanClock(t *testing.T) {
	tests := map[string]string{
		"3:30 PM ET":   "3:30 PM",
		"3:30PM":       "3:30 PM",
		"7 p.m. EDT":   "7 PM",
		"  11:05  am ": "11:05 AM",
		"3:30 PM":      "3:30 PM",
		"3:30 PM UTC":  "3:30 PM",
		"3:30 pm gmt.": "3:30 PM",
		"1 PM AKDT":    "1 PM",
		"7 pm":         "7 PM",
		"7 P.M.":       "7 PM",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanClock(in), in)
	}
}

func TestResolveBlankFieldIsAbsent(t *testing.T) {
	tr := testResolver(t)

	got, ok := tr.Resolve(model.Record{
		model.FieldStartTimeLocal: "   ",
		model.FieldStartTimeUTC:   "2025-07-20T19:30:00Z",
		model.FieldDate:           "2025-07-20",
		model.FieldTime:           "9:00 PM ET",
	})
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, 7, 20, 19, 30, 0, 0, time.UTC)))

	cs := tr.Candidates(model.Record{model.FieldStartTimeLocal: "   ", model.FieldStartTimeUTC: "2025-07-20T19:30:00Z"})
	require.Len(t, cs, 1)
	assert.Equal(t, model.FieldStartTimeUTC, cs[0].Field)
}
