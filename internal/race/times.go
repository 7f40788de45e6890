package race

import (
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // event zones must resolve on hosts without a zoneinfo database

	"nextrace/internal/model"
)

// DefaultEventZone is used for date + clock pairs that carry no time_zone.
const DefaultEventZone = "America/New_York"

// Precedence of the timing fields. Each list is tried top to bottom and the
// first non-empty field wins.
var (
	isoFields   = []string{model.FieldStartTimeLocal, model.FieldStartTimeUTC, model.FieldDateScheduled, model.FieldRaceDate}
	dateFields  = []string{model.FieldDate, model.FieldRaceDate}
	clockFields = []string{model.FieldTimeLocal, model.FieldTime, model.FieldRaceTime}
)

// ISO-8601 forms seen in the feed. Layouts with an offset keep it; the rest
// are read in the display zone. Fractional seconds are accepted by time.Parse
// after the seconds field even though no layout spells them out.
var (
	isoOffsetLayouts = []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04:05Z0700",
		"2006-01-02T15:04Z0700",
		"2006-01-02T15:04:05Z07",
		"2006-01-02T15:04Z07",
	}
	isoLocalLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	clockLayouts = []string{
		"2006-01-02 3:04 PM",
		"2006-01-02 3 PM",
	}
)

var (
	// Trailing zone abbreviation of 2-4 letters (ET, EDT, UTC, AKDT, ...).
	// stripZone leaves AM/PM alone.
	zoneAbbrevRe = regexp.MustCompile(`\s+([A-Za-z]{2,4})\.?\s*$`)
	meridiemRe   = regexp.MustCompile(`(\d)\s*([AP])\.?M\.?$`)
	spacesRe     = regexp.MustCompile(`\s+`)
)

// Strategy names reported by Candidates.
const (
	StrategyISO       = "iso"
	StrategyDateClock = "date_clock"
)

// TimeResolver turns the timing fields of a record into one instant.
type TimeResolver struct {
	// Display is the viewer's zone. Resolved instants are expressed in it.
	// nil means time.Local.
	Display *time.Location
	// EventZone applies to date + clock pairs without a time_zone field.
	// nil means DefaultEventZone.
	EventZone *time.Location
}

// Candidate is one strategy's reading of a record.
type Candidate struct {
	Strategy string
	Field    string // the field that carried the date or date-time
	Start    time.Time
}

type strategy struct {
	name string
	fn   func(TimeResolver, model.Record) (Candidate, bool)
}

// strategies in precedence order.
var strategies = []strategy{
	{StrategyISO, TimeResolver.fromISO},
	{StrategyDateClock, TimeResolver.fromDateClock},
}

// Resolve returns the start instant of r in the display zone. The second
// result is false when no field combination parses; that is not an error.
func (tr TimeResolver) Resolve(r model.Record) (time.Time, bool) {
	for _, s := range strategies {
		if c, ok := s.fn(tr, r); ok {
			return c.Start, true
		}
	}
	return time.Time{}, false
}

// Candidates evaluates every strategy independently and returns the ones
// that succeed, in precedence order. The first element, if any, is what
// Resolve returns.
func (tr TimeResolver) Candidates(r model.Record) []Candidate {
	var out []Candidate
	for _, s := range strategies {
		if c, ok := s.fn(tr, r); ok {
			out = append(out, c)
		}
	}
	return out
}

// Conflicting reports whether r would resolve to a different instant if
// the strategy precedence were changed.
func (tr TimeResolver) Conflicting(r model.Record) bool {
	cs := tr.Candidates(r)
	for i := 1; i < len(cs); i++ {
		if !cs[i].Start.Equal(cs[0].Start) {
			return true
		}
	}
	return false
}

func (tr TimeResolver) display() *time.Location {
	if tr.Display == nil {
		return time.Local
	}
	return tr.Display
}

func (tr TimeResolver) eventZone() *time.Location {
	if tr.EventZone != nil {
		return tr.EventZone
	}
	loc, err := time.LoadLocation(DefaultEventZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (tr TimeResolver) fromISO(r model.Record) (Candidate, bool) {
	field, raw, ok := r.First(isoFields...)
	if !ok {
		return Candidate{}, false
	}
	t, ok := parseISO(raw, tr.display())
	if !ok {
		return Candidate{}, false
	}
	return Candidate{Strategy: StrategyISO, Field: field, Start: t.In(tr.display())}, true
}

func (tr TimeResolver) fromDateClock(r model.Record) (Candidate, bool) {
	field, date, ok := r.First(dateFields...)
	if !ok {
		return Candidate{}, false
	}
	_, clock, ok := r.First(clockFields...)
	if !ok {
		return Candidate{}, false
	}

	loc := tr.eventZone()
	if name := r.String(model.FieldTimeZone); name != "" {
		l, err := time.LoadLocation(name)
		if err != nil {
			return Candidate{}, false
		}
		loc = l
	}

	value := date + " " + cleanClock(clock)
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return Candidate{Strategy: StrategyDateClock, Field: field, Start: t.In(tr.display())}, true
		}
	}
	return Candidate{}, false
}

func parseISO(s string, local *time.Location) (time.Time, bool) {
	for _, layout := range isoOffsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range isoLocalLayouts {
		if t, err := time.ParseInLocation(layout, s, local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// cleanClock drops a trailing zone abbreviation and normalizes the meridiem
// so "3:30pm ET" becomes "3:30 PM".
func cleanClock(s string) string {
	s = strings.ToUpper(strings.TrimSpace(stripZone(s)))
	s = spacesRe.ReplaceAllString(s, " ")
	return meridiemRe.ReplaceAllString(s, "$1 ${2}M")
}

// stripZone removes a trailing zone abbreviation. The abbreviation never
// selects the zone; time_zone or the event default does.
func stripZone(s string) string {
	m := zoneAbbrevRe.FindStringSubmatchIndex(s)
	if m == nil {
		return s
	}
	switch strings.ToUpper(s[m[2]:m[3]]) {
	case "AM", "PM":
		return s
	}
	return s[:m[0]]
}
