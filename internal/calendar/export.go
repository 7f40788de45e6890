// Package calendar exports the next event of every tracked series as an
// iCalendar feed so it can be subscribed to from any calendar client.
package calendar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"nextrace/internal/race"
)

// DefaultDuration is the block reserved for a race. The feed carries no end
// time.
const DefaultDuration = 3 * time.Hour

const productID = "-//nextrace//next events//EN"

// Export serializes one VEVENT per card that has an upcoming event. Cards
// without an event are skipped. now is used as DTSTAMP.
func Export(cards []race.Card, now time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, c := range cards {
		if c.Event == nil || !c.Event.Resolved {
			continue
		}
		start := c.Event.Start

		ev := cal.AddEvent(UID(c.Series.Code, start))
		ev.SetDtStampTime(now)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(DefaultDuration))
		ev.SetSummary(c.DisplayName + ": " + c.RaceName)
		ev.SetLocation(c.Venue)
		if desc := describe(c); desc != "" {
			ev.SetDescription(desc)
		}
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("calendar: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// UID is stable for a given series and start, so clients update rather than
// duplicate an event across refreshes.
func UID(code string, start time.Time) string {
	return code + "-" + strconv.FormatInt(start.Unix(), 10) + "@nextrace"
}

func describe(c race.Card) string {
	var lines []string
	add := func(label string, outlets []race.Outlet) {
		if len(outlets) == 0 {
			return
		}
		codes := make([]string, 0, len(outlets))
		for _, o := range outlets {
			codes = append(codes, o.Code)
		}
		lines = append(lines, label+": "+strings.Join(codes, ", "))
	}
	add("TV", c.TV)
	add("Radio", c.Radio)
	add("Satellite", c.Satellite)
	return strings.Join(lines, "\n")
}
