package race

import (
	"time"

	"nextrace/internal/model"
)

// Selector picks the next upcoming event of every tracked series.
type Selector struct {
	Times TimeResolver
}

// Select resolves the start of every record and returns, per registry entry,
// the earliest record strictly after now.
func (s Selector) Select(records []model.Record, now time.Time, reg model.Registry) model.NextEventMap {
	return SelectResolved(ResolveAll(records, s.Times), now, reg)
}

// ResolveAll resolves the start instant of each record, keeping feed order.
// Unresolved records are kept with Resolved=false.
func ResolveAll(records []model.Record, tr TimeResolver) []model.ResolvedEvent {
	out := make([]model.ResolvedEvent, 0, len(records))
	for _, r := range records {
		start, ok := tr.Resolve(r)
		out = append(out, model.ResolvedEvent{
			Record:   r,
			Start:    start,
			Resolved: ok,
		})
	}
	return out
}

// SelectResolved is Select over already-resolved events. Ties on the start
// instant go to the event that came first in the feed.
func SelectResolved(events []model.ResolvedEvent, now time.Time, reg model.Registry) model.NextEventMap {
	upcoming := make([]model.ResolvedEvent, 0, len(events))
	for _, ev := range events {
		if ev.Resolved && ev.Start.After(now) {
			upcoming = append(upcoming, ev)
		}
	}

	out := make(model.NextEventMap, len(reg))
	for _, d := range reg {
		var (
			best  model.ResolvedEvent
			found bool
		)
		for _, ev := range upcoming {
			id, ok := ev.SeriesID()
			if !ok || id != d.ID {
				continue
			}
			if !found || ev.Start.Before(best.Start) {
				best = ev
				found = true
			}
		}
		if found {
			out[d.Code] = best
		}
	}
	return out
}
