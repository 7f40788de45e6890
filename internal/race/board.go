package race

import (
	"nextrace/internal/model"
)

const placeholder = "TBA"

// Card is the display-ready view of one tracked series.
type Card struct {
	Series      model.SeriesDescriptor
	DisplayName string

	// Event is nil when the series has no upcoming event.
	Event *model.ResolvedEvent

	RaceName string
	Venue    string

	Broadcasts model.BroadcastSet
	TV         []Outlet
	Radio      []Outlet
	Satellite  []Outlet
}

// BuildBoard returns one card per registry entry, in registry order, and
// resolves broadcasters for every selected event.
func BuildBoard(next model.NextEventMap, reg model.Registry) []Card {
	cards := make([]Card, 0, len(reg))
	for _, d := range reg {
		card := Card{
			Series:      d,
			DisplayName: d.FallbackName,
		}
		if ev, ok := next[d.Code]; ok {
			card.Event = &ev
			if name := ev.SeriesName(); name != "" {
				card.DisplayName = name
			}
			card.RaceName = orPlaceholder(ev.RaceName())
			card.Venue = orPlaceholder(ev.Venue())
			card.Broadcasts = ResolveBroadcasts(ev.Record)
			card.TV = Outlets(ClassTV, card.Broadcasts.TV)
			card.Radio = Outlets(ClassRadio, card.Broadcasts.Radio)
			card.Satellite = Outlets(ClassSatellite, card.Broadcasts.Satellite)
		}
		cards = append(cards, card)
	}
	return cards
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
