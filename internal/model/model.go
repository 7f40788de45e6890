package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is one loosely-typed race entry as it arrives from the schedule
// feed. Any field may be absent, empty, or carry an unexpected JSON type.
type Record map[string]any

// Field names observed in the feed.
const (
	FieldSeriesID  = "series_id"
	FieldSeries    = "series"
	FieldRaceName  = "race_name"
	FieldTrackName = "track_name"
	FieldVenue     = "venue"

	// Broadcasters (authoritative).
	FieldTelevisionBroadcaster = "television_broadcaster"
	FieldRadioBroadcaster      = "radio_broadcaster"
	FieldSatelliteBroadcaster  = "satellite_radio_broadcaster"

	// Broadcasters (legacy/alternate).
	FieldNetwork       = "network"
	FieldTVBroadcaster = "tv_broadcaster"
	FieldRadio         = "radio"
	FieldBroadcast     = "broadcast"

	// Timing.
	FieldStartTimeLocal = "start_time_local"
	FieldStartTimeUTC   = "start_time_utc"
	FieldDateScheduled  = "date_scheduled"
	FieldRaceDate       = "race_date"
	FieldDate           = "date"
	FieldTimeLocal      = "time_local"
	FieldTime           = "time"
	FieldRaceTime       = "race_time"
	FieldTimeZone       = "time_zone"
)

// String returns the trimmed text of key. Numbers and booleans are rendered
// with their usual formatting; nested objects, arrays and null count as absent.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return ""
	}
}

// First returns the first key in keys whose value is non-empty, together
// with that value. The order of keys is the precedence order.
func (r Record) First(keys ...string) (key, value string, ok bool) {
	for _, k := range keys {
		if v := r.String(k); v != "" {
			return k, v, true
		}
	}
	return "", "", false
}

// SeriesID returns the numeric series identity. Both JSON numbers and
// numeric strings ("1") are accepted.
func (r Record) SeriesID() (int, bool) {
	v, ok := r[FieldSeriesID]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	case interface{ Int64() (int64, error) }:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SeriesDescriptor is one entry of the static registry of tracked series.
type SeriesDescriptor struct {
	Code         string // short code, e.g. "N1"
	ID           int    // matches the feed's series_id
	FallbackName string // shown when the feed has no series name
	Logo         string
}

// Registry is the ordered set of tracked series. Order is display order.
type Registry []SeriesDescriptor

// Lookup returns the descriptor with the given code.
func (reg Registry) Lookup(code string) (SeriesDescriptor, bool) {
	for _, d := range reg {
		if d.Code == code {
			return d, true
		}
	}
	return SeriesDescriptor{}, false
}

// DefaultRegistry returns the three national series tracked by default.
func DefaultRegistry() Registry {
	return Registry{
		{Code: "N1", ID: 1, FallbackName: "NASCAR Cup Series", Logo: "N1.png"},
		{Code: "N2", ID: 2, FallbackName: "NASCAR O'Reilly Auto Parts Series", Logo: "N2.png"},
		{Code: "N3", ID: 3, FallbackName: "NASCAR Craftsman Truck Series", Logo: "N3.png"},
	}
}

// ResolvedEvent is a Record with its start instant resolved.
type ResolvedEvent struct {
	Record Record

	// Start is in the viewer's display zone. It is only meaningful when
	// Resolved is true.
	Start    time.Time
	Resolved bool
}

// SeriesID is a shortcut for Record.SeriesID.
func (e ResolvedEvent) SeriesID() (int, bool) { return e.Record.SeriesID() }

func (e ResolvedEvent) RaceName() string { return e.Record.String(FieldRaceName) }

func (e ResolvedEvent) SeriesName() string { return e.Record.String(FieldSeries) }

// Venue is track_name, else venue.
func (e ResolvedEvent) Venue() string {
	_, v, _ := e.Record.First(FieldTrackName, FieldVenue)
	return v
}

// BroadcastSet holds canonical outlet codes per channel class, each ordered
// by first appearance and free of duplicates.
type BroadcastSet struct {
	TV        []string `json:"tv"`
	Radio     []string `json:"radio"`
	Satellite []string `json:"satellite"`
}

// NextEventMap maps a series code to its earliest future event. A missing
// key means the series has no upcoming event.
type NextEventMap map[string]ResolvedEvent
