package feed

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"nextrace/internal/model"
)

var (
	// ErrMalformedFeed is returned when the payload is none of the accepted
	// shapes: a list, an object with "races", or an object keyed series_<n>.
	ErrMalformedFeed = errors.New("feed: unrecognized payload shape")
	// ErrEmptyBody is returned for a zero-length payload.
	ErrEmptyBody = errors.New("feed: empty body")
)

const (
	racesKey     = "races"
	seriesPrefix = "series_"
)

// Decode parses a JSON feed payload into a flat list of records.
func Decode(body []byte) ([]model.Record, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("feed: decode json: %w", err)
	}
	return Normalize(v)
}

// Normalize flattens any accepted feed shape into series-tagged records.
// Records from a series_<n> list get series_id=n, overriding what they carry.
// List elements that are not objects are skipped.
func Normalize(v any) ([]model.Record, error) {
	switch t := v.(type) {
	case []any:
		return recordsFrom(t, 0, false), nil
	case map[string]any:
		if races, ok := t[racesKey]; ok && races != nil {
			list, ok := races.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not a list", ErrMalformedFeed, racesKey)
			}
			return recordsFrom(list, 0, false), nil
		}
		return fromSeriesKeys(t)
	default:
		return nil, fmt.Errorf("%w: top-level %T", ErrMalformedFeed, v)
	}
}

func fromSeriesKeys(obj map[string]any) ([]model.Record, error) {
	type keyed struct {
		id   int
		list []any
	}
	var groups []keyed
	for k, v := range obj {
		id, ok := seriesKeyID(k)
		if !ok || v == nil {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a list", ErrMalformedFeed, k)
		}
		groups = append(groups, keyed{id: id, list: list})
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no %q or %s<n> keys", ErrMalformedFeed, racesKey, seriesPrefix)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].id < groups[j].id })

	out := []model.Record{}
	for _, g := range groups {
		out = append(out, recordsFrom(g.list, g.id, true)...)
	}
	return out, nil
}

func seriesKeyID(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, seriesPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func recordsFrom(list []any, seriesID int, inject bool) []model.Record {
	out := make([]model.Record, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := model.Record(obj)
		if inject {
			rec = rec.Clone()
			rec[model.FieldSeriesID] = float64(seriesID)
		}
		out = append(out, rec)
	}
	return out
}
