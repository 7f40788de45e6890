package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextrace/internal/model"
	"nextrace/internal/race"
)

func TestDecodeFlatList(t *testing.T) {
	recs, err := Decode([]byte(`[
		{"series_id": 1, "race_name": "Daytona 500"},
		"junk",
		{"series_id": 2, "race_name": "United Rentals 300"}
	]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Daytona 500", recs[0].String(model.FieldRaceName))

	id, ok := recs[1].SeriesID()
	assert.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestDecodeRacesObject(t *testing.T) {
	recs, err := Decode([]byte(`{"races": [{"series_id": 3, "race_name": "Fresh From Florida 250"}], "season": 2025}`))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	id, _ := recs[0].SeriesID()
	assert.Equal(t, 3, id)
}

func TestDecodeSeriesKeysInjectsIdentity(t *testing.T) {
	recs, err := Decode([]byte(`{
		"series_3": [{"race_name": "truck"}],
		"series_1": [{"race_name": "cup", "series_id": 99}],
		"series_2": [],
		"updated": "2025-07-01"
	}`))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "cup", recs[0].String(model.FieldRaceName))
	id, _ := recs[0].SeriesID()
	assert.Equal(t, 1, id)

	assert.Equal(t, "truck", recs[1].String(model.FieldRaceName))
	id, _ = recs[1].SeriesID()
	assert.Equal(t, 3, id)
}

func TestDecodeEmptyList(t *testing.T) {
	recs, err := Decode([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		malformed bool
	}{
		{"string", `"hello"`, true},
		{"number", `42`, true},
		{"null", `null`, true},
		{"empty object", `{}`, true},
		{"races not a list", `{"races": {"a": 1}}`, true},
		{"series key not a list", `{"series_1": "soon"}`, true},
		{"unrelated keys", `{"series_cup": [], "data": []}`, true},
		{"invalid json", `[{"series_id": 1`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.malformed, isMalformed(err))
		})
	}

	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func isMalformed(err error) bool {
	return err != nil && errors.Is(err, ErrMalformedFeed)
}

func TestFlatAndKeyedShapesSelectTheSame(t *testing.T) {
	flat := []byte(`[
		{"series_id": 1, "race_name": "cup late",  "start_time_utc": "2099-03-01T18:00:00Z"},
		{"series_id": 2, "race_name": "xfin",      "date": "2099-02-28", "time": "1:30 PM ET"},
		{"series_id": 1, "race_name": "cup soon",  "start_time_utc": "2099-02-01T18:00:00Z"},
		{"series_id": 3, "race_name": "truck old", "start_time_utc": "2001-02-01T18:00:00Z"}
	]`)
	keyed := []byte(`{
		"series_1": [
			{"race_name": "cup late", "start_time_utc": "2099-03-01T18:00:00Z"},
			{"race_name": "cup soon", "start_time_utc": "2099-02-01T18:00:00Z"}
		],
		"series_2": [{"race_name": "xfin", "date": "2099-02-28", "time": "1:30 PM ET"}],
		"series_3": [{"race_name": "truck old", "start_time_utc": "2001-02-01T18:00:00Z"}]
	}`)

	flatRecs, err := Decode(flat)
	require.NoError(t, err)
	keyedRecs, err := Decode(keyed)
	require.NoError(t, err)

	sel := race.Selector{Times: race.TimeResolver{Display: time.UTC}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := sel.Select(flatRecs, now, model.DefaultRegistry())
	b := sel.Select(keyedRecs, now, model.DefaultRegistry())

	assert.Equal(t, a, b)
	assert.Len(t, a, 2)
	assert.Equal(t, "cup soon", a["N1"].RaceName())
}
