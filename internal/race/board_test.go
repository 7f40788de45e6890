package race

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextrace/internal/model"
)

func TestBuildBoard(t *testing.T) {
	reg := model.DefaultRegistry()
	next := model.NextEventMap{
		"N1": {
			Record: model.Record{
				model.FieldSeriesID:              float64(1),
				model.FieldRaceName:              "Coke Zero Sugar 400",
				model.FieldTrackName:             "Daytona International Speedway",
				model.FieldTelevisionBroadcaster: "NBC & USA",
				model.FieldRadioBroadcaster:      "MRN",
				model.FieldSatelliteBroadcaster:  "SiriusXM",
			},
			Start:    time.Date(2025, 8, 23, 23, 30, 0, 0, time.UTC),
			Resolved: true,
		},
		"N3": {
			Record: model.Record{
				model.FieldSeriesID: float64(3),
				model.FieldSeries:   "Truck Series",
				model.FieldVenue:    "Watkins Glen",
				model.FieldNetwork:  "FS1",
			},
			Resolved: true,
		},
	}

	cards := BuildBoard(next, reg)
	require.Len(t, cards, 3)

	cup := cards[0]
	assert.Equal(t, "N1", cup.Series.Code)
	assert.Equal(t, "NASCAR Cup Series", cup.DisplayName)
	require.NotNil(t, cup.Event)
	assert.Equal(t, "Coke Zero Sugar 400", cup.RaceName)
	assert.Equal(t, "Daytona International Speedway", cup.Venue)
	assert.Equal(t, []string{"NBC", "USA"}, cup.Broadcasts.TV)
	assert.Equal(t, []Outlet{{Code: "MRN", Logo: outletLogos[ClassRadio]["MRN"]}}, cup.Radio)
	assert.Equal(t, "SIRIUSXM", cup.Satellite[0].Code)

	xfinity := cards[1]
	assert.Nil(t, xfinity.Event)
	assert.Equal(t, "NASCAR O'Reilly Auto Parts Series", xfinity.DisplayName)
	assert.Empty(t, xfinity.TV)

	truck := cards[2]
	assert.Equal(t, "Truck Series", truck.DisplayName)
	assert.Equal(t, "TBA", truck.RaceName)
	assert.Equal(t, "Watkins Glen", truck.Venue)
	assert.Equal(t, []string{"FS1"}, truck.Broadcasts.TV)
}
