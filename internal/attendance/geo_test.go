package attendance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// metersNorth returns the latitude reached by moving d meters north of lat.
func metersNorth(lat, d float64) float64 {
	return lat + d/earthRadiusMeters*180/math.Pi
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 0, Distance(-6.2, 106.8, -6.2, 106.8), 1e-9)
	assert.InDelta(t, 150, Distance(-6.2, 106.8, metersNorth(-6.2, 150), 106.8), 0.01)
	// Jakarta Monas to Bandung Gedung Sate, roughly 116 km
	assert.InDelta(t, 116000, Distance(-6.1754, 106.8272, -6.9025, 107.6188), 2000)
}

func TestValidateBoundary(t *testing.T) {
	loc := Location{Latitude: -6.2, Longitude: 106.8, RadiusMeters: 100}

	in := loc.Validate(metersNorth(-6.2, 99.5), 106.8)
	assert.True(t, in.IsValid)

	out := loc.Validate(metersNorth(-6.2, 100.5), 106.8)
	assert.False(t, out.IsValid)

	// D == R is inside
	zero := Location{Latitude: -6.2, Longitude: 106.8, RadiusMeters: 0}
	assert.True(t, zero.Validate(-6.2, 106.8).IsValid)
}

func TestNearest(t *testing.T) {
	locs := []Location{
		{ID: 1, Name: "gate", Latitude: metersNorth(-6.2, 300), Longitude: 106.8, RadiusMeters: 50},
		{ID: 2, Name: "site office", Latitude: metersNorth(-6.2, 40), Longitude: 106.8, RadiusMeters: 50},
		{ID: 3, Name: "same distance", Latitude: metersNorth(-6.2, 40), Longitude: 106.8, RadiusMeters: 50},
	}
	loc, res, ok := Nearest(locs, -6.2, 106.8)
	assert.True(t, ok)
	assert.EqualValues(t, 2, loc.ID, "first of equally near locations wins")
	assert.InDelta(t, 40, res.Distance, 0.01)
	assert.True(t, res.IsValid)

	_, _, ok = Nearest(nil, -6.2, 106.8)
	assert.False(t, ok)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(-6.2, 106.8))
	assert.False(t, ValidCoordinates(91, 0))
	assert.False(t, ValidCoordinates(0, -181))
	assert.False(t, ValidCoordinates(math.NaN(), 0))
}
