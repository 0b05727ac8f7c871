package geodesy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLLHToECEFToLLH_RoundTrips(t *testing.T) {
	cases := []LLH{
		{Lat: 0, Lon: 0, Height: 0},
		{Lat: math.Pi / 4, Lon: math.Pi / 3, Height: 10000},
		{Lat: -math.Pi / 3, Lon: -2, Height: 500},
		{Lat: 1.55, Lon: 0.1, Height: 11000}, // near the pole
	}

	for _, want := range cases {
		ecef := LLHToECEF(want)
		got := ECEFToLLH(ecef)

		assert.InDelta(t, want.Lat, got.Lat, 1e-9)
		assert.InDelta(t, want.Lon, got.Lon, 1e-9)
		assert.InDelta(t, want.Height, got.Height, 1e-3)
	}
}

func TestWithHeight_PreservesLatLon(t *testing.T) {
	e := LLHToECEF(LLH{Lat: 0.7, Lon: -1.2, Height: 3000})
	raised := WithHeight(e, 9000)

	before := ECEFToLLH(e)
	after := ECEFToLLH(raised)

	assert.InDelta(t, before.Lat, after.Lat, 1e-9)
	assert.InDelta(t, before.Lon, after.Lon, 1e-9)
	assert.InDelta(t, 9000.0, after.Height, 1e-3)
}

func TestLLHToECEF_EquatorSurface(t *testing.T) {
	e := LLHToECEF(LLH{Lat: 0, Lon: 0, Height: 0})
	assert.InDelta(t, wgs84A, e[0], 1e-6)
	assert.InDelta(t, 0.0, e[1], 1e-6)
	assert.InDelta(t, 0.0, e[2], 1e-6)
}
