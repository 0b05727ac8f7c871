// Package geodesy converts between ECEF (Earth-Centered, Earth-Fixed)
// Cartesian coordinates and geodetic (latitude, longitude, height)
// coordinates on the WGS84 ellipsoid.
//
// The resolve pipeline uses this at the altitude-override boundary: a
// solved ECEF position is decomposed to lat/lon, the tracked barometric
// altitude is substituted for the solved one, and the position is
// re-encoded to ECEF before being handed to the Kalman filter.
package geodesy

import "math"

// WGS84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0         // semi-major axis, metres
	wgs84F  = 1 / 298.257223563 // flattening
	wgs84B  = wgs84A * (1 - wgs84F)
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ECEF is a Cartesian position in metres.
type ECEF [3]float64

// LLH is latitude/longitude in radians and height above the ellipsoid in metres.
type LLH struct {
	Lat, Lon, Height float64
}

// LLHToECEF converts geodetic coordinates to ECEF.
func LLHToECEF(p LLH) ECEF {
	sinLat, cosLat := math.Sincos(p.Lat)
	sinLon, cosLon := math.Sincos(p.Lon)

	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return ECEF{
		(n + p.Height) * cosLat * cosLon,
		(n + p.Height) * cosLat * sinLon,
		(n*(1-wgs84E2) + p.Height) * sinLat,
	}
}

// ECEFToLLH converts ECEF coordinates to geodetic using Bowring's
// closed-form iteration, accurate to sub-millimetre after a handful of
// iterations even near the poles.
func ECEFToLLH(e ECEF) LLH {
	x, y, z := e[0], e[1], e[2]
	lon := math.Atan2(y, x)

	p := math.Hypot(x, y)
	lat := math.Atan2(z, p*(1-wgs84E2))

	for range 5 {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		height := p/math.Cos(lat) - n
		lat = math.Atan2(z, p*(1-wgs84E2*n/(n+height)))
	}

	sinLat := math.Sin(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	height := p/math.Cos(lat) - n

	return LLH{Lat: lat, Lon: lon, Height: height}
}

// WithHeight returns the ECEF position obtained by replacing the height
// component of e with h, holding latitude/longitude fixed. This backs the
// resolve pipeline's "replace solved altitude with tracked altitude" step.
func WithHeight(e ECEF, h float64) ECEF {
	llh := ECEFToLLH(e)
	llh.Height = h
	return LLHToECEF(llh)
}
