package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	WGS84A = 6378137.0           // semi-major axis (meters)
	WGS84F = 1.0 / 298.257223563 // flattening
)

// WGS84AxisRatio is b/a, the polar to equatorial radius ratio (1 - f).
const WGS84AxisRatio = 1 - WGS84F

// Deg and Rad convert between degrees and radians.
const (
	Deg = 180.0 / math.Pi
	Rad = math.Pi / 180.0
)

// Horizontal converts a local hour angle and declination (radians) seen from
// geodetic latitude lat (radians) to altitude and azimuth in radians.
// Azimuth is measured from North through East, in [0, 2π).
func Horizontal(hourAngle, dec, lat float64) (alt, az float64) {
	sinDec, cosDec := math.Sincos(dec)
	sinLat, cosLat := math.Sincos(lat)
	sinH, cosH := math.Sincos(hourAngle)

	alt = math.Asin(sinDec*sinLat + cosDec*cosLat*cosH)
	az = math.Atan2(-sinH*cosDec, sinDec*cosLat-cosH*sinLat*cosDec)
	if az < 0 {
		az += 2 * math.Pi
	}
	return alt, az
}

// NormalizeRadians wraps an angle into [0, 2π).
func NormalizeRadians(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// NormalizeLongitude wraps a longitude in degrees into [-180, 180).
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
