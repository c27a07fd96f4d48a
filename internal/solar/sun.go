// Package solar provides the low-precision solar ephemeris the shadow
// builder uses to clip outlines to the sunlit hemisphere.
package solar

import (
	"math"

	"github.com/star/eclipse/internal/transform"
)

// ElevationFunc returns the Sun's altitude in degrees at a geographic
// position (degrees, east positive) and a UT Julian Day.
type ElevationFunc func(lat, lon, jd float64) float64

// Position is the apparent place of a body for one observer. Angles are
// degrees.
type Position struct {
	RightAscension  float64 `json:"right_ascension"`
	Declination     float64 `json:"declination"`
	Elevation       float64 `json:"elevation"`
	Azimuth         float64 `json:"azimuth"`
	AngularDiameter float64 `json:"angular_diameter"`
}

// Ephemeris supplies body positions. The Moon is not modelled here; callers
// needing it plug in their own implementation.
type Ephemeris interface {
	SunPosition(jd, lat, lon float64) Position
}

// Sun is the default Ephemeris, accurate to about 0.01° between 1950 and
// 2050.
type Sun struct{}

var _ Ephemeris = Sun{}

// solarRadiusArcsec is the Sun's semi-diameter at 1 AU.
const solarRadiusArcsec = 959.63

// Equatorial returns the apparent right ascension and declination (degrees)
// and the distance in AU.
func Equatorial(jd float64) (ra, dec, dist float64) {
	T := (jd - 2451545.0) / 36525.0

	L0 := normalizeDegrees(280.46646 + 36000.76983*T + 0.0003032*T*T)
	M := normalizeDegrees(357.52911 + 35999.05029*T - 0.0001537*T*T)
	Mrad := M * transform.Rad
	e := 0.016708634 - 0.000042037*T - 0.0000001267*T*T

	// Equation of center.
	C := (1.914602-0.004817*T-0.000014*T*T)*math.Sin(Mrad) +
		(0.019993-0.000101*T)*math.Sin(2*Mrad) +
		0.000289*math.Sin(3*Mrad)

	trueLon := L0 + C
	v := (M + C) * transform.Rad
	dist = 1.000001018 * (1 - e*e) / (1 + e*math.Cos(v))

	// Aberration and nutation in longitude.
	omega := (125.04 - 1934.136*T) * transform.Rad
	lambda := (trueLon - 0.00569 - 0.00478*math.Sin(omega)) * transform.Rad

	eps0 := 23.439291 - 0.0130042*T - 0.00000016*T*T + 0.000000504*T*T*T
	eps := (eps0 + 0.00256*math.Cos(omega)) * transform.Rad

	sinLambda, cosLambda := math.Sincos(lambda)
	ra = normalizeDegrees(math.Atan2(math.Cos(eps)*sinLambda, cosLambda) * transform.Deg)
	dec = math.Asin(math.Sin(eps)*sinLambda) * transform.Deg
	return ra, dec, dist
}

// SunPosition implements Ephemeris.
func (Sun) SunPosition(jd, lat, lon float64) Position {
	ra, dec, dist := Equatorial(jd)
	alt, az := horizontal(ra, dec, lat, lon, jd)
	return Position{
		RightAscension:  ra,
		Declination:     dec,
		Elevation:       alt,
		Azimuth:         az,
		AngularDiameter: 2 * solarRadiusArcsec / dist / 3600,
	}
}

// Elevation is the default ElevationFunc.
func Elevation(lat, lon, jd float64) float64 {
	ra, dec, _ := Equatorial(jd)
	alt, _ := horizontal(ra, dec, lat, lon, jd)
	return alt
}

var _ ElevationFunc = Elevation

// Subsolar returns the point where the Sun is at the zenith.
func Subsolar(jd float64) (lat, lon float64) {
	ra, dec, _ := Equatorial(jd)
	lon = transform.NormalizeLongitude(ra - transform.GMST(jd)*transform.Deg)
	return dec, lon
}

func horizontal(ra, dec, lat, lon, jd float64) (alt, az float64) {
	ha := transform.LocalSidereal(jd, lon) - ra*transform.Rad
	a, z := transform.Horizontal(ha, dec*transform.Rad, lat*transform.Rad)
	return a * transform.Deg, z * transform.Deg
}

func normalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}
