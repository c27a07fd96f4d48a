package transform

import "math"

// GMST returns Greenwich mean sidereal time in radians, in [0, 2π), for a
// UT1 Julian Day. IAU 1982 expression in degrees (Meeus, Astronomical
// Algorithms, eq. 12.4).
func GMST(jd float64) float64 {
	d := jd - j2000
	c := d / 36525

	deg := 280.46061837 + 360.98564736629*d + c*c*(0.000387933-c/38710000)
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg * Rad
}

// LocalSidereal returns the local mean sidereal time in radians, in
// [0, 2π), at east longitude lon (degrees).
func LocalSidereal(jd, lon float64) float64 {
	return NormalizeRadians(GMST(jd) + lon*Rad)
}
