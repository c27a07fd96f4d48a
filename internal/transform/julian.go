package transform

import (
	"math"
	"time"
)

const (
	j2000       = 2451545.0 // 2000-01-01T12:00:00
	unixEpochJD = 2440587.5 // 1970-01-01T00:00:00Z
	secPerDay   = 86400.0
)

// julianEpochCorrection moves -4713-01-01T12:00 in the proleptic Gregorian
// calendar onto Julian Day 0 (November 24 Gregorian).
const julianEpochCorrection = 28252800000 * time.Millisecond

// JulianEpoch is the instant of Julian Day 0.
func JulianEpoch() time.Time {
	return time.Date(-4713, time.January, 1, 12, 0, 0, 0, time.UTC).Add(julianEpochCorrection)
}

// JulianDate returns the fractional Julian Day of t. It goes through Unix
// seconds, so dates beyond the range of time.Duration convert too.
func JulianDate(t time.Time) float64 {
	return unixEpochJD + (float64(t.Unix())+float64(t.Nanosecond())*1e-9)/secPerDay
}

// FromJulianDate is the UTC instant of jd to the nearest millisecond,
// counted in whole days and a day fraction from JulianEpoch. NaN and
// infinities give the zero time.
func FromJulianDate(jd float64) time.Time {
	if math.IsNaN(jd) || math.IsInf(jd, 0) {
		return time.Time{}
	}
	days := math.Floor(jd)
	ms := math.Round((jd - days) * secPerDay * 1000)
	return JulianEpoch().AddDate(0, 0, int(days)).Add(time.Duration(ms) * time.Millisecond).UTC()
}

// MidnightJD returns 0h UT of the civil day holding jd.
func MidnightJD(jd float64) float64 {
	return math.Floor(jd-0.5) + 0.5
}
