package besselian

import (
	"math"

	"github.com/star/eclipse/internal/transform"
)

// EarthModel names the ellipsoid constants used to place an observer.
type EarthModel struct {
	AxisRatio        float64 `yaml:"axis_ratio"`        // b/a, 1 - flattening
	EquatorialRadius float64 `yaml:"equatorial_radius"` // meters
}

// WGS84 is the default Earth model.
var WGS84 = EarthModel{
	AxisRatio:        transform.WGS84AxisRatio,
	EquatorialRadius: transform.WGS84A,
}

// Observer is a ground location prepared for projection onto the
// fundamental plane.
type Observer struct {
	Lat     float64 // geodetic latitude, radians, north positive
	Lon     float64 // radians, WEST positive
	Alt     float64 // meters
	RhoSinP float64 // ρ sin φ'
	RhoCosP float64 // ρ cos φ'
}

// NewObserver builds an Observer from geographic degrees (east positive
// longitude) and altitude in meters.
func NewObserver(latDeg, lonDeg, altM float64, earth EarthModel) Observer {
	lat := latDeg * transform.Rad
	lon := -lonDeg * transform.Rad

	u := math.Atan(earth.AxisRatio * math.Tan(lat))
	h := altM / earth.EquatorialRadius

	return Observer{
		Lat:     lat,
		Lon:     lon,
		Alt:     altM,
		RhoSinP: earth.AxisRatio*math.Sin(u) + h*math.Sin(lat),
		RhoCosP: math.Cos(u) + h*math.Cos(lat),
	}
}

// LatDeg returns the geodetic latitude in degrees.
func (o Observer) LatDeg() float64 { return o.Lat * transform.Deg }

// LonDeg returns the longitude in degrees, east positive.
func (o Observer) LonDeg() float64 { return -o.Lon * transform.Deg }
