package contact

import (
	"math"

	"github.com/star/eclipse/internal/besselian"
	"github.com/star/eclipse/internal/transform"
)

// Observation holds the observer-facing angles of one event, in radians.
type Observation struct {
	PositionAngle float64 // P, from the north point of the solar disk
	VertexAngle   float64 // V, from the zenith point
	Altitude      float64
	Azimuth       float64
	Q             float64 // parallactic angle
}

// Observe computes the angles for a solved circumstance. Internal contacts
// (C2 and C3 of a total eclipse) measure the position angle on the opposite
// limb.
func Observe(c *besselian.Circumstance, obs besselian.Observer, internal bool) Observation {
	ct := 1.0
	if internal {
		ct = -1.0
	}
	var o Observation
	o.PositionAngle = transform.NormalizeRadians(math.Atan2(ct*c.U, ct*c.V))

	// Hour angle and declination are taken from the fundamental-plane solution.
	o.Altitude, o.Azimuth = transform.Horizontal(c.H, c.D, obs.Lat)

	q := math.Asin(math.Cos(obs.Lat) * c.SinH / math.Cos(o.Altitude))
	if c.Eta < 0 {
		q = math.Pi - q
	}
	o.Q = q
	o.VertexAngle = transform.NormalizeRadians(o.PositionAngle - q)
	return o
}

// Internal reports whether kind is an internal contact for the given type.
func Internal(kind besselian.ContactKind, t Type) bool {
	return t == Total && (kind == besselian.C2 || kind == besselian.C3)
}
