package paths

import (
	"math"

	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/local"
)

// sample is one evaluation of a scalar field whose zero set is a curve.
type sample struct {
	value   float64
	visible bool // the curve may continue through this point
	accept  bool // the point is on the curve regardless of value
}

// field describes the curve being traced. For north/south curves the
// primary axis is longitude and the bracket search runs in latitude; for
// east/west limits the axes are swapped.
type field struct {
	kind      geo.CurveKind
	transpose bool // primary axis is latitude
	increases bool // value grows along +secondary
	eval      func(lat, lon float64) sample
}

func (f *field) at(p, s float64) sample {
	if f.transpose {
		return f.eval(p, s)
	}
	return f.eval(s, p)
}

func (f *field) position(p, s float64) geo.Position {
	if f.transpose {
		return geo.Position{Lat: p, Lon: s}
	}
	return geo.Position{Lat: s, Lon: p}
}

// centralField is the signed offset from the shadow axis, positive north of
// it. Samples at or beyond the central depth threshold are accepted as is.
func (t *Tracer) centralField() *field {
	return &field{
		kind:      geo.CentralLine,
		increases: true,
		eval: func(lat, lon float64) sample {
			p := t.ev.Peak(lat, lon, 0)
			return sample{
				value:   p.SignedOffset,
				visible: p.Altitude >= t.ev.Horizon(),
				accept:  p.Depth >= t.cfg.CentralDepth,
			}
		},
	}
}

// umbralField is the depth, zero on the limits of the central path.
func (t *Tracer) umbralField(north bool) *field {
	kind := geo.UmbralSouth
	if north {
		kind = geo.UmbralNorth
	}
	return &field{
		kind:      kind,
		increases: !north,
		eval: func(lat, lon float64) sample {
			p := t.ev.Peak(lat, lon, 0)
			return sample{value: p.Depth, visible: p.Altitude >= t.ev.Horizon()}
		},
	}
}

// penumbralField is the magnitude, zero on the limits of the partial zone.
func (t *Tracer) penumbralField(north bool) *field {
	kind := geo.PenumbralSouth
	if north {
		kind = geo.PenumbralNorth
	}
	return &field{
		kind:      kind,
		increases: !north,
		eval: func(lat, lon float64) sample {
			p := t.ev.Peak(lat, lon, 0)
			return sample{value: p.Magnitude, visible: p.Altitude >= t.ev.Horizon()}
		},
	}
}

// limitField is the Sun's altitude at last contact (west limit, eclipse
// ends at sunrise) or first contact (east limit, eclipse begins at sunset).
func (t *Tracer) limitField(west bool) *field {
	kind := geo.EastLimit
	if west {
		kind = geo.WestLimit
	}
	return &field{
		kind:      kind,
		transpose: true,
		increases: west,
		eval: func(lat, lon float64) sample {
			c := t.ev.Evaluate(lat, lon, 0)
			ct := c.C1
			if west {
				ct = c.C4
			}
			if ct == nil {
				return sample{value: math.NaN()}
			}
			return sample{
				value:   ct.Altitude - t.ev.Horizon(),
				visible: c.Magnitude > 0,
			}
		},
	}
}

// contactTimes evaluates the full circumstances at a curve point.
func (t *Tracer) contactTimes(pos geo.Position) geo.ContactTimes {
	c := t.ev.Evaluate(pos.Lat, pos.Lon, 0)
	var ct geo.ContactTimes
	set := func(dst *float64, src *local.Contact) {
		if src != nil {
			*dst = src.JD
		}
	}
	set(&ct.C1, c.C1)
	set(&ct.C2, c.C2)
	set(&ct.Mid, c.Mid)
	set(&ct.C3, c.C3)
	set(&ct.C4, c.C4)
	return ct
}
