package geo

// CurveKind names a boundary curve.
type CurveKind int

const (
	CentralLine CurveKind = iota
	UmbralNorth
	UmbralSouth
	PenumbralNorth
	PenumbralSouth
	EastLimit
	WestLimit
)

var curveKindNames = [...]string{
	CentralLine:    "central_line",
	UmbralNorth:    "umbral_north",
	UmbralSouth:    "umbral_south",
	PenumbralNorth: "penumbral_north",
	PenumbralSouth: "penumbral_south",
	EastLimit:      "east_limit",
	WestLimit:      "west_limit",
}

func (k CurveKind) String() string {
	if k < 0 || int(k) >= len(curveKindNames) {
		return "unknown"
	}
	return curveKindNames[k]
}

// MarshalText encodes the kind by name.
func (k CurveKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// CurveKinds lists every kind in trace order.
func CurveKinds() []CurveKind {
	return []CurveKind{CentralLine, UmbralNorth, UmbralSouth, PenumbralNorth, PenumbralSouth, EastLimit, WestLimit}
}

// ContactTimes are the Julian Days of the events at a curve point. Zero
// means the event does not occur there.
type ContactTimes struct {
	C1  float64 `json:"c1,omitempty"`
	C2  float64 `json:"c2,omitempty"`
	Mid float64 `json:"mid,omitempty"`
	C3  float64 `json:"c3,omitempty"`
	C4  float64 `json:"c4,omitempty"`
}

// CurvePoint is one vertex of a boundary curve.
type CurvePoint struct {
	Position
	Times ContactTimes `json:"times"`
}

// BoundaryCurve is an ordered polyline, west to east for the central line
// and the north/south limits, south to north for the east/west limits.
type BoundaryCurve struct {
	Kind   CurveKind    `json:"kind"`
	Points []CurvePoint `json:"points"`
}

// Renderable reports whether the curve has enough points to draw.
func (c BoundaryCurve) Renderable() bool { return len(c.Points) >= 2 }

// Positions returns the vertices without their times.
func (c BoundaryCurve) Positions() []Position {
	out := make([]Position, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Position
	}
	return out
}

// BBox returns the bounding box of the curve. ok is false for an empty curve.
func (c BoundaryCurve) BBox() (b BBox, ok bool) {
	b = EmptyBBox()
	for _, p := range c.Points {
		b.Extend(p.Position)
	}
	return b, !b.Empty()
}

// Reversed returns a copy of the curve with its points in reverse order.
func (c BoundaryCurve) Reversed() BoundaryCurve {
	out := BoundaryCurve{Kind: c.Kind, Points: make([]CurvePoint, len(c.Points))}
	for i, p := range c.Points {
		out.Points[len(c.Points)-1-i] = p
	}
	return out
}

// ShadowPolygon is the closed outline of the umbra or penumbra at one
// instant; the first and last ring positions are equal.
type ShadowPolygon struct {
	Penumbral bool       `json:"penumbral"`
	JD        float64    `json:"jd"`
	Ring      []Position `json:"ring"`
}

// Closed reports whether the ring is closed.
func (p *ShadowPolygon) Closed() bool {
	n := len(p.Ring)
	return n >= 2 && p.Ring[0] == p.Ring[n-1]
}

// LatitudeAt interpolates the latitude of a west-to-east curve at lon. ok is
// false outside the curve's longitude range.
func (c BoundaryCurve) LatitudeAt(lon float64) (lat float64, ok bool) {
	for i := 1; i < len(c.Points); i++ {
		a, b := c.Points[i-1].Position, c.Points[i].Position
		if lon < a.Lon || lon > b.Lon {
			continue
		}
		if b.Lon == a.Lon {
			return a.Lat, true
		}
		return a.Lat + (lon-a.Lon)/(b.Lon-a.Lon)*(b.Lat-a.Lat), true
	}
	return 0, false
}
