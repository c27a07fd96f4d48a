package contact

import (
	"math"

	"github.com/star/eclipse/internal/besselian"
)

// Type is the local eclipse classification.
type Type int

const (
	None Type = iota
	Partial
	Annular
	Total
)

func (t Type) String() string {
	switch t {
	case Partial:
		return "Partial"
	case Annular:
		return "Annular"
	case Total:
		return "Total"
	default:
		return "None"
	}
}

// Central reports whether the type is total or annular.
func (t Type) Central() bool { return t == Total || t == Annular }

// Maximum is the mid-eclipse circumstance with its derived quantities.
type Maximum struct {
	besselian.Circumstance

	Distance     float64 // m, distance from the shadow axis
	Magnitude    float64 // fraction of the solar diameter covered
	MoonSunRatio float64
	Coverage     float64 // percent of the solar disk area covered
	Depth        float64 // percent; 100 on the central line, negative outside the central path
	SignedOffset float64 // perpendicular offset from the axis, positive north of center
	Type         Type
}

// Classify derives magnitude, type, coverage and depth from a solved mid
// eclipse circumstance.
func Classify(mid besselian.Circumstance) Maximum {
	m := Maximum{Circumstance: mid}
	l1, l2 := mid.L1p, mid.L2p

	m.Distance = mid.M()
	m.Magnitude = (l1 - m.Distance) / (l1 + l2)
	m.MoonSunRatio = (l1 - l2) / (l1 + l2)
	m.Depth = (1 - m.Distance/math.Abs(l2)) * 100
	m.SignedOffset = (mid.U*mid.B - mid.V*mid.A) / mid.N()

	switch {
	case !(m.Magnitude > 0):
		m.Type = None
	case m.Distance < math.Abs(l2):
		if l2 < 0 {
			m.Type = Total
		} else {
			m.Type = Annular
		}
	default:
		m.Type = Partial
	}

	m.Coverage = coverage(m)
	return m
}

// coverage returns the obscured fraction of the solar disk, in percent.
func coverage(m Maximum) float64 {
	switch {
	case !(m.Magnitude > 0):
		return 0
	case m.Magnitude >= 1:
		return 100
	case m.Type == Annular:
		return m.MoonSunRatio * m.MoonSunRatio * 100
	}

	l1, l2, d := m.L1p, m.L2p, m.Distance
	ms := m.MoonSunRatio
	c := math.Acos((l1*l1 + l2*l2 - 2*d*d) / (l1*l1 - l2*l2))
	b := math.Acos((l1*l2 + d*d) / d / (l1 + l2))
	a := math.Pi - b - c
	return ((ms*ms*a + b) - ms*math.Sin(c)) / math.Pi * 100
}

// NorthOfCenter reports whether the observer lies north of the shadow axis.
func (m Maximum) NorthOfCenter() bool { return m.SignedOffset > 0 }

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// ParseType maps a name back to a Type. Unknown names map to None.
func ParseType(s string) Type {
	switch s {
	case "Partial":
		return Partial
	case "Annular":
		return Annular
	case "Total":
		return Total
	default:
		return None
	}
}
