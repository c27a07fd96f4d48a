package besselian

import (
	"math"

	"github.com/star/eclipse/internal/transform"
)

// ContactKind identifies the event a Circumstance describes.
type ContactKind int

const (
	C1  ContactKind = -2 // first external contact (penumbra)
	C2  ContactKind = -1 // second contact (umbra/antumbra)
	Mid ContactKind = 0  // maximum eclipse
	C3  ContactKind = 1
	C4  ContactKind = 2
)

func (k ContactKind) String() string {
	switch k {
	case C1:
		return "C1"
	case C2:
		return "C2"
	case Mid:
		return "Mid"
	case C3:
		return "C3"
	case C4:
		return "C4"
	default:
		return "unknown"
	}
}

// UsesPenumbra reports whether l1 is evaluated for this kind.
func (k ContactKind) UsesPenumbra() bool { return k == C1 || k == Mid || k == C4 }

// UsesUmbra reports whether l2 is evaluated for this kind.
func (k ContactKind) UsesUmbra() bool { return k == C2 || k == Mid || k == C3 }

// secondsPerRadian converts ΔT seconds to an Earth rotation angle.
const secondsPerRadian = 13713.44

// Circumstance holds the fundamental-plane quantities for one (kind, t) pair
// and one observer. Fields that do not apply to Kind are left at zero.
// Values are built fresh by Evaluate and never shared.
type Circumstance struct {
	Kind ContactKind
	T    float64 // hours from T0

	// Time-only quantities. Angles in radians, rates per hour.
	X, Y       float64
	DX, DY     float64
	D          float64
	SinD, CosD float64
	DD         float64
	Mu         float64
	DMu        float64
	L1, DL1    float64
	L2, DL2    float64

	// Time and location quantities.
	H, SinH, CosH float64
	Xi, Eta, Zeta float64
	DXi, DEta     float64
	U, V          float64
	A, B          float64
	L1p, L2p      float64 // l1', l2'
	N2            float64
}

// Evaluate computes both evaluation stages for the observer at time t.
// Degenerate geometry yields NaN fields rather than an error.
func Evaluate(el *ElementSet, obs Observer, kind ContactKind, t float64) Circumstance {
	c := Circumstance{Kind: kind, T: t}
	c.timeDependent(el)
	c.locationDependent(el, obs)
	return c
}

func (c *Circumstance) timeDependent(el *ElementSet) {
	t := c.T
	c.X, c.DX = horner3(el.X, t)
	c.Y, c.DY = horner3(el.Y, t)

	d, dd := horner2(el.D, t)
	c.D = d * transform.Rad
	c.SinD, c.CosD = math.Sincos(c.D)
	c.DD = dd * transform.Rad

	mu, dmu := horner2(el.Mu, t)
	mu = math.Mod(mu, 360)
	if mu < 0 {
		mu += 360
	}
	c.Mu = mu * transform.Rad
	c.DMu = dmu * transform.Rad

	if c.Kind.UsesPenumbra() {
		c.L1, c.DL1 = horner2(el.L1, t)
	}
	if c.Kind.UsesUmbra() {
		c.L2, c.DL2 = horner2(el.L2, t)
	}
}

func (c *Circumstance) locationDependent(el *ElementSet, obs Observer) {
	c.H = c.Mu - obs.Lon - el.DeltaT/secondsPerRadian
	c.SinH, c.CosH = math.Sincos(c.H)

	c.Xi = obs.RhoCosP * c.SinH
	c.Eta = obs.RhoSinP*c.CosD - obs.RhoCosP*c.CosH*c.SinD
	c.Zeta = obs.RhoSinP*c.SinD + obs.RhoCosP*c.CosH*c.CosD

	c.DXi = c.DMu * obs.RhoCosP * c.CosH
	c.DEta = c.DMu*c.Xi*c.SinD - c.Zeta*c.DD

	c.U = c.X - c.Xi
	c.V = c.Y - c.Eta
	c.A = c.DX - c.DXi
	c.B = c.DY - c.DEta

	if c.Kind.UsesPenumbra() {
		c.L1p = c.L1 - c.Zeta*el.TanF1
	}
	if c.Kind.UsesUmbra() {
		c.L2p = c.L2 - c.Zeta*el.TanF2
	}
	c.N2 = c.A*c.A + c.B*c.B
}

// N is the relative speed of the shadow axis past the observer, in Earth
// radii per hour.
func (c *Circumstance) N() float64 { return math.Sqrt(c.N2) }

// M is the observer's distance from the shadow axis on the fundamental plane.
func (c *Circumstance) M() float64 { return math.Hypot(c.U, c.V) }

// MidCorrection is the time step (hours) that moves t toward the instant of
// closest approach of the shadow axis.
func (c *Circumstance) MidCorrection() float64 {
	return (c.U*c.A + c.V*c.B) / c.N2
}
