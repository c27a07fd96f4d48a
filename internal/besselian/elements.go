// Package besselian evaluates the Besselian elements of a solar eclipse:
// the polynomial description of the Moon's shadow axis and cones on the
// fundamental plane, and the projection of a ground observer onto it.
package besselian

import (
	"errors"
	"fmt"
	"math"

	"github.com/star/eclipse/internal/transform"
)

// ElementSet is the per-eclipse Besselian element record. Polynomials are in
// t, hours from T0 (TDT). Methods take it by value, so it is safe to share
// between goroutines and usable straight off a returned record.
type ElementSet struct {
	JulianDayMax float64 `yaml:"julian_day_max" json:"julian_day_max"` // JD (TDT) of greatest eclipse
	T0           float64 `yaml:"t0" json:"t0"`                         // reference hour (TDT)
	TMin         float64 `yaml:"t_min" json:"t_min"`                   // validity range of t
	TMax         float64 `yaml:"t_max" json:"t_max"`
	DUTC         float64 `yaml:"d_utc" json:"d_utc"`     // UT1-UTC, seconds
	DeltaT       float64 `yaml:"delta_t" json:"delta_t"` // TDT-UT1, seconds

	X  [4]float64 `yaml:"x" json:"x"`
	Y  [4]float64 `yaml:"y" json:"y"`
	D  [3]float64 `yaml:"d" json:"d"`   // degrees
	Mu [3]float64 `yaml:"mu" json:"mu"` // degrees
	L1 [3]float64 `yaml:"l1" json:"l1"`
	L2 [3]float64 `yaml:"l2" json:"l2"`

	TanF1 float64 `yaml:"tan_f1" json:"tan_f1"`
	TanF2 float64 `yaml:"tan_f2" json:"tan_f2"`
}

// Validate reports structural problems with an element set. It does not judge
// whether the polynomials describe a physically sensible eclipse.
func (e ElementSet) Validate() error {
	var errs []error
	if e.JulianDayMax <= 0 {
		errs = append(errs, errors.New("julian_day_max must be positive"))
	}
	if e.TMin >= e.TMax {
		errs = append(errs, fmt.Errorf("t_min %.3f must be less than t_max %.3f", e.TMin, e.TMax))
	}
	if e.TanF1 <= 0 || e.TanF2 <= 0 {
		errs = append(errs, errors.New("tan_f1 and tan_f2 must be positive"))
	}
	if e.L1[0] <= 0 {
		errs = append(errs, errors.New("l1 must be positive"))
	}
	if e.Mu[1] == 0 {
		errs = append(errs, errors.New("mu rate must be non-zero"))
	}
	for _, p := range []struct {
		name string
		vals []float64
	}{
		{"x", e.X[:]}, {"y", e.Y[:]}, {"d", e.D[:]}, {"mu", e.Mu[:]}, {"l1", e.L1[:]}, {"l2", e.L2[:]},
	} {
		for i, v := range p.vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				errs = append(errs, fmt.Errorf("%s[%d] is not finite", p.name, i))
			}
		}
	}
	return errors.Join(errs...)
}

// horner3 evaluates c0 + c1 t + c2 t² + c3 t³ and its derivative.
func horner3(c [4]float64, t float64) (v, dv float64) {
	v = ((c[3]*t+c[2])*t+c[1])*t + c[0]
	dv = (3*c[3]*t+2*c[2])*t + c[1]
	return v, dv
}

// horner2 evaluates c0 + c1 t + c2 t² and its derivative.
func horner2(c [3]float64, t float64) (v, dv float64) {
	v = (c[2]*t+c[1])*t + c[0]
	dv = 2*c[2]*t + c[1]
	return v, dv
}

// AxisDistance is the distance of the shadow axis from Earth's center on the
// fundamental plane at time t, in Earth radii.
func (e ElementSet) AxisDistance(t float64) float64 {
	x, _ := horner3(e.X, t)
	y, _ := horner3(e.Y, t)
	return math.Hypot(x, y)
}

// PenumbraRadius is l1 at time t.
func (e ElementSet) PenumbraRadius(t float64) float64 {
	v, _ := horner2(e.L1, t)
	return v
}

// UmbraRadius is l2 at time t; negative for a total (umbral) shadow.
func (e ElementSet) UmbraRadius(t float64) float64 {
	v, _ := horner2(e.L2, t)
	return v
}

// utcOffsetHours is TDT-UTC in hours.
func (e ElementSet) utcOffsetHours() float64 {
	return (e.DeltaT + e.DUTC) / 3600.0
}

// JulianDay converts polynomial time t to a Julian Day in UTC.
func (e ElementSet) JulianDay(t float64) float64 {
	return transform.MidnightJD(e.JulianDayMax) + (e.T0+t-e.utcOffsetHours())/24.0
}

// PolynomialTime converts a UTC Julian Day back to polynomial time t.
func (e ElementSet) PolynomialTime(jd float64) float64 {
	return (jd-transform.MidnightJD(e.JulianDayMax))*24.0 - e.T0 + e.utcOffsetHours()
}

// contactScanStep is the coarse step (hours) used to bracket shadow contacts.
const contactScanStep = 1.0 / 60.0

// PenumbralContacts returns t of P1 and P4, the first and last instants at
// which the penumbral cone touches the Earth. ok is false when the penumbra
// misses the Earth over the whole validity range.
func (e ElementSet) PenumbralContacts() (p1, p4 float64, ok bool) {
	return e.contacts(func(t float64) float64 {
		return e.AxisDistance(t) - (1 + e.PenumbraRadius(t))
	})
}

// UmbralContacts returns t of U1 and U4 for the umbral (or antumbral) cone.
func (e ElementSet) UmbralContacts() (u1, u4 float64, ok bool) {
	return e.contacts(func(t float64) float64 {
		return e.AxisDistance(t) - (1 + math.Abs(e.UmbraRadius(t)))
	})
}

// contacts brackets the sign changes of g (negative while in contact) on
// [TMin, TMax] and refines each by bisection.
func (e ElementSet) contacts(g func(float64) float64) (first, last float64, ok bool) {
	first, last = math.NaN(), math.NaN()
	prevT, prevIn := e.TMin, g(e.TMin) <= 0
	if prevIn {
		first = e.TMin
	}
	for t := e.TMin + contactScanStep; ; t += contactScanStep {
		if t > e.TMax {
			t = e.TMax
		}
		in := g(t) <= 0
		if in && !prevIn && math.IsNaN(first) {
			first = bisect(g, prevT, t)
		}
		if !in && prevIn {
			last = bisect(g, prevT, t)
		}
		prevT, prevIn = t, in
		if t >= e.TMax {
			break
		}
	}
	if math.IsNaN(first) {
		return first, last, false
	}
	if prevIn {
		last = e.TMax
	}
	return first, last, true
}

// bisect finds the root of g between a and b, where g changes sign.
func bisect(g func(float64) float64, a, b float64) float64 {
	ga := g(a)
	for i := 0; i < 60 && b-a > 1e-9; i++ {
		m := (a + b) / 2
		gm := g(m)
		if (gm <= 0) == (ga <= 0) {
			a, ga = m, gm
		} else {
			b = m
		}
	}
	return (a + b) / 2
}
