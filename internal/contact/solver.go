// Package contact locates the instants of maximum eclipse and of the four
// contacts for one observer by fixed-point iteration on the Besselian
// elements, and derives magnitude, coverage, depth and the observational
// angles of each event.
package contact

import (
	"math"

	"github.com/star/eclipse/internal/besselian"
)

// Iteration limits. Non-convergence is not an error: the last iterate is kept.
const (
	DefaultMaxIterations = 50
	DefaultTolerance     = 1e-6 // hours
)

// Config tunes the solver.
type Config struct {
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance_hours"`
}

// DefaultConfig returns the standard iteration cap and tolerance.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// Solver runs the contact iterations for one observer.
type Solver struct {
	el  *besselian.ElementSet
	obs besselian.Observer
	cfg Config
}

// NewSolver returns a Solver for the observer. The element set is only read.
func NewSolver(el *besselian.ElementSet, obs besselian.Observer, cfg Config) *Solver {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return &Solver{el: el, obs: obs, cfg: cfg}
}

// Observer returns the observer the solver was built for.
func (s *Solver) Observer() besselian.Observer { return s.obs }

func (s *Solver) eval(kind besselian.ContactKind, t float64) besselian.Circumstance {
	return besselian.Evaluate(s.el, s.obs, kind, t)
}

// converged reports whether the iteration should stop. NaN steps stop it too.
func (s *Solver) converged(step float64, iter int) bool {
	return !(math.Abs(step) > s.cfg.Tolerance) || iter >= s.cfg.MaxIterations
}

// Mid finds the instant of maximum eclipse, starting from t = 0.
func (s *Solver) Mid() besselian.Circumstance {
	c := s.eval(besselian.Mid, 0)
	step := 1.0
	for iter := 0; !s.converged(step, iter); iter++ {
		step = c.MidCorrection()
		c = s.eval(besselian.Mid, c.T-step)
	}
	return c
}

// halfChord is the time from mid eclipse to the contact of a circle of the
// given radius, from the linear motion at mid eclipse.
func halfChord(c *besselian.Circumstance, radius float64) float64 {
	n := c.N()
	tmp := (c.A*c.V - c.U*c.B) / n / radius
	return math.Sqrt(1-tmp*tmp) * radius / n
}

// contactStep is one fixed-point correction for a contact of the given
// radius; sign selects the ingress (-1) or egress (+1) root.
func contactStep(c *besselian.Circumstance, radius, sign float64) float64 {
	n := c.N()
	tmp := (c.A*c.V - c.U*c.B) / n / radius
	tmp = sign * math.Sqrt(1-tmp*tmp) * radius / n
	return c.MidCorrection() - tmp
}

func (s *Solver) iterate(kind besselian.ContactKind, t, sign float64, radius func(*besselian.Circumstance) float64) besselian.Circumstance {
	c := s.eval(kind, t)
	step := 1.0
	for iter := 0; !s.converged(step, iter); iter++ {
		step = contactStep(&c, radius(&c), sign)
		c = s.eval(kind, c.T-step)
	}
	return c
}

func penumbral(c *besselian.Circumstance) float64 { return c.L1p }
func umbral(c *besselian.Circumstance) float64    { return c.L2p }

// C1C4 solves the penumbral contacts. mid must come from Mid and have a
// positive magnitude.
func (s *Solver) C1C4(mid *besselian.Circumstance) (c1, c4 besselian.Circumstance) {
	dt := halfChord(mid, mid.L1p)
	c1 = s.iterate(besselian.C1, mid.T-dt, -1, penumbral)
	c4 = s.iterate(besselian.C4, mid.T+dt, 1, penumbral)
	return c1, c4
}

// C2C3 solves the umbral or antumbral contacts. mid must come from Mid and
// the observer must be inside the central path. When l2' is negative (total)
// the chord and the root selection both change sign.
func (s *Solver) C2C3(mid *besselian.Circumstance) (c2, c3 besselian.Circumstance) {
	dt := halfChord(mid, mid.L2p)
	sign := 1.0
	t2, t3 := mid.T-dt, mid.T+dt
	if mid.L2p < 0 {
		sign = -1
		t2, t3 = mid.T+dt, mid.T-dt
	}
	c2 = s.iterate(besselian.C2, t2, -sign, umbral)
	c3 = s.iterate(besselian.C3, t3, sign, umbral)
	return c2, c3
}
