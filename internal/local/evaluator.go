// Package local evaluates the circumstances of an eclipse for one observer:
// visibility, type, magnitude, coverage, depth and the five contact events.
package local

import (
	"math"
	"time"

	"github.com/star/eclipse/internal/besselian"
	"github.com/star/eclipse/internal/contact"
	"github.com/star/eclipse/internal/transform"
)

// Contact is one solved event as seen by the observer. Angles are degrees.
type Contact struct {
	Kind          string    `json:"kind"`
	JD            float64   `json:"jd"`
	Time          time.Time `json:"time"`
	Altitude      float64   `json:"altitude"`
	Azimuth       float64   `json:"azimuth"`
	PositionAngle float64   `json:"position_angle"`
	VertexAngle   float64   `json:"vertex_angle"`
	BelowHorizon  bool      `json:"below_horizon"`

	T float64 `json:"-"` // hours from T0
}

// Circumstances is the result of one location evaluation. When Visible is
// false the magnitude, coverage and depth are still the unclipped geometric
// values.
type Circumstances struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`

	Visible       bool         `json:"visible"`
	Type          contact.Type `json:"type"`
	Magnitude     float64      `json:"magnitude"`
	Coverage      float64      `json:"coverage"`
	Depth         float64      `json:"depth"`
	MoonSunRatio  float64      `json:"moon_sun_ratio"`
	SignedOffset  float64      `json:"signed_offset"`
	NorthOfCenter bool         `json:"north_of_center"`

	C1  *Contact `json:"c1,omitempty"`
	C2  *Contact `json:"c2,omitempty"`
	Mid *Contact `json:"mid"`
	C3  *Contact `json:"c3,omitempty"`
	C4  *Contact `json:"c4,omitempty"`

	PartialDuration time.Duration `json:"partial_duration"` // C1 to C4
	CentralDuration time.Duration `json:"central_duration"` // C2 to C3
}

// Options configures an Evaluator. Zero fields take the defaults.
type Options struct {
	Earth           besselian.EarthModel
	Solver          contact.Config
	HorizonAltitude float64 // degrees; contacts below it are not visible
}

// Evaluator computes Circumstances for any number of observers. It holds
// no mutable state and is safe for concurrent use.
type Evaluator struct {
	el      *besselian.ElementSet
	earth   besselian.EarthModel
	solver  contact.Config
	horizon float64
}

// NewEvaluator returns an Evaluator for the element set.
func NewEvaluator(el *besselian.ElementSet, opts Options) *Evaluator {
	if opts.Earth.AxisRatio == 0 || opts.Earth.EquatorialRadius == 0 {
		opts.Earth = besselian.WGS84
	}
	return &Evaluator{
		el:      el,
		earth:   opts.Earth,
		solver:  opts.Solver,
		horizon: opts.HorizonAltitude,
	}
}

// Elements returns the element set the evaluator was built for.
func (e *Evaluator) Elements() *besselian.ElementSet { return e.el }

// Evaluate computes the circumstances at latitude and longitude (degrees,
// east positive) and altitude (meters). Non-finite input yields NaN output.
func (e *Evaluator) Evaluate(lat, lon, alt float64) Circumstances {
	obs := besselian.NewObserver(lat, lon, alt, e.earth)
	s := contact.NewSolver(e.el, obs, e.solver)

	mid := s.Mid()
	peak := contact.Classify(mid)

	out := Circumstances{
		Latitude:      lat,
		Longitude:     lon,
		Altitude:      alt,
		Type:          peak.Type,
		Magnitude:     peak.Magnitude,
		Coverage:      peak.Coverage,
		Depth:         peak.Depth,
		MoonSunRatio:  peak.MoonSunRatio,
		SignedOffset:  peak.SignedOffset,
		NorthOfCenter: peak.NorthOfCenter(),
	}
	out.Mid = e.contact(&mid, obs, peak.Type)

	if peak.Type != contact.None {
		c1, c4 := s.C1C4(&mid)
		out.C1 = e.contact(&c1, obs, peak.Type)
		out.C4 = e.contact(&c4, obs, peak.Type)
		out.PartialDuration = hoursToDuration(c4.T - c1.T)
	}
	if peak.Type.Central() {
		c2, c3 := s.C2C3(&mid)
		out.C2 = e.contact(&c2, obs, peak.Type)
		out.C3 = e.contact(&c3, obs, peak.Type)
		out.CentralDuration = hoursToDuration(c3.T - c2.T)
	}

	checkHorizons(&out)
	return out
}

func (e *Evaluator) contact(c *besselian.Circumstance, obs besselian.Observer, typ contact.Type) *Contact {
	o := contact.Observe(c, obs, contact.Internal(c.Kind, typ))
	jd := e.el.JulianDay(c.T)
	alt := o.Altitude * transform.Deg
	return &Contact{
		Kind:          c.Kind.String(),
		JD:            jd,
		Time:          transform.FromJulianDate(jd),
		Altitude:      alt,
		Azimuth:       o.Azimuth * transform.Deg,
		PositionAngle: o.PositionAngle * transform.Deg,
		VertexAngle:   o.VertexAngle * transform.Deg,
		BelowHorizon:  alt < e.horizon,
		T:             c.T,
	}
}

func hoursToDuration(h float64) time.Duration {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0
	}
	return time.Duration(math.Round(h * float64(time.Hour)))
}

// checkHorizons downgrades the type when the relevant contacts cannot be
// seen: everything below the horizon means no visible event, and a central
// phase entirely below the horizon leaves only the partial phases.
func checkHorizons(c *Circumstances) {
	if c.Type == contact.None {
		c.Visible = false
		return
	}

	relevant := []*Contact{c.C1, c.Mid, c.C4}
	if c.Type.Central() {
		relevant = append(relevant, c.C2, c.C3)
	}
	hidden := true
	for _, ct := range relevant {
		if ct != nil && !ct.BelowHorizon {
			hidden = false
			break
		}
	}
	if hidden {
		c.Type = contact.None
		c.Visible = false
		return
	}

	if c.Type.Central() && c.C2 != nil && c.C3 != nil && c.C2.BelowHorizon && c.C3.BelowHorizon {
		c.Type = contact.Partial
	}
	c.Visible = true
}
