package local

import (
	"github.com/star/eclipse/internal/besselian"
	"github.com/star/eclipse/internal/contact"
	"github.com/star/eclipse/internal/transform"
)

// Peak is the maximum-eclipse part of an evaluation without the contact
// searches. Boundary tracing samples it many times per curve point.
type Peak struct {
	contact.Maximum
	Altitude float64 // degrees, Sun at maximum eclipse
	JD       float64
}

// Peak solves maximum eclipse only.
func (e *Evaluator) Peak(lat, lon, alt float64) Peak {
	obs := besselian.NewObserver(lat, lon, alt, e.earth)
	mid := contact.NewSolver(e.el, obs, e.solver).Mid()
	a, _ := transform.Horizontal(mid.H, mid.D, obs.Lat)
	return Peak{
		Maximum:  contact.Classify(mid),
		Altitude: a * transform.Deg,
		JD:       e.el.JulianDay(mid.T),
	}
}

// Horizon returns the altitude, in degrees, below which events are hidden.
func (e *Evaluator) Horizon() float64 { return e.horizon }
