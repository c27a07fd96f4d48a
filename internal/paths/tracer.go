// Package paths traces the geographic boundary curves of an eclipse: the
// central line, the north and south limits of the umbral and penumbral
// zones, and the east and west limits of visibility.
//
// Every curve is the zero set of a scalar field sampled through the local
// circumstance evaluator. The tracer advances along a primary axis in fixed
// steps and, at each step, brackets the zero along the secondary axis
// starting from the previous point's coordinate.
package paths

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/local"
	"github.com/star/eclipse/internal/transform"
)

// Tracer traces boundary curves for one eclipse. The evaluator is shared
// read-only, so one Tracer may run several traces concurrently.
type Tracer struct {
	ev     *local.Evaluator
	seed   geo.Position
	cfg    Config
	logger *slog.Logger
}

// NewTracer returns a Tracer seeded at the eclipse midpoint.
func NewTracer(ev *local.Evaluator, seed geo.Position, cfg Config, logger *slog.Logger) *Tracer {
	return &Tracer{
		ev:     ev,
		seed:   seed,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Config returns the effective configuration.
func (t *Tracer) Config() Config { return t.cfg }

// node is a curve point in (primary, secondary) coordinates.
type node struct{ p, s float64 }

// CentralLine traces the line of maximum depth, west to east.
func (t *Tracer) CentralLine(ctx context.Context) (geo.BoundaryCurve, error) {
	return t.traceAcross(ctx, t.centralField())
}

// UmbralLimit traces the north or south limit of the central path.
func (t *Tracer) UmbralLimit(ctx context.Context, north bool) (geo.BoundaryCurve, error) {
	return t.traceAcross(ctx, t.umbralField(north))
}

// PenumbralLimit traces the north or south limit of the partial zone.
func (t *Tracer) PenumbralLimit(ctx context.Context, north bool) (geo.BoundaryCurve, error) {
	return t.traceAcross(ctx, t.penumbralField(north))
}

// traceAcross traces a north/south curve east then west of its seed and
// returns it ordered west to east.
func (t *Tracer) traceAcross(ctx context.Context, f *field) (geo.BoundaryCurve, error) {
	start := time.Now()
	seed, ok := t.seedAcross(ctx, f)
	if !ok {
		t.logger.Debug("no seed for curve", "curve", f.kind.String())
		return geo.BoundaryCurve{Kind: f.kind}, ctx.Err()
	}

	east, err := t.walk(ctx, f, seed, 1)
	if err != nil {
		return geo.BoundaryCurve{Kind: f.kind}, err
	}
	west, err := t.walk(ctx, f, seed, -1)
	if err != nil {
		return geo.BoundaryCurve{Kind: f.kind}, err
	}

	nodes := make([]node, 0, len(west)+1+len(east))
	for i := len(west) - 1; i >= 0; i-- {
		nodes = append(nodes, west[i])
	}
	nodes = append(nodes, seed)
	nodes = append(nodes, east...)

	c := t.curve(f, nodes)
	t.logger.Debug("curve traced",
		"curve", f.kind.String(),
		"points", len(c.Points),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return c, nil
}

// seedAcross finds the first visible crossing at the seed longitude, then at
// longitudes fanning out from it.
func (t *Tracer) seedAcross(ctx context.Context, f *field) (node, bool) {
	for k := 0; float64(k)*t.cfg.SeedStep <= 180; k++ {
		for _, sign := range []float64{1, -1} {
			if k == 0 && sign < 0 {
				continue
			}
			if ctx.Err() != nil {
				return node{}, false
			}
			lon := t.seed.Lon + sign*float64(k)*t.cfg.SeedStep
			if math.Abs(lon) > 180 {
				continue
			}
			if s, smp, ok := t.search(f, lon, t.seed.Lat); ok && smp.visible {
				return node{p: lon, s: s}, true
			}
		}
	}
	return node{}, false
}

// stretch is the cosine widening of longitude steps at latitude lat.
func (t *Tracer) stretch(lat float64) float64 {
	return 1 / math.Max(math.Cos(lat*transform.Rad), t.cfg.MinCosLatitude)
}

// primaryStep is the full step along the primary axis from n.
func (t *Tracer) primaryStep(f *field, n node) float64 {
	if f.transpose {
		return t.cfg.Resolution
	}
	return t.cfg.Resolution * t.stretch(n.s)
}

// secondaryStep is the bracket search step at primary coordinate p.
func (t *Tracer) secondaryStep(f *field, p float64) float64 {
	if f.transpose {
		return t.cfg.LatitudeStep * t.stretch(p)
	}
	return t.cfg.LatitudeStep
}

// maxJump is the largest secondary move accepted between consecutive points.
func (t *Tracer) maxJump(f *field, p float64) float64 {
	if f.transpose {
		return t.cfg.MaxJump * t.stretch(p)
	}
	return t.cfg.MaxJump
}

func primaryLimit(f *field) float64 {
	if f.transpose {
		return 90
	}
	return 180
}

func secondaryBounds(f *field) (lo, hi float64) {
	if f.transpose {
		return -180, 180
	}
	return -90, 90
}

// search brackets the zero of the field along the secondary axis at primary
// coordinate p, starting from s0 and stepping toward the zero.
func (t *Tracer) search(f *field, p, s0 float64) (float64, sample, bool) {
	first := f.at(p, s0)
	if math.IsNaN(first.value) {
		return 0, sample{}, false
	}
	if first.accept || first.value == 0 {
		return s0, first, true
	}

	step := t.secondaryStep(f, p)
	if (first.value > 0) == f.increases {
		step = -step
	}
	lo, hi := secondaryBounds(f)

	prevS, prev := s0, first
	for i := 0; i < t.cfg.MaxSearchSteps; i++ {
		s := prevS + step
		if s < lo || s > hi {
			return 0, sample{}, false
		}
		cur := f.at(p, s)
		if math.IsNaN(cur.value) {
			return 0, sample{}, false
		}
		if cur.accept {
			return s, cur, true
		}
		if cur.value == 0 || (cur.value > 0) != (prev.value > 0) {
			x := geo.Crossing(prevS, prev.value, s, cur.value)
			return x, f.at(p, x), true
		}
		prevS, prev = s, cur
	}
	return 0, sample{}, false
}

// walk advances from the seed in direction dir (+1 east or north, -1 west
// or south) until the curve leaves the visible region, the search loses
// it, or the primary axis runs out. Points are returned in walk order,
// without the seed.
func (t *Tracer) walk(ctx context.Context, f *field, seed node, dir float64) ([]node, error) {
	var out []node
	cur := seed
	limit := primaryLimit(f)

	for len(out) < t.cfg.MaxPoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		full := t.primaryStep(f, cur)
		step := full
		for {
			np := cur.p + dir*step
			if math.Abs(np) > limit {
				return out, nil
			}
			ns, smp, ok := t.search(f, np, cur.s)
			if !ok || !smp.visible {
				if end, ok := t.bisectEnd(f, cur, np); ok {
					out = append(out, end)
				}
				return out, nil
			}
			if math.Abs(ns-cur.s) <= t.maxJump(f, np) || step <= full*t.cfg.MinStepFraction {
				cur = node{p: np, s: ns}
				break
			}
			step /= 2
		}
		out = append(out, cur)
	}

	t.logger.Warn("curve truncated", "curve", f.kind.String(), "max_points", t.cfg.MaxPoints)
	return out, nil
}

// bisectEnd narrows the primary interval between the last good point and
// bad down to the last point where the curve is still found and visible.
func (t *Tracer) bisectEnd(f *field, good node, bad float64) (node, bool) {
	a, b := good.p, bad
	s := good.s
	var end node
	found := false
	for i := 0; i < t.cfg.BisectIterations; i++ {
		m := (a + b) / 2
		ns, smp, ok := t.search(f, m, s)
		if ok && smp.visible {
			a, s = m, ns
			end = node{p: m, s: ns}
			found = true
		} else {
			b = m
		}
	}
	return end, found
}

// curve converts nodes to a BoundaryCurve with contact times at each point.
func (t *Tracer) curve(f *field, nodes []node) geo.BoundaryCurve {
	c := geo.BoundaryCurve{Kind: f.kind, Points: make([]geo.CurvePoint, 0, len(nodes))}
	for _, n := range nodes {
		pos := f.position(n.p, n.s)
		c.Points = append(c.Points, geo.CurvePoint{Position: pos, Times: t.contactTimes(pos)})
	}
	return c
}
