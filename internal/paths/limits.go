package paths

import (
	"context"
	"math"
	"time"

	"github.com/star/eclipse/internal/geo"
)

// EastWestLimit traces the west limit (eclipse ends at sunrise) or the east
// limit (eclipse begins at sunset) south to north. The curve starts from the
// matching end of the south penumbral limit, or of the north limit when the
// south one is missing, and is stitched onto the end points of both.
func (t *Tracer) EastWestLimit(ctx context.Context, west bool, north, south geo.BoundaryCurve) (geo.BoundaryCurve, error) {
	start := time.Now()
	f := t.limitField(west)

	from, dir := t.seed, 1.0
	switch {
	case south.Renderable():
		from = endPoint(south, west).Position
	case north.Renderable():
		from, dir = endPoint(north, west).Position, -1
	}

	seed, ok := t.seedAlong(ctx, f, from, dir)
	if !ok {
		t.logger.Debug("no seed for curve", "curve", f.kind.String())
		return geo.BoundaryCurve{Kind: f.kind}, ctx.Err()
	}

	up, err := t.walk(ctx, f, seed, 1)
	if err != nil {
		return geo.BoundaryCurve{Kind: f.kind}, err
	}
	down, err := t.walk(ctx, f, seed, -1)
	if err != nil {
		return geo.BoundaryCurve{Kind: f.kind}, err
	}

	nodes := make([]node, 0, len(down)+1+len(up))
	for i := len(down) - 1; i >= 0; i-- {
		nodes = append(nodes, down[i])
	}
	nodes = append(nodes, seed)
	nodes = append(nodes, up...)
	c := t.curve(f, nodes)

	if south.Renderable() {
		c.Points = append([]geo.CurvePoint{endPoint(south, west)}, c.Points...)
	}
	if north.Renderable() {
		c.Points = append(c.Points, endPoint(north, west))
	}

	t.logger.Debug("curve traced",
		"curve", f.kind.String(),
		"points", len(c.Points),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return c, nil
}

// endPoint returns the west or east end of a west-to-east curve.
func endPoint(c geo.BoundaryCurve, west bool) geo.CurvePoint {
	if west {
		return c.Points[0]
	}
	return c.Points[len(c.Points)-1]
}

// seedAlong finds the first visible crossing on a latitude stepped from
// the start position in direction dir.
func (t *Tracer) seedAlong(ctx context.Context, f *field, from geo.Position, dir float64) (node, bool) {
	for k := 0; ; k++ {
		lat := from.Lat + dir*float64(k)*t.cfg.Resolution
		if math.Abs(lat) > 90 || ctx.Err() != nil {
			return node{}, false
		}
		if s, smp, ok := t.search(f, lat, from.Lon); ok && smp.visible {
			return node{p: lat, s: s}, true
		}
	}
}
