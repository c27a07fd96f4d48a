package paths

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/star/eclipse/internal/geo"
)

// Set holds every boundary curve of one eclipse. Curves that could not be
// traced are empty.
type Set struct {
	CentralLine    geo.BoundaryCurve `json:"central_line"`
	UmbralNorth    geo.BoundaryCurve `json:"umbral_north"`
	UmbralSouth    geo.BoundaryCurve `json:"umbral_south"`
	PenumbralNorth geo.BoundaryCurve `json:"penumbral_north"`
	PenumbralSouth geo.BoundaryCurve `json:"penumbral_south"`
	EastLimit      geo.BoundaryCurve `json:"east_limit"`
	WestLimit      geo.BoundaryCurve `json:"west_limit"`
}

// Curves returns the renderable curves in trace order.
func (s *Set) Curves() []geo.BoundaryCurve {
	var out []geo.BoundaryCurve
	for _, c := range []geo.BoundaryCurve{
		s.CentralLine, s.UmbralNorth, s.UmbralSouth,
		s.PenumbralNorth, s.PenumbralSouth, s.EastLimit, s.WestLimit,
	} {
		if c.Renderable() {
			out = append(out, c)
		}
	}
	return out
}

// Curve returns the curve of the given kind.
func (s *Set) Curve(kind geo.CurveKind) geo.BoundaryCurve {
	switch kind {
	case geo.CentralLine:
		return s.CentralLine
	case geo.UmbralNorth:
		return s.UmbralNorth
	case geo.UmbralSouth:
		return s.UmbralSouth
	case geo.PenumbralNorth:
		return s.PenumbralNorth
	case geo.PenumbralSouth:
		return s.PenumbralSouth
	case geo.EastLimit:
		return s.EastLimit
	case geo.WestLimit:
		return s.WestLimit
	}
	return geo.BoundaryCurve{Kind: kind}
}

// TraceAll runs the two-level trace: the central line, umbral and penumbral
// limits concurrently, then the east and west limits once the penumbral
// limits are known. central is false for partial eclipses, whose central
// line and umbral limits are skipped. Cancelling ctx abandons the whole
// trace.
func TraceAll(ctx context.Context, t *Tracer, central bool) (*Set, error) {
	set := &Set{
		CentralLine: geo.BoundaryCurve{Kind: geo.CentralLine},
		UmbralNorth: geo.BoundaryCurve{Kind: geo.UmbralNorth},
		UmbralSouth: geo.BoundaryCurve{Kind: geo.UmbralSouth},
	}

	g, gctx := errgroup.WithContext(ctx)
	if central {
		g.Go(func() (err error) {
			set.CentralLine, err = t.CentralLine(gctx)
			return err
		})
		g.Go(func() (err error) {
			set.UmbralNorth, err = t.UmbralLimit(gctx, true)
			return err
		})
		g.Go(func() (err error) {
			set.UmbralSouth, err = t.UmbralLimit(gctx, false)
			return err
		})
	}
	g.Go(func() (err error) {
		set.PenumbralNorth, err = t.PenumbralLimit(gctx, true)
		return err
	})
	g.Go(func() (err error) {
		set.PenumbralSouth, err = t.PenumbralLimit(gctx, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("trace limits: %w", err)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		set.EastLimit, err = t.EastWestLimit(gctx, false, set.PenumbralNorth, set.PenumbralSouth)
		return err
	})
	g.Go(func() (err error) {
		set.WestLimit, err = t.EastWestLimit(gctx, true, set.PenumbralNorth, set.PenumbralSouth)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("trace east/west limits: %w", err)
	}
	return set, nil
}
