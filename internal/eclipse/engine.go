// Package eclipse is the engine facade: one Engine per catalog eclipse,
// exposing local circumstances, boundary tracing and shadow outlines.
package eclipse

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/config"
	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/local"
	"github.com/star/eclipse/internal/metrics"
	"github.com/star/eclipse/internal/paths"
	"github.com/star/eclipse/internal/shadow"
)

// ErrPenumbralLimitsRequired is returned by TraceEastWestLimit when the
// northern and southern penumbral limits have not both been traced.
var ErrPenumbralLimitsRequired = errors.New("penumbral limits must be traced first")

// Engine computes every geometric product of one eclipse. It is safe for
// concurrent use.
type Engine struct {
	info    catalog.Eclipse
	ev      *local.Evaluator
	tracer  *paths.Tracer
	builder *shadow.Builder
	logger  *slog.Logger

	mu      sync.Mutex
	north   *geo.BoundaryCurve
	south   *geo.BoundaryCurve
	bounded *paths.Set
}

// New builds an Engine for e. A nil cfg uses config.Default().
func New(e catalog.Eclipse, cfg *config.Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	logger = logger.With("eclipse", e.ID)
	ev := local.NewEvaluator(&e.Elements, cfg.LocalOptions())
	return &Engine{
		info:    e,
		ev:      ev,
		tracer:  paths.NewTracer(ev, e.Midpoint, cfg.Paths, logger.With("component", "tracer")),
		builder: shadow.NewBuilder(ev, nil, cfg.Shadow, logger.With("component", "shadow")),
		logger:  logger,
	}
}

// Eclipse returns the catalog record the engine was built from.
func (e *Engine) Eclipse() catalog.Eclipse { return e.info }

// EvaluateLocalCircumstances returns the eclipse as seen from one place.
// lon is east-positive degrees, alt metres.
func (e *Engine) EvaluateLocalCircumstances(lat, lon, alt float64) local.Circumstances {
	c := e.ev.Evaluate(lat, lon, alt)
	metrics.ObserveLocal(c.Type.String())
	return c
}

// TraceCentralLine traces the locus of central eclipse at maximum.
func (e *Engine) TraceCentralLine(ctx context.Context) (geo.BoundaryCurve, error) {
	defer observe(geo.CentralLine, time.Now())
	return e.tracer.CentralLine(ctx)
}

// TraceUmbralLimit traces the northern or southern limit of the umbral path.
func (e *Engine) TraceUmbralLimit(ctx context.Context, north bool) (geo.BoundaryCurve, error) {
	kind := geo.UmbralSouth
	if north {
		kind = geo.UmbralNorth
	}
	defer observe(kind, time.Now())
	return e.tracer.UmbralLimit(ctx, north)
}

// TracePenumbralLimit traces the northern or southern limit of partial
// eclipse. The result is kept for TraceEastWestLimit.
func (e *Engine) TracePenumbralLimit(ctx context.Context, north bool) (geo.BoundaryCurve, error) {
	kind := geo.PenumbralSouth
	if north {
		kind = geo.PenumbralNorth
	}
	defer observe(kind, time.Now())

	c, err := e.tracer.PenumbralLimit(ctx, north)
	if err != nil {
		return c, err
	}
	e.mu.Lock()
	if north {
		e.north = &c
	} else {
		e.south = &c
	}
	e.mu.Unlock()
	return c, nil
}

// TraceEastWestLimit traces the rising (east) or setting (west) limit
// curve. Both penumbral limits must have been traced.
func (e *Engine) TraceEastWestLimit(ctx context.Context, west bool) (geo.BoundaryCurve, error) {
	e.mu.Lock()
	north, south := e.north, e.south
	e.mu.Unlock()
	if north == nil || south == nil {
		return geo.BoundaryCurve{}, ErrPenumbralLimitsRequired
	}

	kind := geo.EastLimit
	if west {
		kind = geo.WestLimit
	}
	defer observe(kind, time.Now())
	return e.tracer.EastWestLimit(ctx, west, *north, *south)
}

// TraceAll traces every curve through the two-level task graph. The result
// also bounds later shadow builds.
func (e *Engine) TraceAll(ctx context.Context) (*paths.Set, error) {
	start := time.Now()
	set, err := paths.TraceAll(ctx, e.tracer, e.info.Central())
	if err != nil {
		return nil, err
	}
	e.UseCurves(set)

	e.logger.Info("paths traced",
		"curves", len(set.Curves()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return set, nil
}

// UseCurves installs a traced set, typically from a cache, as the shadow
// scan bounds and the penumbral limits for TraceEastWestLimit.
func (e *Engine) UseCurves(set *paths.Set) {
	if set == nil {
		return
	}
	north, south := set.PenumbralNorth, set.PenumbralSouth
	e.mu.Lock()
	e.bounded = set
	e.north, e.south = &north, &south
	e.mu.Unlock()
}

// BuildShadowPolygon returns the penumbral or umbral outline at the UT
// Julian Day jd, or nil when that shadow does not touch the Earth.
func (e *Engine) BuildShadowPolygon(ctx context.Context, jd float64, penumbral bool) (*geo.ShadowPolygon, error) {
	e.mu.Lock()
	set := e.bounded
	e.mu.Unlock()

	start := time.Now()
	poly, err := e.builder.Build(ctx, jd, penumbral, set)
	if err != nil {
		return nil, err
	}
	metrics.ObserveShadow(penumbral, time.Since(start))
	return poly, nil
}

// ShadowWindow returns the UT Julian Days of first and last contact of the
// penumbra (P1, P4) or the umbra (U1, U4) with the Earth.
func (e *Engine) ShadowWindow(penumbral bool) (start, end float64, ok bool) {
	return e.builder.Window(penumbral)
}

// PenumbraStartJD returns the UT Julian Day of P1.
func (e *Engine) PenumbraStartJD() (float64, bool) {
	start, _, ok := e.builder.Window(true)
	return start, ok
}

// PenumbraEndJD returns the UT Julian Day of P4.
func (e *Engine) PenumbraEndJD() (float64, bool) {
	_, end, ok := e.builder.Window(true)
	return end, ok
}

func observe(kind geo.CurveKind, start time.Time) {
	metrics.ObserveTrace(kind.String(), time.Since(start))
}
