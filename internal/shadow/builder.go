// Package shadow builds the instantaneous outline of the umbra or penumbra
// on the Earth's surface by scanning a latitude/longitude grid for the
// points where a contact happens at the query instant or where the
// terminator cuts the shadow.
package shadow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/local"
	"github.com/star/eclipse/internal/paths"
	"github.com/star/eclipse/internal/solar"
	"github.com/star/eclipse/internal/transform"
)

// Config tunes the grid scan. Steps are degrees.
type Config struct {
	GridStep      float64           `yaml:"grid_step"`       // penumbra rows and columns
	UmbraGridStep float64           `yaml:"umbra_grid_step"` // umbra rows and columns
	UmbraMargin   float64           `yaml:"umbra_margin"`    // half-size of the umbra search box around the central line
	Workers       int               `yaml:"workers"`
	PoleSmoothing geo.PoleSmoothing `yaml:"pole_smoothing"`
}

// DefaultConfig returns the standard grid.
func DefaultConfig() Config {
	return Config{
		GridStep:      1,
		UmbraGridStep: 0.1,
		UmbraMargin:   3,
		Workers:       4,
		PoleSmoothing: geo.DefaultPoleSmoothing(),
	}
}

// Builder builds shadow polygons for one eclipse.
type Builder struct {
	ev        *local.Evaluator
	elevation solar.ElevationFunc
	cfg       Config
	pool      *WorkerPool
	logger    *slog.Logger
}

// NewBuilder returns a Builder. A nil elevation uses solar.Elevation.
func NewBuilder(ev *local.Evaluator, elevation solar.ElevationFunc, cfg Config, logger *slog.Logger) *Builder {
	if elevation == nil {
		elevation = solar.Elevation
	}
	d := DefaultConfig()
	if cfg.GridStep <= 0 {
		cfg.GridStep = d.GridStep
	}
	if cfg.UmbraGridStep <= 0 {
		cfg.UmbraGridStep = d.UmbraGridStep
	}
	if cfg.UmbraMargin <= 0 {
		cfg.UmbraMargin = d.UmbraMargin
	}
	return &Builder{
		ev:        ev,
		elevation: elevation,
		cfg:       cfg,
		pool:      NewWorkerPool(cfg.Workers, logger),
		logger:    logger,
	}
}

// Window returns the UT Julian Days between which the penumbra (or the
// umbra) touches the Earth.
func (b *Builder) Window(penumbral bool) (start, end float64, ok bool) {
	el := b.ev.Elements()
	var t1, t2 float64
	if penumbral {
		t1, t2, ok = el.PenumbralContacts()
	} else {
		t1, t2, ok = el.UmbralContacts()
	}
	if !ok {
		return 0, 0, false
	}
	return el.JulianDay(t1), el.JulianDay(t2), true
}

// Build returns the shadow outline at jd, or nil when the shadow is off the
// Earth or too few boundary points are found. curves bounds the scan; nil
// scans the whole globe.
func (b *Builder) Build(ctx context.Context, jd float64, penumbral bool, curves *paths.Set) (*geo.ShadowPolygon, error) {
	start, end, ok := b.Window(penumbral)
	if !ok || jd < start || jd > end {
		return nil, nil
	}

	began := time.Now()
	box, step := b.bounds(jd, penumbral, curves)

	var lats []float64
	for lat := box.MinLat; lat <= box.MaxLat+1e-9; lat += step {
		lats = append(lats, math.Min(lat, 90))
	}
	rows, err := b.pool.ScanRows(ctx, lats, func(lat float64) rowResult {
		return b.scanRow(lat, box, step, jd, penumbral)
	})
	if err != nil {
		return nil, fmt.Errorf("scan shadow rows: %w", err)
	}

	var entering, leaving []geo.Position
	for _, r := range rows {
		for _, p := range r.entering {
			entering = append(entering, geo.Position{Lat: p.lat, Lon: p.lon})
		}
		for _, p := range r.leaving {
			leaving = append(leaving, geo.Position{Lat: p.lat, Lon: p.lon})
		}
	}
	if len(entering)+len(leaving) < 2 {
		return nil, nil
	}

	ring := orderRing(entering, leaving)
	ring = b.cfg.PoleSmoothing.Apply(ring)
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}

	b.logger.Debug("shadow built",
		"penumbral", penumbral,
		"rows", len(lats),
		"points", len(ring),
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return &geo.ShadowPolygon{Penumbral: penumbral, JD: jd, Ring: ring}, nil
}

// bounds returns the scan box and grid step. The penumbra is bounded by the
// penumbral and east/west limits, with a missing north or south limit
// opening the box to the pole. The umbra is searched around the central
// line point whose maximum is nearest jd.
func (b *Builder) bounds(jd float64, penumbral bool, curves *paths.Set) (geo.BBox, float64) {
	world := geo.BBox{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
	if curves == nil {
		if penumbral {
			return world, b.cfg.GridStep
		}
		return world, b.cfg.UmbraGridStep
	}

	if !penumbral {
		if p, ok := nearestMid(curves.CentralLine, jd); ok {
			m := b.cfg.UmbraMargin
			lonM := m / math.Max(math.Cos(p.Lat*transform.Rad), 0.1)
			return geo.BBox{
				MinLat: math.Max(p.Lat-m, -90),
				MaxLat: math.Min(p.Lat+m, 90),
				MinLon: math.Max(p.Lon-lonM, -180),
				MaxLon: math.Min(p.Lon+lonM, 180),
			}, b.cfg.UmbraGridStep
		}
		return limitBox(curves.UmbralNorth, curves.UmbralSouth), b.cfg.UmbraGridStep
	}

	box := limitBox(curves.PenumbralNorth, curves.PenumbralSouth)
	for _, c := range []geo.BoundaryCurve{curves.EastLimit, curves.WestLimit} {
		if cb, ok := c.BBox(); ok {
			box.MinLon = math.Min(box.MinLon, cb.MinLon)
			box.MaxLon = math.Max(box.MaxLon, cb.MaxLon)
		}
	}
	return box, b.cfg.GridStep
}

// limitBox bounds the zone between a north and a south limit.
func limitBox(north, south geo.BoundaryCurve) geo.BBox {
	nb, okN := north.BBox()
	sb, okS := south.BBox()
	box := geo.BBox{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
	switch {
	case okN && okS:
		box = nb.Union(sb)
	case okN:
		box = nb
		box.MinLat = -90
	case okS:
		box = sb
		box.MaxLat = 90
	}
	return box
}

// nearestMid returns the curve point whose maximum eclipse is closest to jd.
func nearestMid(c geo.BoundaryCurve, jd float64) (geo.Position, bool) {
	best, found := math.Inf(1), false
	var pos geo.Position
	for _, p := range c.Points {
		if p.Times.Mid == 0 {
			continue
		}
		if d := math.Abs(p.Times.Mid - jd); d < best {
			best, pos, found = d, p.Position, true
		}
	}
	return pos, found
}

// cell is one grid sample. start and end are the contact times relative to
// the query instant, in days.
type cell struct {
	lon        float64
	start, end float64
	elev       float64
	ok         bool
}

func (b *Builder) cell(lat, lon, jd float64, penumbral bool) cell {
	c := b.ev.Evaluate(lat, lon, 0)
	first, last := c.C1, c.C4
	if !penumbral {
		first, last = c.C2, c.C3
	}
	out := cell{lon: lon, elev: b.elevation(lat, lon, jd)}
	if first == nil || last == nil {
		return out
	}
	out.start, out.end, out.ok = first.JD-jd, last.JD-jd, true
	return out
}

// scanRow walks one latitude east to west and collects the leading edge
// (first contact at jd, or the sunset terminator inside the shadow) and the
// trailing edge (last contact at jd, or the sunrise terminator).
func (b *Builder) scanRow(lat float64, box geo.BBox, step, jd float64, penumbral bool) rowResult {
	var res rowResult
	var prev cell
	have := false
	for lon := box.MaxLon; lon >= box.MinLon-1e-9; lon -= step {
		cur := b.cell(lat, lon, jd, penumbral)
		if have && prev.ok && cur.ok {
			edges(&res, lat, prev, cur)
		}
		prev, have = cur, true
	}
	return res
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }

// edges appends the boundary points between the eastern cell e and the
// western cell w.
func edges(res *rowResult, lat float64, e, w cell) {
	at := func(x float64) float64 { return (x - e.lon) / (w.lon - e.lon) }

	if (e.start > 0) != (w.start > 0) {
		x := geo.Crossing(e.lon, e.start, w.lon, w.start)
		if lerp(e.elev, w.elev, at(x)) > 0 {
			res.entering = append(res.entering, rowPoint{lat, x})
		}
	}
	if (e.end > 0) != (w.end > 0) {
		x := geo.Crossing(e.lon, e.end, w.lon, w.end)
		if lerp(e.elev, w.elev, at(x)) > 0 {
			res.leaving = append(res.leaving, rowPoint{lat, x})
		}
	}
	if (e.elev > 0) != (w.elev > 0) {
		x := geo.Crossing(e.lon, e.elev, w.lon, w.elev)
		f := at(x)
		if lerp(e.start, w.start, f) <= 0 && lerp(e.end, w.end, f) >= 0 {
			if e.elev <= 0 {
				res.entering = append(res.entering, rowPoint{lat, x}) // sunset
			} else {
				res.leaving = append(res.leaving, rowPoint{lat, x}) // sunrise
			}
		}
	}
}

// orderRing sorts each edge clockwise around the centroid of all points and
// joins them: the leading edge from north through east to south, then the
// trailing edge from south through west back to north.
func orderRing(entering, leaving []geo.Position) []geo.Position {
	var cLat, cLon float64
	n := float64(len(entering) + len(leaving))
	for _, p := range entering {
		cLat += p.Lat / n
		cLon += p.Lon / n
	}
	for _, p := range leaving {
		cLat += p.Lat / n
		cLon += p.Lon / n
	}

	angle := func(p geo.Position) float64 {
		return math.Atan2(p.Lat-cLat, p.Lon-cLon) * transform.Deg
	}
	sort.SliceStable(entering, func(i, j int) bool {
		return angle(entering[i]) > angle(entering[j])
	})
	positive := func(p geo.Position) float64 {
		a := angle(p)
		if a < 0 {
			a += 360
		}
		return a
	}
	sort.SliceStable(leaving, func(i, j int) bool {
		return positive(leaving[i]) > positive(leaving[j])
	})

	ring := make([]geo.Position, 0, len(entering)+len(leaving)+1)
	ring = append(ring, entering...)
	return append(ring, leaving...)
}

