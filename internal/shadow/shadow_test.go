package shadow

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/star/eclipse/internal/besselian"
	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/local"
	"github.com/star/eclipse/internal/paths"
	"github.com/star/eclipse/internal/transform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Total solar eclipse of 2024 April 8.
var elements2024 = besselian.ElementSet{
	JulianDayMax: 2460409.262,
	T0:           18.0,
	TMin:         -3.0,
	TMax:         3.0,
	DeltaT:       69.1,
	X:            [4]float64{-0.318244, 0.5117116, 0.0000326, -0.0000085},
	Y:            [4]float64{0.219764, 0.2709589, -0.0000595, -0.0000047},
	D:            [3]float64{7.58620, 0.014844, -0.000002},
	Mu:           [3]float64{89.591217, 15.004080, 0.0},
	L1:           [3]float64{0.535814, 0.0000618, -0.0000128},
	L2:           [3]float64{-0.010272, 0.0000615, -0.0000127},
	TanF1:        0.0046683,
	TanF2:        0.0046450,
}

var (
	greatestEclipse   = geo.Position{Lat: 25.29, Lon: -104.14}
	greatestEclipseJD = transform.JulianDate(time.Date(2024, 4, 8, 18, 17, 20, 0, time.UTC))
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newBuilder() *Builder {
	ev := local.NewEvaluator(&elements2024, local.Options{})
	cfg := DefaultConfig()
	cfg.GridStep = 2
	return NewBuilder(ev, nil, cfg, testLogger())
}

// testCurves bounds the scans without a full trace.
func testCurves() *paths.Set {
	return &paths.Set{
		CentralLine: geo.BoundaryCurve{Kind: geo.CentralLine, Points: []geo.CurvePoint{
			{Position: geo.Position{Lat: 10, Lon: -130}, Times: geo.ContactTimes{Mid: greatestEclipseJD - 0.03}},
			{Position: greatestEclipse, Times: geo.ContactTimes{Mid: greatestEclipseJD}},
			{Position: geo.Position{Lat: 40, Lon: -80}, Times: geo.ContactTimes{Mid: greatestEclipseJD + 0.03}},
		}},
		PenumbralSouth: geo.BoundaryCurve{Kind: geo.PenumbralSouth, Points: []geo.CurvePoint{
			{Position: geo.Position{Lat: -15, Lon: -170}},
			{Position: geo.Position{Lat: -15, Lon: 10}},
		}},
	}
}

func ringBox(ring []geo.Position) geo.BBox {
	b := geo.EmptyBBox()
	for _, p := range ring {
		b.Extend(p)
	}
	return b
}

func TestWindow(t *testing.T) {
	b := newBuilder()
	p1, p4, ok := b.Window(true)
	require.True(t, ok)
	u1, u4, ok := b.Window(false)
	require.True(t, ok)

	assert.Less(t, p1, u1)
	assert.Less(t, u1, greatestEclipseJD)
	assert.Less(t, greatestEclipseJD, u4)
	assert.Less(t, u4, p4)
}

func TestBuild_OutsideWindow(t *testing.T) {
	b := newBuilder()
	p1, p4, ok := b.Window(true)
	require.True(t, ok)

	poly, err := b.Build(context.Background(), p1-0.01, true, testCurves())
	require.NoError(t, err)
	assert.Nil(t, poly)

	poly, err = b.Build(context.Background(), p4+0.01, true, testCurves())
	require.NoError(t, err)
	assert.Nil(t, poly)
}

func TestBuild_Penumbra(t *testing.T) {
	b := newBuilder()
	poly, err := b.Build(context.Background(), greatestEclipseJD, true, testCurves())
	require.NoError(t, err)
	require.NotNil(t, poly)

	assert.True(t, poly.Penumbral)
	assert.Equal(t, greatestEclipseJD, poly.JD)
	assert.True(t, poly.Closed())
	assert.GreaterOrEqual(t, len(poly.Ring), 8)
	for _, p := range poly.Ring {
		assert.True(t, p.Valid(), "%+v", p)
	}
	assert.True(t, ringBox(poly.Ring).Contains(greatestEclipse))
}

func TestBuild_Umbra(t *testing.T) {
	b := newBuilder()
	poly, err := b.Build(context.Background(), greatestEclipseJD, false, testCurves())
	require.NoError(t, err)
	require.NotNil(t, poly)

	assert.False(t, poly.Penumbral)
	assert.True(t, poly.Closed())

	box := ringBox(poly.Ring)
	assert.True(t, box.Contains(greatestEclipse), "umbra box %+v", box)
	assert.Less(t, box.MaxLat-box.MinLat, 5.0)
	assert.Less(t, box.MaxLon-box.MinLon, 5.0)
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newBuilder().Build(ctx, greatestEclipseJD, true, testCurves())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEdges(t *testing.T) {
	tests := []struct {
		name     string
		e, w     cell
		entering []rowPoint
		leaving  []rowPoint
	}{
		{
			name:     "leading edge",
			e:        cell{lon: 0, start: 0.01, end: 0.05, elev: 10, ok: true},
			w:        cell{lon: -1, start: -0.01, end: 0.03, elev: 10, ok: true},
			entering: []rowPoint{{5, -0.5}},
		},
		{
			name:    "trailing edge",
			e:       cell{lon: 0, start: -0.05, end: 0.01, elev: 10, ok: true},
			w:       cell{lon: -1, start: -0.07, end: -0.03, elev: 10, ok: true},
			leaving: []rowPoint{{5, -0.25}},
		},
		{
			name:     "sunset inside shadow",
			e:        cell{lon: 0, start: -0.01, end: 0.01, elev: -1, ok: true},
			w:        cell{lon: -1, start: -0.01, end: 0.01, elev: 1, ok: true},
			entering: []rowPoint{{5, -0.5}},
		},
		{
			name:    "sunrise inside shadow",
			e:       cell{lon: 0, start: -0.01, end: 0.01, elev: 3, ok: true},
			w:       cell{lon: -1, start: -0.01, end: 0.01, elev: -1, ok: true},
			leaving: []rowPoint{{5, -0.75}},
		},
		{
			name: "contact at night",
			e:    cell{lon: 0, start: 0.01, end: 0.05, elev: -10, ok: true},
			w:    cell{lon: -1, start: -0.01, end: 0.03, elev: -10, ok: true},
		},
		{
			name: "terminator outside shadow",
			e:    cell{lon: 0, start: 0.01, end: 0.05, elev: -1, ok: true},
			w:    cell{lon: -1, start: 0.02, end: 0.06, elev: 1, ok: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res rowResult
			edges(&res, 5, tt.e, tt.w)
			require.Len(t, res.entering, len(tt.entering))
			require.Len(t, res.leaving, len(tt.leaving))
			for i, p := range tt.entering {
				assert.InDelta(t, p.lon, res.entering[i].lon, 1e-12)
				assert.Equal(t, p.lat, res.entering[i].lat)
			}
			for i, p := range tt.leaving {
				assert.InDelta(t, p.lon, res.leaving[i].lon, 1e-12)
			}
		})
	}
}

func TestOrderRing(t *testing.T) {
	entering := []geo.Position{{Lat: -1, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 1.5}}
	leaving := []geo.Position{{Lat: 1, Lon: -1}, {Lat: -1, Lon: -1}, {Lat: 0, Lon: -1.5}}

	got := orderRing(entering, leaving)
	want := []geo.Position{
		{Lat: 1, Lon: 1}, {Lat: 0, Lon: 1.5}, {Lat: -1, Lon: 1}, // north-east to south-east
		{Lat: -1, Lon: -1}, {Lat: 0, Lon: -1.5}, {Lat: 1, Lon: -1}, // south-west to north-west
	}
	assert.Equal(t, want, got)
}

func TestWorkerPool_Order(t *testing.T) {
	pool := NewWorkerPool(3, testLogger())
	lats := make([]float64, 50)
	for i := range lats {
		lats[i] = float64(i)
	}
	rows, err := pool.ScanRows(context.Background(), lats, func(lat float64) rowResult {
		time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
		return rowResult{entering: []rowPoint{{lat: lat}}}
	})
	require.NoError(t, err)
	require.Len(t, rows, len(lats))
	for i, r := range rows {
		assert.Equal(t, i, r.index)
		assert.Equal(t, float64(i), r.entering[0].lat)
	}
}

func TestWorkerPool_Empty(t *testing.T) {
	rows, err := NewWorkerPool(0, testLogger()).ScanRows(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, rows)
}
