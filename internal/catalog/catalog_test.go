package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/eclipse/internal/contact"
	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/local"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const oneEclipse = `
eclipses:
  - id: test
    date: "2024-04-08"
    type: Total
    midpoint: {lat: 25.29, lon: -104.14}
    elements:
      julian_day_max: 2460409.262
      t0: 18
      t_min: -3
      t_max: 3
      delta_t: 69.1
      x: [-0.318244, 0.5117116, 0.0000326, -0.0000085]
      y: [0.219764, 0.2709589, -0.0000595, -0.0000047]
      d: [7.58620, 0.014844, -0.000002]
      mu: [89.591217, 15.004080, 0]
      l1: [0.535814, 0.0000618, -0.0000128]
      l2: [-0.010272, 0.0000615, -0.0000127]
      tan_f1: 0.0046683
      tan_f2: 0.0046450
`

// TestFetcherBodyLimit verifies that oversized responses are rejected.
func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chunk := strings.Repeat("A", 1024*1024)
		for i := 0; i < 10; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	_, err := NewFetcher(server.URL, testLogger).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestFetcherSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(oneEclipse))
	}))
	defer server.Close()

	f := NewFetcher(server.URL, testLogger)
	assert.Equal(t, server.URL, f.SourceURL())
	data, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, oneEclipse, string(data))
}

func TestFetcherHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewFetcher(server.URL, testLogger).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFetcherNoSource(t *testing.T) {
	_, err := NewFetcher("", testLogger).Fetch(context.Background())
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	eclipses, err := Parse(strings.NewReader(oneEclipse), testLogger)
	require.NoError(t, err)
	require.Len(t, eclipses, 1)

	e := eclipses[0]
	assert.Equal(t, "test", e.ID)
	assert.True(t, e.Central())
	assert.InDelta(t, 25.29, e.Midpoint.Lat, 1e-9)
	assert.InDelta(t, 0.5117116, e.Elements.X[1], 1e-12)
	assert.InDelta(t, 0.0046450, e.Elements.TanF2, 1e-12)
}

func TestParseSkipsInvalid(t *testing.T) {
	doc := oneEclipse + `
  - id: bad-type
    date: "2024-04-08"
    type: Ring
    midpoint: {lat: 0, lon: 0}
  - id: test
    date: "2024-04-08"
    type: Partial
    midpoint: {lat: 0, lon: 0}
  - id: bad-shape
    date: [1, 2]
`
	eclipses, err := Parse(strings.NewReader(doc), testLogger)
	require.NoError(t, err)
	require.Len(t, eclipses, 1)
	assert.Equal(t, "Total", eclipses[0].Type)
}

func TestParseEmptyAndMalformed(t *testing.T) {
	eclipses, err := Parse(strings.NewReader(""), testLogger)
	require.NoError(t, err)
	assert.Empty(t, eclipses)

	_, err = Parse(strings.NewReader("eclipses: {not: [a list"), testLogger)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	e := Eclipse{ID: "", Date: "2024/04/08", Type: "Ring", Midpoint: geo.Position{Lat: 100}}
	err := e.Validate()
	require.Error(t, err)
	for _, want := range []string{"id is required", "invalid date", "unknown eclipse type", "midpoint", "elements"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDatasetLookup(t *testing.T) {
	ds := NewDataset("test", time.Now(), []Eclipse{{ID: "a", Type: "Total"}, {ID: "b"}, {ID: "a", Type: "Partial"}})
	assert.Equal(t, []string{"a", "b"}, ds.IDs())

	e, ok := ds.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "Total", e.Type)

	_, ok = ds.Lookup("missing")
	assert.False(t, ok)
}

func TestStore(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Get())
	assert.Equal(t, float64(-1), s.AgeSeconds())
	_, err := s.Lookup("a")
	assert.ErrorIs(t, err, ErrNoCatalog)

	s.Set(NewDataset("test", time.Now().Add(-time.Minute), []Eclipse{{ID: "a"}}))
	e, err := s.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, "a", e.ID)
	_, err = s.Lookup("b")
	assert.ErrorIs(t, err, ErrUnknownEclipse)
	assert.Greater(t, s.AgeSeconds(), 59.0)
}

func TestCacheSaveLoadPrune(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 2, testLogger)

	_, _, err := c.Load()
	assert.ErrorIs(t, err, ErrCacheEmpty)
	assert.ErrorIs(t, c.Save(nil, time.Now()), ErrEmptyCatalog)

	builtin, err := Builtin(testLogger)
	require.NoError(t, err)
	records := builtin.Eclipses

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Save(records[i%3:i%3+1], base.Add(time.Duration(i)*time.Hour)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := c.listFiles()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	got, ts, err := c.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, records[0].ID, got[0].ID)
	assert.Equal(t, records[0].Elements, got[0].Elements)
	assert.Equal(t, base.Add(3*time.Hour).Unix(), ts.Unix())

	// No temporary files are left behind.
	leftovers, err := filepath.Glob(filepath.Join(dir, ".catalog-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCacheLoadSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 5, testLogger)

	builtin, err := Builtin(testLogger)
	require.NoError(t, err)
	base := time.Unix(1_700_000_000, 0)
	require.NoError(t, c.Save(builtin.Eclipses, base))

	// Newer files that are malformed or hold no valid record lose to the
	// last good catalog.
	for i, body := range []string{"eclipses: [", "eclipses: []\n", "eclipses:\n  - id: broken\n"} {
		name := "catalog_" + strconv.FormatInt(base.Add(time.Duration(i+1)*time.Hour).Unix(), 10) + ".yaml"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	got, ts, err := c.Load()
	require.NoError(t, err)
	assert.Len(t, got, len(builtin.Eclipses))
	assert.Equal(t, base.Unix(), ts.Unix())
}

// Every builtin record should classify as its published type at its own
// greatest-eclipse point.
func TestBuiltinMidpoints(t *testing.T) {
	ds, err := Builtin(testLogger)
	require.NoError(t, err)
	require.Equal(t, []string{"2017-08-21", "2023-10-14", "2024-04-08"}, ds.IDs())

	for _, e := range ds.Eclipses {
		t.Run(e.ID, func(t *testing.T) {
			ev := local.NewEvaluator(&e.Elements, local.Options{})
			c := ev.Evaluate(e.Midpoint.Lat, e.Midpoint.Lon, 0)
			assert.True(t, c.Visible)
			assert.Equal(t, contact.ParseType(e.Type), c.Type)
			assert.Greater(t, c.Depth, 50.0)
		})
	}
}

func TestRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(oneEclipse))
	}))
	defer server.Close()

	store := NewStore()
	cache := NewCache(t.TempDir(), 3, testLogger)
	ds, err := Refresh(context.Background(), NewFetcher(server.URL, testLogger), cache, store, testLogger)
	require.NoError(t, err)
	assert.Equal(t, server.URL, ds.Source)
	assert.Same(t, ds, store.Get())

	// The cached copy reloads into a fresh store.
	other := NewStore()
	cached, err := LoadCached(cache, other)
	require.NoError(t, err)
	assert.Equal(t, "cache", cached.Source)
	assert.Equal(t, []string{"test"}, cached.IDs())
}

func TestRefresh_EmptyCatalogKeepsStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("eclipses: []\n"))
	}))
	defer server.Close()

	store := NewStore()
	prev := NewDataset("prev", time.Now(), nil)
	store.Set(prev)

	_, err := Refresh(context.Background(), NewFetcher(server.URL, testLogger), nil, store, testLogger)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
	assert.Same(t, prev, store.Get())
}
