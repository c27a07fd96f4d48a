package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/eclipse/internal/besselian"
	"github.com/star/eclipse/internal/contact"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, besselian.WGS84, cfg.Earth)
}

func TestLoad_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	doc := `
horizon_altitude: -0.833
solver:
  max_iterations: 80
paths:
  resolution: 0.25
shadow:
  pole_smoothing:
    south: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, -0.833, cfg.HorizonAltitude)
	assert.Equal(t, 80, cfg.Solver.MaxIterations)
	assert.Equal(t, contact.DefaultTolerance, cfg.Solver.Tolerance, "unset keys keep defaults")
	assert.Equal(t, 0.25, cfg.Paths.Resolution)
	assert.Equal(t, 99.9, cfg.Paths.CentralDepth)
	assert.True(t, cfg.Shadow.PoleSmoothing.South)
	assert.True(t, cfg.Shadow.PoleSmoothing.North)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("earth:\n  axis_ratio: 2\npaths:\n  resolution: -1\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "axis_ratio")
	assert.Contains(t, err.Error(), "resolution")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ECLIPSE_PATH_RESOLUTION", "2")
	t.Setenv("ECLIPSE_SHADOW_GRID_STEP", "0.5")
	t.Setenv("ECLIPSE_WORKERS", "8")
	t.Setenv("ECLIPSE_HORIZON_ALTITUDE", "1.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Paths.Resolution)
	assert.Equal(t, 0.5, cfg.Shadow.GridStep)
	assert.Equal(t, 8, cfg.Shadow.Workers)
	assert.Equal(t, 1.5, cfg.HorizonAltitude)
	assert.Equal(t, 1.5, cfg.LocalOptions().HorizonAltitude)
}

func TestEnvOverrides_BadValue(t *testing.T) {
	t.Setenv("ECLIPSE_WORKERS", "many")
	_, err := Load("")
	assert.ErrorContains(t, err, "ECLIPSE_WORKERS")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "engine.yaml")
	want := Default()
	want.Paths.Resolution = 0.75
	require.NoError(t, want.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
