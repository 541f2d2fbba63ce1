package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1000.0, cfg.Cell.ReferenceResistance)
	assert.Equal(t, 1e-4, cfg.Cell.Area)
	assert.Equal(t, 3e-6, cfg.Cell.Thickness)
	assert.Equal(t, 0.01, cfg.Cell.FieldPeriod)
	assert.Equal(t, 100, cfg.SkipRows)
	assert.Equal(t, 1e-6, cfg.SampleInterval)

	assert.Equal(t, 0.10, cfg.Analysis.BaselineEdgeFraction)
	assert.Equal(t, 5.0, cfg.Analysis.PeakSensitivity)
	assert.Equal(t, 2, cfg.Analysis.MinPeakWidthSamples)
	assert.Equal(t, 0.20, cfg.Analysis.TimingTolerance)
	assert.Equal(t, 3.0, cfg.Analysis.OutlierSigma)
	assert.False(t, cfg.Analysis.RefinePeaks)

	assert.Equal(t, "info", cfg.Log.Level)
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, "6060", cfg.ProfilingPort)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
cell:
  area_m2: 2.5e-5
  field_amplitude_v: 12
analysis:
  peak_sensitivity_k: 4.0
  refine_peaks: true
skip_rows: 10
server:
  port: "9090"
  worker_count: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5e-5, cfg.Cell.Area)
	assert.Equal(t, 12.0, cfg.Cell.FieldAmplitude)
	assert.Equal(t, 4.0, cfg.Analysis.PeakSensitivity)
	assert.True(t, cfg.Analysis.RefinePeaks)
	assert.Equal(t, 10, cfg.SkipRows)
	// untouched keys keep defaults
	assert.Equal(t, 1000.0, cfg.Cell.ReferenceResistance)

	srv, err := LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", srv.Port)
	assert.Equal(t, 3, srv.WorkerCount)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cell:\n  area_m2: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GOPOL_CELL_AREA_M2", "5e-5")
	t.Setenv("GOPOL_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5e-5, cfg.Cell.Area)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestMetadataConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cell.FieldAmplitude = 10

	meta := cfg.Metadata(2e-6)
	assert.Equal(t, 2e-6, meta.SampleInterval)
	assert.Equal(t, cfg.Cell.ReferenceResistance, meta.ReferenceResistance)
	assert.Equal(t, cfg.Cell.Area, meta.CellArea)
	assert.Equal(t, cfg.Cell.Thickness, meta.CellThickness)
	assert.Equal(t, cfg.Cell.FieldPeriod, meta.FieldPeriod)
	assert.Equal(t, 10.0, meta.FieldAmplitude)
}
