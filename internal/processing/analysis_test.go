package processing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperjurak/gopolcore"
	"github.com/kacperjurak/gopolcore/pkg/config"
	"github.com/kacperjurak/gopolcore/pkg/models"
)

func demoVoltages(meta gopolcore.Metadata, n int) []float64 {
	volts := make([]float64, n)
	for i := range volts {
		t := float64(i) * meta.SampleInterval
		current := 0.0
		for k := 0; k < 2; k++ {
			center := (0.25 + 0.5*float64(k)) * meta.FieldPeriod
			sign := 1.0
			if k%2 == 1 {
				sign = -1
			}
			r := (t - center) / 2e-4
			current += sign * 1e-5 * math.Exp(-0.5*r*r)
		}
		volts[i] = current * meta.ReferenceResistance
	}
	return volts
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.SampleInterval = 10e-6
	cfg.Quiet = true
	return cfg
}

func TestBuildBufferSynthesizesTimes(t *testing.T) {
	cfg := testConfig()
	proc := New(cfg, nil)

	data := models.WaveformData{Voltages: []float64{1, 2, 3, 4, 5}}
	buf, err := proc.BuildBuffer(data)
	require.NoError(t, err)
	require.Equal(t, 5, buf.Len())

	times := buf.Times()
	assert.Equal(t, 0.0, times[0])
	assert.InDelta(t, cfg.SampleInterval, times[1], 1e-12)
}

func TestBuildBufferUsesProvidedTimes(t *testing.T) {
	proc := New(testConfig(), nil)

	data := models.WaveformData{
		Times:    []float64{0, 1e-5, 2e-5},
		Voltages: []float64{1, 2, 3},
	}
	buf, err := proc.BuildBuffer(data)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1e-5, 2e-5}, buf.Times())
}

func TestBuildBufferRejectsEmpty(t *testing.T) {
	proc := New(testConfig(), nil)
	_, err := proc.BuildBuffer(models.WaveformData{})
	require.ErrorIs(t, err, gopolcore.ErrInvalidWaveform)
}

func TestBuildBufferFieldAmplitudeOverride(t *testing.T) {
	proc := New(testConfig(), nil)

	data := models.WaveformData{
		Voltages:       []float64{1, 2, 3},
		FieldAmplitude: 15,
	}
	buf, err := proc.BuildBuffer(data)
	require.NoError(t, err)
	assert.Equal(t, 15.0, buf.Metadata().FieldAmplitude)
}

func TestProcessEndToEnd(t *testing.T) {
	cfg := testConfig()
	proc := New(cfg, nil)

	meta := cfg.Metadata(cfg.SampleInterval)
	data := models.WaveformData{
		Voltages:       demoVoltages(meta, 1000),
		SampleInterval: cfg.SampleInterval,
	}
	buf, err := proc.BuildBuffer(data)
	require.NoError(t, err)

	res, corrected, err := proc.Process(buf)
	require.NoError(t, err)
	require.Len(t, corrected, buf.Len())

	wantPs := 1e-5 * 2e-4 * math.Sqrt(2*math.Pi) / (2 * meta.CellArea)
	assert.InEpsilon(t, wantPs, res.SpontaneousPolarization, 0.05)
	assert.Len(t, res.Peaks, 2)
}

func TestProcessReportsFailure(t *testing.T) {
	proc := New(testConfig(), nil)

	flat := make([]float64, 1000)
	buf, err := proc.BuildBuffer(models.WaveformData{Voltages: flatWithNoise(flat)})
	require.NoError(t, err)

	_, _, err = proc.Process(buf)
	require.ErrorIs(t, err, gopolcore.ErrNoSwitchingPeakFound)
}

// flatWithNoise adds a tiny deterministic ripple so the noise floor is
// nonzero without producing any detectable peak.
func flatWithNoise(v []float64) []float64 {
	for i := range v {
		v[i] = 1e-6 * math.Sin(float64(i))
	}
	return v
}
