package gopolcore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthPair(t *testing.T, noise float64) (*WaveformBuffer, []float64) {
	t.Helper()
	buf, err := SynthWaveform(SynthParams{
		Meta:           testMetadata(),
		Samples:        1000,
		PeakCurrent:    1e-5,
		PulseWidth:     2e-4,
		BaselineOffset: 5e-7,
		BaselineSlope:  1e-4,
		NoiseLevel:     noise,
		Seed:           42,
	})
	require.NoError(t, err)

	est := NewBaselineEstimator(0.10)
	model, err := est.Estimate(buf)
	require.NoError(t, err)
	return buf, est.Correct(buf, model)
}

func TestDetectFindsReversalPair(t *testing.T) {
	buf, corrected := synthPair(t, 0)

	det := NewPeakDetector(DefaultAnalysisConfig())
	peaks, err := det.Detect(buf, corrected)
	require.NoError(t, err)
	require.Len(t, peaks, 2)

	assert.InDelta(t, 0.0025, peaks[0].PeakTime, 2*10e-6)
	assert.InDelta(t, 0.0075, peaks[1].PeakTime, 2*10e-6)
	assert.Greater(t, peaks[0].PeakAmplitude, 0.0)
	assert.Less(t, peaks[1].PeakAmplitude, 0.0)
	for _, p := range peaks {
		assert.Greater(t, p.Width(), 0.0)
		assert.GreaterOrEqual(t, p.PeakIndex, p.StartIndex)
		assert.LessOrEqual(t, p.PeakIndex, p.EndIndex)
	}
}

func TestDetectWithNoise(t *testing.T) {
	buf, corrected := synthPair(t, 2e-7)

	det := NewPeakDetector(DefaultAnalysisConfig())
	peaks, err := det.Detect(buf, corrected)
	require.NoError(t, err)
	require.Len(t, peaks, 2)
	assert.InDelta(t, 0.0025, peaks[0].PeakTime, 5*10e-6)
	assert.InDelta(t, 0.0075, peaks[1].PeakTime, 5*10e-6)
}

func TestDetectFlagsOffScheduleTiming(t *testing.T) {
	// pulse centers shifted well away from the reversal schedule
	buf, err := SynthWaveform(SynthParams{
		Meta:        testMetadata(),
		Samples:     1000,
		PeakCurrent: 1e-5,
		PulseWidth:  2e-4,
		PulseDelay:  1e-3,
	})
	require.NoError(t, err)

	est := NewBaselineEstimator(0.10)
	model, err := est.Estimate(buf)
	require.NoError(t, err)
	corrected := est.Correct(buf, model)

	cfg := DefaultAnalysisConfig()
	cfg.TimingTolerance = 0.05
	det := NewPeakDetector(cfg)
	peaks, err := det.Detect(buf, corrected)
	require.NoError(t, err)
	require.NotEmpty(t, peaks)
	for _, p := range peaks {
		assert.True(t, p.UnexpectedTiming, "peak at t=%g should be off schedule", p.PeakTime)
	}
}

func TestDetectNoPeaks(t *testing.T) {
	buf, err := SynthWaveform(SynthParams{
		Meta:           testMetadata(),
		Samples:        1000,
		BaselineOffset: 5e-7,
		NoiseLevel:     1e-9,
		Seed:           7,
	})
	require.NoError(t, err)

	est := NewBaselineEstimator(0.10)
	model, err := est.Estimate(buf)
	require.NoError(t, err)
	corrected := est.Correct(buf, model)

	det := NewPeakDetector(DefaultAnalysisConfig())
	_, err = det.Detect(buf, corrected)
	require.ErrorIs(t, err, ErrNoSwitchingPeakFound)
}

func TestDetectRejectsNarrowSpikes(t *testing.T) {
	meta := testMetadata()
	samples := rampSamples(1000, meta.SampleInterval)
	for i := range samples {
		samples[i].Voltage = 0
	}
	samples[500].Voltage = 1.0 // single-sample glitch
	buf, err := NewWaveformBuffer(samples, meta)
	require.NoError(t, err)

	det := NewPeakDetector(DefaultAnalysisConfig())
	_, err = det.Detect(buf, buf.Current())
	require.ErrorIs(t, err, ErrNoSwitchingPeakFound)
}

func TestDetectMonotoneDecayKeepsExtremumInterior(t *testing.T) {
	meta := testMetadata()
	buf, err := NewWaveformBuffer(rampSamples(100, meta.SampleInterval), meta)
	require.NoError(t, err)

	// sharp onset with monotone decay: the extremum is the first sample of
	// the qualifying region
	corrected := make([]float64, buf.Len())
	for k := 0; k <= 10; k++ {
		corrected[40+k] = 1e-5 * math.Exp(-float64(k)/3)
	}

	det := NewPeakDetector(DefaultAnalysisConfig())
	peaks, err := det.Detect(buf, corrected)
	require.NoError(t, err)
	require.Len(t, peaks, 1)

	p := peaks[0]
	assert.Greater(t, p.PeakTime, p.StartTime)
	assert.Less(t, p.PeakTime, p.EndTime)
}

func TestDetectCorrectedLengthMismatch(t *testing.T) {
	buf, corrected := synthPair(t, 0)
	det := NewPeakDetector(DefaultAnalysisConfig())
	_, err := det.Detect(buf, corrected[:10])
	require.ErrorIs(t, err, ErrInvalidWaveform)
}

func TestRefineTightensPeakCenter(t *testing.T) {
	buf, corrected := synthPair(t, 2e-7)

	cfg := DefaultAnalysisConfig()
	cfg.RefinePeaks = true
	det := NewPeakDetector(cfg)
	peaks, err := det.Detect(buf, corrected)
	require.NoError(t, err)
	require.Len(t, peaks, 2)

	assert.InDelta(t, 0.0025, peaks[0].PeakTime, 2e-4)
	assert.InDelta(t, 0.0075, peaks[1].PeakTime, 2e-4)
	for _, p := range peaks {
		assert.GreaterOrEqual(t, p.EndIndex-p.StartIndex, cfg.MinPeakWidthSamples)
	}
}
