package gopolcore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeEndToEnd(t *testing.T) {
	meta := testMetadata()
	buf, err := SynthWaveform(SynthParams{
		Meta:           meta,
		Samples:        1000,
		PeakCurrent:    1e-5,
		PulseWidth:     2e-4,
		BaselineOffset: 5e-7,
		BaselineSlope:  1e-4,
		NoiseLevel:     2e-7,
		Seed:           42,
	})
	require.NoError(t, err)

	pipe := NewAnalysisPipeline(DefaultAnalysisConfig())
	res, err := pipe.Analyze(buf)
	require.NoError(t, err)

	wantPs := 1e-5 * 2e-4 * math.Sqrt(2*math.Pi) / (2 * meta.CellArea)
	assert.InEpsilon(t, wantPs, res.SpontaneousPolarization, 0.05)
	assert.False(t, res.SingleTransition)
	assert.Len(t, res.Peaks, 2)
	assert.Greater(t, res.SwitchingTime, 0.0)
	assert.Greater(t, res.SwitchingTime4060, 0.0)
	assert.Greater(t, res.RotationalViscosity, 0.0)
}

func TestAnalyzeReferenceCell(t *testing.T) {
	// 1 kOhm reference, 1e-4 m^2 cell, 0.01 s period; pulse areas of
	// about 2e-9 C give Ps near 1e-5 C/m^2
	meta := testMetadata()
	peak := 2e-9 / (2e-4 * math.Sqrt(2*math.Pi))
	buf, err := SynthWaveform(SynthParams{
		Meta:        meta,
		Samples:     1000,
		PeakCurrent: peak,
		PulseWidth:  2e-4,
	})
	require.NoError(t, err)

	res, err := NewAnalysisPipeline(DefaultAnalysisConfig()).Analyze(buf)
	require.NoError(t, err)
	assert.InEpsilon(t, 1e-5, res.SpontaneousPolarization, 0.02)
}

func TestAnalyzeMinimumLengthBuffer(t *testing.T) {
	// 3 samples is the smallest valid buffer; the default edge fraction
	// leaves no quiet samples to fit a baseline, so analysis fails cleanly
	buf, err := NewWaveformBuffer(rampSamples(3, 10e-6), testMetadata())
	require.NoError(t, err)

	res, err := NewAnalysisPipeline(DefaultAnalysisConfig()).Analyze(buf)
	require.ErrorIs(t, err, ErrInvalidWaveform)
	require.ErrorIs(t, err, ErrInsufficientBaselineData)
	assert.Zero(t, res)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	buf, err := SynthWaveform(SynthParams{
		Meta:        testMetadata(),
		Samples:     1000,
		PeakCurrent: 1e-5,
		PulseWidth:  2e-4,
		NoiseLevel:  2e-7,
		Seed:        11,
	})
	require.NoError(t, err)

	pipe := NewAnalysisPipeline(DefaultAnalysisConfig())
	first, err := pipe.Analyze(buf)
	require.NoError(t, err)
	second, err := pipe.Analyze(buf)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCorrectedCurrent(t *testing.T) {
	buf, err := SynthWaveform(SynthParams{
		Meta:           testMetadata(),
		Samples:        1000,
		PeakCurrent:    1e-5,
		PulseWidth:     2e-4,
		BaselineOffset: 5e-7,
	})
	require.NoError(t, err)

	pipe := NewAnalysisPipeline(DefaultAnalysisConfig())
	corrected, err := pipe.CorrectedCurrent(buf)
	require.NoError(t, err)
	require.Len(t, corrected, buf.Len())
	// offset removed at the quiet edges
	assert.InDelta(t, 0, corrected[0], 1e-9)
	assert.InDelta(t, 0, corrected[len(corrected)-1], 1e-9)
}

func synthCycle(t *testing.T, peak float64, seed int64) *WaveformBuffer {
	t.Helper()
	buf, err := SynthWaveform(SynthParams{
		Meta:        testMetadata(),
		Samples:     1000,
		PeakCurrent: peak,
		PulseWidth:  2e-4,
		Seed:        seed,
	})
	require.NoError(t, err)
	return buf
}

func TestAnalyzeAllExcludesOutlier(t *testing.T) {
	buffers := []*WaveformBuffer{
		synthCycle(t, 1.000e-5, 1),
		synthCycle(t, 1.010e-5, 2),
		synthCycle(t, 0.990e-5, 3),
		synthCycle(t, 1.005e-5, 4),
		synthCycle(t, 3.0e-5, 5), // outlier
	}

	pipe := NewAnalysisPipeline(DefaultAnalysisConfig())
	agg := pipe.AnalyzeAll(buffers)

	require.Empty(t, agg.Errors)
	require.Len(t, agg.Rejected, 1)
	assert.Equal(t, 4, agg.Rejected[0].Cycle)
	assert.Equal(t, RejectStatisticalOutlier, agg.Rejected[0].Reason)

	require.Equal(t, 4, agg.Count)
	require.Len(t, agg.Cycles, 4)
	wantPs := 1e-5 * 2e-4 * math.Sqrt(2*math.Pi) / (2 * 1e-4)
	assert.InEpsilon(t, wantPs, agg.MeanPolarization, 0.03)
	assert.Greater(t, agg.StdDevPolarization, 0.0)
	assert.Greater(t, agg.MeanSwitchingTime, 0.0)
}

func TestAnalyzeAllKeepsSmallBatchesIntact(t *testing.T) {
	// below 4 cycles no outlier exclusion happens
	buffers := []*WaveformBuffer{
		synthCycle(t, 1e-5, 1),
		synthCycle(t, 1e-5, 2),
		synthCycle(t, 3e-5, 3),
	}

	pipe := NewAnalysisPipeline(DefaultAnalysisConfig())
	agg := pipe.AnalyzeAll(buffers)
	assert.Empty(t, agg.Rejected)
	assert.Equal(t, 3, agg.Count)
}

func TestAnalyzeAllReportsFailedCycles(t *testing.T) {
	flat, err := SynthWaveform(SynthParams{
		Meta:           testMetadata(),
		Samples:        1000,
		BaselineOffset: 5e-7,
		NoiseLevel:     1e-9,
		Seed:           7,
	})
	require.NoError(t, err)

	buffers := []*WaveformBuffer{
		synthCycle(t, 1e-5, 1),
		flat,
		synthCycle(t, 1e-5, 2),
	}

	pipe := NewAnalysisPipeline(DefaultAnalysisConfig())
	agg := pipe.AnalyzeAll(buffers)

	require.Len(t, agg.Errors, 1)
	assert.Equal(t, 1, agg.Errors[0].Cycle)
	assert.ErrorIs(t, agg.Errors[0], ErrNoSwitchingPeakFound)
	assert.Equal(t, 2, agg.Count)
}

func TestAnalyzeAllEmpty(t *testing.T) {
	pipe := NewAnalysisPipeline(DefaultAnalysisConfig())
	agg := pipe.AnalyzeAll(nil)
	assert.Zero(t, agg.Count)
	assert.Empty(t, agg.Cycles)
	assert.Empty(t, agg.Errors)
}

func TestSplitThenAnalyzeMultiCycleCapture(t *testing.T) {
	buf, err := SynthWaveform(SynthParams{
		Meta:        testMetadata(),
		Samples:     4000, // four full field periods
		PeakCurrent: 1e-5,
		PulseWidth:  2e-4,
		NoiseLevel:  1e-7,
		Seed:        9,
	})
	require.NoError(t, err)

	cycles := buf.SplitCycles()
	require.Len(t, cycles, 4)

	pipe := NewAnalysisPipeline(DefaultAnalysisConfig())
	agg := pipe.AnalyzeAll(cycles)
	require.Empty(t, agg.Errors)
	require.Equal(t, 4, agg.Count)

	wantPs := 1e-5 * 2e-4 * math.Sqrt(2*math.Pi) / (2 * 1e-4)
	assert.InEpsilon(t, wantPs, agg.MeanPolarization, 0.05)
}

func BenchmarkAnalyze(b *testing.B) {
	buf, err := SynthWaveform(SynthParams{
		Meta:        testMetadata(),
		Samples:     10000,
		PeakCurrent: 1e-5,
		PulseWidth:  2e-4,
		NoiseLevel:  2e-7,
		Seed:        1,
	})
	if err != nil {
		b.Fatal(err)
	}
	pipe := NewAnalysisPipeline(DefaultAnalysisConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pipe.Analyze(buf); err != nil {
			b.Fatal(err)
		}
	}
}
