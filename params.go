package gopolcore

import (
	"fmt"
	"math"
)

// tauScale converts the 40%-60% crossing interval of the switching response
// into the exponential time constant: ln(0.6/0.4).
const tauScale = 0.405465

// MeasurementResult holds the physical parameters extracted from one
// analyzed waveform. Immutable once returned.
type MeasurementResult struct {
	SpontaneousPolarization float64 // C/m^2
	SwitchingTime           float64 // s, width of the dominant peak
	SwitchingTime4060       float64 // s, 40-60% cumulative-charge crossing / ln(1.5); 0 when undefined
	PeakCurrentDensity      float64 // A/m^2
	RotationalViscosity     float64 // Pa*s; 0 when the field amplitude is unknown
	// SingleTransition marks a lower-confidence result computed from
	// unpaired peaks only (Ps = |Q|/A instead of |Q|/2A).
	SingleTransition bool
	// Peaks are the source integration results, ordered by peak time.
	Peaks []IntegrationResult
}

// ParameterCalculator converts integrated charges and peak timing into
// spontaneous polarization and related parameters, given cell geometry and
// field parameters.
type ParameterCalculator struct {
	// TimingTolerance is the pairing tolerance as a fraction of the field period.
	TimingTolerance float64
}

// NewParameterCalculator builds a calculator from the analysis configuration.
func NewParameterCalculator(cfg AnalysisConfig) *ParameterCalculator {
	return &ParameterCalculator{TimingTolerance: cfg.TimingTolerance}
}

// Calculate derives the measurement parameters from the integration results
// of one waveform. Opposite-polarity peaks separated by about half a field
// period are treated as one full polarization reversal pair. When at least
// one pair exists, Ps comes from the pairs alone and leftover peaks are
// flagged Unpaired in Peaks; with no pairs at all, Ps falls back to the
// singles and the whole result carries single-transition semantics. More
// than two same-sign peaks within one expected half-period make the pairing
// ambiguous and fail with ErrInconsistentPolarity.
func (c *ParameterCalculator) Calculate(buf *WaveformBuffer, corrected []float64, results []IntegrationResult) (MeasurementResult, error) {
	if len(results) == 0 {
		return MeasurementResult{}, fmt.Errorf("%w: no integrated peaks to evaluate", ErrNoSwitchingPeakFound)
	}
	meta := buf.Metadata()

	if err := c.checkPolarity(buf, results); err != nil {
		return MeasurementResult{}, err
	}

	pairs, singles := c.pair(meta, results)

	peaks := make([]IntegrationResult, len(results))
	copy(peaks, results)
	for _, i := range singles {
		peaks[i].Unpaired = true
	}

	area := meta.CellArea
	var ps float64
	single := len(pairs) == 0
	if single {
		for _, i := range singles {
			ps += math.Abs(results[i].Charge) / area
		}
		ps /= float64(len(singles))
	} else {
		for _, p := range pairs {
			ps += (math.Abs(results[p[0]].Charge) + math.Abs(results[p[1]].Charge)) / 2 / (2 * area)
		}
		ps /= float64(len(pairs))
	}

	dominant := results[0]
	for _, r := range results[1:] {
		if math.Abs(r.Peak.PeakAmplitude) > math.Abs(dominant.Peak.PeakAmplitude) {
			dominant = r
		}
	}

	res := MeasurementResult{
		SpontaneousPolarization: ps,
		SwitchingTime:           dominant.End - dominant.Start,
		SwitchingTime4060:       c.tau4060(buf, corrected, dominant),
		PeakCurrentDensity:      math.Abs(dominant.Peak.PeakAmplitude) / area,
		SingleTransition:        single,
		Peaks:                   peaks,
	}

	if meta.FieldAmplitude > 0 {
		tau := res.SwitchingTime4060
		if tau <= 0 {
			tau = res.SwitchingTime
		}
		field := meta.FieldAmplitude / meta.CellThickness
		res.RotationalViscosity = tau * ps * field
	}
	return res, nil
}

// checkPolarity rejects traces where more than two same-sign peaks land in
// one expected half-period, which makes pairing ambiguous.
func (c *ParameterCalculator) checkPolarity(buf *WaveformBuffer, results []IntegrationResult) error {
	half := buf.meta.FieldPeriod / 2
	t0 := buf.times[0]

	type key struct {
		bucket   int
		positive bool
	}
	counts := make(map[key][]IntegrationResult)
	for _, r := range results {
		k := key{
			bucket:   int(math.Round((r.Peak.PeakTime - t0) / half)),
			positive: r.Charge >= 0,
		}
		counts[k] = append(counts[k], r)
		if len(counts[k]) > 2 {
			times := make([]float64, 0, len(counts[k]))
			for _, o := range counts[k] {
				times = append(times, o.Peak.PeakTime)
			}
			return fmt.Errorf("%w: %d same-sign peaks near half-period %d (peak times %v s)",
				ErrInconsistentPolarity, len(counts[k]), k.bucket, times)
		}
	}
	return nil
}

// pair matches opposite-polarity peaks separated by approximately half a
// field period, returning index pairs into results; unmatched indices are
// returned as singles.
func (c *ParameterCalculator) pair(meta Metadata, results []IntegrationResult) (pairs [][2]int, singles []int) {
	half := meta.FieldPeriod / 2
	tol := c.TimingTolerance * meta.FieldPeriod

	used := make([]bool, len(results))
	for i := 0; i < len(results); i++ {
		if used[i] {
			continue
		}
		matched := false
		for j := i + 1; j < len(results); j++ {
			if used[j] {
				continue
			}
			opposite := (results[i].Charge >= 0) != (results[j].Charge >= 0)
			dt := results[j].Peak.PeakTime - results[i].Peak.PeakTime
			if opposite && math.Abs(dt-half) <= tol {
				pairs = append(pairs, [2]int{i, j})
				used[i], used[j] = true, true
				matched = true
				break
			}
		}
		if !matched {
			singles = append(singles, i)
		}
	}
	return pairs, singles
}

// tau4060 derives the exponential switching time constant from the times at
// which the cumulative transferred charge of the dominant peak crosses 40%
// and 60% of its total. Returns 0 when the crossings are undefined.
func (c *ParameterCalculator) tau4060(buf *WaveformBuffer, corrected []float64, dominant IntegrationResult) float64 {
	p := dominant.Peak
	total := dominant.Charge
	if total == 0 {
		return 0
	}

	var t40, t60 float64
	found40, found60 := false, false
	cum := 0.0
	prevFrac := 0.0
	for i := p.StartIndex + 1; i <= p.EndIndex; i++ {
		dt := buf.times[i] - buf.times[i-1]
		cum += 0.5 * (corrected[i] + corrected[i-1]) * dt
		frac := cum / total

		if !found40 && prevFrac < 0.4 && frac >= 0.4 {
			t40 = crossingTime(buf.times[i-1], buf.times[i], prevFrac, frac, 0.4)
			found40 = true
		}
		if !found60 && prevFrac < 0.6 && frac >= 0.6 {
			t60 = crossingTime(buf.times[i-1], buf.times[i], prevFrac, frac, 0.6)
			found60 = true
			break
		}
		prevFrac = frac
	}
	if !found40 || !found60 || t60 <= t40 {
		return 0
	}
	return (t60 - t40) / tauScale
}

// crossingTime linearly interpolates the time at which a monotone fraction
// passes the given level between two samples.
func crossingTime(t0, t1, f0, f1, level float64) float64 {
	if f1 == f0 {
		return t1
	}
	return t0 + (t1-t0)*(level-f0)/(f1-f0)
}
