package gopolcore

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/stat"
)

// PeakCandidate is one detected switching-current transient in the
// baseline-corrected signal. Immutable after detection.
type PeakCandidate struct {
	StartTime     float64
	EndTime       float64
	PeakTime      float64
	PeakAmplitude float64 // signed, baseline-corrected extremum in [StartTime, EndTime]
	StartIndex    int
	EndIndex      int
	PeakIndex     int
	// UnexpectedTiming is set when the peak falls outside the tolerance
	// window around the nearest expected field-reversal instant. Flagged
	// peaks are reported, not discarded.
	UnexpectedTiming bool
}

// Width returns the transient duration in seconds.
func (c PeakCandidate) Width() float64 { return c.EndTime - c.StartTime }

// PeakDetector locates switching-current transients in a baseline-corrected
// current series using noise-robust thresholding and temporal constraints
// derived from the applied field period.
type PeakDetector struct {
	// Sensitivity is the threshold multiplier k over the noise floor.
	Sensitivity float64
	// MinWidthSamples rejects regions narrower than this many sample intervals.
	MinWidthSamples int
	// TimingTolerance is the allowed deviation from reversal instants as a
	// fraction of the field period.
	TimingTolerance float64
	// EdgeFraction selects the quiet regions for the noise-floor estimate.
	EdgeFraction float64
	// Refine enables Levenberg-Marquardt Gaussian refinement of peak
	// centers and bounds.
	Refine bool
}

// NewPeakDetector builds a detector from the analysis configuration.
func NewPeakDetector(cfg AnalysisConfig) *PeakDetector {
	return &PeakDetector{
		Sensitivity:     cfg.PeakSensitivity,
		MinWidthSamples: cfg.MinPeakWidthSamples,
		TimingTolerance: cfg.TimingTolerance,
		EdgeFraction:    cfg.BaselineEdgeFraction,
		Refine:          cfg.RefinePeaks,
	}
}

// Detect returns the peak candidates of the corrected series, ordered by
// peak time. It fails with ErrNoSwitchingPeakFound when no region survives
// thresholding and width filtering.
func (d *PeakDetector) Detect(buf *WaveformBuffer, corrected []float64) ([]PeakCandidate, error) {
	if len(corrected) != buf.Len() {
		return nil, fmt.Errorf("%w: corrected series length %d does not match buffer length %d",
			ErrInvalidWaveform, len(corrected), buf.Len())
	}

	noise := d.noiseFloor(corrected)
	threshold := d.Sensitivity * noise

	var peaks []PeakCandidate
	n := len(corrected)
	for i := 0; i < n; {
		if math.Abs(corrected[i]) <= threshold {
			i++
			continue
		}
		// grow the contiguous qualifying region
		j := i
		for j+1 < n && math.Abs(corrected[j+1]) > threshold {
			j++
		}
		cand := d.buildCandidate(buf, corrected, i, j, threshold/2)
		i = cand.EndIndex + 1

		if cand.EndIndex-cand.StartIndex < d.MinWidthSamples {
			continue // noise spike
		}
		cand.UnexpectedTiming = d.offSchedule(buf, cand.PeakTime)
		if d.Refine {
			cand = d.refineGaussian(buf, corrected, cand)
		}
		peaks = append(peaks, cand)
	}

	if len(peaks) == 0 {
		return nil, fmt.Errorf("%w: no region exceeded %.4g A (k=%g, noise floor %.4g A) over %d samples",
			ErrNoSwitchingPeakFound, threshold, d.Sensitivity, noise, n)
	}
	return peaks, nil
}

// NoiseFloor reports the detector's noise estimate for the corrected series,
// exposed so callers can report thresholds in diagnostics.
func (d *PeakDetector) NoiseFloor(corrected []float64) float64 {
	return d.noiseFloor(corrected)
}

// noiseFloor is the standard deviation of the corrected signal over the
// quiet edge fractions, with a relative floor so that noiseless synthetic
// data does not degenerate the thresholds.
func (d *PeakDetector) noiseFloor(corrected []float64) float64 {
	idx := quietEdgeIndices(len(corrected), d.EdgeFraction)
	quiet := make([]float64, len(idx))
	maxAbs := 0.0
	for k, i := range idx {
		quiet[k] = corrected[i]
	}
	for _, v := range corrected {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	sd := 0.0
	if len(quiet) >= 2 {
		sd = stat.StdDev(quiet, nil)
	}
	if floor := 1e-12 * maxAbs; sd < floor {
		sd = floor
	}
	return sd
}

// buildCandidate extends a qualifying region [i, j] outward until the signal
// returns to within halfThreshold of zero, then records the extremum. A
// window whose extremum lands on an edge widens by one sample so the peak
// stays interior, except at the capture boundary.
func (d *PeakDetector) buildCandidate(buf *WaveformBuffer, corrected []float64, i, j int, halfThreshold float64) PeakCandidate {
	lo, hi := i, j
	for lo > 0 && math.Abs(corrected[lo-1]) > halfThreshold {
		lo--
	}
	for hi+1 < len(corrected) && math.Abs(corrected[hi+1]) > halfThreshold {
		hi++
	}

	peak := lo
	for k := lo; k <= hi; k++ {
		if math.Abs(corrected[k]) > math.Abs(corrected[peak]) {
			peak = k
		}
	}
	// widening never rescues a region the width filter would reject
	if hi-lo >= d.MinWidthSamples {
		if peak == lo && lo > 0 {
			lo--
		}
		if peak == hi && hi+1 < len(corrected) {
			hi++
		}
	}
	return PeakCandidate{
		StartTime:     buf.times[lo],
		EndTime:       buf.times[hi],
		PeakTime:      buf.times[peak],
		PeakAmplitude: corrected[peak],
		StartIndex:    lo,
		EndIndex:      hi,
		PeakIndex:     peak,
	}
}

// offSchedule reports whether a peak time deviates from the nearest multiple
// of field_period/2 (relative to the capture start) by more than the
// tolerance fraction of the field period.
func (d *PeakDetector) offSchedule(buf *WaveformBuffer, peakTime float64) bool {
	half := buf.meta.FieldPeriod / 2
	t0 := buf.times[0]
	m := math.Round((peakTime - t0) / half)
	expected := t0 + m*half
	return math.Abs(peakTime-expected) > d.TimingTolerance*buf.meta.FieldPeriod
}

// refineGaussian fits A*exp(-(t-mu)^2/(2*sigma^2)) to the candidate window
// and tightens the center and bounds to mu +/- 3 sigma. The fit only ever
// narrows the detected window; on any fit failure the original candidate is
// returned unchanged.
func (d *PeakDetector) refineGaussian(buf *WaveformBuffer, corrected []float64, c PeakCandidate) (out PeakCandidate) {
	out = c

	size := c.EndIndex - c.StartIndex + 1
	if size < 5 {
		return out
	}

	fnc := func(dst, x []float64) {
		amp, mu, sigma := x[0], x[1], x[2]
		for k := 0; k < size; k++ {
			t := buf.times[c.StartIndex+k]
			r := (t - mu) / sigma
			dst[k] = amp*math.Exp(-0.5*r*r) - corrected[c.StartIndex+k]
		}
	}
	jac := lm.NumJac{Func: fnc}

	problem := lm.LMProblem{
		Dim:        3,
		Size:       size,
		Func:       fnc,
		Jac:        jac.Jac,
		InitParams: []float64{c.PeakAmplitude, c.PeakTime, c.Width() / 4},
		Tau:        1e-13,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	// Recover from LM panics (e.g., singular matrix)
	defer func() {
		if r := recover(); r != nil {
			out = c
		}
	}()

	res, err := lm.LM(problem, &lm.Settings{Iterations: 1000, ObjectiveTol: 1e-16})
	if err != nil {
		return out
	}

	mu, sigma := res.X[1], math.Abs(res.X[2])
	if sigma == 0 || mu <= c.StartTime || mu >= c.EndTime {
		return out
	}

	lo := d.indexAtOrAfter(buf, math.Max(c.StartTime, mu-3*sigma), c.StartIndex, c.EndIndex)
	hi := d.indexAtOrBefore(buf, math.Min(c.EndTime, mu+3*sigma), c.StartIndex, c.EndIndex)
	if lo >= c.PeakIndex || hi <= c.PeakIndex || hi-lo < d.MinWidthSamples {
		return out
	}

	out.StartIndex, out.EndIndex = lo, hi
	out.StartTime, out.EndTime = buf.times[lo], buf.times[hi]
	out.PeakTime = mu
	return out
}

func (d *PeakDetector) indexAtOrAfter(buf *WaveformBuffer, t float64, lo, hi int) int {
	for i := lo; i <= hi; i++ {
		if buf.times[i] >= t {
			return i
		}
	}
	return hi
}

func (d *PeakDetector) indexAtOrBefore(buf *WaveformBuffer, t float64, lo, hi int) int {
	for i := hi; i >= lo; i-- {
		if buf.times[i] <= t {
			return i
		}
	}
	return lo
}
