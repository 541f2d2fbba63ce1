package gopolcore

import "github.com/creasty/defaults"

// AnalysisConfig holds the tunable knobs of the analysis engine. The zero
// value is not meaningful; use DefaultAnalysisConfig or defaults.Set.
type AnalysisConfig struct {
	// BaselineEdgeFraction is the quiet-region size at each end of the trace
	// used for baseline fitting and noise estimation.
	BaselineEdgeFraction float64 `yaml:"baseline_edge_fraction" default:"0.10" validate:"gt=0,lt=0.5"`
	// PeakSensitivity is the detection threshold multiplier k over the noise floor.
	PeakSensitivity float64 `yaml:"peak_sensitivity_k" default:"5.0" validate:"gt=0"`
	// MinPeakWidthSamples rejects candidate regions narrower than this many sample intervals.
	MinPeakWidthSamples int `yaml:"min_peak_width_samples" default:"2" validate:"gte=1"`
	// TimingTolerance is the allowed deviation from expected reversal
	// instants, as a fraction of the field period.
	TimingTolerance float64 `yaml:"timing_tolerance_fraction" default:"0.20" validate:"gt=0"`
	// OutlierSigma is the aggregate outlier threshold in standard deviations.
	OutlierSigma float64 `yaml:"outlier_sigma" default:"3.0" validate:"gt=0"`
	// RefinePeaks enables Levenberg-Marquardt Gaussian refinement of detected
	// peak centers and bounds.
	RefinePeaks bool `yaml:"refine_peaks" default:"false"`
}

// DefaultAnalysisConfig returns the engine defaults.
func DefaultAnalysisConfig() AnalysisConfig {
	var c AnalysisConfig
	defaults.MustSet(&c)
	return c
}
