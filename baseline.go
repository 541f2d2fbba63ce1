package gopolcore

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// BaselineModel is a degree-<=1 approximation of the background current,
// I(t) = Alpha + Beta*t, valid over the buffer's time span.
type BaselineModel struct {
	Alpha float64
	Beta  float64
}

// At evaluates the model at time t.
func (m BaselineModel) At(t float64) float64 {
	return m.Alpha + m.Beta*t
}

// BaselineEstimator fits the slowly varying capacitive/leakage current from
// the leading and trailing edge fractions of the trace, which are presumed
// free of switching activity.
type BaselineEstimator struct {
	// EdgeFraction is the quiet-region size at each end of the trace.
	EdgeFraction float64
}

// NewBaselineEstimator returns an estimator using the given edge fraction.
func NewBaselineEstimator(edgeFraction float64) *BaselineEstimator {
	return &BaselineEstimator{EdgeFraction: edgeFraction}
}

// quietEdgeIndices collects the indices of the leading and trailing edge
// fractions of an n-sample trace. Shared by the baseline fit and the
// detector's noise-floor estimate so both see the same quiet regions.
func quietEdgeIndices(n int, fraction float64) []int {
	edge := int(float64(n) * fraction)
	idx := make([]int, 0, 2*edge)
	for i := 0; i < edge; i++ {
		idx = append(idx, i)
	}
	for i := n - edge; i < n; i++ {
		idx = append(idx, i)
	}
	return idx
}

// Estimate fits a first-order polynomial to the quiet-edge current values and
// returns the extrapolated model. It fails with ErrInsufficientBaselineData
// when either edge fraction contains fewer than 2 samples.
func (e *BaselineEstimator) Estimate(buf *WaveformBuffer) (BaselineModel, error) {
	n := buf.Len()
	edge := int(float64(n) * e.EdgeFraction)
	if edge < 2 {
		return BaselineModel{}, fmt.Errorf("%w: edge fraction %g of %d samples yields %d samples per edge, need at least 2",
			ErrInsufficientBaselineData, e.EdgeFraction, n, edge)
	}

	idx := quietEdgeIndices(n, e.EdgeFraction)
	ts := make([]float64, len(idx))
	is := make([]float64, len(idx))
	for k, i := range idx {
		ts[k] = buf.times[i]
		is[k] = buf.current[i]
	}

	alpha, beta := stat.LinearRegression(ts, is, nil, false)
	return BaselineModel{Alpha: alpha, Beta: beta}, nil
}

// Correct returns the baseline-corrected current series of the buffer.
func (e *BaselineEstimator) Correct(buf *WaveformBuffer, m BaselineModel) []float64 {
	corrected := make([]float64, buf.Len())
	for i, t := range buf.times {
		corrected[i] = buf.current[i] - m.At(t)
	}
	return corrected
}
