package gopolcore

import (
	"fmt"

	"gonum.org/v1/gonum/integrate"
)

// IntegrationResult is the signed charge transferred during one switching
// transient. Charge polarity distinguishes the two reversal directions and
// is never discarded at this stage.
type IntegrationResult struct {
	Charge float64 // coulombs, signed
	Start  float64 // seconds, integration window start
	End    float64 // seconds, integration window end
	Peak   PeakCandidate
	// Unpaired is set by the parameter calculator when no opposite-polarity
	// peak half a field period away could be matched to this one.
	Unpaired bool
}

// ChargeIntegrator integrates baseline-corrected current over the bounded
// window of each detected peak using trapezoidal quadrature.
type ChargeIntegrator struct{}

// Integrate produces one IntegrationResult per candidate. A zero-width
// window fails with ErrDegenerateIntegrationWindow; the detector's minimum
// width filter should make that impossible, so it is treated as a contract
// violation by callers.
func (ChargeIntegrator) Integrate(buf *WaveformBuffer, corrected []float64, peaks []PeakCandidate) ([]IntegrationResult, error) {
	results := make([]IntegrationResult, 0, len(peaks))
	for _, p := range peaks {
		if p.StartIndex >= p.EndIndex || p.StartTime >= p.EndTime {
			return nil, fmt.Errorf("%w: peak at t=%.6gs has window [%.6g, %.6g]",
				ErrDegenerateIntegrationWindow, p.PeakTime, p.StartTime, p.EndTime)
		}
		xs := buf.times[p.StartIndex : p.EndIndex+1]
		ys := corrected[p.StartIndex : p.EndIndex+1]
		results = append(results, IntegrationResult{
			Charge: integrate.Trapezoidal(xs, ys),
			Start:  p.StartTime,
			End:    p.EndTime,
			Peak:   p,
		})
	}
	return results, nil
}
