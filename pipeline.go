package gopolcore

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// RejectStatisticalOutlier marks a cycle excluded from the aggregate because
// its polarization sits too far from the mean of the remaining cycles.
const RejectStatisticalOutlier = "statistical_outlier"

// CycleError records a per-cycle stage failure. Failures are local: one bad
// cycle never aborts the rest of a batch.
type CycleError struct {
	Cycle int
	Err   error
}

func (e CycleError) Error() string {
	return fmt.Sprintf("cycle %d: %v", e.Cycle, e.Err)
}

func (e CycleError) Unwrap() error { return e.Err }

// RejectedCycle is a successfully analyzed cycle excluded from the aggregate.
type RejectedCycle struct {
	Cycle  int
	Result MeasurementResult
	Reason string
}

// AggregateResult summarizes the accepted cycles of a multi-cycle analysis.
type AggregateResult struct {
	Count               int
	MeanPolarization    float64
	StdDevPolarization  float64
	MeanSwitchingTime   float64
	StdDevSwitchingTime float64
	// Cycles are the accepted per-cycle results, in input order.
	Cycles []MeasurementResult
	// Rejected lists cycles excluded from the aggregate with the reason.
	Rejected []RejectedCycle
	// Errors lists cycles whose analysis failed outright.
	Errors []CycleError
}

// AnalysisPipeline runs baseline estimation, peak detection, charge
// integration and parameter calculation over one or more waveform cycles.
// It is stateless across invocations and safe for concurrent use.
type AnalysisPipeline struct {
	cfg        AnalysisConfig
	baseline   *BaselineEstimator
	detector   *PeakDetector
	integrator ChargeIntegrator
	calculator *ParameterCalculator
}

// NewAnalysisPipeline wires the pipeline stages from one configuration.
func NewAnalysisPipeline(cfg AnalysisConfig) *AnalysisPipeline {
	return &AnalysisPipeline{
		cfg:        cfg,
		baseline:   NewBaselineEstimator(cfg.BaselineEdgeFraction),
		detector:   NewPeakDetector(cfg),
		calculator: NewParameterCalculator(cfg),
	}
}

// Config returns the pipeline configuration.
func (p *AnalysisPipeline) Config() AnalysisConfig { return p.cfg }

// CorrectedCurrent returns the baseline-corrected current series of a
// buffer, suitable for external plotting.
func (p *AnalysisPipeline) CorrectedCurrent(buf *WaveformBuffer) ([]float64, error) {
	model, err := p.baseline.Estimate(buf)
	if err != nil {
		return nil, err
	}
	return p.baseline.Correct(buf, model), nil
}

// Analyze runs the full stage chain over a single waveform cycle.
func (p *AnalysisPipeline) Analyze(buf *WaveformBuffer) (MeasurementResult, error) {
	model, err := p.baseline.Estimate(buf)
	if err != nil {
		return MeasurementResult{}, err
	}
	corrected := p.baseline.Correct(buf, model)

	peaks, err := p.detector.Detect(buf, corrected)
	if err != nil {
		return MeasurementResult{}, err
	}

	integrated, err := p.integrator.Integrate(buf, corrected, peaks)
	if err != nil {
		return MeasurementResult{}, err
	}

	return p.calculator.Calculate(buf, corrected, integrated)
}

// AnalyzeAll analyzes each buffer as an independent cycle, in parallel, and
// aggregates the per-cycle polarization and switching time. Cycles whose
// polarization deviates more than OutlierSigma standard deviations from the
// mean of the remaining cycles are excluded (requires at least 4 successful
// cycles); failed cycles are reported alongside, never silently dropped.
func (p *AnalysisPipeline) AnalyzeAll(buffers []*WaveformBuffer) AggregateResult {
	type outcome struct {
		result MeasurementResult
		err    error
	}
	outcomes := make([]outcome, len(buffers))

	var wg sync.WaitGroup
	for i, buf := range buffers {
		wg.Add(1)
		go func(i int, buf *WaveformBuffer) {
			defer wg.Done()
			res, err := p.Analyze(buf)
			outcomes[i] = outcome{result: res, err: err}
		}(i, buf)
	}
	wg.Wait()

	var agg AggregateResult
	type accepted struct {
		cycle  int
		result MeasurementResult
	}
	var ok []accepted
	for i, o := range outcomes {
		if o.err != nil {
			agg.Errors = append(agg.Errors, CycleError{Cycle: i, Err: o.err})
			continue
		}
		ok = append(ok, accepted{cycle: i, result: o.result})
	}

	// leave-one-out outlier exclusion, only meaningful from 4 cycles up
	kept := ok
	if len(ok) >= 4 {
		kept = kept[:0:0]
		for i, a := range ok {
			rest := make([]float64, 0, len(ok)-1)
			for j, b := range ok {
				if j != i {
					rest = append(rest, b.result.SpontaneousPolarization)
				}
			}
			mean, sd := stat.MeanStdDev(rest, nil)
			dev := math.Abs(a.result.SpontaneousPolarization - mean)
			if dev > p.cfg.OutlierSigma*sd && dev > 0 {
				agg.Rejected = append(agg.Rejected, RejectedCycle{
					Cycle:  a.cycle,
					Result: a.result,
					Reason: RejectStatisticalOutlier,
				})
				continue
			}
			kept = append(kept, a)
		}
	}

	if len(kept) == 0 {
		return agg
	}

	ps := make([]float64, len(kept))
	taus := make([]float64, len(kept))
	for i, a := range kept {
		ps[i] = a.result.SpontaneousPolarization
		taus[i] = a.result.SwitchingTime
		agg.Cycles = append(agg.Cycles, a.result)
	}
	agg.Count = len(kept)
	agg.MeanPolarization, agg.StdDevPolarization = meanStdDev(ps)
	agg.MeanSwitchingTime, agg.StdDevSwitchingTime = meanStdDev(taus)
	return agg
}

// meanStdDev guards the single-sample case where the sample standard
// deviation is undefined.
func meanStdDev(xs []float64) (mean, sd float64) {
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}
