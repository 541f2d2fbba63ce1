package processing

import (
	"fmt"

	"github.com/kacperjurak/gopolcore"
	"github.com/kacperjurak/gopolcore/pkg/config"
	"github.com/kacperjurak/gopolcore/pkg/logger"
	"github.com/kacperjurak/gopolcore/pkg/models"
)

// Processor turns wire-format captures into waveform buffers and runs them
// through the analysis pipeline.
type Processor struct {
	cfg      *config.Config
	pipeline *gopolcore.AnalysisPipeline
	log      *logger.Logger
}

// New creates a processor from the application config.
func New(cfg *config.Config, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.L()
	}
	return &Processor{
		cfg:      cfg,
		pipeline: gopolcore.NewAnalysisPipeline(cfg.Analysis),
		log:      log,
	}
}

// BuildBuffer validates incoming capture data and constructs a waveform
// buffer using the configured cell geometry.
func (p *Processor) BuildBuffer(data models.WaveformData) (*gopolcore.WaveformBuffer, error) {
	if len(data.Voltages) == 0 {
		return nil, fmt.Errorf("%w: no voltage samples", gopolcore.ErrInvalidWaveform)
	}

	interval := data.SampleInterval
	if interval <= 0 {
		interval = p.cfg.SampleInterval
	}

	samples := make([]gopolcore.Sample, len(data.Voltages))
	for i, v := range data.Voltages {
		t := float64(i) * interval
		if i < len(data.Times) {
			t = data.Times[i]
		}
		samples[i] = gopolcore.Sample{Time: t, Voltage: v}
	}

	meta := p.cfg.Metadata(interval)
	if data.FieldAmplitude > 0 {
		meta.FieldAmplitude = data.FieldAmplitude
	}
	return gopolcore.NewWaveformBuffer(samples, meta)
}

// Process analyzes one buffer and returns the result together with the
// baseline-corrected current series for plotting.
func (p *Processor) Process(buf *gopolcore.WaveformBuffer) (gopolcore.MeasurementResult, []float64, error) {
	corrected, err := p.pipeline.CorrectedCurrent(buf)
	if err != nil {
		return gopolcore.MeasurementResult{}, nil, err
	}

	res, err := p.pipeline.Analyze(buf)
	if err != nil {
		p.log.Warn("waveform analysis failed",
			logger.Int("samples", buf.Len()),
			logger.Error(err))
		return gopolcore.MeasurementResult{}, corrected, err
	}

	if !p.cfg.Quiet {
		p.log.Info("waveform analyzed",
			logger.Int("samples", buf.Len()),
			logger.Int("peaks", len(res.Peaks)),
			logger.Float64("spontaneous_polarization", res.SpontaneousPolarization),
			logger.Float64("switching_time", res.SwitchingTime),
			logger.Bool("single_transition", res.SingleTransition))
	}
	return res, corrected, nil
}

// ProcessorFunc adapts the processor for the worker pool.
func (p *Processor) ProcessorFunc() func(*gopolcore.WaveformBuffer) (gopolcore.MeasurementResult, []float64, error) {
	return p.Process
}
