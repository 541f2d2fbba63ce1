package gopolcore

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// SynthParams describes a synthetic switching-current trace: a linear
// baseline with Gaussian reversal transients at the field's half-period
// instants, optionally with added measurement noise.
type SynthParams struct {
	Meta Metadata

	Samples int
	// PeakCurrent is the transient amplitude in amperes; alternate pulses
	// carry alternating sign.
	PeakCurrent float64
	// PulseWidth is the Gaussian sigma in seconds.
	PulseWidth float64
	// PulseDelay shifts every pulse center from its reversal instant.
	PulseDelay float64

	BaselineOffset float64 // amperes
	BaselineSlope  float64 // amperes per second

	NoiseLevel float64 // ampere RMS of added Gaussian noise
	Seed       int64
}

// SynthWaveform generates a deterministic synthetic trace from the given
// parameters. Pulse centers sit at odd multiples of field_period/4 so a
// whole number of reversals fits the capture.
func SynthWaveform(p SynthParams) (*WaveformBuffer, error) {
	if p.Samples < 3 {
		return nil, fmt.Errorf("%w: synthetic trace needs at least 3 samples, got %d", ErrInvalidWaveform, p.Samples)
	}
	rng := rand.New(rand.NewSource(p.Seed))

	interval := p.Meta.SampleInterval
	times := make([]float64, p.Samples)
	floats.Span(times, 0, float64(p.Samples-1)*interval)

	samples := make([]Sample, p.Samples)
	for i := range samples {
		t := times[i]
		current := p.BaselineOffset + p.BaselineSlope*t

		// one pulse per half period, alternating polarity
		span := float64(p.Samples) * interval
		for k := 0; p.PeakCurrent != 0 && p.PulseWidth > 0; k++ {
			center := (0.25+0.5*float64(k))*p.Meta.FieldPeriod + p.PulseDelay
			if center > span {
				break
			}
			sign := 1.0
			if k%2 == 1 {
				sign = -1
			}
			r := (t - center) / p.PulseWidth
			current += sign * p.PeakCurrent * math.Exp(-0.5*r*r)
		}

		if p.NoiseLevel > 0 {
			current += rng.NormFloat64() * p.NoiseLevel
		}
		samples[i] = Sample{Time: t, Voltage: current * p.Meta.ReferenceResistance}
	}
	return NewWaveformBuffer(samples, p.Meta)
}
