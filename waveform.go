package gopolcore

import (
	"fmt"
	"math"
)

// Sample is a single digitized point of the captured trace.
type Sample struct {
	Time    float64 // seconds
	Voltage float64 // volts, across the reference resistor
}

// Metadata carries the acquisition scale and cell geometry of a capture.
// All fields except FieldAmplitude must be strictly positive.
type Metadata struct {
	SampleInterval      float64 // seconds between samples
	ReferenceResistance float64 // ohms
	CellArea            float64 // m^2, electrode overlap area
	CellThickness       float64 // m, electrode gap
	FieldPeriod         float64 // seconds, period of the reversing field
	FieldAmplitude      float64 // volts (optional, 0 = unknown); enables viscosity output
}

// WaveformBuffer is an immutable, validated view of one captured trace.
// Construct it with NewWaveformBuffer; the zero value is not usable.
type WaveformBuffer struct {
	times   []float64
	volts   []float64
	current []float64
	meta    Metadata
}

// NewWaveformBuffer validates the raw trace and metadata and derives the
// per-sample current (voltage / reference resistance). It returns
// ErrInvalidWaveform for fewer than 3 samples, non-increasing times or any
// non-positive geometry/scale field.
func NewWaveformBuffer(samples []Sample, meta Metadata) (*WaveformBuffer, error) {
	if len(samples) < 3 {
		return nil, fmt.Errorf("%w: got %d samples, need at least 3", ErrInvalidWaveform, len(samples))
	}
	if meta.SampleInterval <= 0 {
		return nil, fmt.Errorf("%w: sample interval %g must be > 0", ErrInvalidWaveform, meta.SampleInterval)
	}
	if meta.ReferenceResistance <= 0 {
		return nil, fmt.Errorf("%w: reference resistance %g must be > 0", ErrInvalidWaveform, meta.ReferenceResistance)
	}
	if meta.CellArea <= 0 {
		return nil, fmt.Errorf("%w: cell area %g must be > 0", ErrInvalidWaveform, meta.CellArea)
	}
	if meta.CellThickness <= 0 {
		return nil, fmt.Errorf("%w: cell thickness %g must be > 0", ErrInvalidWaveform, meta.CellThickness)
	}
	if meta.FieldPeriod <= 0 {
		return nil, fmt.Errorf("%w: field period %g must be > 0", ErrInvalidWaveform, meta.FieldPeriod)
	}
	if meta.FieldAmplitude < 0 {
		return nil, fmt.Errorf("%w: field amplitude %g must be >= 0", ErrInvalidWaveform, meta.FieldAmplitude)
	}

	buf := &WaveformBuffer{
		times:   make([]float64, len(samples)),
		volts:   make([]float64, len(samples)),
		current: make([]float64, len(samples)),
		meta:    meta,
	}
	for i, s := range samples {
		if math.IsNaN(s.Time) || math.IsInf(s.Time, 0) || math.IsNaN(s.Voltage) || math.IsInf(s.Voltage, 0) {
			return nil, fmt.Errorf("%w: non-finite sample at index %d", ErrInvalidWaveform, i)
		}
		if i > 0 && s.Time <= samples[i-1].Time {
			return nil, fmt.Errorf("%w: times not strictly increasing at index %d (%g after %g)",
				ErrInvalidWaveform, i, s.Time, samples[i-1].Time)
		}
		buf.times[i] = s.Time
		buf.volts[i] = s.Voltage
		buf.current[i] = s.Voltage / meta.ReferenceResistance
	}
	return buf, nil
}

// Len returns the number of samples.
func (b *WaveformBuffer) Len() int { return len(b.times) }

// Metadata returns the acquisition metadata.
func (b *WaveformBuffer) Metadata() Metadata { return b.meta }

// Samples returns a copy of the trace as (time, voltage) pairs.
func (b *WaveformBuffer) Samples() []Sample {
	out := make([]Sample, len(b.times))
	for i := range out {
		out[i] = Sample{Time: b.times[i], Voltage: b.volts[i]}
	}
	return out
}

// Times returns a copy of the sample times.
func (b *WaveformBuffer) Times() []float64 {
	out := make([]float64, len(b.times))
	copy(out, b.times)
	return out
}

// Voltages returns a copy of the measured voltages.
func (b *WaveformBuffer) Voltages() []float64 {
	out := make([]float64, len(b.volts))
	copy(out, b.volts)
	return out
}

// Current returns a copy of the derived per-sample current in amperes.
func (b *WaveformBuffer) Current() []float64 {
	out := make([]float64, len(b.current))
	copy(out, b.current)
	return out
}

// Span returns the first and last sample time.
func (b *WaveformBuffer) Span() (start, end float64) {
	return b.times[0], b.times[len(b.times)-1]
}

// SplitCycles slices a long capture into consecutive full-field-period
// windows, each a standalone buffer with absolute times preserved. A capture
// shorter than one period (or a trailing remainder too short to analyze) is
// returned as, or folded into, the last cycle.
func (b *WaveformBuffer) SplitCycles() []*WaveformBuffer {
	perCycle := int(math.Round(b.meta.FieldPeriod / b.meta.SampleInterval))
	if perCycle < 3 || perCycle >= len(b.times) {
		return []*WaveformBuffer{b}
	}

	var cycles []*WaveformBuffer
	for start := 0; start < len(b.times); start += perCycle {
		end := start + perCycle
		if end > len(b.times) {
			end = len(b.times)
		}
		// fold a too-short remainder into the previous cycle
		if end-start < 3 && len(cycles) > 0 {
			cycles[len(cycles)-1] = b.slice(start-perCycle, end)
			break
		}
		cycles = append(cycles, b.slice(start, end))
	}
	return cycles
}

func (b *WaveformBuffer) slice(start, end int) *WaveformBuffer {
	out := &WaveformBuffer{
		times:   make([]float64, end-start),
		volts:   make([]float64, end-start),
		current: make([]float64, end-start),
		meta:    b.meta,
	}
	copy(out.times, b.times[start:end])
	copy(out.volts, b.volts[start:end])
	copy(out.current, b.current[start:end])
	return out
}
