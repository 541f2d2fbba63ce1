package models

import (
	"time"

	"github.com/kacperjurak/gopolcore"
)

// WaveformData represents an incoming switching-current capture.
type WaveformData struct {
	Timestamp string    `json:"timestamp"`
	Times     []float64 `json:"times"`
	Voltages  []float64 `json:"voltages"`
	// SampleInterval in seconds; used to build times when the array is empty.
	SampleInterval float64 `json:"sample_interval"`
	// FieldAmplitude in volts, optional.
	FieldAmplitude float64 `json:"field_amplitude,omitempty"`
}

// BatchItem is a single capture with its cycle number within the batch.
type BatchItem struct {
	WaveformData WaveformData `json:"waveform_data"`
	Cycle        int          `json:"cycle"`
}

// WaveformBatch is a batch of captures measured back to back.
type WaveformBatch struct {
	BatchID   string      `json:"batch_id"`
	Timestamp time.Time   `json:"timestamp"`
	Cycles    []BatchItem `json:"cycles"`
}

// WorkItem represents a single analysis task.
type WorkItem struct {
	ID        int
	RequestID string
	BatchID   string
	Cycle     int
	Buffer    *gopolcore.WaveformBuffer
	StartTime time.Time
}

// WorkResult contains the outcome of one analysis task.
type WorkResult struct {
	ID             int
	RequestID      string
	BatchID        string
	Cycle          int
	Result         gopolcore.MeasurementResult
	Err            error
	ProcessingTime time.Duration
	Success        bool
	Corrected      []float64
	Times          []float64
}

// WebhookItem represents a webhook task.
type WebhookItem struct {
	RequestID string
	Result    gopolcore.MeasurementResult
	Err       error
	Times     []float64
	Corrected []float64
}

// PeakSummary is the wire form of one detected peak.
type PeakSummary struct {
	StartTime        float64 `json:"start_time"`
	EndTime          float64 `json:"end_time"`
	PeakTime         float64 `json:"peak_time"`
	PeakAmplitude    float64 `json:"peak_amplitude"`
	Charge           float64 `json:"charge"`
	UnexpectedTiming bool    `json:"unexpected_timing,omitempty"`
	Unpaired         bool    `json:"unpaired,omitempty"`
}

// WebhookResponse is the payload posted to the plotting collaborator.
type WebhookResponse struct {
	ID                      string        `json:"id"`
	Time                    string        `json:"time"`
	Error                   string        `json:"error,omitempty"`
	SpontaneousPolarization float64       `json:"spontaneous_polarization"`
	SwitchingTime           float64       `json:"switching_time"`
	SwitchingTime4060       float64       `json:"switching_time_4060,omitempty"`
	PeakCurrentDensity      float64       `json:"peak_current_density"`
	RotationalViscosity     float64       `json:"rotational_viscosity,omitempty"`
	SingleTransition        bool          `json:"single_transition,omitempty"`
	Peaks                   []PeakSummary `json:"peaks,omitempty"`
	Times                   []float64     `json:"times,omitempty"`
	CorrectedCurrent        []float64     `json:"corrected_current,omitempty"`
}

// CycleTiming tracks per-cycle performance within a batch.
type CycleTiming struct {
	Cycle          int           `json:"cycle"`
	ProcessingTime time.Duration `json:"processing_time_ms"`
	Polarization   float64       `json:"spontaneous_polarization"`
	Success        bool          `json:"success"`
}
