package gopolcore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWaveform indicates a malformed or insufficient input buffer.
	ErrInvalidWaveform = errors.New("gopolcore: invalid waveform buffer")
	// ErrInsufficientBaselineData indicates the quiet edge fractions hold too
	// few samples to fit a baseline. Such a buffer is too short to analyze at
	// the configured edge fraction, so this wraps ErrInvalidWaveform.
	ErrInsufficientBaselineData = fmt.Errorf("%w: insufficient baseline data", ErrInvalidWaveform)
	// ErrNoSwitchingPeakFound indicates no transient exceeded the noise threshold.
	ErrNoSwitchingPeakFound = errors.New("gopolcore: no switching peak found")
	// ErrDegenerateIntegrationWindow indicates a zero-width integration window.
	// It signals a detector/integrator contract violation and should never occur in correct operation.
	ErrDegenerateIntegrationWindow = errors.New("gopolcore: degenerate integration window")
	// ErrInconsistentPolarity indicates ambiguous peak pairing within one expected half-period.
	ErrInconsistentPolarity = errors.New("gopolcore: inconsistent peak polarity")
)
