package server

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperjurak/gopolcore"
)

func TestFailureReasonMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrap: %w", gopolcore.ErrInvalidWaveform), "invalid_waveform"},
		{gopolcore.ErrInsufficientBaselineData, "insufficient_baseline"},
		{gopolcore.ErrNoSwitchingPeakFound, "no_peak"},
		{gopolcore.ErrDegenerateIntegrationWindow, "degenerate_window"},
		{gopolcore.ErrInconsistentPolarity, "inconsistent_polarity"},
		{errors.New("boom"), "other"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, failureReason(c.err), "for %v", c.err)
	}
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveAnalysis(2*time.Millisecond, nil)
	m.ObserveAnalysis(time.Millisecond, gopolcore.ErrNoSwitchingPeakFound)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "gopol_analyses_total 2")
	assert.True(t, strings.Contains(text, `gopol_analysis_failures_total{reason="no_peak"} 1`), text)
	assert.Contains(t, text, "gopol_analysis_duration_seconds")
}
