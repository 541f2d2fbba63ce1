package webhook

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kacperjurak/gopolcore"
	"github.com/kacperjurak/gopolcore/pkg/models"
)

func TestBuildResponse(t *testing.T) {
	item := models.WebhookItem{
		RequestID: "abc123",
		Result: gopolcore.MeasurementResult{
			SpontaneousPolarization: 2.5e-5,
			SwitchingTime:           3e-4,
			PeakCurrentDensity:      0.1,
			SingleTransition:        true,
			Peaks: []gopolcore.IntegrationResult{
				{
					Charge:   5e-9,
					Start:    0.002,
					End:      0.003,
					Unpaired: true,
					Peak: gopolcore.PeakCandidate{
						PeakTime:         0.0025,
						PeakAmplitude:    1e-5,
						UnexpectedTiming: true,
					},
				},
			},
		},
		Times:     []float64{0, 1e-5},
		Corrected: []float64{0, 1e-6},
	}

	payload := BuildResponse(item)
	assert.Equal(t, "abc123", payload.ID)
	assert.NotEmpty(t, payload.Time)
	assert.Empty(t, payload.Error)
	assert.Equal(t, 2.5e-5, payload.SpontaneousPolarization)
	assert.True(t, payload.SingleTransition)
	assert.Len(t, payload.Peaks, 1)
	assert.Equal(t, 0.0025, payload.Peaks[0].PeakTime)
	assert.True(t, payload.Peaks[0].UnexpectedTiming)
	assert.True(t, payload.Peaks[0].Unpaired)
	assert.Equal(t, item.Times, payload.Times)
	assert.Equal(t, item.Corrected, payload.CorrectedCurrent)
}

func TestBuildResponseSanitizesNonFinite(t *testing.T) {
	item := models.WebhookItem{
		RequestID: "nan",
		Result: gopolcore.MeasurementResult{
			SpontaneousPolarization: math.NaN(),
			SwitchingTime:           math.Inf(1),
		},
	}

	payload := BuildResponse(item)
	assert.Equal(t, 0.0, payload.SpontaneousPolarization)
	assert.Equal(t, 0.0, payload.SwitchingTime)
}

func TestBuildResponseCarriesError(t *testing.T) {
	item := models.WebhookItem{
		RequestID: "failed",
		Err:       errors.New("no switching peak found"),
	}

	payload := BuildResponse(item)
	assert.Equal(t, "no switching peak found", payload.Error)
	assert.Empty(t, payload.Peaks)
}
