package webhook

import (
	"math"
	"time"

	"github.com/kacperjurak/gopolcore/pkg/models"
)

// BuildResponse converts a webhook item into the wire payload. Non-finite
// values are zeroed so the payload always marshals.
func BuildResponse(item models.WebhookItem) models.WebhookResponse {
	res := item.Result

	payload := models.WebhookResponse{
		ID:                      item.RequestID,
		Time:                    time.Now().Format(time.RFC3339Nano),
		SpontaneousPolarization: sanitize(res.SpontaneousPolarization),
		SwitchingTime:           sanitize(res.SwitchingTime),
		SwitchingTime4060:       sanitize(res.SwitchingTime4060),
		PeakCurrentDensity:      sanitize(res.PeakCurrentDensity),
		RotationalViscosity:     sanitize(res.RotationalViscosity),
		SingleTransition:        res.SingleTransition,
		Times:                   item.Times,
		CorrectedCurrent:        item.Corrected,
	}

	if item.Err != nil {
		payload.Error = item.Err.Error()
	}

	for _, p := range res.Peaks {
		payload.Peaks = append(payload.Peaks, models.PeakSummary{
			StartTime:        p.Start,
			EndTime:          p.End,
			PeakTime:         p.Peak.PeakTime,
			PeakAmplitude:    sanitize(p.Peak.PeakAmplitude),
			Charge:           sanitize(p.Charge),
			UnexpectedTiming: p.Peak.UnexpectedTiming,
			Unpaired:         p.Unpaired,
		})
	}
	return payload
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
