package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kacperjurak/gopolcore/internal/processing"
	"github.com/kacperjurak/gopolcore/internal/utils"
	"github.com/kacperjurak/gopolcore/pkg/config"
	"github.com/kacperjurak/gopolcore/pkg/logger"
	"github.com/kacperjurak/gopolcore/pkg/models"
	"github.com/kacperjurak/gopolcore/pkg/worker"
)

// Metrics receives analysis outcomes; satisfied by the server metrics.
type Metrics interface {
	ObserveAnalysis(duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveAnalysis(time.Duration, error) {}

// WaveformHandler handles single-capture analysis requests.
type WaveformHandler struct {
	config     *config.Config
	workerPool *worker.Pool
	processor  *processing.Processor
	metrics    Metrics
	log        *logger.Logger
}

// NewWaveformHandler creates a handler for POST /waveform.
func NewWaveformHandler(cfg *config.Config, pool *worker.Pool, proc *processing.Processor, metrics Metrics) *WaveformHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &WaveformHandler{
		config:     cfg,
		workerPool: pool,
		processor:  proc,
		metrics:    metrics,
		log:        logger.L(),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *WaveformHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setupCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var data models.WaveformData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(data.Voltages) == 0 {
		writeError(w, "No samples provided", http.StatusBadRequest)
		return
	}

	requestID := utils.GenerateID()
	go h.processAsync(requestID, data)

	if !h.config.Quiet {
		h.log.Info("waveform request received",
			logger.String("request_id", requestID),
			logger.Int("samples", len(data.Voltages)))
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":    true,
		"request_id": requestID,
		"message":    "Analysis started",
	})
}

// processAsync analyzes the capture off the request path and pushes the
// outcome to the webhook queue.
func (h *WaveformHandler) processAsync(requestID string, data models.WaveformData) {
	start := time.Now()

	buf, err := h.processor.BuildBuffer(data)
	if err != nil {
		h.metrics.ObserveAnalysis(time.Since(start), err)
		h.workerPool.QueueWebhook(models.WebhookItem{RequestID: requestID, Err: err})
		return
	}

	res, corrected, err := h.processor.Process(buf)
	h.metrics.ObserveAnalysis(time.Since(start), err)

	h.workerPool.QueueWebhook(models.WebhookItem{
		RequestID: requestID,
		Result:    res,
		Err:       err,
		Times:     buf.Times(),
		Corrected: corrected,
	})
}

func setupCORS(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
