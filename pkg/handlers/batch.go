package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kacperjurak/gopolcore/internal/processing"
	"github.com/kacperjurak/gopolcore/internal/utils"
	"github.com/kacperjurak/gopolcore/pkg/config"
	"github.com/kacperjurak/gopolcore/pkg/logger"
	"github.com/kacperjurak/gopolcore/pkg/models"
	"github.com/kacperjurak/gopolcore/pkg/worker"
)

// BatchHandler handles multi-cycle batch analysis requests.
type BatchHandler struct {
	config     *config.Config
	serverCfg  *config.ServerConfig
	workerPool *worker.Pool
	processor  *processing.Processor
	metrics    Metrics
	log        *logger.Logger
}

// NewBatchHandler creates a handler for POST /waveform/batch.
func NewBatchHandler(cfg *config.Config, srvCfg *config.ServerConfig, pool *worker.Pool, proc *processing.Processor, metrics Metrics) *BatchHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &BatchHandler{
		config:     cfg,
		serverCfg:  srvCfg,
		workerPool: pool,
		processor:  proc,
		metrics:    metrics,
		log:        logger.L(),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setupCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var batch models.WaveformBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(batch.Cycles) == 0 {
		writeError(w, "No cycles provided in batch", http.StatusBadRequest)
		return
	}

	h.log.Info("batch processing started",
		logger.String("batch_id", batch.BatchID),
		logger.Int("cycles", len(batch.Cycles)))

	go h.processBatchAsync(batch)

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"batch_id": batch.BatchID,
		"cycles":   len(batch.Cycles),
		"message":  "Batch processing started with worker pool",
	})
}

// processBatchAsync fans the batch out to the worker pool and collects the
// per-cycle results.
func (h *BatchHandler) processBatchAsync(batch models.WaveformBatch) {
	batchStart := time.Now()
	timings := make([]models.CycleTiming, len(batch.Cycles))
	received := 0
	submitted := 0

	for _, item := range batch.Cycles {
		buf, err := h.processor.BuildBuffer(item.WaveformData)
		if err != nil {
			h.metrics.ObserveAnalysis(0, err)
			h.log.Warn("skipping invalid cycle",
				logger.String("batch_id", batch.BatchID),
				logger.Int("cycle", item.Cycle),
				logger.Error(err))
			if item.Cycle >= 0 && item.Cycle < len(timings) {
				timings[item.Cycle] = models.CycleTiming{Cycle: item.Cycle}
			}
			continue
		}
		h.workerPool.SubmitJob(models.WorkItem{
			ID:        item.Cycle,
			RequestID: utils.GenerateID(),
			BatchID:   batch.BatchID,
			Cycle:     item.Cycle,
			Buffer:    buf,
			StartTime: time.Now(),
		})
		submitted++
	}

	for received < submitted {
		result, ok := h.workerPool.GetResult()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		h.processResult(result, timings)
		received++
	}

	totalTime := time.Since(batchStart)
	h.saveTimingResults(batch.BatchID, totalTime, timings, h.concurrency())

	h.log.Info("batch processing completed",
		logger.String("batch_id", batch.BatchID),
		logger.Duration("total_time", totalTime))
}

func (h *BatchHandler) processResult(result models.WorkResult, timings []models.CycleTiming) {
	h.metrics.ObserveAnalysis(result.ProcessingTime, result.Err)

	if result.Cycle >= 0 && result.Cycle < len(timings) {
		timings[result.Cycle] = models.CycleTiming{
			Cycle:          result.Cycle,
			ProcessingTime: result.ProcessingTime,
			Polarization:   result.Result.SpontaneousPolarization,
			Success:        result.Success,
		}
	}

	h.workerPool.QueueWebhook(models.WebhookItem{
		RequestID: fmt.Sprintf("%s_cycle_%03d", result.RequestID, result.Cycle),
		Result:    result.Result,
		Err:       result.Err,
		Times:     result.Times,
		Corrected: result.Corrected,
	})
}

func (h *BatchHandler) concurrency() int {
	if h.serverCfg != nil && h.serverCfg.WorkerCount > 0 {
		return h.serverCfg.WorkerCount
	}
	return 5
}

// saveTimingResults appends batch timing statistics to a CSV file for
// performance analysis across runs.
func (h *BatchHandler) saveTimingResults(batchID string, totalTime time.Duration, timings []models.CycleTiming, concurrency int) {
	filename := "batch_timing_results.csv"

	var writeHeader bool
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		writeHeader = true
	}

	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		h.log.Warn("opening timing file failed", logger.Error(err))
		return
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if writeHeader {
		header := []string{
			"Timestamp",
			"BatchID",
			"TotalCycles",
			"Concurrency",
			"TotalBatchTime_ms",
			"AvgCycleTime_ms",
			"MinCycleTime_ms",
			"MaxCycleTime_ms",
			"SuccessRate",
			"AvgPolarization",
			"CyclesPerSecond",
			"EfficiencyScore",
		}
		if err := writer.Write(header); err != nil {
			h.log.Warn("writing timing header failed", logger.Error(err))
			return
		}
	}

	var totalCycleTime time.Duration
	minTime, maxTime := time.Hour, time.Duration(0)
	var successful int
	var totalPs float64

	for _, timing := range timings {
		totalCycleTime += timing.ProcessingTime
		if timing.ProcessingTime < minTime {
			minTime = timing.ProcessingTime
		}
		if timing.ProcessingTime > maxTime {
			maxTime = timing.ProcessingTime
		}
		if timing.Success {
			successful++
			totalPs += timing.Polarization
		}
	}

	numCycles := len(timings)
	avgCycleTime := totalCycleTime / time.Duration(numCycles)
	successRate := float64(successful) / float64(numCycles) * 100
	avgPs := 0.0
	if successful > 0 {
		avgPs = totalPs / float64(successful)
	}
	cyclesPerSecond := float64(numCycles) / totalTime.Seconds()

	// efficiency relative to a perfect linear speedup over the pool
	theoreticalTime := avgCycleTime * time.Duration(numCycles)
	efficiencyScore := theoreticalTime.Seconds() / totalTime.Seconds() / float64(concurrency)

	record := []string{
		time.Now().Format(time.RFC3339),
		batchID,
		fmt.Sprintf("%d", numCycles),
		fmt.Sprintf("%d", concurrency),
		fmt.Sprintf("%.2f", float64(totalTime.Nanoseconds())/1e6),
		fmt.Sprintf("%.2f", float64(avgCycleTime.Nanoseconds())/1e6),
		fmt.Sprintf("%.2f", float64(minTime.Nanoseconds())/1e6),
		fmt.Sprintf("%.2f", float64(maxTime.Nanoseconds())/1e6),
		fmt.Sprintf("%.1f", successRate),
		fmt.Sprintf("%.6e", avgPs),
		fmt.Sprintf("%.2f", cyclesPerSecond),
		fmt.Sprintf("%.3f", efficiencyScore),
	}
	if err := writer.Write(record); err != nil {
		h.log.Warn("writing timing record failed", logger.Error(err))
		return
	}

	h.log.Info("batch timing saved",
		logger.Int("cycles", numCycles),
		logger.Int("concurrency", concurrency),
		logger.Float64("success_rate", successRate),
		logger.Float64("efficiency", efficiencyScore))
}
