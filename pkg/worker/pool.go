package worker

import (
	"sync"
	"time"

	"github.com/kacperjurak/gopolcore"
	"github.com/kacperjurak/gopolcore/pkg/logger"
	"github.com/kacperjurak/gopolcore/pkg/models"
)

// ProcessorFunc analyzes one waveform buffer and returns the measurement
// result plus the corrected current series.
type ProcessorFunc func(buf *gopolcore.WaveformBuffer) (gopolcore.MeasurementResult, []float64, error)

// WebhookSender delivers a queued webhook item.
type WebhookSender func(item models.WebhookItem) error

// Pool manages concurrent waveform analysis workers.
type Pool struct {
	jobs         chan models.WorkItem
	results      chan models.WorkResult
	webhookQueue chan models.WebhookItem
	workers      int
	shutdown     chan struct{}
	wg           sync.WaitGroup
	processor    ProcessorFunc
	sender       WebhookSender
	log          *logger.Logger
}

// Options holds configuration for creating a new worker pool.
type Options struct {
	Workers   int
	Processor ProcessorFunc
	Sender    WebhookSender
	Logger    *logger.Logger
}

// New creates a worker pool and starts its workers.
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}

	// jobs/results buffered so queueing does not block while workers are busy
	pool := &Pool{
		jobs:         make(chan models.WorkItem, opts.Workers*2),
		results:      make(chan models.WorkResult, opts.Workers*2),
		webhookQueue: make(chan models.WebhookItem, opts.Workers*4),
		workers:      opts.Workers,
		shutdown:     make(chan struct{}),
		processor:    opts.Processor,
		sender:       opts.Sender,
		log:          opts.Logger,
	}

	pool.start()
	return pool
}

func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.webhookProcessor()

	p.log.Info("worker pool started", logger.Int("workers", p.workers))
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			p.results <- p.processJob(id, job)

		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) processJob(id int, job models.WorkItem) models.WorkResult {
	start := time.Now()
	res, corrected, err := p.processor(job.Buffer)
	elapsed := time.Since(start)

	if err != nil {
		p.log.Warn("analysis job failed",
			logger.Int("worker", id),
			logger.String("request_id", job.RequestID),
			logger.Int("cycle", job.Cycle),
			logger.Error(err))
	}

	return models.WorkResult{
		ID:             job.ID,
		RequestID:      job.RequestID,
		BatchID:        job.BatchID,
		Cycle:          job.Cycle,
		Result:         res,
		Err:            err,
		ProcessingTime: elapsed,
		Success:        err == nil,
		Corrected:      corrected,
		Times:          job.Buffer.Times(),
	}
}

// webhookProcessor delivers queued webhooks without blocking the analysis
// workers.
func (p *Pool) webhookProcessor() {
	defer p.wg.Done()

	for {
		select {
		case item := <-p.webhookQueue:
			go p.sendWebhook(item)

		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) sendWebhook(item models.WebhookItem) {
	if p.sender == nil {
		return
	}
	if err := p.sender(item); err != nil {
		p.log.Warn("webhook delivery failed",
			logger.String("request_id", item.RequestID),
			logger.Error(err))
	}
}

// SubmitJob submits a job, blocking once the buffer is full.
func (p *Pool) SubmitJob(job models.WorkItem) {
	select {
	case p.jobs <- job:
	default:
		p.log.Warn("worker pool jobs channel full, job may be delayed",
			logger.String("request_id", job.RequestID))
		p.jobs <- job
	}
}

// GetResult retrieves a result from the worker pool (non-blocking).
func (p *Pool) GetResult() (models.WorkResult, bool) {
	select {
	case result := <-p.results:
		return result, true
	default:
		return models.WorkResult{}, false
	}
}

// QueueWebhook queues a webhook for async delivery; full queues drop.
func (p *Pool) QueueWebhook(item models.WebhookItem) {
	select {
	case p.webhookQueue <- item:
	default:
		p.log.Warn("webhook queue full, dropping webhook",
			logger.String("request_id", item.RequestID))
	}
}

// Shutdown gracefully shuts down the worker pool.
func (p *Pool) Shutdown() {
	p.log.Info("shutting down worker pool")
	close(p.shutdown)
	p.wg.Wait()
	p.log.Info("worker pool shutdown complete")
}
