package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kacperjurak/gopolcore/internal/processing"
	"github.com/kacperjurak/gopolcore/pkg/config"
	"github.com/kacperjurak/gopolcore/pkg/handlers"
	"github.com/kacperjurak/gopolcore/pkg/logger"
	"github.com/kacperjurak/gopolcore/pkg/profiling"
	"github.com/kacperjurak/gopolcore/pkg/webhook"
	"github.com/kacperjurak/gopolcore/pkg/worker"
)

// Server is the HTTP front of the analysis service: it owns the worker
// pool, the webhook client and the metrics registry.
type Server struct {
	config        *config.Config
	serverConfig  *config.ServerConfig
	processor     *processing.Processor
	workerPool    *worker.Pool
	webhookClient *webhook.Client
	httpServer    *http.Server
	profiler      *profiling.Profiler
	middleware    *profiling.Middleware
	metrics       *Metrics
	log           *logger.Logger
}

// Options holds configuration for creating a new server.
type Options struct {
	Config       *config.Config
	ServerConfig *config.ServerConfig
	Logger       *logger.Logger
}

// New creates a server instance with all its dependencies wired.
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.ServerConfig == nil {
		opts.ServerConfig = config.DefaultServerConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}

	processor := processing.New(opts.Config, opts.Logger)
	webhookClient := webhook.NewClient(opts.ServerConfig.WebhookURL, opts.Config.Quiet, opts.Logger)

	workerPool := worker.New(worker.Options{
		Workers:   opts.ServerConfig.WorkerCount,
		Processor: processor.Process,
		Sender:    webhookClient.Send,
		Logger:    opts.Logger,
	})

	server := &Server{
		config:        opts.Config,
		serverConfig:  opts.ServerConfig,
		processor:     processor,
		workerPool:    workerPool,
		webhookClient: webhookClient,
		profiler:      profiling.New(opts.ServerConfig, opts.Logger),
		middleware:    profiling.NewMiddleware(opts.ServerConfig.EnableProfiling),
		metrics:       NewMetrics(),
		log:           opts.Logger,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	mux := http.NewServeMux()

	waveformHandler := handlers.NewWaveformHandler(s.config, s.workerPool, s.processor, s.metrics)
	batchHandler := handlers.NewBatchHandler(s.config, s.serverConfig, s.workerPool, s.processor, s.metrics)

	mux.Handle("/waveform", s.middleware.ProfiledHandler("waveform-single", waveformHandler))
	mux.Handle("/waveform/batch", s.middleware.ProfiledHandler("waveform-batch", batchHandler))
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/debug/gc", s.gcHandler)
	mux.HandleFunc("/debug/memory", s.memoryHandler)
	if s.serverConfig.EnableMetrics {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	s.httpServer = &http.Server{
		Addr:         ":" + s.serverConfig.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// healthHandler provides a simple health check endpoint.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// gcHandler triggers garbage collection and returns stats.
func (s *Server) gcHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	profiling.ForceGC(s.log)
	stats := profiling.GetGCStats()

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"gc_runs": %d,
		"pause_total_ms": %.3f,
		"pause_recent_us": %.3f,
		"cpu_percent": %.2f,
		"last_gc": "%s",
		"timestamp": "%s"
	}`,
		stats.NumGC,
		float64(stats.PauseTotal.Nanoseconds())/1e6,
		float64(stats.PauseRecent.Nanoseconds())/1e3,
		stats.GCCPUPercent,
		stats.LastGC.Format(time.RFC3339),
		time.Now().Format(time.RFC3339))
}

// memoryHandler logs and acknowledges current memory statistics.
func (s *Server) memoryHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	profiling.LogGCStats(s.log)

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"message":"Memory stats logged","timestamp":"%s"}`,
		time.Now().Format(time.RFC3339))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	if err := s.profiler.Start(); err != nil {
		s.log.Error("failed to start profiler", logger.Error(err))
	}

	s.log.Info("starting HTTP server",
		logger.String("port", s.serverConfig.Port),
		logger.Bool("metrics", s.serverConfig.EnableMetrics),
		logger.Bool("profiling", s.serverConfig.EnableProfiling))

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its dependencies.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")

	if err := s.profiler.Stop(); err != nil {
		s.log.Warn("profiler shutdown error", logger.Error(err))
	}

	s.workerPool.Shutdown()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.log.Info("server shutdown complete")
	return nil
}
