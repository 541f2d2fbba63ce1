package profiling

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // registers pprof handlers on the default mux
	"runtime"
	"time"

	"github.com/kacperjurak/gopolcore/pkg/config"
	"github.com/kacperjurak/gopolcore/pkg/logger"
)

// Profiler runs the pprof endpoints on a separate port so production
// traffic and diagnostics never share a listener.
type Profiler struct {
	config *config.ServerConfig
	server *http.Server
	memory *MemoryProfiler
	log    *logger.Logger
}

// New creates a profiler instance.
func New(cfg *config.ServerConfig, log *logger.Logger) *Profiler {
	if log == nil {
		log = logger.L()
	}
	return &Profiler{config: cfg, log: log}
}

// Start starts the profiling server when profiling is enabled.
func (p *Profiler) Start() error {
	if !p.config.EnableProfiling {
		p.log.Debug("profiling disabled")
		return nil
	}

	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", http.DefaultServeMux.ServeHTTP)
	mux.HandleFunc("/debug/info", p.infoHandler)

	p.server = &http.Server{
		Addr:    ":" + p.config.ProfilingPort,
		Handler: mux,
	}

	p.memory = NewMemoryProfiler(30*time.Second, p.log)
	p.memory.Start()

	p.log.Info("starting profiling server", logger.String("port", p.config.ProfilingPort))

	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.log.Error("profiling server error", logger.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the profiling server.
func (p *Profiler) Stop() error {
	if p.memory != nil {
		p.memory.Stop()
	}
	if p.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("profiling server shutdown: %w", err)
	}

	p.log.Info("profiling server stopped")
	return nil
}

// infoHandler reports runtime and memory statistics.
func (p *Profiler) infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
  "timestamp": "%s",
  "goroutines": %d,
  "gomaxprocs": %d,
  "num_cpu": %d,
  "version": "%s",
  "memory": {
    "alloc_mb": %.2f,
    "total_alloc_mb": %.2f,
    "sys_mb": %.2f,
    "heap_alloc_mb": %.2f,
    "heap_objects": %d
  },
  "gc": {
    "num_gc": %d,
    "pause_total_ns": %d,
    "last_gc": "%s"
  }
}`,
		time.Now().Format(time.RFC3339),
		runtime.NumGoroutine(),
		runtime.GOMAXPROCS(0),
		runtime.NumCPU(),
		runtime.Version(),
		bToMb(m.Alloc),
		bToMb(m.TotalAlloc),
		bToMb(m.Sys),
		bToMb(m.HeapAlloc),
		m.HeapObjects,
		m.NumGC,
		m.PauseTotalNs,
		time.Unix(0, int64(m.LastGC)).Format(time.RFC3339))
}

// bToMb converts bytes to megabytes.
func bToMb(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
