package profiling

import (
	"runtime"
	"time"

	"github.com/kacperjurak/gopolcore/pkg/logger"
)

// MemoryProfiler periodically logs memory usage while the profiling server
// is running.
type MemoryProfiler struct {
	interval time.Duration
	stopChan chan struct{}
	log      *logger.Logger
}

// NewMemoryProfiler creates a memory profiler logging at the given interval.
func NewMemoryProfiler(interval time.Duration, log *logger.Logger) *MemoryProfiler {
	if log == nil {
		log = logger.L()
	}
	return &MemoryProfiler{
		interval: interval,
		stopChan: make(chan struct{}),
		log:      log,
	}
}

// Start begins periodic memory logging.
func (mp *MemoryProfiler) Start() {
	go func() {
		ticker := time.NewTicker(mp.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				mp.logMemoryStats()
			case <-mp.stopChan:
				return
			}
		}
	}()
}

// Stop ends memory logging.
func (mp *MemoryProfiler) Stop() {
	close(mp.stopChan)
}

func (mp *MemoryProfiler) logMemoryStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mp.log.Debug("memory stats",
		logger.Float64("alloc_mb", bToMb(m.Alloc)),
		logger.Float64("total_alloc_mb", bToMb(m.TotalAlloc)),
		logger.Float64("sys_mb", bToMb(m.Sys)),
		logger.Int("gc_runs", int(m.NumGC)),
		logger.Int("goroutines", runtime.NumGoroutine()))
}

// GCStats provides garbage collection statistics.
type GCStats struct {
	NumGC        uint32
	PauseTotal   time.Duration
	PauseRecent  time.Duration
	LastGC       time.Time
	GCCPUPercent float64
}

// GetGCStats returns current garbage collection statistics.
func GetGCStats() GCStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var recentPause time.Duration
	if m.NumGC > 0 {
		recentPause = time.Duration(m.PauseNs[(m.NumGC+255)%256])
	}

	return GCStats{
		NumGC:        m.NumGC,
		PauseTotal:   time.Duration(m.PauseTotalNs),
		PauseRecent:  recentPause,
		LastGC:       time.Unix(0, int64(m.LastGC)),
		GCCPUPercent: m.GCCPUFraction * 100,
	}
}

// LogGCStats logs garbage collection statistics.
func LogGCStats(log *logger.Logger) {
	if log == nil {
		log = logger.L()
	}
	stats := GetGCStats()
	log.Info("gc stats",
		logger.Int("runs", int(stats.NumGC)),
		logger.Float64("pause_total_ms", float64(stats.PauseTotal.Nanoseconds())/1e6),
		logger.Float64("pause_recent_us", float64(stats.PauseRecent.Nanoseconds())/1e3),
		logger.Float64("cpu_percent", stats.GCCPUPercent))
}

// ForceGC triggers garbage collection and logs the effect.
func ForceGC(log *logger.Logger) {
	if log == nil {
		log = logger.L()
	}
	before := GetGCStats()
	runtime.GC()
	after := GetGCStats()

	log.Info("forced gc",
		logger.Int("runs_before", int(before.NumGC)),
		logger.Int("runs_after", int(after.NumGC)),
		logger.Float64("pause_us", float64(after.PauseRecent.Nanoseconds())/1e3))
}
