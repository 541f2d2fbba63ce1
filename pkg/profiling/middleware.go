package profiling

import (
	"net/http"
	"runtime"
	"strconv"
	"time"
)

// Middleware annotates responses with per-request profiling headers when
// profiling is enabled; otherwise it is a pass-through.
type Middleware struct {
	enabled bool
}

// NewMiddleware creates a profiling middleware.
func NewMiddleware(enabled bool) *Middleware {
	return &Middleware{enabled: enabled}
}

// ProfiledHandler wraps an HTTP handler with timing, memory and goroutine
// accounting exposed as X-* response headers.
func (m *Middleware) ProfiledHandler(name string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			handler.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		var startMem runtime.MemStats
		runtime.ReadMemStats(&startMem)
		startGoroutines := runtime.NumGoroutine()

		w.Header().Set("X-Handler-Name", name)
		w.Header().Set("X-Start-Goroutines", strconv.Itoa(startGoroutines))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler.ServeHTTP(wrapped, r)

		var endMem runtime.MemStats
		runtime.ReadMemStats(&endMem)

		duration := time.Since(start)
		memoryDelta := int64(endMem.Alloc) - int64(startMem.Alloc)
		goroutineDelta := runtime.NumGoroutine() - startGoroutines

		wrapped.Header().Set("X-Duration-Ms", strconv.FormatFloat(float64(duration.Nanoseconds())/1e6, 'f', 3, 64))
		wrapped.Header().Set("X-Memory-Delta-Bytes", strconv.FormatInt(memoryDelta, 10))
		wrapped.Header().Set("X-Goroutine-Delta", strconv.Itoa(goroutineDelta))
		wrapped.Header().Set("X-Status-Code", strconv.Itoa(wrapped.statusCode))
	})
}

// responseWriter captures the status code written by the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
