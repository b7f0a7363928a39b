package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// RuntimeSnapshot is one sample of the Go runtime
type RuntimeSnapshot struct {
	HeapAlloc     uint64    `json:"heap_alloc_bytes"`
	HeapSys       uint64    `json:"heap_sys_bytes"`
	HeapInuse     uint64    `json:"heap_inuse_bytes"`
	NumGC         uint32    `json:"num_gc"`
	PauseTotalNs  uint64    `json:"gc_pause_total_ns"`
	GCCPUFraction float64   `json:"gc_cpu_fraction"`
	NumGoroutine  int       `json:"num_goroutine"`
	Timestamp     time.Time `json:"timestamp"`
}

// RuntimeSampler periodically copies runtime statistics into Metrics
type RuntimeSampler struct {
	interval time.Duration
	metrics  *Metrics
	logger   *Logger

	mu   sync.RWMutex
	last RuntimeSnapshot
}

// NewRuntimeSampler creates a sampler; interval <= 0 defaults to 15s
func NewRuntimeSampler(interval time.Duration, metrics *Metrics, logger *Logger) *RuntimeSampler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &RuntimeSampler{interval: interval, metrics: metrics, logger: logger}
}

// Start samples until ctx is cancelled
func (s *RuntimeSampler) Start(ctx context.Context) {
	s.Sample()
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("Starting runtime sampling", "interval_ms", s.interval.Milliseconds())
		for {
			select {
			case <-ticker.C:
				snap := s.Sample()
				if snap.Timestamp.Minute()%5 == 0 && snap.Timestamp.Second() < int(s.interval.Seconds()) {
					s.logSnapshot(snap)
				}
			case <-ctx.Done():
				slog.Info("Runtime sampling stopped")
				return
			}
		}
	}()
}

// Sample reads the runtime once and records it
func (s *RuntimeSampler) Sample() RuntimeSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := RuntimeSnapshot{
		HeapAlloc:     ms.HeapAlloc,
		HeapSys:       ms.HeapSys,
		HeapInuse:     ms.HeapInuse,
		NumGC:         ms.NumGC,
		PauseTotalNs:  ms.PauseTotalNs,
		GCCPUFraction: ms.GCCPUFraction,
		NumGoroutine:  runtime.NumGoroutine(),
		Timestamp:     time.Now(),
	}

	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordRuntimeMetrics(int64(snap.NumGC), int64(snap.PauseTotalNs),
			int64(snap.HeapAlloc), int64(snap.HeapSys), int64(snap.NumGoroutine))
	}
	return snap
}

// Last returns the most recent sample
func (s *RuntimeSampler) Last() RuntimeSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *RuntimeSampler) logSnapshot(snap RuntimeSnapshot) {
	if s.logger == nil {
		return
	}
	s.logger.SystemLogger("runtime_stats", fmt.Sprintf(
		"heap:%dMB/%dMB gc:%d goroutines:%d",
		snap.HeapInuse/(1024*1024),
		snap.HeapSys/(1024*1024),
		snap.NumGC,
		snap.NumGoroutine,
	))
}
