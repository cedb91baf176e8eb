package profiler

import (
	"fmt"
	"log"
	"runtime"
	"time"
)

// Sample is a snapshot of monotonically increasing counters taken once per frame.
// The profiler reports the change of each counter over the update interval.
type Sample struct {
	Presented uint64
	Skipped   uint64

	CameraBuilds     uint64
	SubmissionBuilds uint64
	BatchListBuilds  uint64
	DrawBatchBuilds  uint64

	Instances int
}

// Report is what the profiler logged for one interval.
type Report struct {
	FPS     float64
	Skipped uint64

	// Per-second rebuild rates of each cache level.
	CameraRate     float64
	SubmissionRate float64
	BatchListRate  float64
	DrawBatchRate  float64

	Instances int
	HeapMB    float64
}

func (r Report) String() string {
	return fmt.Sprintf("FPS: %.2f | Skipped: %d | Rebuilds/s camera: %.1f submissions: %.1f batch lists: %.1f draw batches: %.1f | Instances: %d | Heap: %.2f MB",
		r.FPS, r.Skipped, r.CameraRate, r.SubmissionRate, r.BatchListRate, r.DrawBatchRate, r.Instances, r.HeapMB)
}

// Profiler tracks frame rate, cache rebuild rates and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Sample

	now    func() time.Time
	logger func(format string, args ...any)
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		logger:         log.Printf,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with the current counters.
// Logs performance statistics when the update interval has elapsed.
// Statistics include FPS, skipped frames, per-level cache rebuild rates, heap usage, allocation rate and GC pauses.
//
// Parameters:
//   - sample: the current counter values
//
// Returns:
//   - *Report: the logged report, or nil if the interval has not elapsed yet
func (p *Profiler) Tick(sample Sample) *Report {
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return nil
	}

	secs := elapsed.Seconds()
	rate := func(cur, prev uint64) float64 {
		return float64(cur-prev) / secs
	}

	runtime.ReadMemStats(&p.memStats)
	report := &Report{
		FPS:            rate(sample.Presented, p.last.Presented),
		Skipped:        sample.Skipped - p.last.Skipped,
		CameraRate:     rate(sample.CameraBuilds, p.last.CameraBuilds),
		SubmissionRate: rate(sample.SubmissionBuilds, p.last.SubmissionBuilds),
		BatchListRate:  rate(sample.BatchListBuilds, p.last.BatchListBuilds),
		DrawBatchRate:  rate(sample.DrawBatchBuilds, p.last.DrawBatchBuilds),
		Instances:      sample.Instances,
		HeapMB:         float64(p.memStats.Alloc) / 1024 / 1024,
	}

	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / secs

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	var maxPauseUs uint64
	startIdx := p.lastGCCount
	if gcCount-startIdx > 256 {
		startIdx = gcCount - 256
	}
	for i := startIdx; i < gcCount; i++ {
		maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
	}

	p.logger("[Profiler] %s | Alloc Rate: %.2f MB/s | GC: %d (max: %d µs)", report, allocRateMB, gcCount, maxPauseUs)

	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.last = sample
	return report
}
