// Package profiler aggregates per-frame statistics for the choreographer: frame rate, which
// pipeline variant each frame took, how often render targets were rebuilt, and memory pressure.
package profiler

import (
	"maps"
	"runtime"
	"slices"
	"time"

	"github.com/Carmen-Shannon/oxy-choreo/common"
)

// Snapshot is the statistics of one reporting interval.
type Snapshot struct {
	Frames   int
	FPS      float64
	Rebuilds int
	Variants map[string]int
	HeapMB   float64
	GCCount  uint32
	Elapsed  time.Duration
}

// ProfilerBuilderOption is a functional option applied to a Profiler during construction.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often statistics are reported. Values <= 0 are ignored.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the option
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClock replaces the time source.
//
// Parameters:
//   - now: returns the current time
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the option
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// WithReportFunc sets a callback receiving every interval snapshot, after it is logged.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the option
func WithReportFunc(fn func(Snapshot)) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.report = fn
	}
}

// Profiler counts frames, variants and rebuilds and reports them through the engine logger at a
// fixed interval. It is not safe for concurrent use; call it from the render thread.
type Profiler struct {
	now            func() time.Time
	updateInterval time.Duration
	report         func(Snapshot)

	frameCount  int
	rebuilds    int
	variants    map[string]int
	lastTime    time.Time
	memStats    runtime.MemStats
	totalFrames uint64
}

// NewProfiler creates a Profiler. The interval defaults to 1 second.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
		variants:       make(map[string]int),
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// RecordRebuild counts one render target rebuild in the current interval.
func (p *Profiler) RecordRebuild() {
	p.rebuilds++
}

// TotalFrames returns the number of frames recorded since creation.
func (p *Profiler) TotalFrames() uint64 {
	return p.totalFrames
}

// RecordFrame counts one rendered frame and the pipeline variant it took, and reports when the
// interval has elapsed.
//
// Parameters:
//   - variant: the name of the variant the frame rendered with
//
// Returns:
//   - bool: true if statistics were reported by this call
func (p *Profiler) RecordFrame(variant string) bool {
	p.frameCount++
	p.totalFrames++
	p.variants[variant]++

	current := p.now()
	elapsed := current.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	snap := Snapshot{
		Frames:   p.frameCount,
		FPS:      float64(p.frameCount) / elapsed.Seconds(),
		Rebuilds: p.rebuilds,
		Variants: maps.Clone(p.variants),
		HeapMB:   float64(p.memStats.Alloc) / 1024 / 1024,
		GCCount:  p.memStats.NumGC,
		Elapsed:  elapsed,
	}

	args := []any{
		"fps", snap.FPS,
		"frames", snap.Frames,
		"rebuilds", snap.Rebuilds,
		"heap_mb", snap.HeapMB,
		"gc", snap.GCCount,
	}
	for _, name := range slices.Sorted(maps.Keys(snap.Variants)) {
		args = append(args, "variant."+name, snap.Variants[name])
	}
	common.Logger().Info("frame statistics", args...)
	if p.report != nil {
		p.report(snap)
	}

	p.frameCount = 0
	p.rebuilds = 0
	clear(p.variants)
	p.lastTime = current
	return true
}
