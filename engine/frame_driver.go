package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
)

// TickResult describes what a single FrameDriver.Tick did.
type TickResult int

const (
	// TickPresented means a frame was submitted and presented.
	TickPresented TickResult = iota

	// TickSkippedResize means the surface rejected the extent, either while rebuilding the target set
	// or while acquiring a target. The rebuild is retried on the next tick.
	TickSkippedResize

	// TickSkippedOutOfDate means the target set went out of date during acquisition or submission.
	// A rebuild is scheduled for the next tick.
	TickSkippedOutOfDate

	// TickFailed means a fatal backend error occurred. The error returned alongside it describes the failure.
	TickFailed
)

func (r TickResult) String() string {
	switch r {
	case TickPresented:
		return "presented"
	case TickSkippedResize:
		return "skipped-resize"
	case TickSkippedOutOfDate:
		return "skipped-out-of-date"
	case TickFailed:
		return "failed"
	default:
		return fmt.Sprintf("TickResult(%d)", int(r))
	}
}

// FrameStats counts tick outcomes since the driver was created.
type FrameStats struct {
	Presented        uint64
	SkippedResize    uint64
	SkippedOutOfDate uint64
	Rebuilds         uint64
}

type frameDriver struct {
	mu *sync.Mutex

	renderer renderer.Renderer
	scene    scene.Scene

	// fences holds the completion signal of the last submission into each target slot.
	fences []renderer.Fence
	last   renderer.Fence

	extent        common.Extent
	resizePending bool

	stats   FrameStats
	verbose bool
}

// FrameDriver owns the frame pacing protocol: it rebuilds the target set on resize, acquires a target,
// waits for that target's previous frame, then submits the scene's cached work for it.
// At most TargetSet.Count frames are ever in flight.
type FrameDriver interface {
	// RequestResize schedules a target set rebuild at extent before the next acquisition.
	//
	// Parameters:
	//   - extent: the new drawable size in pixels
	RequestResize(extent common.Extent)

	// Tick runs one iteration of the frame loop.
	//
	// Returns:
	//   - TickResult: what the tick did
	//   - error: non-nil only for fatal failures (TickFailed)
	Tick() (TickResult, error)

	// InFlight returns how many target slots hold a submission that has not completed yet.
	//
	// Returns:
	//   - int: the number of in-flight frames
	InFlight() int

	// Targets returns the renderer's current target set.
	Targets() renderer.TargetSet

	// Stats returns the tick outcome counters.
	Stats() FrameStats

	// WaitIdle blocks until every in-flight frame has completed and the GPU is idle.
	//
	// Returns:
	//   - error: the first fence wait failure
	WaitIdle() error
}

var _ FrameDriver = &frameDriver{}

// NewFrameDriver creates a FrameDriver presenting sc through r. Both are required and NewFrameDriver panics
// if either is nil. No target set exists until the first RequestResize is handled by Tick.
//
// Parameters:
//   - r: the renderer that owns the presentation targets
//   - sc: the scene whose submission list is drawn every frame
//   - options: functional options to configure the driver
//
// Returns:
//   - FrameDriver: the new driver
func NewFrameDriver(r renderer.Renderer, sc scene.Scene, options ...FrameDriverOption) FrameDriver {
	if r == nil || sc == nil {
		panic("engine: NewFrameDriver requires a Renderer and a Scene")
	}
	fd := &frameDriver{
		mu:       &sync.Mutex{},
		renderer: r,
		scene:    sc,
	}
	for _, option := range options {
		option(fd)
	}
	return fd
}

func (fd *frameDriver) RequestResize(extent common.Extent) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.extent = extent
	fd.resizePending = true
}

func (fd *frameDriver) Tick() (TickResult, error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.resizePending {
		if result, err := fd.rebuild(); result != TickPresented || err != nil {
			return fd.record(result, err)
		}
	}

	acq, err := fd.renderer.Acquire()
	if err != nil {
		return fd.record(fd.classify("acquire", err))
	}
	if acq.Suboptimal {
		fd.scheduleRebuild()
	}

	targets := fd.renderer.Targets()
	if len(fd.fences) != targets.Count {
		if err := fd.waitAll(); err != nil {
			return fd.record(TickFailed, err)
		}
		fd.fences = make([]renderer.Fence, targets.Count)
	}

	if f := fd.fences[acq.Target]; f != nil {
		if err := f.Wait(); err != nil {
			return fd.record(TickFailed, fmt.Errorf("engine: wait for target %d: %w", acq.Target, err))
		}
		fd.fences[acq.Target] = nil
	}

	subs := fd.scene.SubmissionList(targets)
	if acq.Target >= len(subs) {
		fd.scheduleRebuild()
		return fd.record(TickSkippedOutOfDate, nil)
	}

	fence, err := fd.renderer.Submit(acq, subs[acq.Target], fd.last)
	if err != nil {
		return fd.record(fd.classify("submit", err))
	}
	fd.fences[acq.Target] = fence
	fd.last = fence
	return fd.record(TickPresented, nil)
}

func (fd *frameDriver) InFlight() int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	n := 0
	for _, f := range fd.fences {
		if f != nil && !f.Signaled() {
			n++
		}
	}
	return n
}

func (fd *frameDriver) Targets() renderer.TargetSet {
	return fd.renderer.Targets()
}

func (fd *frameDriver) Stats() FrameStats {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.stats
}

func (fd *frameDriver) WaitIdle() error {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if err := fd.waitAll(); err != nil {
		return err
	}
	fd.renderer.WaitIdle()
	return nil
}

// rebuild drains every in-flight frame and rebuilds the target set at the requested extent.
// When the extent or format changed the camera aspect and every group pipeline follow.
// Caller must hold the mutex.
func (fd *frameDriver) rebuild() (TickResult, error) {
	if err := fd.waitAll(); err != nil {
		return TickFailed, err
	}

	prev := fd.renderer.Targets()
	targets, err := fd.renderer.RebuildTargets(fd.extent)
	if err != nil {
		if errors.Is(err, renderer.ErrExtentUnsupported) {
			if fd.verbose {
				log.Printf("engine: extent %dx%d unsupported, retrying next tick", fd.extent.Width, fd.extent.Height)
			}
			return TickSkippedResize, nil
		}
		return TickFailed, fmt.Errorf("engine: rebuild targets: %w", err)
	}
	fd.resizePending = false
	fd.stats.Rebuilds++

	if len(fd.fences) != targets.Count {
		fd.fences = make([]renderer.Fence, targets.Count)
	}

	if targets.Extent != prev.Extent {
		aspect := targets.Extent.Aspect()
		fd.scene.Camera().Update(func(cfg *camera.CameraConfig) {
			cfg.Aspect = aspect
		})
	}
	if targets.Extent != prev.Extent || targets.Format != prev.Format {
		if err := fd.scene.RecreatePipelines(targets.Format, targets.Viewport); err != nil {
			return TickFailed, fmt.Errorf("engine: recreate pipelines: %w", err)
		}
	}
	return TickPresented, nil
}

// classify turns an acquisition or submission error into a tick result.
// Out-of-date and unsupported-extent conditions schedule a rebuild; everything else is fatal.
// Caller must hold the mutex.
func (fd *frameDriver) classify(stage string, err error) (TickResult, error) {
	var result TickResult
	switch {
	case errors.Is(err, renderer.ErrExtentUnsupported):
		result = TickSkippedResize
	case errors.Is(err, renderer.ErrTargetsOutOfDate):
		result = TickSkippedOutOfDate
	default:
		return TickFailed, fmt.Errorf("engine: %s: %w", stage, err)
	}

	fd.scheduleRebuild()
	if fd.verbose {
		log.Printf("engine: %s: %v", stage, err)
	}
	return result, nil
}

// scheduleRebuild marks the target set for a rebuild, keeping the last requested extent or
// falling back to the current one. Caller must hold the mutex.
func (fd *frameDriver) scheduleRebuild() {
	if fd.extent.Empty() {
		fd.extent = fd.renderer.Targets().Extent
	}
	fd.resizePending = true
}

// waitAll blocks on every outstanding fence and clears them. Caller must hold the mutex.
func (fd *frameDriver) waitAll() error {
	for i, f := range fd.fences {
		if f == nil {
			continue
		}
		if err := f.Wait(); err != nil {
			return fmt.Errorf("engine: wait for target %d: %w", i, err)
		}
		fd.fences[i] = nil
	}
	fd.last = nil
	return nil
}

// record counts the outcome of a tick and passes it through.
func (fd *frameDriver) record(result TickResult, err error) (TickResult, error) {
	switch result {
	case TickPresented:
		fd.stats.Presented++
	case TickSkippedResize:
		fd.stats.SkippedResize++
	case TickSkippedOutOfDate:
		fd.stats.SkippedOutOfDate++
	}
	return result, err
}
