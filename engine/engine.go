package engine

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/profiler"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/window"
)

// engine implements the Engine interface.
// Everything runs on the thread that calls Run: window events, the tick callback and the frame driver.
type engine struct {
	window   window.Window
	renderer renderer.Renderer
	scene    scene.Scene
	driver   FrameDriver
	config   config.Config

	profiler         *profiler.Profiler
	profilingEnabled bool
	verboseFrames    bool

	tickCallback     func(deltaTime float32, s scene.Scene)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	lastTick  time.Time
	err       error
	quitting  atomic.Bool
	closeOnce sync.Once
}

// Engine is the main entry point for the engine.
// It owns the host loop: one window poll, one tick callback and one FrameDriver tick per iteration.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer presenting into the window.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance
	Renderer() renderer.Renderer

	// Scene returns the scene drawn every frame.
	//
	// Returns:
	//   - scene.Scene: the scene instance
	Scene() scene.Scene

	// FrameDriver returns the frame pacing driver.
	//
	// Returns:
	//   - FrameDriver: the driver instance
	FrameDriver() FrameDriver

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickCallback registers the function called once per loop iteration, before the frame is drawn.
	// Use this for input processing, animation and any other scene mutation.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds and the scene
	SetTickCallback(callback func(deltaTime float32, s scene.Scene))

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run runs the host loop until the window closes, Quit is called or a frame fails fatally.
	// It must be called from the thread that created the window.
	//
	// Returns:
	//   - error: the fatal frame error, or nil on a normal shutdown
	Run() error

	// Quit stops the loop at the start of the next iteration. Safe to call from any goroutine
	// and more than once.
	Quit()

	// Release frees the scene and the renderer. The engine must not be used afterwards.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options.
// Any window, renderer or scene not supplied through an option is created from the engine's
// configuration (config.Default unless WithConfig is given).
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		config:   config.Default(),
		profiler: profiler.NewProfiler(),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window == nil {
		e.window = window.NewWindow(e.config.WindowOptions()...)
	}
	if e.renderer == nil {
		e.renderer = renderer.NewRenderer(renderer.BackendTypeWGPU, e.window, e.config.RendererOptions()...)
	}
	if e.scene == nil {
		e.scene = scene.NewScene(e.config.Scene.Name, e.renderer, e.config.SceneOptions()...)
	}

	e.driver = NewFrameDriver(e.renderer, e.scene,
		WithVerboseFrameLogging(e.verboseFrames),
		WithInitialExtent(e.window.Extent()),
	)

	e.window.SetResizeCallback(func(width, height int) {
		e.driver.RequestResize(common.Extent{
			Width:  uint32(max(width, 0)),
			Height: uint32(max(height, 0)),
		})
	})

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) FrameDriver() FrameDriver {
	return e.driver
}

func (e *engine) Run() error {
	e.lastTick = time.Now()
	e.window.SetUpdateCallback(e.frame)
	e.window.ProcessMessages()
	e.closeWindow()

	if err := e.driver.WaitIdle(); err != nil && e.err == nil {
		e.err = err
	}
	return e.err
}

func (e *engine) Quit() {
	e.quitting.Store(true)
}

func (e *engine) Release() {
	e.scene.Release()
	e.renderer.Release()
}

// frame runs one loop iteration. A fatal tick error is kept for Run and closes the window.
func (e *engine) frame() {
	if e.quitting.Load() {
		e.closeWindow()
		return
	}

	start := time.Now()
	dt := float32(start.Sub(e.lastTick).Seconds())
	e.lastTick = start

	if e.tickCallback != nil {
		e.tickCallback(dt, e.scene)
	}

	if _, err := e.driver.Tick(); err != nil {
		log.Printf("engine: frame failed: %v", err)
		e.err = err
		e.closeWindow()
		return
	}

	if e.profilingEnabled {
		e.profiler.Tick(e.sample())
	}

	// Frame rate limiting
	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// sample collects the profiler counters from the frame driver and the scene.
func (e *engine) sample() profiler.Sample {
	frames := e.driver.Stats()
	stats := e.scene.Stats()
	return profiler.Sample{
		Presented:        frames.Presented,
		Skipped:          frames.SkippedResize + frames.SkippedOutOfDate,
		CameraBuilds:     stats.CameraBuilds,
		SubmissionBuilds: stats.SubmissionBuilds,
		BatchListBuilds:  stats.BatchListBuilds,
		DrawBatchBuilds:  stats.DrawBatchBuilds,
		Instances:        stats.Instances,
	}
}

// closeWindow closes the window exactly once.
func (e *engine) closeWindow() {
	e.closeOnce.Do(func() {
		if err := e.window.Close(); err != nil {
			log.Printf("engine: close window: %v", err)
		}
	})
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickCallback registers the function called each loop iteration.
func (e *engine) SetTickCallback(callback func(deltaTime float32, s scene.Scene)) {
	e.tickCallback = callback
}

// SetRenderFrameLimit sets an optional frame rate cap.
// Pass 0 to uncap the loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

// frameDuration converts a frame rate cap into a minimum frame duration; 0 means uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
