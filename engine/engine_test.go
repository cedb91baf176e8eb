package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindow runs the update callback a fixed number of times, or until closed.
// beforeUpdate runs ahead of each iteration to simulate window events.
type fakeWindow struct {
	extent     common.Extent
	iterations int
	closed     int

	beforeUpdate func(i int)

	onUpdate func()
	onResize func(width, height int)
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetUpdateCallback(callback func())                  { w.onUpdate = callback }
func (w *fakeWindow) SetResizeCallback(callback func(width, height int)) { w.onResize = callback }
func (w *fakeWindow) SetScrollCallback(func(delta float32))              {}
func (w *fakeWindow) SetKeyDownCallback(func(keyCode uint32))            {}
func (w *fakeWindow) SetKeyUpCallback(func(keyCode uint32))              {}
func (w *fakeWindow) SetMouseMoveCallback(func(x, y int32))              {}
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor         { return nil }
func (w *fakeWindow) IsRunning() bool                                    { return w.closed == 0 }
func (w *fakeWindow) SetCursorCaptured(bool)                             {}
func (w *fakeWindow) CursorCaptured() bool                               { return false }
func (w *fakeWindow) Extent() common.Extent                              { return w.extent }
func (w *fakeWindow) Width() int                                         { return int(w.extent.Width) }
func (w *fakeWindow) Height() int                                        { return int(w.extent.Height) }

func (w *fakeWindow) SetMouseButtonCallback(func(window.MouseButton, bool, int32, int32)) {}

func (w *fakeWindow) Close() error {
	w.closed++
	return nil
}

func (w *fakeWindow) ProcessMessages() {
	for i := 0; i < w.iterations && w.IsRunning(); i++ {
		if w.beforeUpdate != nil {
			w.beforeUpdate(i)
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
	}
}

func newTestEngine(t *testing.T, iterations int, options ...EngineBuilderOption) (Engine, *fakeWindow, *fakeRenderer) {
	t.Helper()
	win := &fakeWindow{extent: testExtent, iterations: iterations}
	r := newFakeRenderer()
	e := NewEngine(append([]EngineBuilderOption{WithWindow(win), WithRenderer(r)}, options...)...)
	t.Cleanup(e.Release)
	return e, win, r
}

func TestEngineRunPresentsEveryIteration(t *testing.T) {
	e, win, r := newTestEngine(t, 10)

	var ticks int
	e.SetTickCallback(func(dt float32, s scene.Scene) {
		assert.GreaterOrEqual(t, dt, float32(0))
		assert.Same(t, e.Scene(), s)
		ticks++
	})

	require.NoError(t, e.Run())
	assert.Equal(t, 10, ticks)
	assert.Len(t, r.submitted, 10)
	assert.Equal(t, testExtent, r.rebuilds[0])
	assert.Equal(t, 1, win.closed)
	assert.Zero(t, e.FrameDriver().InFlight())
	assert.True(t, r.idle)
}

func TestEngineCreatesSceneFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Scene.Name = "from-config"
	cfg.Scene.FovY = 90
	e, _, _ := newTestEngine(t, 0, WithConfig(cfg))

	assert.Equal(t, "from-config", e.Scene().Name())
	assert.InDelta(t, 1.5707963, e.Scene().Camera().Config().FovY, 1e-6)
}

func TestEngineConfigEngineSection(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Profiling = true
	cfg.Engine.FrameLimit = 50
	e, _, _ := newTestEngine(t, 0, WithConfig(cfg), WithProfiling(false))

	eng := e.(*engine)
	assert.False(t, eng.profilingEnabled)
	assert.Equal(t, 20*time.Millisecond, eng.renderFrameLimit)
}

func TestEngineResizeCallbackRebuildsTargets(t *testing.T) {
	e, win, r := newTestEngine(t, 4)
	win.beforeUpdate = func(i int) {
		switch i {
		case 1:
			win.onResize(0, 0)
		case 2:
			win.onResize(1024, 768)
		}
	}

	require.NoError(t, e.Run())
	assert.Equal(t, []common.Extent{testExtent, {}, {Width: 1024, Height: 768}}, r.rebuilds)
	assert.Len(t, r.submitted, 3)
	assert.Equal(t, uint64(1), e.FrameDriver().Stats().SkippedResize)
	assert.InDelta(t, 1024.0/768.0, e.Scene().Camera().Config().Aspect, 1e-6)
}

func TestEngineFatalFrameStopsLoop(t *testing.T) {
	boom := errors.New("device lost")
	e, win, r := newTestEngine(t, 10)
	win.beforeUpdate = func(i int) {
		if i == 3 {
			r.acquireErrs = []error{boom}
		}
	}

	err := e.Run()
	assert.ErrorIs(t, err, boom)
	assert.Len(t, r.submitted, 3)
	assert.Equal(t, 1, win.closed)
}

func TestEngineQuitFromTickCallback(t *testing.T) {
	e, win, r := newTestEngine(t, 10)
	ticks := 0
	e.SetTickCallback(func(float32, scene.Scene) {
		ticks++
		if ticks == 2 {
			e.Quit()
			e.Quit()
		}
	})

	require.NoError(t, e.Run())
	assert.Equal(t, 2, ticks)
	assert.Len(t, r.submitted, 2)
	assert.Equal(t, 1, win.closed)
}

func TestEngineProfilerSample(t *testing.T) {
	e, _, _ := newTestEngine(t, 3, WithProfiling(true))
	require.NoError(t, e.Run())

	sample := e.(*engine).sample()
	assert.Equal(t, uint64(3), sample.Presented)
	assert.Equal(t, uint64(1), sample.SubmissionBuilds)
}

func TestFrameDuration(t *testing.T) {
	assert.Zero(t, frameDuration(0))
	assert.Zero(t, frameDuration(-10))
	assert.Equal(t, 10*time.Millisecond, frameDuration(100))
}
