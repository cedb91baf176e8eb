package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFence struct{}

func (fakeFence) Wait() error    { return nil }
func (fakeFence) Signaled() bool { return true }

type fakeMesh struct{ label string }

func (m *fakeMesh) Label() string      { return m.label }
func (m *fakeMesh) IndexCount() uint32 { return 36 }
func (m *fakeMesh) Release()           {}

type fakeHandle struct {
	key  string
	desc pipeline.Descriptor
}

func (h *fakeHandle) Key() string                     { return h.key }
func (h *fakeHandle) Descriptor() pipeline.Descriptor { return h.desc }
func (h *fakeHandle) Pipeline() any                   { return nil }
func (h *fakeHandle) Release()                        {}

type fakeBackend struct {
	configured  []common.Extent
	configErr   error
	acquireErr  error
	suboptimal  bool
	held        bool
	discards    int
	submitted   []int
	presentMode PresentMode
	released    bool
}

func (b *fakeBackend) SurfaceFormat() wgpu.TextureFormat { return wgpu.TextureFormatBGRA8Unorm }
func (b *fakeBackend) SetPresentMode(mode PresentMode)   { b.presentMode = mode }

func (b *fakeBackend) ConfigureTargets(extent common.Extent, count int) error {
	if b.configErr != nil {
		return b.configErr
	}
	b.configured = append(b.configured, extent)
	return nil
}

func (b *fakeBackend) AcquireTarget() (bool, error) {
	if b.acquireErr != nil {
		return false, b.acquireErr
	}
	b.held = true
	return b.suboptimal, nil
}

func (b *fakeBackend) DiscardTarget() {
	if b.held {
		b.discards++
	}
	b.held = false
}

func (b *fakeBackend) SubmitTarget(slot int, sub *Submission, after Fence) (Fence, error) {
	b.held = false
	b.submitted = append(b.submitted, slot)
	return fakeFence{}, nil
}

func (b *fakeBackend) CreateRenderPipeline(key string, desc pipeline.Descriptor) (pipeline.Handle, error) {
	return &fakeHandle{key: key, desc: desc}, nil
}

func (b *fakeBackend) CreateMesh(m model.Model) (Mesh, error) {
	return &fakeMesh{label: m.Name()}, nil
}

func (b *fakeBackend) WaitIdle() {}
func (b *fakeBackend) Release()  { b.released = true }

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (*renderer, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	r := newRenderer(BackendTypeWGPU, append(options, withBackend(backend))...)
	return r, backend
}

func TestRebuildTargetsBumpsGeneration(t *testing.T) {
	r, backend := newTestRenderer(t)

	assert.False(t, r.Targets().Valid())
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, r.SurfaceFormat())

	first, err := r.RebuildTargets(common.Extent{Width: 800, Height: 600})
	require.NoError(t, err)
	assert.True(t, first.Valid())
	assert.Equal(t, uint64(1), first.Generation)
	assert.Equal(t, defaultTargetCount, first.Count)
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, first.Format)
	assert.Equal(t, float32(800), first.Viewport.Width)
	assert.Equal(t, float32(600), first.Viewport.Height)

	second, err := r.RebuildTargets(common.Extent{Width: 1024, Height: 768})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Generation)
	assert.Len(t, backend.configured, 2)
}

func TestRebuildTargetsRejectsEmptyExtent(t *testing.T) {
	r, backend := newTestRenderer(t)

	_, err := r.RebuildTargets(common.Extent{Width: 0, Height: 600})
	assert.ErrorIs(t, err, ErrExtentUnsupported)
	assert.Empty(t, backend.configured)
	assert.False(t, r.Targets().Valid())
}

func TestRebuildTargetsKeepsOldSetOnFailure(t *testing.T) {
	r, backend := newTestRenderer(t)
	built, err := r.RebuildTargets(common.Extent{Width: 10, Height: 10})
	require.NoError(t, err)

	backend.configErr = errors.New("device lost")
	_, err = r.RebuildTargets(common.Extent{Width: 20, Height: 20})
	require.Error(t, err)
	assert.Equal(t, built, r.Targets())
}

func TestAcquireRotatesSlots(t *testing.T) {
	r, backend := newTestRenderer(t, WithTargetCount(2))
	targets, err := r.RebuildTargets(common.Extent{Width: 10, Height: 10})
	require.NoError(t, err)

	var slots []int
	for range 5 {
		acq, acqErr := r.Acquire()
		require.NoError(t, acqErr)
		assert.Equal(t, targets.Generation, acq.Generation)
		slots = append(slots, acq.Target)
		_, subErr := r.Submit(acq, &Submission{Generation: targets.Generation}, nil)
		require.NoError(t, subErr)
	}
	assert.Equal(t, []int{0, 1, 0, 1, 0}, slots)
	assert.Equal(t, slots, backend.submitted)

	_, err = r.RebuildTargets(common.Extent{Width: 20, Height: 20})
	require.NoError(t, err)
	acq, err := r.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 0, acq.Target)
}

func TestAcquireBeforeBuildIsOutOfDate(t *testing.T) {
	r, _ := newTestRenderer(t)
	_, err := r.Acquire()
	assert.ErrorIs(t, err, ErrTargetsOutOfDate)
}

func TestAcquireReportsBackendErrors(t *testing.T) {
	r, backend := newTestRenderer(t)
	_, err := r.RebuildTargets(common.Extent{Width: 10, Height: 10})
	require.NoError(t, err)

	backend.suboptimal = true
	acq, err := r.Acquire()
	require.NoError(t, err)
	assert.True(t, acq.Suboptimal)

	backend.acquireErr = ErrTargetsOutOfDate
	_, err = r.Acquire()
	assert.ErrorIs(t, err, ErrTargetsOutOfDate)
	assert.Equal(t, 1, backend.discards)
}

func TestSubmitRejectsStaleGeneration(t *testing.T) {
	r, backend := newTestRenderer(t)
	old, err := r.RebuildTargets(common.Extent{Width: 10, Height: 10})
	require.NoError(t, err)

	acq, err := r.Acquire()
	require.NoError(t, err)

	_, err = r.Submit(acq, &Submission{Generation: old.Generation + 7}, nil)
	assert.ErrorIs(t, err, ErrTargetsOutOfDate)
	assert.Equal(t, 1, backend.discards)
	assert.Empty(t, backend.submitted)

	_, err = r.Submit(acq, &Submission{Generation: old.Generation}, nil)
	assert.ErrorIs(t, err, ErrTargetsOutOfDate)
}

func TestSubmitAfterRebuildIsOutOfDate(t *testing.T) {
	r, backend := newTestRenderer(t)
	old, err := r.RebuildTargets(common.Extent{Width: 10, Height: 10})
	require.NoError(t, err)

	acq, err := r.Acquire()
	require.NoError(t, err)
	_, err = r.RebuildTargets(common.Extent{Width: 30, Height: 30})
	require.NoError(t, err)

	_, err = r.Submit(acq, &Submission{Generation: old.Generation}, nil)
	assert.ErrorIs(t, err, ErrTargetsOutOfDate)
	assert.Empty(t, backend.submitted)
}

func TestCreatePipelineKeysAreUnique(t *testing.T) {
	r, _ := newTestRenderer(t)
	targets, err := r.RebuildTargets(common.Extent{Width: 10, Height: 10})
	require.NoError(t, err)

	desc := pipeline.NewDescriptor("cubes", shader.SimpleProgramPair(), targets.Format, targets.Viewport)
	a, err := r.CreatePipeline(desc)
	require.NoError(t, err)
	b, err := r.CreatePipeline(desc)
	require.NoError(t, err)

	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, desc, a.Descriptor())

	_, err = r.CreatePipeline(pipeline.Descriptor{Label: "broken"})
	assert.Error(t, err)
}

func TestCreateMeshValidates(t *testing.T) {
	r, _ := newTestRenderer(t)

	mesh, err := r.CreateMesh(model.Cube("cube", 1))
	require.NoError(t, err)
	assert.Equal(t, "cube", mesh.Label())

	_, err = r.CreateMesh(model.NewModel(model.WithName("empty")))
	assert.ErrorIs(t, err, model.ErrEmptyGeometry)
}

func TestReleaseDiscardsHeldTarget(t *testing.T) {
	r, backend := newTestRenderer(t)
	_, err := r.RebuildTargets(common.Extent{Width: 10, Height: 10})
	require.NoError(t, err)
	_, err = r.Acquire()
	require.NoError(t, err)

	r.Release()
	assert.Equal(t, 1, backend.discards)
	assert.True(t, backend.released)
	assert.False(t, r.Targets().Valid())
}

func TestSurfaceDefaults(t *testing.T) {
	format, alpha, err := surfaceDefaults(wgpu.SurfaceCapabilities{
		Formats:    []wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatRGBA8Unorm},
		AlphaModes: []wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque},
	})
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, format)
	assert.Equal(t, wgpu.CompositeAlphaModeOpaque, alpha)

	_, _, err = surfaceDefaults(wgpu.SurfaceCapabilities{
		Formats: []wgpu.TextureFormat{wgpu.TextureFormatBGRA8Unorm},
	})
	assert.ErrorContains(t, err, "alpha modes")

	_, _, err = surfaceDefaults(wgpu.SurfaceCapabilities{
		AlphaModes: []wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque},
	})
	assert.ErrorContains(t, err, "formats")
}
