package renderer

import (
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-scene/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

const defaultTargetCount = 3

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	targets  TargetSet
	frame    uint64
	acquired *Acquisition

	pipelineSeq uint64

	// Pre-creation config collected from builder options
	targetCount          int
	clearColor           wgpu.Color
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns the presentation targets and hands them out in rotation. Every rebuild of the
// targets bumps the TargetSet generation; work recorded against an older generation is rejected
// with ErrTargetsOutOfDate instead of being presented. The GPU specifics live behind a RendererBackend.
type Renderer interface {
	// Targets returns the current target set. The zero TargetSet means no targets have been built yet.
	//
	// Returns:
	//   - TargetSet: the current target set
	Targets() TargetSet

	// SurfaceFormat returns the colour format targets are built with. Available before the first
	// RebuildTargets so groups can be created up front.
	SurfaceFormat() wgpu.TextureFormat

	// RebuildTargets reconfigures the surface and every per-target resource for extent.
	// On success the returned set carries a new generation and frame slot rotation restarts at 0.
	//
	// Parameters:
	//   - extent: the new surface size in pixels
	//
	// Returns:
	//   - TargetSet: the rebuilt target set
	//   - error: ErrExtentUnsupported for an empty or rejected extent, any other error is fatal
	RebuildTargets(extent common.Extent) (TargetSet, error)

	// Acquire hands out the next presentation target. A previous acquisition that was never submitted
	// is discarded first.
	//
	// Returns:
	//   - Acquisition: the acquired target index and its generation
	//   - error: ErrTargetsOutOfDate if the targets must be rebuilt, any other error is fatal
	Acquire() (Acquisition, error)

	// Submit records sub into the acquired target, submits it to the GPU once after has signalled
	// and presents the result.
	//
	// Parameters:
	//   - acq: the acquisition returned by Acquire
	//   - sub: the work to record
	//   - after: the fence of the previously submitted frame, or nil
	//
	// Returns:
	//   - Fence: the completion signal for this frame
	//   - error: ErrTargetsOutOfDate if acq or sub belong to an older generation, any other error is fatal
	Submit(acq Acquisition, sub *Submission, after Fence) (Fence, error)

	// CreatePipeline builds a render pipeline for desc. Each call produces a new, uniquely keyed handle.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - pipeline.Handle: the created pipeline
	//   - error: an error if the descriptor is invalid or creation fails
	CreatePipeline(desc pipeline.Descriptor) (pipeline.Handle, error)

	// CreateMesh uploads the geometry of m.
	//
	// Parameters:
	//   - m: the model to upload
	//
	// Returns:
	//   - Mesh: the uploaded mesh
	//   - error: an error if the geometry is invalid or the upload fails
	CreateMesh(m model.Model) (Mesh, error)

	// SetPresentMode changes the present mode. Takes effect on the next RebuildTargets.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// WaitIdle blocks until the GPU has finished all submitted work.
	WaitIdle()

	// Release frees every resource owned by the renderer. The renderer must not be used afterwards.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer presenting into win. Initialization failures are fatal and panic.
//
// Parameters:
//   - backendType: the GPU backend to create
//   - win: the window whose surface is rendered into
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the newly created renderer
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) Renderer {
	r := newRenderer(backendType, options...)
	if r.backend == nil {
		switch backendType {
		case BackendTypeWGPU:
			r.backend = newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter, r.clearColor)
		default:
			panic(fmt.Sprintf("unsupported renderer backend type: %d", backendType))
		}
	}
	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	return r
}

func newRenderer(backendType RendererBackendType, options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		targetCount: defaultTargetCount,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *renderer) Targets() TargetSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.targets
}

func (r *renderer) SurfaceFormat() wgpu.TextureFormat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.SurfaceFormat()
}

func (r *renderer) RebuildTargets(extent common.Extent) (TargetSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if extent.Empty() {
		return r.targets, ErrExtentUnsupported
	}
	if r.acquired != nil {
		r.backend.DiscardTarget()
		r.acquired = nil
	}
	if err := r.backend.ConfigureTargets(extent, r.targetCount); err != nil {
		return r.targets, err
	}

	r.targets = TargetSet{
		Extent:     extent,
		Count:      r.targetCount,
		Format:     r.backend.SurfaceFormat(),
		Viewport:   common.FullViewport(extent),
		Generation: r.targets.Generation + 1,
	}
	r.frame = 0
	log.Printf("renderer: rebuilt %d targets at %dx%d (generation %d)", r.targets.Count, extent.Width, extent.Height, r.targets.Generation)
	return r.targets, nil
}

func (r *renderer) Acquire() (Acquisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.targets.Valid() {
		return Acquisition{}, ErrTargetsOutOfDate
	}
	if r.acquired != nil {
		r.backend.DiscardTarget()
		r.acquired = nil
	}

	suboptimal, err := r.backend.AcquireTarget()
	if err != nil {
		return Acquisition{}, err
	}

	acq := Acquisition{
		Target:     int(r.frame % uint64(r.targets.Count)),
		Generation: r.targets.Generation,
		Suboptimal: suboptimal,
	}
	r.frame++
	r.acquired = &acq
	return acq, nil
}

func (r *renderer) Submit(acq Acquisition, sub *Submission, after Fence) (Fence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.acquired == nil || *r.acquired != acq {
		return nil, fmt.Errorf("submit of target %d without a matching acquisition: %w", acq.Target, ErrTargetsOutOfDate)
	}
	r.acquired = nil

	if acq.Generation != r.targets.Generation || sub.Generation != r.targets.Generation {
		r.backend.DiscardTarget()
		return nil, ErrTargetsOutOfDate
	}

	fence, err := r.backend.SubmitTarget(acq.Target, sub, after)
	if err != nil {
		return nil, fmt.Errorf("failed to submit target %d: %w", acq.Target, err)
	}
	return fence, nil
}

func (r *renderer) CreatePipeline(desc pipeline.Descriptor) (pipeline.Handle, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.pipelineSeq++
	key := fmt.Sprintf("%s#%d", desc.Label, r.pipelineSeq)
	r.mu.Unlock()

	handle, err := r.backend.CreateRenderPipeline(key, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline %s: %w", key, err)
	}
	return handle, nil
}

func (r *renderer) CreateMesh(m model.Model) (Mesh, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	mesh, err := r.backend.CreateMesh(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create mesh %s: %w", m.Name(), err)
	}
	return mesh, nil
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) WaitIdle() {
	r.backend.WaitIdle()
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.acquired != nil {
		r.backend.DiscardTarget()
		r.acquired = nil
	}
	r.backend.WaitIdle()
	r.backend.Release()
	r.targets = TargetSet{}
}
