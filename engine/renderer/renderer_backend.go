package renderer

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing. This is the default.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// RendererBackend is the GPU API specific half of the Renderer. The Renderer owns target set
// bookkeeping (generations, slot rotation, out-of-date checks); the backend owns GPU objects.
type RendererBackend interface {
	// SurfaceFormat returns the colour format of the presentation surface.
	//
	// Returns:
	//   - wgpu.TextureFormat: the surface format
	SurfaceFormat() wgpu.TextureFormat

	// SetPresentMode sets the present mode used by the next ConfigureTargets.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// ConfigureTargets (re)configures the surface, the shared depth buffer and the per-slot resources.
	//
	// Parameters:
	//   - extent: the new surface size in pixels
	//   - count: the number of frame slots
	//
	// Returns:
	//   - error: ErrExtentUnsupported if the surface cannot take extent, any other error is fatal
	ConfigureTargets(extent common.Extent, count int) error

	// AcquireTarget acquires the next surface texture and holds it until SubmitTarget or DiscardTarget.
	//
	// Returns:
	//   - bool: true if the acquisition is suboptimal
	//   - error: ErrTargetsOutOfDate if the surface must be reconfigured, any other error is fatal
	AcquireTarget() (bool, error)

	// DiscardTarget drops a held surface texture without presenting it.
	DiscardTarget()

	// SubmitTarget records sub into the held surface texture using slot's resources, submits it
	// after the work guarded by after, and presents the texture.
	//
	// Parameters:
	//   - slot: the frame slot whose uniform and instance buffers are used
	//   - sub: the submission to record
	//   - after: the previous frame's fence, or nil
	//
	// Returns:
	//   - Fence: the completion signal of the submitted work
	//   - error: an error if recording or submission failed
	SubmitTarget(slot int, sub *Submission, after Fence) (Fence, error)

	// CreateRenderPipeline builds a render pipeline from desc.
	//
	// Parameters:
	//   - key: a unique key for the new pipeline
	//   - desc: the validated descriptor
	//
	// Returns:
	//   - pipeline.Handle: the created pipeline
	//   - error: an error if pipeline creation fails
	CreateRenderPipeline(key string, desc pipeline.Descriptor) (pipeline.Handle, error)

	// CreateMesh uploads validated geometry.
	//
	// Parameters:
	//   - m: the model to upload
	//
	// Returns:
	//   - Mesh: the uploaded mesh
	//   - error: an error if buffer creation fails
	CreateMesh(m model.Model) (Mesh, error)

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle()

	// Release frees every GPU object owned by the backend.
	Release()
}
