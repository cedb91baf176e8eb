package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Descriptor is everything the renderer needs to build one render pipeline: the fixed program
// pair, the colour target format it must be compatible with, the viewport it rasterizes into
// and the fixed-function state. A render group owns exactly one Descriptor.
type Descriptor struct {
	Label    string
	Programs shader.ProgramPair

	// Format is the colour target format; it must match the presentation targets.
	Format   wgpu.TextureFormat
	Viewport common.Viewport

	DepthTestEnabled  bool
	DepthWriteEnabled bool
	BlendEnabled      bool
	CullMode          wgpu.CullMode
	FrontFace         wgpu.FrontFace
	Topology          wgpu.PrimitiveTopology
	WriteMask         wgpu.ColorWriteMask
	BlendState        *wgpu.BlendState
}

// NewDescriptor creates a Descriptor with the engine defaults (depth test and write on, back-face
// culling of counter-clockwise front faces, triangle lists, alpha blending off) and applies opts.
//
// Parameters:
//   - label: a unique identifier used for GPU object labels
//   - programs: the vertex and fragment program pair
//   - format: the colour target format
//   - viewport: the viewport rectangle
//   - opts: a variadic list of PipelineBuilderOption functions to configure the descriptor
//
// Returns:
//   - Descriptor: the configured descriptor
func NewDescriptor(label string, programs shader.ProgramPair, format wgpu.TextureFormat, viewport common.Viewport, opts ...PipelineBuilderOption) Descriptor {
	d := Descriptor{
		Label:             label,
		Programs:          programs,
		Format:            format,
		Viewport:          viewport,
		DepthTestEnabled:  true,
		DepthWriteEnabled: true,
		CullMode:          wgpu.CullModeBack,
		FrontFace:         wgpu.FrontFaceCCW,
		Topology:          wgpu.PrimitiveTopologyTriangleList,
		WriteMask:         wgpu.ColorWriteMaskAll,
		BlendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Retarget returns a copy of d bound to a new colour format and viewport.
// Everything else, including the program pair, is unchanged.
func (d Descriptor) Retarget(format wgpu.TextureFormat, viewport common.Viewport) Descriptor {
	d.Format = format
	d.Viewport = viewport
	return d
}

// Validate reports whether the descriptor can be turned into a pipeline.
//
// Returns:
//   - error: a descriptive error, nil if the descriptor is complete
func (d Descriptor) Validate() error {
	if err := d.Programs.Validate(); err != nil {
		return fmt.Errorf("pipeline %s: %w", d.Label, err)
	}
	if d.Format == wgpu.TextureFormatUndefined {
		return fmt.Errorf("pipeline %s: colour target format is undefined", d.Label)
	}
	if d.Viewport.Width <= 0 || d.Viewport.Height <= 0 {
		return fmt.Errorf("pipeline %s: viewport %vx%v is empty", d.Label, d.Viewport.Width, d.Viewport.Height)
	}
	return nil
}

// Handle is a built render pipeline. Handles are owned by the render group that requested them
// and are released when the group recreates its pipeline.
type Handle interface {
	// Key returns a unique identifier for this build of the pipeline.
	//
	// Returns:
	//   - string: the pipeline key
	Key() string

	// Descriptor returns the descriptor the pipeline was built from.
	//
	// Returns:
	//   - Descriptor: the source descriptor
	Descriptor() Descriptor

	// Pipeline returns the underlying backend pipeline object (a *wgpu.RenderPipeline for the wgpu backend).
	// The caller is responsible for type asserting the returned value.
	//
	// Returns:
	//   - any: the backend pipeline object
	Pipeline() any

	// Release frees the backend pipeline. Safe to call more than once.
	Release()
}
