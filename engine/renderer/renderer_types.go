package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrTargetsOutOfDate reports that the presentation targets no longer match the surface.
	// The caller should rebuild the target set and retry on a later frame.
	ErrTargetsOutOfDate = errors.New("renderer: target set is out of date")

	// ErrExtentUnsupported reports that the surface cannot be configured at the requested extent
	// (a minimized window, for example). The caller should retry the rebuild later.
	ErrExtentUnsupported = errors.New("renderer: extent is not supported by the surface")
)

// TargetSet describes the rotating set of presentation targets and the resources shared by them.
// Count is fixed for a given Generation; every rebuild produces a new Generation.
type TargetSet struct {
	Extent     common.Extent
	Count      int
	Format     wgpu.TextureFormat
	Viewport   common.Viewport
	Generation uint64
}

// Valid reports whether the set has been built and can be drawn into.
func (t TargetSet) Valid() bool {
	return t.Generation > 0 && t.Count > 0 && !t.Extent.Empty()
}

// Acquisition identifies the presentation target handed out by Renderer.Acquire.
type Acquisition struct {
	// Target is the index of the acquired target, in [0, TargetSet.Count).
	Target int

	// Generation is the target set generation the index belongs to.
	Generation uint64

	// Suboptimal is set when the target is still usable but the surface would prefer a rebuild.
	Suboptimal bool
}

// Fence is the completion signal of one submission.
type Fence interface {
	// Wait blocks until the submission has completed.
	//
	// Returns:
	//   - error: an error if the backend failed while waiting
	Wait() error

	// Signaled reports whether the submission is known to have completed, without blocking.
	//
	// Returns:
	//   - bool: true once the work is done
	Signaled() bool
}

// Mesh is immutable geometry uploaded to the GPU.
type Mesh interface {
	// Label returns the debug label of the mesh.
	Label() string

	// IndexCount returns the number of indices drawn per instance.
	IndexCount() uint32

	// Release frees the GPU buffers.
	Release()
}

// DrawBatch is the cached draw work of one object: its mesh plus the serialized per-instance data.
// Batches are immutable once built; a rebuild produces a new batch with a higher Generation.
type DrawBatch struct {
	// ObjectID identifies the owning object for the lifetime of the process.
	ObjectID uint64
	Label    string
	Mesh     Mesh

	// Instances holds InstanceCount tightly packed per-instance records.
	Instances     []byte
	InstanceCount uint32

	// Generation increases on every rebuild of the owning object's batch.
	Generation uint64
}

// Draw pairs a batch with the pipeline it is drawn with.
type Draw struct {
	Pipeline pipeline.Handle
	Batch    *DrawBatch
}

// Submission is the ordered work recorded into one presentation target.
type Submission struct {
	Target     int
	Generation uint64

	// Camera is the serialized camera uniform bound at group 0.
	Camera []byte

	// Draws are grouped by pipeline, in submission order.
	Draws []Draw
}
