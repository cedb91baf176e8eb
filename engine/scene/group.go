package scene

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// BatchList is the draw work of one render group: its pipeline plus the batch of every object, in object-name order.
type BatchList struct {
	Pipeline pipeline.Handle
	Batches  []*renderer.DrawBatch
}

type renderGroup struct {
	mu *sync.Mutex

	name   string
	device Device

	descriptor pipeline.Descriptor
	pipeline   pipeline.Handle

	objects map[string]*drawableObject
	batches common.Memo[BatchList]

	onChange func()
}

// RenderGroup is a set of objects drawn with one shared pipeline. It caches the ordered list of its
// objects' batches until an object is added, removed, replaced or invalidated, or the pipeline is rebuilt.
type RenderGroup interface {
	// Name returns the group name, unique within its scene.
	Name() string

	// Descriptor returns the descriptor the current pipeline was built from.
	Descriptor() pipeline.Descriptor

	// Pipeline returns the current pipeline handle.
	Pipeline() pipeline.Handle

	// CreateObject uploads m and registers it under name, replacing any object of the same name.
	//
	// Parameters:
	//   - name: the object name
	//   - m: the geometry to draw
	//
	// Returns:
	//   - DrawableObject: the new object
	//   - error: an error if the geometry is invalid or cannot be uploaded
	CreateObject(name string, m model.Model) (DrawableObject, error)

	// Object looks up an object by name.
	//
	// Parameters:
	//   - name: the object name
	//
	// Returns:
	//   - DrawableObject: the object
	//   - error: ErrUnknownObject if no object has that name
	Object(name string) (DrawableObject, error)

	// RemoveObject unregisters an object and releases its mesh.
	//
	// Parameters:
	//   - name: the object name
	//
	// Returns:
	//   - error: ErrUnknownObject if no object has that name
	RemoveObject(name string) error

	// Objects returns the object names in ascending order.
	Objects() []string

	// RecreatePipeline rebuilds the pipeline for a new target format and viewport. Object batches stay valid;
	// the batch list is invalidated because it carries the pipeline handle.
	//
	// Parameters:
	//   - format: the new render target format
	//   - viewport: the new viewport
	//
	// Returns:
	//   - error: an error if the pipeline cannot be built; the old pipeline is kept in that case
	RecreatePipeline(format wgpu.TextureFormat, viewport common.Viewport) error

	// BatchList returns the cached batch list, rebuilding stale object batches on the way.
	// The list must be treated as read-only.
	BatchList() BatchList

	// Valid reports whether the batch list cache is currently valid.
	Valid() bool

	// Builds returns how many times the batch list has been rebuilt.
	Builds() uint64
}

var _ RenderGroup = &renderGroup{}

func newRenderGroup(name string, device Device, desc pipeline.Descriptor, onChange func()) (*renderGroup, error) {
	handle, err := device.CreatePipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", name, err)
	}
	return &renderGroup{
		mu:         &sync.Mutex{},
		name:       name,
		device:     device,
		descriptor: desc,
		pipeline:   handle,
		objects:    make(map[string]*drawableObject),
		onChange:   onChange,
	}, nil
}

func (g *renderGroup) Name() string {
	return g.name
}

func (g *renderGroup) Descriptor() pipeline.Descriptor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.descriptor
}

func (g *renderGroup) Pipeline() pipeline.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pipeline
}

func (g *renderGroup) CreateObject(name string, m model.Model) (DrawableObject, error) {
	mesh, err := g.device.CreateMesh(m)
	if err != nil {
		return nil, fmt.Errorf("object %q in group %q: %w", name, g.name, err)
	}
	obj := newDrawableObject(name, m, mesh, g.invalidate)

	g.mu.Lock()
	old := g.objects[name]
	g.objects[name] = obj
	g.mu.Unlock()

	if old != nil {
		old.detach()
		old.release()
	}
	g.invalidate()
	return obj, nil
}

func (g *renderGroup) Object(name string) (DrawableObject, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	obj, ok := g.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in group %q", ErrUnknownObject, name, g.name)
	}
	return obj, nil
}

func (g *renderGroup) RemoveObject(name string) error {
	g.mu.Lock()
	obj, ok := g.objects[name]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q in group %q", ErrUnknownObject, name, g.name)
	}
	delete(g.objects, name)
	g.mu.Unlock()

	obj.detach()
	obj.release()
	g.invalidate()
	return nil
}

func (g *renderGroup) Objects() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return sortedKeys(g.objects)
}

func (g *renderGroup) RecreatePipeline(format wgpu.TextureFormat, viewport common.Viewport) error {
	g.mu.Lock()
	desc := g.descriptor.Retarget(format, viewport)
	g.mu.Unlock()

	handle, err := g.device.CreatePipeline(desc)
	if err != nil {
		return fmt.Errorf("group %q: %w", g.name, err)
	}

	g.mu.Lock()
	old := g.pipeline
	g.descriptor = desc
	g.pipeline = handle
	g.mu.Unlock()

	if old != nil {
		old.Release()
	}
	g.invalidate()
	return nil
}

func (g *renderGroup) BatchList() BatchList {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batches.Get(g.buildBatchList)
}

func (g *renderGroup) Valid() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batches.Valid()
}

func (g *renderGroup) Builds() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batches.Builds()
}

// buildBatchList collects every object's batch in name order. Caller must hold the mutex.
func (g *renderGroup) buildBatchList() BatchList {
	names := sortedKeys(g.objects)
	batches := make([]*renderer.DrawBatch, 0, len(names))
	for _, name := range names {
		batches = append(batches, g.objects[name].DrawBatch())
	}
	return BatchList{
		Pipeline: g.pipeline,
		Batches:  batches,
	}
}

// staleObjects returns the objects whose draw batch needs a rebuild.
func (g *renderGroup) staleObjects() []*drawableObject {
	g.mu.Lock()
	defer g.mu.Unlock()
	var stale []*drawableObject
	for _, name := range sortedKeys(g.objects) {
		if obj := g.objects[name]; obj.stale() {
			stale = append(stale, obj)
		}
	}
	return stale
}

// drawBatchBuilds sums the batch rebuild counters of the current objects.
func (g *renderGroup) drawBatchBuilds() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total uint64
	for _, obj := range g.objects {
		total += obj.Builds()
	}
	return total
}

// invalidate marks the batch list stale and notifies the scene outside the lock.
func (g *renderGroup) invalidate() {
	g.mu.Lock()
	g.batches.Invalidate()
	hook := g.onChange
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func (g *renderGroup) detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = nil
}

// release frees the pipeline and every object mesh.
func (g *renderGroup) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, obj := range g.objects {
		obj.detach()
		obj.release()
	}
	g.objects = make(map[string]*drawableObject)
	g.batches.Invalidate()
	if g.pipeline != nil {
		g.pipeline.Release()
		g.pipeline = nil
	}
}
