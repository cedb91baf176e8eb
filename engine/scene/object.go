package scene

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
)

// objectIDs hands out process-unique object IDs. The renderer keys its per-slot instance buffers on them,
// so a replaced object never inherits the buffers of its predecessor.
var objectIDs atomic.Uint64

type drawableObject struct {
	mu *sync.Mutex

	id    uint64
	name  string
	model model.Model
	mesh  renderer.Mesh

	instances map[string]*instance
	batch     common.Memo[*renderer.DrawBatch]

	onChange func()
}

// DrawableObject is one mesh drawn once per registered instance. It caches its draw batch until an
// instance is added, removed, replaced or edited.
type DrawableObject interface {
	// ID returns the process-unique identifier of the object.
	ID() uint64

	// Name returns the object name, unique within its group.
	Name() string

	// Model returns the geometry the object was created from.
	Model() model.Model

	// CreateInstance registers a new instance with the default transform under name, replacing any
	// instance of the same name, and invalidates the draw batch.
	//
	// Parameters:
	//   - name: the instance name
	//
	// Returns:
	//   - Instance: the mutable instance handle
	CreateInstance(name string) Instance

	// Instance looks up an instance by name.
	//
	// Parameters:
	//   - name: the instance name
	//
	// Returns:
	//   - Instance: the instance
	//   - error: ErrUnknownInstance if no instance has that name
	Instance(name string) (Instance, error)

	// RemoveInstance unregisters an instance and invalidates the draw batch.
	//
	// Parameters:
	//   - name: the instance name
	//
	// Returns:
	//   - error: ErrUnknownInstance if no instance has that name
	RemoveInstance(name string) error

	// Instances returns the instance names in ascending order.
	Instances() []string

	// InstanceCount returns the number of registered instances.
	InstanceCount() int

	// DrawBatch returns the cached draw batch, rebuilding it if stale. The batch must be treated as read-only.
	//
	// Returns:
	//   - *renderer.DrawBatch: the batch; InstanceCount is 0 when no instances are registered
	DrawBatch() *renderer.DrawBatch

	// Valid reports whether the draw batch cache is currently valid.
	Valid() bool

	// Builds returns how many times the draw batch has been rebuilt.
	Builds() uint64
}

var _ DrawableObject = &drawableObject{}

func newDrawableObject(name string, m model.Model, mesh renderer.Mesh, onChange func()) *drawableObject {
	return &drawableObject{
		mu:        &sync.Mutex{},
		id:        objectIDs.Add(1),
		name:      name,
		model:     m,
		mesh:      mesh,
		instances: make(map[string]*instance),
		onChange:  onChange,
	}
}

func (o *drawableObject) ID() uint64 {
	return o.id
}

func (o *drawableObject) Name() string {
	return o.name
}

func (o *drawableObject) Model() model.Model {
	return o.model
}

func (o *drawableObject) CreateInstance(name string) Instance {
	inst := newInstance(name, o.invalidate)

	o.mu.Lock()
	if old, ok := o.instances[name]; ok {
		old.detach()
	}
	o.instances[name] = inst
	o.mu.Unlock()

	o.invalidate()
	return inst
}

func (o *drawableObject) Instance(name string) (Instance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in object %q", ErrUnknownInstance, name, o.name)
	}
	return inst, nil
}

func (o *drawableObject) RemoveInstance(name string) error {
	o.mu.Lock()
	inst, ok := o.instances[name]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %q in object %q", ErrUnknownInstance, name, o.name)
	}
	delete(o.instances, name)
	o.mu.Unlock()

	inst.detach()
	o.invalidate()
	return nil
}

func (o *drawableObject) Instances() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sortedKeys(o.instances)
}

func (o *drawableObject) InstanceCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.instances)
}

func (o *drawableObject) DrawBatch() *renderer.DrawBatch {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batch.Get(o.buildBatch)
}

func (o *drawableObject) Valid() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batch.Valid()
}

func (o *drawableObject) Builds() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batch.Builds()
}

// buildBatch serializes every instance matrix in name order. Caller must hold the mutex.
func (o *drawableObject) buildBatch() *renderer.DrawBatch {
	names := sortedKeys(o.instances)
	var record GPUInstance
	stride := record.Size()
	data := make([]byte, len(names)*stride)
	for i, name := range names {
		record.Model = o.instances[name].Matrix()
		record.marshalInto(data[i*stride : (i+1)*stride])
	}

	return &renderer.DrawBatch{
		ObjectID:      o.id,
		Label:         o.name,
		Mesh:          o.mesh,
		Instances:     data,
		InstanceCount: uint32(len(names)),
		Generation:    o.batch.Builds() + 1,
	}
}

// stale reports whether the next DrawBatch call rebuilds.
func (o *drawableObject) stale() bool {
	return !o.Valid()
}

// invalidate marks the draw batch stale and notifies the owning group outside the lock.
func (o *drawableObject) invalidate() {
	o.mu.Lock()
	o.batch.Invalidate()
	hook := o.onChange
	o.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// detach stops the object and its instances from invalidating their former owner.
func (o *drawableObject) detach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onChange = nil
}

// release frees the mesh. The object must already be detached.
func (o *drawableObject) release() {
	if o.mesh != nil {
		o.mesh.Release()
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
