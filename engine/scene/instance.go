package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is the placement of one instance: position, Euler angles in radians and a uniform scale.
type Transform struct {
	Position mgl32.Vec3
	Angles   mgl32.Vec3
	Scale    float32
}

// DefaultTransform returns the transform new instances start with: at the origin, unrotated, scale 1.
func DefaultTransform() Transform {
	return Transform{Scale: 1}
}

// Matrix returns T * Rx * Ry * Rz * S for the transform.
func (t Transform) Matrix() mgl32.Mat4 {
	return common.ModelMatrix(t.Position, t.Angles, t.Scale)
}

type instance struct {
	mu *sync.Mutex

	name      string
	transform Transform
	matrix    mgl32.Mat4

	onChange func()
}

// Instance is a named placement of its object's geometry. The model matrix is recomputed eagerly on every
// committed change, so Matrix always agrees with Transform.
type Instance interface {
	// Name returns the instance name, unique within its object.
	Name() string

	// Transform returns the committed transform.
	Transform() Transform

	// Matrix returns the model matrix of the committed transform.
	Matrix() mgl32.Mat4

	// Edit acquires a scoped mutation guard over a copy of the transform. Releasing the guard commits the copy,
	// recomputes the matrix and invalidates the owning object's draw batch.
	//
	// Returns:
	//   - *TransformGuard: the guard; release it with defer
	Edit() *TransformGuard

	// Update is shorthand for Edit, mutate and Release.
	//
	// Parameters:
	//   - mutator: function applying changes to the transform
	Update(mutator func(*Transform))
}

var _ Instance = &instance{}

func newInstance(name string, onChange func()) *instance {
	t := DefaultTransform()
	return &instance{
		mu:        &sync.Mutex{},
		name:      name,
		transform: t,
		matrix:    t.Matrix(),
		onChange:  onChange,
	}
}

func (i *instance) Name() string {
	return i.name
}

func (i *instance) Transform() Transform {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.transform
}

func (i *instance) Matrix() mgl32.Mat4 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.matrix
}

func (i *instance) Edit() *TransformGuard {
	return &TransformGuard{
		inst:      i,
		transform: i.Transform(),
	}
}

func (i *instance) Update(mutator func(*Transform)) {
	g := i.Edit()
	defer g.Release()
	mutator(g.Transform())
}

// commit stores t, recomputes the matrix and notifies the owner outside the lock.
func (i *instance) commit(t Transform) {
	i.mu.Lock()
	i.transform = t
	i.matrix = t.Matrix()
	hook := i.onChange
	i.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// detach stops the instance from invalidating its former owner.
func (i *instance) detach() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onChange = nil
}

// TransformGuard is a scoped mutable handle over an instance transform.
// Changes are invisible to the instance until Release.
type TransformGuard struct {
	inst      *instance
	transform Transform
	released  bool
}

// Transform returns the guarded transform for in-place mutation.
func (g *TransformGuard) Transform() *Transform {
	return &g.transform
}

// Release commits the guarded transform. Safe to call more than once.
func (g *TransformGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.inst.commit(g.transform)
}
