package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraConfig is the mutable view and projection configuration of a UniformCamera.
type CameraConfig struct {
	// Position is the eye position in world space.
	Position mgl32.Vec3

	// Angles are the rotations around X (pitch), Y (yaw) and Z (roll) in radians.
	// The look direction is Rz * Ry * Rx * (0, 0, 1).
	Angles mgl32.Vec3

	Aspect float32
	FovY   float32 // radians
	Near   float32
	Far    float32
}

// DefaultCameraConfig returns the configuration every new camera starts from:
// eye at the origin looking down +Z, aspect 1, 45 degree vertical field of view, planes at 0.01 and 100.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Aspect: 1.0,
		FovY:   45.0 * (math.Pi / 180.0),
		Near:   0.01,
		Far:    100.0,
	}
}

// Target returns the world-space point the configuration looks at (one unit ahead of Position).
func (c CameraConfig) Target() mgl32.Vec3 {
	return c.Position.Add(common.Forward(c.Angles))
}

// Uniform computes the view and projection matrices for this configuration.
// It is a pure function of the configuration.
//
// Returns:
//   - GPUCameraUniform: the matrices ready for upload
func (c CameraConfig) Uniform() GPUCameraUniform {
	return GPUCameraUniform{
		View:       common.LookAtLH(c.Position, c.Target(), common.WorldUp),
		Projection: common.Projection(c.FovY, c.Aspect, c.Near, c.Far),
	}
}

type uniformCamera struct {
	mu *sync.Mutex

	config  CameraConfig
	payload common.Memo[[]byte]

	onChange func()
}

// UniformCamera holds the camera configuration and a cached, serialized uniform payload.
// The payload is only recomputed after the configuration was touched through Configure or Update.
type UniformCamera interface {
	// Config returns a copy of the current configuration.
	//
	// Returns:
	//   - CameraConfig: the committed configuration
	Config() CameraConfig

	// Configure acquires a scoped mutation guard over a copy of the configuration.
	// Acquiring the guard marks the payload stale; releasing it commits the copy, marks the payload
	// stale again and notifies the owner. Release the guard with defer so every exit path commits.
	//
	// Returns:
	//   - *ConfigGuard: the guard; callers must call Release exactly once (extra calls are no-ops)
	Configure() *ConfigGuard

	// Update is shorthand for acquiring a guard, applying mutator to it and releasing it.
	//
	// Parameters:
	//   - mutator: function applying arbitrary changes to the configuration
	Update(mutator func(*CameraConfig))

	// Uniform returns the matrices for the committed configuration without touching the cache.
	//
	// Returns:
	//   - GPUCameraUniform: view and projection matrices
	Uniform() GPUCameraUniform

	// Payload returns the serialized uniform (128 bytes), rebuilding it if the cache is stale.
	// The returned slice must be treated as read-only.
	//
	// Returns:
	//   - []byte: the uniform payload
	Payload() []byte

	// Valid reports whether the payload cache is currently valid.
	//
	// Returns:
	//   - bool: true if the next Payload call is a cache hit
	Valid() bool

	// Builds returns how many times the payload has been rebuilt.
	//
	// Returns:
	//   - uint64: the rebuild count
	Builds() uint64

	// SetOnChange registers the function called after every committed configuration change.
	// Scenes use this to invalidate their own caches when a retained camera handle is mutated.
	//
	// Parameters:
	//   - fn: the callback (or nil to disable)
	SetOnChange(fn func())
}

var _ UniformCamera = &uniformCamera{}

// NewUniformCamera creates a new UniformCamera starting from DefaultCameraConfig.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - UniformCamera: the newly created camera
func NewUniformCamera(options ...CameraBuilderOption) UniformCamera {
	c := &uniformCamera{
		mu:     &sync.Mutex{},
		config: DefaultCameraConfig(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *uniformCamera) Config() CameraConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

func (c *uniformCamera) Configure() *ConfigGuard {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload.Invalidate()
	return &ConfigGuard{
		cam:    c,
		config: c.config,
	}
}

func (c *uniformCamera) Update(mutator func(*CameraConfig)) {
	g := c.Configure()
	defer g.Release()
	mutator(g.Config())
}

func (c *uniformCamera) Uniform() GPUCameraUniform {
	return c.Config().Uniform()
}

func (c *uniformCamera) Payload() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload.Get(func() []byte {
		u := c.config.Uniform()
		return u.Marshal()
	})
}

func (c *uniformCamera) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload.Valid()
}

func (c *uniformCamera) Builds() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload.Builds()
}

func (c *uniformCamera) SetOnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// commit stores cfg, invalidates the payload and fires the change hook outside the lock.
func (c *uniformCamera) commit(cfg CameraConfig) {
	c.mu.Lock()
	c.config = cfg
	c.payload.Invalidate()
	hook := c.onChange
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// ConfigGuard is a scoped mutable handle over a camera configuration.
// Changes made through Config are invisible to the camera until Release.
type ConfigGuard struct {
	cam      *uniformCamera
	config   CameraConfig
	released bool
}

// Config returns the guarded configuration for in-place mutation.
func (g *ConfigGuard) Config() *CameraConfig {
	return &g.config
}

// Release commits the guarded configuration. Safe to call more than once.
func (g *ConfigGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.cam.commit(g.config)
}
