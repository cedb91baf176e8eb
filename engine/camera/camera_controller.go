package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraController turns raw key and cursor events into UniformCamera mutations.
// Controllers own only input state; the camera owns position and orientation.
type CameraController interface {
	// KeyDown records a key press.
	//
	// Parameters:
	//   - keyCode: the virtual key code (see common.Key*)
	KeyDown(keyCode uint32)

	// KeyUp records a key release.
	//
	// Parameters:
	//   - keyCode: the virtual key code (see common.Key*)
	KeyUp(keyCode uint32)

	// MouseMove records an absolute cursor position. The first call only establishes the baseline;
	// later calls accumulate the delta until the next Apply.
	//
	// Parameters:
	//   - x, y: cursor position in window pixels
	MouseMove(x, y int32)

	// Velocity returns the local-space movement direction derived from the held keys.
	//
	// Returns:
	//   - mgl32.Vec3: direction with components in {-1, 0, 1}
	Velocity() mgl32.Vec3

	// Apply moves and turns cam by the accumulated input over dt seconds.
	// When there is nothing to apply the camera is not touched, so its caches stay valid.
	//
	// Parameters:
	//   - cam: the camera to mutate
	//   - dt: elapsed time in seconds
	//
	// Returns:
	//   - bool: true if the camera was mutated
	Apply(cam UniformCamera, dt float32) bool
}

// flyController is a free-flight controller. W/S move along the look direction, A/D strafe,
// Space rises and LeftControl sinks. Cursor motion turns the camera; pitch is clamped short of vertical.
type flyController struct {
	mu *sync.Mutex

	pressed map[uint32]bool

	lastX, lastY int32
	haveCursor   bool
	lookDelta    mgl32.Vec3

	moveSpeed        float32
	mouseSensitivity float32
	pitchLimit       float32
}

// Compile-time interface compliance check
var _ CameraController = &flyController{}

// NewFlyController creates a new free-flight controller with sensible defaults.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewFlyController(options ...CameraControllerOption) CameraController {
	fc := &flyController{
		mu:               &sync.Mutex{},
		pressed:          make(map[uint32]bool),
		moveSpeed:        1.0,
		mouseSensitivity: 1.0 / 500.0,
		pitchLimit:       float32(math.Pi / 2.01),
	}
	for _, option := range options {
		option(fc)
	}
	return fc
}

func (fc *flyController) KeyDown(keyCode uint32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.pressed[keyCode] = true
}

func (fc *flyController) KeyUp(keyCode uint32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.pressed, keyCode)
}

func (fc *flyController) MouseMove(x, y int32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.haveCursor {
		dx := float32(x - fc.lastX)
		dy := float32(y - fc.lastY)
		fc.lookDelta = fc.lookDelta.Add(mgl32.Vec3{dy * fc.mouseSensitivity, dx * fc.mouseSensitivity, 0})
	}
	fc.lastX, fc.lastY = x, y
	fc.haveCursor = true
}

func (fc *flyController) Velocity() mgl32.Vec3 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.velocity()
}

func (fc *flyController) Apply(cam UniformCamera, dt float32) bool {
	fc.mu.Lock()
	velocity := fc.velocity().Mul(fc.moveSpeed * dt)
	look := fc.lookDelta
	fc.lookDelta = mgl32.Vec3{}
	limit := fc.pitchLimit
	fc.mu.Unlock()

	if velocity == (mgl32.Vec3{}) && look == (mgl32.Vec3{}) {
		return false
	}

	cam.Update(func(cfg *CameraConfig) {
		cfg.Angles = cfg.Angles.Add(look)
		cfg.Angles[0] = common.Clamp(cfg.Angles[0], -limit, limit)
		step := common.EulerRotation(cfg.Angles).Mul4x1(velocity.Vec4(0)).Vec3()
		cfg.Position = cfg.Position.Add(step)
	})
	return true
}

// velocity derives the movement direction from the held keys. Caller must hold the mutex.
func (fc *flyController) velocity() mgl32.Vec3 {
	axis := func(pos, neg uint32) float32 {
		var v float32
		if fc.pressed[pos] {
			v++
		}
		if fc.pressed[neg] {
			v--
		}
		return v
	}
	return mgl32.Vec3{
		axis(common.KeyD, common.KeyA),
		axis(common.KeySpace, common.KeyLeftControl),
		axis(common.KeyW, common.KeyS),
	}
}
