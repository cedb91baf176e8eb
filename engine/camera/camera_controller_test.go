package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestFlyControllerIdleDoesNotTouchCamera(t *testing.T) {
	cam := NewUniformCamera()
	cam.Payload()

	fc := NewFlyController()
	assert.False(t, fc.Apply(cam, 0.016))
	assert.True(t, cam.Valid())
}

func TestFlyControllerVelocityFromKeys(t *testing.T) {
	fc := NewFlyController()
	fc.KeyDown(common.KeyW)
	fc.KeyDown(common.KeyD)
	fc.KeyDown(common.KeySpace)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, fc.Velocity())

	fc.KeyDown(common.KeyS)
	fc.KeyDown(common.KeyA)
	fc.KeyUp(common.KeySpace)
	fc.KeyDown(common.KeyLeftControl)
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, fc.Velocity())
}

func TestFlyControllerMovesAlongLookDirection(t *testing.T) {
	cam := NewUniformCamera(WithAngles(mgl32.Vec3{0, math.Pi / 2, 0}))
	fc := NewFlyController(WithMoveSpeed(2))
	fc.KeyDown(common.KeyW)

	assert.True(t, fc.Apply(cam, 0.5))
	pos := cam.Config().Position
	assert.InDelta(t, 1, pos.X(), 1e-5)
	assert.InDelta(t, 0, pos.Y(), 1e-5)
	assert.InDelta(t, 0, pos.Z(), 1e-5)
}

func TestFlyControllerTurnsAndClampsPitch(t *testing.T) {
	cam := NewUniformCamera()
	fc := NewFlyController(WithMouseSensitivity(0.01))

	fc.MouseMove(100, 100)
	assert.False(t, fc.Apply(cam, 0.016), "the first cursor event only sets the baseline")

	fc.MouseMove(150, 120)
	assert.True(t, fc.Apply(cam, 0.016))
	angles := cam.Config().Angles
	assert.InDelta(t, 0.2, angles.X(), 1e-6)
	assert.InDelta(t, 0.5, angles.Y(), 1e-6)

	fc.MouseMove(150, 100000)
	fc.Apply(cam, 0.016)
	assert.InDelta(t, math.Pi/2.01, cam.Config().Angles.X(), 1e-6)
}
