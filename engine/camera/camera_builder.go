package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraBuilderOption is a functional option for configuring a UniformCamera.
type CameraBuilderOption func(*uniformCamera)

// WithPosition sets the camera's initial world-space position.
//
// Parameters:
//   - position: eye position
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's position
func WithPosition(position mgl32.Vec3) CameraBuilderOption {
	return func(c *uniformCamera) {
		c.config.Position = position
	}
}

// WithAngles sets the camera's initial orientation angles in radians.
//
// Parameters:
//   - angles: rotation around X, Y and Z
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's angles
func WithAngles(angles mgl32.Vec3) CameraBuilderOption {
	return func(c *uniformCamera) {
		c.config.Angles = angles
	}
}

// WithFovY sets the camera's vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFovY(fov float32) CameraBuilderOption {
	return func(c *uniformCamera) {
		c.config.FovY = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *uniformCamera) {
		c.config.Aspect = aspect
	}
}

// WithNear sets the near clipping plane distance.
//
// Parameters:
//   - near: near plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the near plane
func WithNear(near float32) CameraBuilderOption {
	return func(c *uniformCamera) {
		c.config.Near = near
	}
}

// WithFar sets the far clipping plane distance.
//
// Parameters:
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: functional option to set the far plane
func WithFar(far float32) CameraBuilderOption {
	return func(c *uniformCamera) {
		c.config.Far = far
	}
}

// WithConfig replaces the whole starting configuration.
//
// Parameters:
//   - cfg: the configuration to start from
//
// Returns:
//   - CameraBuilderOption: functional option to set the configuration
func WithConfig(cfg CameraConfig) CameraBuilderOption {
	return func(c *uniformCamera) {
		c.config = cfg
	}
}
