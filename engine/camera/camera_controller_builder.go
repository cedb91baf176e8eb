package camera

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*flyController)

// WithMoveSpeed sets the movement speed in world units per second.
//
// Parameters:
//   - speed: units per second
//
// Returns:
//   - CameraControllerOption: functional option to set the move speed
func WithMoveSpeed(speed float32) CameraControllerOption {
	return func(fc *flyController) {
		fc.moveSpeed = speed
	}
}

// WithMouseSensitivity sets how many radians one pixel of cursor motion turns the camera.
//
// Parameters:
//   - sensitivity: radians per pixel
//
// Returns:
//   - CameraControllerOption: functional option to set the mouse sensitivity
func WithMouseSensitivity(sensitivity float32) CameraControllerOption {
	return func(fc *flyController) {
		fc.mouseSensitivity = sensitivity
	}
}

// WithPitchLimit sets the absolute pitch clamp in radians.
//
// Parameters:
//   - limit: maximum absolute pitch
//
// Returns:
//   - CameraControllerOption: functional option to set the pitch limit
func WithPitchLimit(limit float32) CameraControllerOption {
	return func(fc *flyController) {
		fc.pitchLimit = limit
	}
}
