package common

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// ClipCorrection is composed in front of an OpenGL style perspective matrix so that a left-handed view
// lands in the clip space the scene shaders expect. It negates w, halves and offsets depth, and is kept
// exactly as-is so that payloads stay comparable with previously captured uniform data.
var ClipCorrection = mgl32.Mat4FromRows(
	mgl32.Vec4{1, 0, 0, 0},
	mgl32.Vec4{0, 1, 0, 0},
	mgl32.Vec4{0, 0, -0.5, 0.5},
	mgl32.Vec4{0, 0, 0, -1},
)

// WorldUp is the fixed up vector used for every view matrix.
var WorldUp = mgl32.Vec3{0, 1, 0}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// LookAtLH builds a left-handed view matrix. The camera's local +Z points from eye toward target,
// +X is up × forward and +Y completes the basis.
//
// Parameters:
//   - eye: camera position in world space
//   - target: point the camera looks at
//   - up: world up vector (typically WorldUp)
//
// Returns:
//   - mgl32.Mat4: the view matrix (column-major)
func LookAtLH(eye, target, up mgl32.Vec3) mgl32.Mat4 {
	z := target.Sub(eye).Normalize()
	x := up.Cross(z).Normalize()
	y := z.Cross(x)

	return mgl32.Mat4FromRows(
		x.Vec4(-x.Dot(eye)),
		y.Vec4(-y.Dot(eye)),
		z.Vec4(-z.Dot(eye)),
		mgl32.Vec4{0, 0, 0, 1},
	)
}

// EulerRotation returns Rz(angles.z) * Ry(angles.y) * Rx(angles.x) as a homogeneous matrix.
//
// Parameters:
//   - angles: rotation around X, Y and Z in radians
//
// Returns:
//   - mgl32.Mat4: the combined rotation
func EulerRotation(angles mgl32.Vec3) mgl32.Mat4 {
	return mgl32.HomogRotate3DZ(angles.Z()).
		Mul4(mgl32.HomogRotate3DY(angles.Y())).
		Mul4(mgl32.HomogRotate3DX(angles.X()))
}

// Forward rotates the unit +Z vector by the given Euler angles (see EulerRotation).
//
// Parameters:
//   - angles: rotation around X, Y and Z in radians
//
// Returns:
//   - mgl32.Vec3: the rotated forward direction
func Forward(angles mgl32.Vec3) mgl32.Vec3 {
	return EulerRotation(angles).Mul4x1(mgl32.Vec4{0, 0, 1, 0}).Vec3()
}

// ModelMatrix bakes a translation, three axis rotations and a uniform scale into one matrix.
// The order is fixed: T * Rx * Ry * Rz * S.
//
// Parameters:
//   - position: translation in world space
//   - angles: rotation around X, Y and Z in radians
//   - scale: uniform scale factor
//
// Returns:
//   - mgl32.Mat4: the model matrix (column-major)
func ModelMatrix(position, angles mgl32.Vec3, scale float32) mgl32.Mat4 {
	return mgl32.Translate3D(position.Elem()).
		Mul4(mgl32.HomogRotate3DX(angles.X())).
		Mul4(mgl32.HomogRotate3DY(angles.Y())).
		Mul4(mgl32.HomogRotate3DZ(angles.Z())).
		Mul4(mgl32.Scale3D(scale, scale, scale))
}

// Projection builds the full projection matrix: ClipCorrection * Perspective(fovY, aspect, near, far).
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance
//   - far: far clipping plane distance
//
// Returns:
//   - mgl32.Mat4: the projection matrix (column-major)
func Projection(fovY, aspect, near, far float32) mgl32.Mat4 {
	return ClipCorrection.Mul4(mgl32.Perspective(fovY, aspect, near, far))
}
