// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// Extent is a drawable size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Empty reports whether either dimension is zero. A minimized window reports an empty extent.
func (e Extent) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Aspect returns Width / Height, or 1 when the extent is empty.
func (e Extent) Aspect() float32 {
	if e.Empty() {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// Viewport is the rectangle a pipeline rasterizes into, in pixels, with its depth range.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// FullViewport returns a viewport covering the whole extent with the [0, 1] depth range.
//
// Parameters:
//   - e: the target extent
//
// Returns:
//   - Viewport: the covering viewport
func FullViewport(e Extent) Viewport {
	return Viewport{
		Width:    float32(e.Width),
		Height:   float32(e.Height),
		MaxDepth: 1,
	}
}
