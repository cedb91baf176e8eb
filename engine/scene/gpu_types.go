package scene

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUInstance is the GPU-aligned representation of one instance's per-instance vertex data.
// Matches the WGSL InstanceInput struct of the instanced program (four vec4 columns at locations 4-7).
// Size: 64 bytes.
type GPUInstance struct {
	Model [16]float32 // offset 0: column-major model matrix (64 bytes)
}

// Size returns the size of the GPUInstance struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUInstance) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUInstance struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUInstance) Marshal() []byte {
	buf := make([]byte, 64)
	g.marshalInto(buf)
	return buf
}

func (g *GPUInstance) marshalInto(buf []byte) {
	for i, v := range g.Model {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
}
