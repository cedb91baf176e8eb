package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUVertexLayout(t *testing.T) {
	v := GPUVertex{
		Position: [3]float32{1, 2, 3},
		Normal:   [3]float32{0, 1, 0},
		TexCoord: [2]float32{0.25, 0.75},
	}
	assert.Equal(t, 32, v.Size())

	buf := v.Marshal()
	require.Len(t, buf, 32)
	at := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])) }
	assert.Equal(t, float32(3), at(2))
	assert.Equal(t, float32(1), at(4))
	assert.Equal(t, float32(0.75), at(7))
}

func TestMarshalVerticesConcatenates(t *testing.T) {
	vs := []GPUVertex{{Position: [3]float32{1, 0, 0}}, {Position: [3]float32{0, 0, 9}}}
	buf := MarshalVertices(vs)
	require.Len(t, buf, 64)
	assert.Equal(t, vs[1].Marshal(), buf[32:])
}

func TestCubeGeometry(t *testing.T) {
	cube := Cube("cube", 2)
	require.NoError(t, cube.Validate())
	assert.Equal(t, "cube", cube.Name())
	assert.Len(t, cube.Vertices(), 24)
	assert.Equal(t, 36, cube.IndexCount())
	assert.Len(t, cube.VertexData(), 24*32)
	assert.Len(t, cube.IndexData(), 36*4)

	for _, v := range cube.Vertices() {
		for _, c := range v.Position {
			assert.InDelta(t, 1, math.Abs(float64(c)), 1e-6)
		}
	}
}

func TestCubeTrianglesWindInward(t *testing.T) {
	cube := Cube("cube", 1)
	vs, idx := cube.Vertices(), cube.Indices()
	for i := 0; i < len(idx); i += 3 {
		a := mgl32.Vec3(vs[idx[i]].Position)
		b := mgl32.Vec3(vs[idx[i+1]].Position)
		c := mgl32.Vec3(vs[idx[i+2]].Position)
		n := mgl32.Vec3(vs[idx[i]].Normal)
		assert.Less(t, b.Sub(a).Cross(c.Sub(a)).Dot(n), float32(0), "triangle %d", i/3)
	}
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	assert.ErrorIs(t, NewModel(WithName("empty")).Validate(), ErrEmptyGeometry)

	bad := NewModel(
		WithName("bad"),
		WithVertices([]GPUVertex{{}, {}, {}}),
		WithIndices([]uint32{0, 1, 3}),
	)
	assert.Error(t, bad.Validate())
}
