package shader

import (
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleProgramPair(t *testing.T) {
	pair := SimpleProgramPair()
	require.NoError(t, pair.Validate())
	assert.Equal(t, "instanced", pair.Label())
	assert.Equal(t, "vs_main", pair.Vertex.EntryPoint())
	assert.Equal(t, "fs_main", pair.Fragment.EntryPoint())
	assert.Nil(t, pair.Fragment.VertexLayouts())

	src := pair.Vertex.Source()
	assert.Contains(t, src, "struct CameraUniform")
	assert.Contains(t, src, "struct VertexInput")
	assert.NotContains(t, src, "@oxy:include")
	assert.Equal(t, src, pair.Vertex.Module().WGSLDescriptor.Code)
}

func TestSimpleProgramVertexLayouts(t *testing.T) {
	layouts := SimpleProgramPair().Vertex.VertexLayouts()
	require.Len(t, layouts, 2)

	vertex := layouts[0]
	assert.Equal(t, uint64(32), vertex.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, vertex.StepMode)
	require.Len(t, vertex.Attributes, 3)
	assert.Equal(t, wgpu.VertexFormatFloat32x3, vertex.Attributes[1].Format)
	assert.Equal(t, uint64(12), vertex.Attributes[1].Offset)
	assert.Equal(t, uint32(2), vertex.Attributes[2].ShaderLocation)

	instance := layouts[1]
	assert.Equal(t, uint64(64), instance.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeInstance, instance.StepMode)
	require.Len(t, instance.Attributes, 4)
	for i, attr := range instance.Attributes {
		assert.Equal(t, uint32(4+i), attr.ShaderLocation)
		assert.Equal(t, uint64(16*i), attr.Offset)
		assert.Equal(t, wgpu.VertexFormatFloat32x4, attr.Format)
	}
}

func TestNewProgramErrors(t *testing.T) {
	_, err := NewProgram("frag-only", StageVertex, "@fragment fn fs() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }")
	assert.ErrorIs(t, err, ErrMissingEntryPoint)

	_, err = NewProgram("bad-include", StageVertex, "//@oxy:include lights\n@vertex fn vs() {}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	_, err = NewProgram("two-args", StageVertex, "//@oxy:include camera vertex\n@vertex fn vs() {}")
	assert.Error(t, err)
}

func TestProgramPairValidate(t *testing.T) {
	pair := SimpleProgramPair()
	assert.Error(t, ProgramPair{Vertex: pair.Vertex}.Validate())
	assert.Error(t, ProgramPair{Vertex: pair.Fragment, Fragment: pair.Vertex}.Validate())
}

func TestParseVertexLayoutsIgnoresCommentsAndOutputs(t *testing.T) {
	src := `
/* struct Ghost { @location(0) a: vec4<f32>, }; */
struct In {
    @location(0) pos: vec2<f32>, // trailing
    @location(1) id: u32,
};
struct Out {
    @builtin(position) pos: vec4<f32>,
    @location(0) color: vec4<f32>,
};
struct Odd {
    @location(3) m: mat4x4<f32>,
};
`
	layouts := parseVertexLayouts(src)
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(12), layouts[0].ArrayStride)
	assert.Equal(t, wgpu.VertexFormatUint32, layouts[0].Attributes[1].Format)
}

func TestPreProcessorPassesThroughPlainComments(t *testing.T) {
	out, err := NewPreProcessor().Process("// just a note\nfn f() {}")
	require.NoError(t, err)
	assert.Equal(t, "// just a note\nfn f() {}", out)

	out, err = NewPreProcessor().Process("//@oxy:include camera")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "struct CameraUniform"))
}
