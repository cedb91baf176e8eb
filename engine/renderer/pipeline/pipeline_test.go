package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestNewDescriptorDefaults(t *testing.T) {
	vp := common.FullViewport(common.Extent{Width: 640, Height: 480})
	d := NewDescriptor("cubes", shader.SimpleProgramPair(), wgpu.TextureFormatBGRA8Unorm, vp)

	assert.NoError(t, d.Validate())
	assert.True(t, d.DepthTestEnabled)
	assert.True(t, d.DepthWriteEnabled)
	assert.False(t, d.BlendEnabled)
	assert.Equal(t, wgpu.CullModeBack, d.CullMode)
	assert.Equal(t, wgpu.FrontFaceCCW, d.FrontFace)
	assert.Equal(t, vp, d.Viewport)
}

func TestDescriptorOptionsAndRetarget(t *testing.T) {
	vp := common.FullViewport(common.Extent{Width: 640, Height: 480})
	d := NewDescriptor("cubes", shader.SimpleProgramPair(), wgpu.TextureFormatBGRA8Unorm, vp,
		WithCullMode(wgpu.CullModeNone),
		WithBlendState(&wgpu.BlendState{}),
	)
	assert.Equal(t, wgpu.CullModeNone, d.CullMode)
	assert.True(t, d.BlendEnabled)

	bigger := common.FullViewport(common.Extent{Width: 1920, Height: 1080})
	r := d.Retarget(wgpu.TextureFormatRGBA8Unorm, bigger)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, r.Format)
	assert.Equal(t, bigger, r.Viewport)
	assert.Equal(t, wgpu.CullModeNone, r.CullMode)
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, d.Format)
}

func TestDescriptorValidate(t *testing.T) {
	vp := common.FullViewport(common.Extent{Width: 640, Height: 480})
	pair := shader.SimpleProgramPair()

	assert.Error(t, NewDescriptor("x", shader.ProgramPair{}, wgpu.TextureFormatBGRA8Unorm, vp).Validate())
	assert.Error(t, NewDescriptor("x", pair, wgpu.TextureFormatUndefined, vp).Validate())
	assert.Error(t, NewDescriptor("x", pair, wgpu.TextureFormatBGRA8Unorm, common.Viewport{}).Validate())
}
