package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseOverridesAndKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[window]
title = "cubes"
width = 1920
capture_cursor = true

[renderer]
present_mode = "Uncapped"
target_count = 2

[scene]
rebuild_workers = 4
fov_y = 60.0

[engine]
profiling = true
frame_limit = 144.0
`))
	require.NoError(t, err)

	assert.Equal(t, "cubes", cfg.Window.Title)
	assert.Equal(t, 1920, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.True(t, cfg.Window.CaptureCursor)

	assert.Equal(t, "uncapped", cfg.Renderer.PresentMode)
	assert.Equal(t, 2, cfg.Renderer.TargetCount)
	assert.Equal(t, [4]float64{0.1, 0.1, 0.1, 1.0}, cfg.Renderer.ClearColor)

	assert.Equal(t, "main", cfg.Scene.Name)
	assert.Equal(t, 4, cfg.Scene.RebuildWorkers)
	assert.Equal(t, float32(60), cfg.Scene.FovY)
	assert.Equal(t, float32(0.01), cfg.Scene.Near)

	assert.True(t, cfg.Engine.Profiling)
	assert.Equal(t, 144.0, cfg.Engine.FrameLimit)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "[window]\ncolour = 1\n",
		"bad syntax":       "[window\n",
		"present mode":     "[renderer]\npresent_mode = \"mailbox\"\n",
		"negative targets": "[renderer]\ntarget_count = -1\n",
		"negative workers": "[scene]\nrebuild_workers = -2\n",
		"fov":              "[scene]\nfov_y = 180.0\n",
		"planes":           "[scene]\nnear = 10.0\nfar = 1.0\n",
		"frame limit":      "[engine]\nframe_limit = -5.0\n",
		"negative window":  "[window]\nwidth = -1\n",
		"wrong value type": "[window]\nwidth = \"wide\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestValidateWrapsErrInvalid(t *testing.T) {
	cfg := Default()
	cfg.Renderer.TargetCount = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scene]\nname = \"demo\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Scene.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.WindowOptions(), 4)
	assert.Len(t, cfg.RendererOptions(), 4)
}
