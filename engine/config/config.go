package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid wraps every validation failure reported by Parse and Load.
var ErrInvalid = errors.New("config: invalid value")

// Config is the file-backed configuration of a window, renderer, scene and engine loop.
// Fields left empty in the file take the values from Default.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Scene    SceneConfig    `toml:"scene"`
	Engine   EngineConfig   `toml:"engine"`
}

// WindowConfig is the [window] section: title, initial size and cursor capture.
type WindowConfig struct {
	Title         string `toml:"title"`
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
	CaptureCursor bool   `toml:"capture_cursor"`
}

// RendererConfig is the [renderer] section controlling presentation and the target set.
type RendererConfig struct {
	// PresentMode is "vsync" or "uncapped".
	PresentMode   string     `toml:"present_mode"`
	TargetCount   int        `toml:"target_count"`
	ClearColor    [4]float64 `toml:"clear_color"`
	ForceSoftware bool       `toml:"force_software"`
}

// SceneConfig is the [scene] section: scene name, batch rebuild workers and camera projection.
type SceneConfig struct {
	Name           string `toml:"name"`
	RebuildWorkers int    `toml:"rebuild_workers"`

	// FovY is the vertical field of view in degrees.
	FovY float32 `toml:"fov_y"`
	Near float32 `toml:"near"`
	Far  float32 `toml:"far"`
}

// EngineConfig is the [engine] section controlling the host loop.
type EngineConfig struct {
	Profiling     bool    `toml:"profiling"`
	FrameLimit    float64 `toml:"frame_limit"`
	VerboseFrames bool    `toml:"verbose_frames"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "oxy-scene",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			PresentMode: "vsync",
			TargetCount: 3,
			ClearColor:  [4]float64{0.1, 0.1, 0.1, 1.0},
		},
		Scene: SceneConfig{
			Name:           "main",
			RebuildWorkers: 1,
			FovY:           45,
			Near:           0.01,
			Far:            100,
		},
	}
}

// Load reads and parses the TOML file at path.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the parsed configuration with defaults applied
//   - error: an error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a TOML document. Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the parsed configuration with defaults applied
//   - error: an error if decoding or validation fails
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// withDefaults fills every zero field from Default.
func (c Config) withDefaults() Config {
	d := Default()

	c.Window.Title = common.Coalesce(c.Window.Title, d.Window.Title)
	c.Window.Width = common.Coalesce(c.Window.Width, d.Window.Width)
	c.Window.Height = common.Coalesce(c.Window.Height, d.Window.Height)

	c.Renderer.PresentMode = strings.ToLower(common.Coalesce(c.Renderer.PresentMode, d.Renderer.PresentMode))
	c.Renderer.TargetCount = common.Coalesce(c.Renderer.TargetCount, d.Renderer.TargetCount)
	c.Renderer.ClearColor = common.Coalesce(c.Renderer.ClearColor, d.Renderer.ClearColor)

	c.Scene.Name = common.Coalesce(c.Scene.Name, d.Scene.Name)
	c.Scene.RebuildWorkers = common.Coalesce(c.Scene.RebuildWorkers, d.Scene.RebuildWorkers)
	c.Scene.FovY = common.Coalesce(c.Scene.FovY, d.Scene.FovY)
	c.Scene.Near = common.Coalesce(c.Scene.Near, d.Scene.Near)
	c.Scene.Far = common.Coalesce(c.Scene.Far, d.Scene.Far)
	return c
}

// Validate reports the first out-of-range value.
//
// Returns:
//   - error: an ErrInvalid wrapped description, or nil
func (c Config) Validate() error {
	switch {
	case c.Window.Width < 0 || c.Window.Height < 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	case c.Renderer.PresentMode != "vsync" && c.Renderer.PresentMode != "uncapped":
		return fmt.Errorf("%w: present_mode %q (want vsync or uncapped)", ErrInvalid, c.Renderer.PresentMode)
	case c.Renderer.TargetCount < 1:
		return fmt.Errorf("%w: target_count %d", ErrInvalid, c.Renderer.TargetCount)
	case c.Scene.RebuildWorkers < 1:
		return fmt.Errorf("%w: rebuild_workers %d", ErrInvalid, c.Scene.RebuildWorkers)
	case c.Scene.FovY <= 0 || c.Scene.FovY >= 180:
		return fmt.Errorf("%w: fov_y %v", ErrInvalid, c.Scene.FovY)
	case c.Scene.Near <= 0 || c.Scene.Far <= c.Scene.Near:
		return fmt.Errorf("%w: near %v far %v", ErrInvalid, c.Scene.Near, c.Scene.Far)
	case c.Engine.FrameLimit < 0:
		return fmt.Errorf("%w: frame_limit %v", ErrInvalid, c.Engine.FrameLimit)
	}
	return nil
}

// WindowOptions converts the window section into window builder options.
func (c Config) WindowOptions() []window.WindowBuilderOption {
	return []window.WindowBuilderOption{
		window.WithTitle(c.Window.Title),
		window.WithWidth(c.Window.Width),
		window.WithHeight(c.Window.Height),
		window.WithCursorCaptured(c.Window.CaptureCursor),
	}
}

// RendererOptions converts the renderer section into renderer builder options.
func (c Config) RendererOptions() []renderer.RendererBuilderOption {
	mode := renderer.PresentModeVSync
	if c.Renderer.PresentMode == "uncapped" {
		mode = renderer.PresentModeUncapped
	}
	cc := c.Renderer.ClearColor
	return []renderer.RendererBuilderOption{
		renderer.WithPresentMode(mode),
		renderer.WithTargetCount(c.Renderer.TargetCount),
		renderer.WithClearColor(wgpu.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]}),
		renderer.WithForceSoftwareRenderer(c.Renderer.ForceSoftware),
	}
}

// SceneOptions converts the scene section into scene builder options, including a camera
// configured with the field of view and clip planes.
func (c Config) SceneOptions() []scene.SceneBuilderOption {
	cam := camera.NewUniformCamera(
		camera.WithFovY(c.Scene.FovY*(math.Pi/180.0)),
		camera.WithNear(c.Scene.Near),
		camera.WithFar(c.Scene.Far),
	)
	return []scene.SceneBuilderOption{
		scene.WithCamera(cam),
		scene.WithRebuildWorkers(c.Scene.RebuildWorkers),
	}
}
