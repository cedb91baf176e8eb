package shader

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// Stage identifies the pipeline stage a Program is compiled for.
type Stage int

const (
	// StageVertex is the vertex stage, which also declares the vertex buffer layouts.
	StageVertex Stage = iota

	// StageFragment is the fragment stage writing the colour target.
	StageFragment
)

// String returns the WGSL attribute name of the stage.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// instancedSource is the built-in instanced mesh shader, before include expansion.
//
//go:embed assets/instanced.wgsl
var instancedSource string

// ErrMissingEntryPoint is returned when a program's source has no entry point for its stage.
var ErrMissingEntryPoint = errors.New("shader: no entry point for stage")

// program is the implementation of the Program interface.
type program struct {
	label         string
	stage         Stage
	source        string
	entryPoint    string
	vertexLayouts []wgpu.VertexBufferLayout
	module        *wgpu.ShaderModuleDescriptor
}

// Program is a pre-processed WGSL program for one pipeline stage. Scenes treat programs as opaque
// pipeline inputs; the renderer compiles them into shader modules when a pipeline is created.
type Program interface {
	// Label returns the identifier used for GPU object labels.
	//
	// Returns:
	//   - string: the program label
	Label() string

	// Stage returns the pipeline stage this program targets.
	//
	// Returns:
	//   - Stage: StageVertex or StageFragment
	Stage() Stage

	// Source returns the expanded WGSL source.
	//
	// Returns:
	//   - string: the WGSL source code
	Source() string

	// EntryPoint returns the name of the stage's entry point function.
	//
	// Returns:
	//   - string: the entry point name (e.g. "vs_main")
	EntryPoint() string

	// VertexLayouts returns the vertex buffer layouts declared by a vertex program, in slot order.
	// Fragment programs return nil.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the layouts
	VertexLayouts() []wgpu.VertexBufferLayout

	// Module returns the shader module descriptor for this program.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the descriptor holding the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Program = &program{}

// NewProgram pre-processes the given WGSL source and extracts the stage's entry point
// and, for vertex programs, the vertex buffer layouts.
//
// Parameters:
//   - label: a unique identifier for the program
//   - stage: the pipeline stage
//   - source: the raw WGSL source, which may contain include directives
//
// Returns:
//   - Program: the parsed program
//   - error: an error if pre-processing fails or the source has no entry point for stage
func NewProgram(label string, stage Stage, source string) (Program, error) {
	expanded, err := NewPreProcessor().Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", label, err)
	}

	p := &program{
		label:      label,
		stage:      stage,
		source:     expanded,
		entryPoint: parseEntryPoint(expanded, stage),
	}
	if p.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: %w %s", label, ErrMissingEntryPoint, stage)
	}
	if stage == StageVertex {
		p.vertexLayouts = parseVertexLayouts(expanded)
	}
	p.module = &wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: expanded,
		},
	}
	return p, nil
}

// NewProgramFromPath reads WGSL source from disk and calls NewProgram.
//
// Parameters:
//   - label: a unique identifier for the program
//   - stage: the pipeline stage
//   - path: the file path to read the WGSL source from
//
// Returns:
//   - Program: the parsed program
//   - error: an error if the file cannot be read or the source is invalid
func NewProgramFromPath(label string, stage Stage, path string) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to read source file %q: %w", label, path, err)
	}
	return NewProgram(label, stage, string(data))
}

func (p *program) Label() string {
	return p.label
}

func (p *program) Stage() Stage {
	return p.stage
}

func (p *program) Source() string {
	return p.source
}

func (p *program) EntryPoint() string {
	return p.entryPoint
}

func (p *program) VertexLayouts() []wgpu.VertexBufferLayout {
	return p.vertexLayouts
}

func (p *program) Module() *wgpu.ShaderModuleDescriptor {
	return p.module
}
