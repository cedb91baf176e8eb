// pre_processor.go implements the WGSL include pre-processor. Lines of the form
//
//	//@oxy:include <struct>
//
// are replaced with the canonical WGSL struct source embedded by the Go package that owns
// the matching GPU type, so shader bodies never restate a layout that Go serializes.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
)

// annotationPrefix marks an include directive inside a WGSL line comment.
const annotationPrefix = "@oxy:include"

// IncludeArg names a struct source that can be injected with an include directive.
type IncludeArg string

const (
	// IncludeCamera injects the CameraUniform struct (see camera.GPUCameraUniformSource).
	IncludeCamera IncludeArg = "camera"

	// IncludeVertex injects the VertexInput struct (see model.GPUVertexSource).
	IncludeVertex IncludeArg = "vertex"
)

type preProcessor struct {
	structRegistry map[IncludeArg]string
}

// PreProcessor expands include directives in WGSL source.
type PreProcessor interface {
	// Process replaces every include directive with its registered struct source.
	// Lines that are not directives pass through unchanged.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the expanded source
	//   - error: an error naming the line of a malformed or unknown directive
	Process(source string) (string, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the engine's struct sources registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[IncludeArg]string{
			IncludeCamera: camera.GPUCameraUniformSource,
			IncludeVertex: model.GPUVertexSource,
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "//") {
			out = append(out, line)
			continue
		}
		_, after, ok := strings.Cut(trimmed, annotationPrefix)
		if !ok {
			out = append(out, line)
			continue
		}

		args := strings.Fields(after)
		if len(args) != 1 {
			return "", fmt.Errorf("line %d: @oxy:include requires exactly one argument", i+1)
		}
		entry, ok := p.structRegistry[IncludeArg(args[0])]
		if !ok {
			return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, args[0])
		}
		out = append(out, entry)
	}
	return strings.Join(out, "\n"), nil
}
