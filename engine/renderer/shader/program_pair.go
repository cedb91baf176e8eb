package shader

import "fmt"

// ProgramPair is the fixed vertex and fragment program pair shared by every object in a render group.
type ProgramPair struct {
	Vertex   Program
	Fragment Program
}

// Label returns a combined label for pipeline objects built from the pair.
func (pp ProgramPair) Label() string {
	if pp.Vertex == nil || pp.Fragment == nil {
		return "<incomplete>"
	}
	if pp.Vertex.Label() == pp.Fragment.Label() {
		return pp.Vertex.Label()
	}
	return pp.Vertex.Label() + "+" + pp.Fragment.Label()
}

// Validate checks that both programs are present and target the right stages.
//
// Returns:
//   - error: a descriptive error, nil if the pair is usable
func (pp ProgramPair) Validate() error {
	if pp.Vertex == nil || pp.Fragment == nil {
		return fmt.Errorf("shader: program pair needs both a vertex and a fragment program")
	}
	if pp.Vertex.Stage() != StageVertex {
		return fmt.Errorf("shader: %s is a %s program, want vertex", pp.Vertex.Label(), pp.Vertex.Stage())
	}
	if pp.Fragment.Stage() != StageFragment {
		return fmt.Errorf("shader: %s is a %s program, want fragment", pp.Fragment.Label(), pp.Fragment.Stage())
	}
	return nil
}

// SimpleProgramPair returns the built-in instanced mesh program pair: one camera uniform at group 0,
// per-vertex position/normal/uv at slot 0 and a per-instance model matrix at slot 1, with a fixed
// directional light in the fragment stage.
//
// Returns:
//   - ProgramPair: the built-in pair
func SimpleProgramPair() ProgramPair {
	vs, err := NewProgram("instanced", StageVertex, instancedSource)
	if err != nil {
		panic(err)
	}
	fs, err := NewProgram("instanced", StageFragment, instancedSource)
	if err != nil {
		panic(err)
	}
	return ProgramPair{Vertex: vs, Fragment: fs}
}
