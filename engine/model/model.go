package model

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

// ErrEmptyGeometry is returned by Validate when a model has no vertices or no indices.
var ErrEmptyGeometry = errors.New("model: geometry has no vertices or indices")

// model is the implementation of the Model interface.
type model struct {
	name     string
	vertices []GPUVertex
	indices  []uint32

	vertexData []byte
}

// Model is immutable indexed triangle geometry handed to a scene at object creation time.
// Vertices carry position, normal and texture coordinate; indices are 32-bit triangle lists.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Vertices returns the vertex array. Callers must not modify it.
	//
	// Returns:
	//   - []GPUVertex: the vertices
	Vertices() []GPUVertex

	// Indices returns the index array. Callers must not modify it.
	//
	// Returns:
	//   - []uint32: the triangle list indices
	Indices() []uint32

	// VertexData returns the vertex array serialized for GPU upload.
	//
	// Returns:
	//   - []byte: packed vertex bytes
	VertexData() []byte

	// IndexData returns the index array as raw bytes for GPU upload.
	//
	// Returns:
	//   - []byte: packed uint32 indices in host byte order
	IndexData() []byte

	// IndexCount returns the number of indices in the model's mesh.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// Validate checks that the geometry is drawable: non-empty and with every index in range.
	//
	// Returns:
	//   - error: ErrEmptyGeometry or an out-of-range error, nil if valid
	Validate() error
}

var _ Model = &model{}

// NewModel creates a Model from the given options. Vertex data is serialized once here.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: the newly created model
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, option := range options {
		option(m)
	}
	m.vertexData = MarshalVertices(m.vertices)
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Vertices() []GPUVertex {
	return m.vertices
}

func (m *model) Indices() []uint32 {
	return m.indices
}

func (m *model) VertexData() []byte {
	return m.vertexData
}

func (m *model) IndexData() []byte {
	return common.SliceToBytes(m.indices)
}

func (m *model) IndexCount() int {
	return len(m.indices)
}

func (m *model) Validate() error {
	if len(m.vertices) == 0 || len(m.indices) == 0 {
		return ErrEmptyGeometry
	}
	for i, idx := range m.indices {
		if int(idx) >= len(m.vertices) {
			return fmt.Errorf("model %q: index %d references vertex %d of %d", m.name, i, idx, len(m.vertices))
		}
	}
	return nil
}
