package loader

import (
	"errors"
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrUnsupportedTopology is returned for primitives that are not triangle lists.
	ErrUnsupportedTopology = errors.New("loader: only TRIANGLES primitives are supported")

	// ErrMissingPositions is returned for primitives without a POSITION attribute.
	ErrMissingPositions = errors.New("loader: primitive has no POSITION attribute")
)

// extractModels converts every mesh primitive of doc into a model. A mesh with a single
// primitive keeps the mesh name, otherwise primitives are suffixed "_prim<i>". Unnamed
// meshes are named after fallback and their index. With skipUnsupported, non-triangle
// primitives are logged and dropped instead of failing the document.
func extractModels(doc *gltfDocument, fallback string, skipUnsupported bool) ([]model.Model, error) {
	var models []model.Model
	for mi, mesh := range doc.Meshes {
		meshName := mesh.Name
		if meshName == "" {
			meshName = fmt.Sprintf("%s_mesh%d", fallback, mi)
		}

		for pi, prim := range mesh.Primitives {
			name := meshName
			if len(mesh.Primitives) > 1 {
				name = fmt.Sprintf("%s_prim%d", meshName, pi)
			}

			m, err := extractPrimitive(doc, name, prim)
			if skipUnsupported && errors.Is(err, ErrUnsupportedTopology) {
				log.Printf("loader: skipping %q: %v", name, err)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("mesh %q primitive %d: %w", meshName, pi, err)
			}
			models = append(models, m)
		}
	}
	return models, nil
}

func extractPrimitive(doc *gltfDocument, name string, prim gltfPrimitive) (model.Model, error) {
	if prim.mode() != gltfModeTriangles {
		return nil, fmt.Errorf("%w: mode %d", ErrUnsupportedTopology, prim.mode())
	}

	posIdx, ok := prim.Attributes[gltfAttrPosition]
	if !ok {
		return nil, ErrMissingPositions
	}
	positions, err := doc.readFloats(posIdx, "VEC3")
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	vertices := make([]model.GPUVertex, len(positions))
	for i, p := range positions {
		vertices[i].Position = [3]float32{p[0], p[1], p[2]}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = doc.readIndices(*prim.Indices); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	if err := fillOptionalAttribute(doc, prim, gltfAttrTexCoord, "VEC2", len(vertices), func(i int, v []float32) {
		vertices[i].TexCoord = [2]float32{v[0], v[1]}
	}); err != nil {
		return nil, err
	}

	if _, ok := prim.Attributes[gltfAttrNormal]; ok {
		if err := fillOptionalAttribute(doc, prim, gltfAttrNormal, "VEC3", len(vertices), func(i int, v []float32) {
			vertices[i].Normal = [3]float32{v[0], v[1], v[2]}
		}); err != nil {
			return nil, err
		}
	} else {
		generateNormals(vertices, indices)
	}

	m := model.NewModel(
		model.WithName(name),
		model.WithVertices(vertices),
		model.WithIndices(indices),
	)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// fillOptionalAttribute reads attr when present and hands each element to set.
func fillOptionalAttribute(doc *gltfDocument, prim gltfPrimitive, attr, accessorType string, count int, set func(i int, v []float32)) error {
	idx, ok := prim.Attributes[attr]
	if !ok {
		return nil
	}
	values, err := doc.readFloats(idx, accessorType)
	if err != nil {
		return fmt.Errorf("%s: %w", attr, err)
	}
	if len(values) != count {
		return fmt.Errorf("%s: %d values for %d vertices", attr, len(values), count)
	}
	for i, v := range values {
		set(i, v)
	}
	return nil
}

// generateNormals computes smooth vertex normals by accumulating face normals.
// Vertices touched by no valid triangle face +Y.
func generateNormals(vertices []model.GPUVertex, indices []uint32) {
	acc := make([]mgl32.Vec3, len(vertices))
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		if int(a) >= len(vertices) || int(b) >= len(vertices) || int(c) >= len(vertices) {
			continue
		}
		p0 := mgl32.Vec3(vertices[a].Position)
		p1 := mgl32.Vec3(vertices[b].Position)
		p2 := mgl32.Vec3(vertices[c].Position)
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		acc[a] = acc[a].Add(face)
		acc[b] = acc[b].Add(face)
		acc[c] = acc[c].Add(face)
	}

	for i, n := range acc {
		if n.Len() == 0 {
			vertices[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		vertices[i].Normal = n.Normalize()
	}
}
