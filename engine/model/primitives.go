package model

import "github.com/go-gl/mathgl/mgl32"

// cubeFaces lists each face as outward normal plus the two in-plane axes (u, v) with u × v = -normal.
// Emitting the corners counter-clockwise in (u, v) makes every triangle front-facing (CCW on screen)
// under the engine's left-handed view.
var cubeFaces = [6][3]mgl32.Vec3{
	{{1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, -1, 0}, {0, 0, 1}, {1, 0, 0}},
	{{0, 0, 1}, {0, 1, 0}, {1, 0, 0}},
	{{0, 0, -1}, {1, 0, 0}, {0, 1, 0}},
}

// Cube returns an axis-aligned cube centred on the origin with the given edge length.
// Each face has its own four vertices so normals and texture coordinates stay per-face (24 vertices, 36 indices).
//
// Parameters:
//   - name: the model name
//   - size: edge length
//
// Returns:
//   - Model: the cube geometry
func Cube(name string, size float32) Model {
	h := size / 2
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	vertices := make([]GPUVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, face := range cubeFaces {
		n, u, v := face[0], face[1], face[2]
		base := uint32(len(vertices))
		for i, c := range corners {
			p := n.Add(u.Mul(c[0])).Add(v.Mul(c[1])).Mul(h)
			vertices = append(vertices, GPUVertex{
				Position: p,
				Normal:   n,
				TexCoord: uvs[i],
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	return NewModel(
		WithName(name),
		WithVertices(vertices),
		WithIndices(indices),
	)
}
