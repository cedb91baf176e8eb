package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangleBuffer holds three positions followed by three uint16 indices.
func triangleBuffer() []byte {
	var buf bytes.Buffer
	for _, f := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(f))
	}
	for _, i := range []uint16{0, 1, 2} {
		_ = binary.Write(&buf, binary.LittleEndian, i)
	}
	return buf.Bytes()
}

// triangleDocument builds a single-mesh document over triangleBuffer. uri is written as-is;
// pass "" for a GLB-backed buffer. edit may adjust the document before it is encoded.
func triangleDocument(t *testing.T, uri string, edit func(doc map[string]any)) []byte {
	t.Helper()
	buffer := map[string]any{"byteLength": 42}
	if uri != "" {
		buffer["uri"] = uri
	}
	doc := map[string]any{
		"asset": map[string]any{"version": "2.0"},
		"meshes": []any{map[string]any{
			"name": "tri",
			"primitives": []any{map[string]any{
				"attributes": map[string]any{"POSITION": 0},
				"indices":    1,
			}},
		}},
		"accessors": []any{
			map[string]any{"bufferView": 0, "componentType": gltfFloat, "count": 3, "type": "VEC3"},
			map[string]any{"bufferView": 1, "componentType": gltfUnsignedShort, "count": 3, "type": "SCALAR"},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			map[string]any{"buffer": 0, "byteOffset": 36, "byteLength": 6},
		},
		"buffers": []any{buffer},
	}
	if edit != nil {
		edit(doc)
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func dataURI(raw []byte) string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(raw)
}

func primitive(doc map[string]any) map[string]any {
	return doc["meshes"].([]any)[0].(map[string]any)["primitives"].([]any)[0].(map[string]any)
}

func packGLB(jsonChunk, binChunk []byte) []byte {
	pad := func(b []byte, fill byte) []byte {
		for len(b)%4 != 0 {
			b = append(b, fill)
		}
		return b
	}
	jsonChunk = pad(append([]byte(nil), jsonChunk...), ' ')
	binChunk = pad(append([]byte(nil), binChunk...), 0)

	var out bytes.Buffer
	total := glbHeaderSize + 8 + len(jsonChunk) + 8 + len(binChunk)
	_ = binary.Write(&out, binary.LittleEndian, []uint32{glbMagic, glbVersion, uint32(total)})
	_ = binary.Write(&out, binary.LittleEndian, []uint32{uint32(len(jsonChunk)), glbChunkJSON})
	out.Write(jsonChunk)
	_ = binary.Write(&out, binary.LittleEndian, []uint32{uint32(len(binChunk)), glbChunkBIN})
	out.Write(binChunk)
	return out.Bytes()
}

func TestLoadReaderDataURITriangle(t *testing.T) {
	l := NewLoader()
	doc := triangleDocument(t, dataURI(triangleBuffer()), nil)

	models, err := l.LoadReader("ignored", bytes.NewReader(doc), false)
	require.NoError(t, err)
	require.Len(t, models, 1)

	m := models[0]
	assert.Equal(t, "tri", m.Name())
	assert.Equal(t, []uint32{0, 1, 2}, m.Indices())
	require.Len(t, m.Vertices(), 3)
	assert.Equal(t, [3]float32{1, 0, 0}, m.Vertices()[1].Position)
	for _, v := range m.Vertices() {
		assert.InDeltaSlice(t, []float32{0, 0, 1}, v.Normal[:], 1e-6)
		assert.Equal(t, [2]float32{}, v.TexCoord)
	}
	assert.Same(t, m, l.Get("tri"))
}

func TestLoadGLBFileIsCachedByPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.glb")
	glb := packGLB(triangleDocument(t, "", nil), triangleBuffer())
	require.NoError(t, os.WriteFile(path, glb, 0o644))

	l := NewLoader()
	first, err := l.Load(path)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 3, first[0].IndexCount())

	require.NoError(t, os.Remove(path))
	second, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first[0], second[0])
	assert.Equal(t, []string{"tri"}, l.Names())
}

func TestLoadResolvesExternalBuffer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.bin"), triangleBuffer(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.gltf"), triangleDocument(t, "tri.bin", nil), 0o644))

	models, err := NewLoader().Load(filepath.Join(dir, "scene.gltf"))
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.NoError(t, models[0].Validate())
}

func TestLoadReaderOptionalAttributes(t *testing.T) {
	raw := append(triangleBuffer(), 0, 0)
	for _, f := range []float32{0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 0, 1, 0, 0, 1} {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(f))
	}
	doc := triangleDocument(t, dataURI(raw), func(doc map[string]any) {
		doc["buffers"].([]any)[0].(map[string]any)["byteLength"] = len(raw)
		doc["bufferViews"] = append(doc["bufferViews"].([]any),
			map[string]any{"buffer": 0, "byteOffset": 44, "byteLength": 36},
			map[string]any{"buffer": 0, "byteOffset": 80, "byteLength": 24},
		)
		doc["accessors"] = append(doc["accessors"].([]any),
			map[string]any{"bufferView": 2, "componentType": gltfFloat, "count": 3, "type": "VEC3"},
			map[string]any{"bufferView": 3, "componentType": gltfFloat, "count": 3, "type": "VEC2"},
		)
		attrs := primitive(doc)["attributes"].(map[string]any)
		attrs["NORMAL"] = 2
		attrs["TEXCOORD_0"] = 3
	})

	models, err := NewLoader().LoadReader("tri", bytes.NewReader(doc), false)
	require.NoError(t, err)
	v := models[0].Vertices()
	assert.Equal(t, [3]float32{0, 1, 0}, v[0].Normal)
	assert.Equal(t, [2]float32{1, 0}, v[1].TexCoord)
	assert.Equal(t, [2]float32{0, 1}, v[2].TexCoord)
}

func TestLoadReaderGeneratesSequentialIndices(t *testing.T) {
	doc := triangleDocument(t, dataURI(triangleBuffer()), func(doc map[string]any) {
		delete(primitive(doc), "indices")
	})

	models, err := NewLoader().LoadReader("tri", bytes.NewReader(doc), false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, models[0].Indices())
}

func TestLoadReaderNaming(t *testing.T) {
	doc := triangleDocument(t, dataURI(triangleBuffer()), func(doc map[string]any) {
		mesh := doc["meshes"].([]any)[0].(map[string]any)
		delete(mesh, "name")
		prims := mesh["primitives"].([]any)
		mesh["primitives"] = append(prims, prims[0])
	})

	l := NewLoader()
	models, err := l.LoadReader("asset", bytes.NewReader(doc), false)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "asset_mesh0_prim0", models[0].Name())
	assert.Equal(t, "asset_mesh0_prim1", models[1].Name())
	assert.Equal(t, []string{"asset_mesh0_prim0", "asset_mesh0_prim1"}, l.Names())
}

func TestLoadReaderSkipUnsupported(t *testing.T) {
	doc := triangleDocument(t, dataURI(triangleBuffer()), func(doc map[string]any) {
		primitive(doc)["mode"] = 1
	})

	_, err := NewLoader().LoadReader("lines", bytes.NewReader(doc), false)
	assert.ErrorIs(t, err, ErrUnsupportedTopology)

	models, err := NewLoader(WithSkipUnsupported(true)).LoadReader("lines", bytes.NewReader(doc), false)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestLoadErrors(t *testing.T) {
	uri := dataURI(triangleBuffer())
	tests := []struct {
		name  string
		data  []byte
		isGLB bool
		want  error
	}{
		{
			name: "version",
			data: triangleDocument(t, uri, func(doc map[string]any) { doc["asset"] = map[string]any{"version": "1.0"} }),
			want: errInvalidGLTFVersion,
		},
		{
			name: "missing positions",
			data: triangleDocument(t, uri, func(doc map[string]any) { primitive(doc)["attributes"] = map[string]any{} }),
			want: ErrMissingPositions,
		},
		{
			name: "accessor past buffer",
			data: triangleDocument(t, uri, func(doc map[string]any) {
				doc["accessors"].([]any)[0].(map[string]any)["count"] = 4
			}),
			want: errOutOfRange,
		},
		{
			name: "bad data uri",
			data: triangleDocument(t, "data:application/octet-stream,plain", nil),
			want: errInvalidBufferURI,
		},
		{
			name:  "glb magic",
			data:  append([]byte("nope"), make([]byte, 16)...),
			isGLB: true,
			want:  errInvalidGLB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().LoadReader(tt.name, bytes.NewReader(tt.data), tt.isGLB)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := NewLoader().Load("mesh.obj")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWithModelPrepopulatesCache(t *testing.T) {
	cube := model.Cube("cube", 1)
	l := NewLoader(WithModel(cube))
	assert.Same(t, cube, l.Get("cube"))
	assert.Nil(t, l.Get("missing"))
}
