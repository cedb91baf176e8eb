package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.x")
	errInvalidGLB         = errors.New("invalid GLB container")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI   = errors.New("invalid buffer URI")
	errOutOfRange         = errors.New("accessor reads past the end of its buffer")
)

// isGLBData reports whether data starts with the GLB magic.
func isGLBData(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == glbMagic
}

// parseDocument decodes a .gltf or .glb payload and resolves every buffer.
// External buffer URIs are resolved against baseDir.
func parseDocument(data []byte, isGLB bool, baseDir string) (*gltfDocument, error) {
	jsonData := data
	var binChunk []byte
	if isGLB {
		var err error
		if jsonData, binChunk, err = splitGLB(data); err != nil {
			return nil, err
		}
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return nil, fmt.Errorf("%w: got %q", errInvalidGLTFVersion, doc.Asset.Version)
	}

	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && binChunk != nil:
			buf.data = binChunk
		case buf.URI == "":
			return nil, fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		default:
			raw, err := readBufferURI(buf.URI, baseDir)
			if err != nil {
				return nil, fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.data = raw
		}
		if len(buf.data) < buf.ByteLength {
			return nil, fmt.Errorf("buffer %d: holds %d bytes, declares %d", i, len(buf.data), buf.ByteLength)
		}
	}

	return &doc, nil
}

// splitGLB returns the JSON and BIN chunks of a GLB container.
func splitGLB(data []byte) (jsonChunk, binChunk []byte, err error) {
	if len(data) < glbHeaderSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", errInvalidGLB, len(data))
	}
	if binary.LittleEndian.Uint32(data[0:4]) != glbMagic {
		return nil, nil, fmt.Errorf("%w: bad magic", errInvalidGLB)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != glbVersion {
		return nil, nil, fmt.Errorf("%w: version %d", errInvalidGLB, v)
	}

	rest := data[glbHeaderSize:]
	for len(rest) >= 8 {
		length := int(binary.LittleEndian.Uint32(rest[0:4]))
		chunkType := binary.LittleEndian.Uint32(rest[4:8])
		rest = rest[8:]
		if length > len(rest) {
			return nil, nil, fmt.Errorf("%w: chunk of %d bytes truncated", errInvalidGLB, length)
		}
		switch chunkType {
		case glbChunkJSON:
			jsonChunk = rest[:length]
		case glbChunkBIN:
			binChunk = rest[:length]
		}
		rest = rest[length:]
	}

	if jsonChunk == nil {
		return nil, nil, errMissingJSONChunk
	}
	return bytes.TrimRight(jsonChunk, " \x00"), binChunk, nil
}

// readBufferURI loads a base64 data URI or a file relative to baseDir.
func readBufferURI(uri, baseDir string) ([]byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		raw, err := os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(uri)))
		if err != nil {
			return nil, fmt.Errorf("failed to load buffer file %q: %w", uri, err)
		}
		return raw, nil
	}

	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, errInvalidBufferURI
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: unsupported encoding %q", errInvalidBufferURI, header)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return raw, nil
}

// accessorElements returns one byte slice per element of the accessor, honouring the view stride.
func (d *gltfDocument) accessorElements(index int) ([][]byte, *gltfAccessor, error) {
	if index < 0 || index >= len(d.Accessors) {
		return nil, nil, fmt.Errorf("accessor %d out of range", index)
	}
	acc := &d.Accessors[index]
	if acc.Sparse != nil {
		return nil, nil, fmt.Errorf("accessor %d: sparse accessors are not supported", index)
	}
	if acc.BufferView == nil || *acc.BufferView < 0 || *acc.BufferView >= len(d.BufferViews) {
		return nil, nil, fmt.Errorf("accessor %d has no valid bufferView", index)
	}
	view := &d.BufferViews[*acc.BufferView]
	if view.Buffer < 0 || view.Buffer >= len(d.Buffers) {
		return nil, nil, fmt.Errorf("bufferView %d references missing buffer %d", *acc.BufferView, view.Buffer)
	}

	elemSize := componentSize(acc.ComponentType) * componentCount(acc.Type)
	if elemSize == 0 {
		return nil, nil, fmt.Errorf("accessor %d: unsupported layout %s/%d", index, acc.Type, acc.ComponentType)
	}
	stride := elemSize
	if view.ByteStride != nil && *view.ByteStride > 0 {
		stride = *view.ByteStride
	}

	data := d.Buffers[view.Buffer].data
	viewEnd := view.ByteOffset + view.ByteLength
	if viewEnd > len(data) {
		return nil, nil, fmt.Errorf("accessor %d: %w", index, errOutOfRange)
	}

	elems := make([][]byte, acc.Count)
	for i := range elems {
		start := view.ByteOffset + acc.ByteOffset + i*stride
		if start+elemSize > viewEnd {
			return nil, nil, fmt.Errorf("accessor %d: %w", index, errOutOfRange)
		}
		elems[i] = data[start : start+elemSize]
	}
	return elems, acc, nil
}

// readFloats reads a FLOAT accessor of the given type into n-component vectors.
func (d *gltfDocument) readFloats(index int, accessorType string) ([][]float32, error) {
	elems, acc, err := d.accessorElements(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != accessorType || acc.ComponentType != gltfFloat {
		return nil, fmt.Errorf("accessor %d is %s/%d, want %s FLOAT", index, acc.Type, acc.ComponentType, accessorType)
	}

	n := componentCount(accessorType)
	out := make([][]float32, len(elems))
	for i, elem := range elems {
		v := make([]float32, n)
		for c := range v {
			v[c] = math.Float32frombits(binary.LittleEndian.Uint32(elem[c*4:]))
		}
		out[i] = v
	}
	return out, nil
}

// readIndices reads an unsigned SCALAR accessor widened to uint32.
func (d *gltfDocument) readIndices(index int) ([]uint32, error) {
	elems, acc, err := d.accessorElements(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != "SCALAR" {
		return nil, fmt.Errorf("index accessor %d is %s, want SCALAR", index, acc.Type)
	}

	out := make([]uint32, len(elems))
	for i, elem := range elems {
		switch acc.ComponentType {
		case gltfUnsignedByte:
			out[i] = uint32(elem[0])
		case gltfUnsignedShort:
			out[i] = uint32(binary.LittleEndian.Uint16(elem))
		case gltfUnsignedInt:
			out[i] = binary.LittleEndian.Uint32(elem)
		default:
			return nil, fmt.Errorf("index accessor %d: unsupported component type %d", index, acc.ComponentType)
		}
	}
	return out, nil
}
