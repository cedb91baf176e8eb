package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/engine/model"
)

// ErrUnsupportedFormat is returned by Load for files that are neither .gltf nor .glb.
var ErrUnsupportedFormat = errors.New("loader: unsupported model file format")

// loader is the implementation of the Loader interface.
type loader struct {
	mu *sync.Mutex

	models map[string]model.Model
	files  map[string][]model.Model

	skipUnsupported bool
}

// Loader imports triangle geometry from glTF 2.0 files and caches the resulting models.
// Every mesh primitive becomes one model.Model ready to be handed to scene.Group.CreateObject.
type Loader interface {
	// Load imports a .gltf or .glb file. Repeated loads of the same path return the cached models.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - []model.Model: one model per mesh primitive, in document order
	//   - error: error if the file cannot be read or holds unsupported geometry
	Load(path string) ([]model.Model, error)

	// LoadReader imports a glTF document from a stream. External buffer URIs are resolved
	// against the working directory, embedded data URIs and GLB chunks need nothing else.
	//
	// Parameters:
	//   - name: the fallback name for unnamed meshes
	//   - r: the reader providing the document
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - []model.Model: one model per mesh primitive, in document order
	//   - error: error if parsing fails
	LoadReader(name string, r io.Reader, isGLB bool) ([]model.Model, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the model name to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Names returns the names of every cached model, sorted.
	//
	// Returns:
	//   - []string: the cached model names
	Names() []string
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the provided options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new Loader instance
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:     &sync.Mutex{},
		models: make(map[string]model.Model),
		files:  make(map[string][]model.Model),
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) ([]model.Model, error) {
	clean := filepath.Clean(path)

	l.mu.Lock()
	cached, ok := l.files[clean]
	l.mu.Unlock()
	if ok {
		return slices.Clone(cached), nil
	}

	ext := strings.ToLower(filepath.Ext(clean))
	if ext != ".gltf" && ext != ".glb" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(clean), filepath.Ext(clean))
	models, err := l.decode(data, ext == ".glb" || isGLBData(data), filepath.Dir(clean), base)
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", path, err)
	}

	l.mu.Lock()
	l.files[clean] = models
	l.mu.Unlock()
	return slices.Clone(models), nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) ([]model.Model, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}

	models, err := l.decode(buf.Bytes(), isGLB, ".", name)
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", name, err)
	}
	return models, nil
}

func (l *loader) Get(name string) model.Model {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.models[name]
}

func (l *loader) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.models))
	for name := range l.models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// decode parses a document, extracts its models and caches them by name.
// A later model replaces a cached one of the same name.
func (l *loader) decode(data []byte, isGLB bool, baseDir, fallback string) ([]model.Model, error) {
	doc, err := parseDocument(data, isGLB, baseDir)
	if err != nil {
		return nil, err
	}

	models, err := extractModels(doc, fallback, l.skipUnsupported)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	for _, m := range models {
		l.models[m.Name()] = m
	}
	l.mu.Unlock()
	return models, nil
}
