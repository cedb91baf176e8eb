package loader

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithModel pre-populates the model cache, keyed by the model's name.
//
// Parameters:
//   - m: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(m model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.models[m.Name()] = m
	}
}

// WithSkipUnsupported drops primitives with a non-triangle topology instead of failing the whole file.
//
// Parameters:
//   - skip: true to log and skip unsupported primitives
//
// Returns:
//   - LoaderBuilderOption: a function that applies the option to a loader
func WithSkipUnsupported(skip bool) LoaderBuilderOption {
	return func(l *loader) {
		l.skipUnsupported = skip
	}
}
