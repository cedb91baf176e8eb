package scene

import "github.com/Carmen-Shannon/oxy-scene/engine/camera"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithCamera sets the scene camera. By default a new UniformCamera with the default configuration is created.
//
// Parameters:
//   - cam: the camera to use
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(cam camera.UniformCamera) SceneBuilderOption {
	return func(s *scene) {
		s.cam = cam
	}
}

// WithRebuildWorkers sets the number of worker goroutines used to rebuild stale object batches in parallel
// before the submission list is assembled. The caller still blocks until every rebuild is done.
// Defaults to 1, which rebuilds serially without a pool.
//
// Parameters:
//   - n: the number of rebuild workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithRebuildWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.rebuildWorkers = n
	}
}
