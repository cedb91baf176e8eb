package engine

import "github.com/Carmen-Shannon/oxy-scene/common"

// FrameDriverOption is a functional option for configuring a frameDriver.
type FrameDriverOption func(*frameDriver)

// WithVerboseFrameLogging logs every skipped frame and its cause.
//
// Parameters:
//   - verbose: true to log skipped frames
//
// Returns:
//   - FrameDriverOption: option function to apply
func WithVerboseFrameLogging(verbose bool) FrameDriverOption {
	return func(fd *frameDriver) {
		fd.verbose = verbose
	}
}

// WithInitialExtent schedules the first target set build at extent.
//
// Parameters:
//   - extent: the initial drawable size in pixels
//
// Returns:
//   - FrameDriverOption: option function to apply
func WithInitialExtent(extent common.Extent) FrameDriverOption {
	return func(fd *frameDriver) {
		fd.extent = extent
		fd.resizePending = true
	}
}
