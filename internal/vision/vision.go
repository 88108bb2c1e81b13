// Package vision holds the frame type and the capability interfaces the
// pipeline consumes for low-level computer vision: fiducial marker location
// and circle candidate extraction. The pure-Go backends in this package are
// the built-in implementations; alternative backends (an external CV
// service, a hardware ISP) only need to satisfy the same interfaces.
package vision

import (
	"image"
	"time"

	"poolmind/internal/geom"
)

// Frame is a timestamped raster image moving through the pipeline.
type Frame struct {
	Image     *image.RGBA
	Seq       uint64
	Timestamp time.Time
}

// Circle is a round-object candidate found in a foreground mask.
type Circle struct {
	Center geom.Point
	Radius float64
	Score  float64 // Fill ratio in [0,1]; higher means rounder
}

// FiducialFinder locates reference markers in a raw camera frame and
// reports the image-space center of each marker found, keyed by marker ID.
type FiducialFinder interface {
	FindFiducials(img *image.RGBA) map[int]geom.Point
}

// CircleFinder extracts circle candidates from a binary foreground mask.
type CircleFinder interface {
	FindCircles(mask *Mask) []Circle
}
