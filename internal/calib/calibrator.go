// Package calib maintains the camera-to-table perspective calibration. It
// locates corner fiducials in each raw frame, solves a projective transform
// when all four are visible, and smooths successive solves with an
// exponential moving average so downstream rectification stays stable under
// marker jitter.
package calib

import (
	"fmt"
	"image"

	"poolmind/internal/geom"
	"poolmind/internal/vision"
)

// Status describes the outcome of processing one frame.
type Status string

const (
	// StatusUpdated means a fresh solve was blended into the estimate.
	StatusUpdated Status = "updated"
	// StatusInsufficient means fewer than the required fiducials were
	// visible; the previous estimate is retained unchanged.
	StatusInsufficient Status = "insufficient_markers"
	// StatusDegenerate means fiducials were found but in a configuration
	// too ill-conditioned to solve; the previous estimate is retained.
	StatusDegenerate Status = "degenerate"
)

// State is a snapshot of the current calibration.
type State struct {
	Transform   geom.Homography
	Inverse     geom.Homography
	SeenMarkers []int // Fiducial IDs found in the most recent raw frame
	Established bool  // At least one valid solve has occurred
	LastStatus  Status
}

// Config holds calibrator parameters.
type Config struct {
	// CornerIDs are the four fiducial IDs in canonical corner order:
	// top-left, top-right, bottom-right, bottom-left.
	CornerIDs [4]int
	// TableW, TableH are the canonical table dimensions in pixels.
	TableW int
	TableH int
	// Alpha is the EMA smoothing factor in (0,1]. Small values favor
	// stability, large values responsiveness.
	Alpha float64
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha > 1 {
		return fmt.Errorf("calibration alpha must be in (0,1], got %v", c.Alpha)
	}
	if c.TableW < 2 || c.TableH < 2 {
		return fmt.Errorf("canonical table size %dx%d too small", c.TableW, c.TableH)
	}
	return nil
}

// Calibrator owns the CalibrationState. It is mutated only by Process,
// which the pipeline calls once per frame from a single goroutine.
type Calibrator struct {
	cfg    Config
	finder vision.FiducialFinder
	dst    [4]geom.Point

	state State
}

// New builds a calibrator using the given fiducial capability.
func New(cfg Config, finder vision.FiducialFinder) (*Calibrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := float64(cfg.TableW)
	h := float64(cfg.TableH)
	return &Calibrator{
		cfg:    cfg,
		finder: finder,
		dst: [4]geom.Point{
			{X: 0, Y: 0},
			{X: w - 1, Y: 0},
			{X: w - 1, Y: h - 1},
			{X: 0, Y: h - 1},
		},
	}, nil
}

// Process locates fiducials in the raw frame and updates the smoothed
// transform. It never regresses an established calibration: on any failure
// the previous estimate is retained and only the status changes.
func (c *Calibrator) Process(img *image.RGBA) Status {
	found := c.finder.FindFiducials(img)

	seen := make([]int, 0, len(found))
	for _, id := range c.cfg.CornerIDs {
		if _, ok := found[id]; ok {
			seen = append(seen, id)
		}
	}
	c.state.SeenMarkers = seen

	if len(seen) < len(c.cfg.CornerIDs) {
		c.state.LastStatus = StatusInsufficient
		return StatusInsufficient
	}

	src := make([]geom.Point, len(c.cfg.CornerIDs))
	for i, id := range c.cfg.CornerIDs {
		src[i] = found[id]
	}

	raw, err := geom.Solve(src, c.dst[:])
	if err != nil {
		c.state.LastStatus = StatusDegenerate
		return StatusDegenerate
	}

	next := raw.Normalized()
	if c.state.Established {
		next = c.state.Transform.Blend(raw, c.cfg.Alpha)
	}

	inv, err := next.Inverse()
	if err != nil {
		// The blended estimate is unusable; keep the prior state intact.
		c.state.LastStatus = StatusDegenerate
		return StatusDegenerate
	}

	c.state.Transform = next
	c.state.Inverse = inv
	c.state.Established = true
	c.state.LastStatus = StatusUpdated
	return StatusUpdated
}

// State returns a copy of the current calibration state.
func (c *Calibrator) State() State {
	s := c.state
	s.SeenMarkers = append([]int(nil), c.state.SeenMarkers...)
	return s
}
