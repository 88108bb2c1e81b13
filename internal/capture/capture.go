// Package capture produces frames for the pipeline, either from a real
// overhead camera via ffmpeg or from a synthetic table simulator.
package capture

import (
	"context"

	"poolmind/internal/vision"
)

// Source yields frames in capture order. Next blocks until a frame is
// available or the context ends; implementations are safe for a single
// consumer.
type Source interface {
	Next(ctx context.Context) (vision.Frame, error)
	Close() error
}

// Stats counts a source's frame flow.
type Stats struct {
	FramesCaptured uint64 `json:"frames_captured"`
	FramesDropped  uint64 `json:"frames_dropped"`
	LastFrameUnix  int64  `json:"last_frame_time"`
}
