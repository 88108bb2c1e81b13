package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"poolmind/internal/detect"
	"poolmind/internal/geom"
	"poolmind/internal/vision"
)

// MarkerColors are the fill colors the simulator paints its corner
// fiducials with, keyed by marker ID. The matching detector ranges come
// from SimMarkerRanges.
var MarkerColors = map[int]color.RGBA{
	0: {255, 0, 0, 255},   // top-left, red
	1: {255, 255, 0, 255}, // top-right, yellow
	2: {0, 0, 255, 255},   // bottom-right, blue
	3: {255, 0, 255, 255}, // bottom-left, magenta
}

// SimMarkerRanges returns HSV ranges matched to MarkerColors.
func SimMarkerRanges() map[int]vision.HSVRange {
	return map[int]vision.HSVRange{
		0: {HMin: 350, HMax: 10, SMin: 0.8, SMax: 1, VMin: 0.8, VMax: 1},
		1: {HMin: 50, HMax: 70, SMin: 0.8, SMax: 1, VMin: 0.8, VMax: 1},
		2: {HMin: 230, HMax: 250, SMin: 0.8, SMax: 1, VMin: 0.8, VMax: 1},
		3: {HMin: 290, HMax: 310, SMin: 0.8, SMax: 1, VMin: 0.8, VMax: 1},
	}
}

// SimCloth is the simulator's felt color.
var SimCloth = color.RGBA{20, 110, 60, 255}

// Ball fill colors chosen to land in the stock class heuristic and stay
// clear of the fiducial ranges.
var (
	BallWhite = color.RGBA{245, 245, 245, 255}
	BallRed   = color.RGBA{200, 30, 40, 255}
	BallBlue  = color.RGBA{30, 80, 200, 255}
	BallBlack = color.RGBA{25, 25, 25, 255}
)

// SimBall scripts one ball. The ball moves linearly from Start and
// disappears at frame PotAt (0 keeps it on the table forever).
type SimBall struct {
	Class  detect.BallClass
	Color  color.RGBA
	Start  geom.Point
	Vel    geom.Point
	Radius float64
	PotAt  uint64
}

// SimConfig describes the synthetic scene.
type SimConfig struct {
	Width, Height int
	MarkerSize    int
	MarkerInset   int
	// FPS paces Next when positive; zero renders as fast as the
	// consumer pulls, which tests rely on.
	FPS   int
	Balls []SimBall
}

// Validate checks the scene dimensions.
func (c SimConfig) Validate() error {
	if c.Width < 64 || c.Height < 64 {
		return fmt.Errorf("capture: simulator scene %dx%d too small", c.Width, c.Height)
	}
	return nil
}

// Simulator renders a synthetic overhead view of a pool table: green
// cloth, four colored corner fiducials and scripted balls. It exists so
// the whole pipeline runs without a camera.
type Simulator struct {
	cfg    SimConfig
	seq    uint64
	ticker *time.Ticker
}

var _ Source = (*Simulator)(nil)

// NewSimulator builds a simulator source.
func NewSimulator(cfg SimConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MarkerSize <= 0 {
		cfg.MarkerSize = 16
	}
	if cfg.MarkerInset <= 0 {
		cfg.MarkerInset = 24
	}
	s := &Simulator{cfg: cfg}
	if cfg.FPS > 0 {
		s.ticker = time.NewTicker(time.Second / time.Duration(cfg.FPS))
	}
	return s, nil
}

// MarkerCenters returns where each fiducial is painted, keyed by ID.
func (s *Simulator) MarkerCenters() map[int]geom.Point {
	in := float64(s.cfg.MarkerInset)
	w := float64(s.cfg.Width)
	h := float64(s.cfg.Height)
	return map[int]geom.Point{
		0: {X: in, Y: in},
		1: {X: w - in, Y: in},
		2: {X: w - in, Y: h - in},
		3: {X: in, Y: h - in},
	}
}

// Next renders the next frame of the scripted scene.
func (s *Simulator) Next(ctx context.Context) (vision.Frame, error) {
	if s.ticker != nil {
		select {
		case <-ctx.Done():
			return vision.Frame{}, ctx.Err()
		case <-s.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return vision.Frame{}, err
	}

	img := image.NewRGBA(image.Rect(0, 0, s.cfg.Width, s.cfg.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(SimCloth), image.Point{}, draw.Src)

	half := s.cfg.MarkerSize / 2
	for id, center := range s.MarkerCenters() {
		rect := image.Rect(int(center.X)-half, int(center.Y)-half, int(center.X)+half, int(center.Y)+half)
		draw.Draw(img, rect.Intersect(img.Bounds()), image.NewUniform(MarkerColors[id]), image.Point{}, draw.Src)
	}

	for _, b := range s.cfg.Balls {
		if b.PotAt != 0 && s.seq >= b.PotAt {
			continue
		}
		pos := geom.Point{
			X: b.Start.X + b.Vel.X*float64(s.seq),
			Y: b.Start.Y + b.Vel.Y*float64(s.seq),
		}
		fillDisc(img, pos, b.Radius, b.Color)
	}

	s.seq++
	return vision.Frame{Image: img, Seq: s.seq, Timestamp: time.Now()}, nil
}

// Close releases the pacing ticker.
func (s *Simulator) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}

func fillDisc(img *image.RGBA, center geom.Point, radius float64, c color.RGBA) {
	if radius <= 0 {
		return
	}
	bounds := img.Bounds()
	r2 := radius * radius
	for y := int(center.Y - radius); y <= int(center.Y+radius); y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := int(center.X - radius); x <= int(center.X+radius); x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			dx := float64(x) - center.X
			dy := float64(y) - center.Y
			if dx*dx+dy*dy <= r2 {
				img.SetRGBA(x, y, c)
			}
		}
	}
}
