// Package detect finds candidate balls in a rectified frame and classifies
// them into the closed ball-class set. Detection is stateless: every call
// is independent and temporal behavior belongs entirely to the tracker.
package detect

import (
	"fmt"
	"image"

	"github.com/disintegration/gift"

	"poolmind/internal/geom"
	"poolmind/internal/vision"
)

// BallClass is the closed classification set for detected objects.
type BallClass string

const (
	ClassUnknown BallClass = "unknown"
	ClassCue     BallClass = "cue"
	ClassSolid   BallClass = "solid"
	ClassStripe  BallClass = "stripe"
	ClassEight   BallClass = "eight"
)

// Classes lists every class a detection can carry, unknown included.
var Classes = []BallClass{ClassCue, ClassSolid, ClassStripe, ClassEight, ClassUnknown}

// Detection is one candidate ball in canonical coordinates. Detections are
// ephemeral: produced and consumed within a single frame cycle.
type Detection struct {
	Center geom.Point `json:"center"`
	Radius float64    `json:"radius"`
	Class  BallClass  `json:"class"`
	Score  float64    `json:"score"`
}

// ClassRule maps an HSV range to a ball class. Rules are evaluated in
// order; the first range containing the sampled color wins.
type ClassRule struct {
	Class BallClass
	Range vision.HSVRange
}

// Config holds detector parameters.
type Config struct {
	// Cloth is the color range of the playing surface, masked out before
	// the circle search.
	Cloth vision.HSVRange
	// MinRadius, MaxRadius bound accepted ball radii (canonical pixels).
	MinRadius float64
	MaxRadius float64
	// MinSeparation suppresses candidates closer than this to a
	// higher-confidence one.
	MinSeparation float64
	// BlurSigma is the Gaussian pre-blur; zero disables it.
	BlurSigma float32
	// Rules classify a candidate from its sampled interior color.
	Rules []ClassRule
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.MinRadius <= 0 || c.MaxRadius < c.MinRadius {
		return fmt.Errorf("invalid radius band [%v,%v]", c.MinRadius, c.MaxRadius)
	}
	if c.MinSeparation < 0 {
		return fmt.Errorf("min separation must be non-negative, got %v", c.MinSeparation)
	}
	return nil
}

// DefaultRules mirrors the stock classification heuristic: bright
// unsaturated is the cue ball, very dark is the eight, saturated warm hues
// are solids and the remaining saturated hues stripes.
func DefaultRules() []ClassRule {
	return []ClassRule{
		{Class: ClassCue, Range: vision.HSVRange{HMin: 0, HMax: 360, SMin: 0, SMax: 0.25, VMin: 0.75, VMax: 1}},
		{Class: ClassEight, Range: vision.HSVRange{HMin: 0, HMax: 360, SMin: 0, SMax: 1, VMin: 0, VMax: 0.22}},
		{Class: ClassSolid, Range: vision.HSVRange{HMin: 330, HMax: 80, SMin: 0.4, SMax: 1, VMin: 0.22, VMax: 1}},
		{Class: ClassStripe, Range: vision.HSVRange{HMin: 80, HMax: 330, SMin: 0.4, SMax: 1, VMin: 0.22, VMax: 1}},
	}
}

// Detector turns a canonical frame into ball detections.
type Detector struct {
	cfg     Config
	circles vision.CircleFinder
	blur    *gift.GIFT
}

// New builds a detector over the given circle capability.
func New(cfg Config, circles vision.CircleFinder) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if circles == nil {
		circles = &vision.BlobCircleFinder{
			MinRadius:     cfg.MinRadius,
			MaxRadius:     cfg.MaxRadius,
			MinSeparation: cfg.MinSeparation,
		}
	}
	d := &Detector{cfg: cfg, circles: circles}
	if cfg.BlurSigma > 0 {
		d.blur = gift.New(gift.GaussianBlur(cfg.BlurSigma))
	}
	return d, nil
}

// Detect runs the two-step search: mask out the cloth, then extract and
// classify circle candidates from the foreground.
func (d *Detector) Detect(canonical *image.RGBA) []Detection {
	img := canonical
	if d.blur != nil {
		smoothed := image.NewRGBA(d.blur.Bounds(canonical.Bounds()))
		d.blur.Draw(smoothed, canonical)
		img = smoothed
	}

	mask := vision.MaskNotInRange(img, d.cfg.Cloth)
	circles := d.circles.FindCircles(mask)

	detections := make([]Detection, 0, len(circles))
	for _, c := range circles {
		if c.Radius < d.cfg.MinRadius || c.Radius > d.cfg.MaxRadius {
			continue
		}
		detections = append(detections, Detection{
			Center: c.Center,
			Radius: c.Radius,
			Class:  d.classify(img, c),
			Score:  c.Score,
		})
	}
	return detections
}

// classify samples the interior color of a candidate against the rules.
// The sample window is the center third of the ball so edge pixels and
// cloth bleed do not vote.
func (d *Detector) classify(img *image.RGBA, c vision.Circle) BallClass {
	sample := int(c.Radius / 3)
	if sample < 3 {
		sample = 3
	}
	cx, cy := int(c.Center.X), int(c.Center.Y)
	mean := vision.MeanHSV(img, image.Rect(cx-sample, cy-sample, cx+sample+1, cy+sample+1))

	for _, rule := range d.cfg.Rules {
		if rule.Range.Contains(mean) {
			return rule.Class
		}
	}
	return ClassUnknown
}
