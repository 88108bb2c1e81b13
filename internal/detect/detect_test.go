package detect

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"poolmind/internal/vision"
)

var clothColor = color.RGBA{20, 120, 60, 255}
var clothRange = vision.HSVRange{HMin: 80, HMax: 170, SMin: 0.3, SMax: 1, VMin: 0.1, VMax: 1}

func clothFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(clothColor), image.Point{}, draw.Src)
	return img
}

func drawBall(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if math.Hypot(float64(x-cx), float64(y-cy)) <= float64(r) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func testConfig() Config {
	return Config{
		Cloth:         clothRange,
		MinRadius:     8,
		MaxRadius:     18,
		MinSeparation: 16,
		Rules:         DefaultRules(),
	}
}

func TestDetectClassifiesBalls(t *testing.T) {
	img := clothFrame(400, 200)
	drawBall(img, 60, 60, 12, color.RGBA{245, 245, 245, 255}) // cue
	drawBall(img, 150, 60, 12, color.RGBA{200, 30, 30, 255})  // solid (red)
	drawBall(img, 240, 60, 12, color.RGBA{30, 30, 200, 255})  // stripe (blue)
	drawBall(img, 330, 60, 12, color.RGBA{20, 20, 20, 255})   // eight

	d, err := New(testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	dets := d.Detect(img)
	if len(dets) != 4 {
		t.Fatalf("expected 4 detections, got %d", len(dets))
	}

	byClass := map[BallClass]int{}
	for _, det := range dets {
		byClass[det.Class]++
		if det.Radius < 8 || det.Radius > 18 {
			t.Errorf("radius %v outside configured band", det.Radius)
		}
	}
	for _, want := range []BallClass{ClassCue, ClassSolid, ClassStripe, ClassEight} {
		if byClass[want] != 1 {
			t.Errorf("class %s count = %d, want 1 (all: %v)", want, byClass[want], byClass)
		}
	}
}

func TestDetectEmptyTable(t *testing.T) {
	d, _ := New(testConfig(), nil)
	if dets := d.Detect(clothFrame(400, 200)); len(dets) != 0 {
		t.Fatalf("expected no detections on empty cloth, got %d", len(dets))
	}
}

func TestDetectSuppressesRadiusOutliers(t *testing.T) {
	img := clothFrame(400, 200)
	drawBall(img, 60, 100, 4, color.RGBA{245, 245, 245, 255})   // speck
	drawBall(img, 200, 100, 50, color.RGBA{245, 245, 245, 255}) // glare patch

	d, _ := New(testConfig(), nil)
	if dets := d.Detect(img); len(dets) != 0 {
		t.Fatalf("radius outliers must be suppressed, got %d detections", len(dets))
	}
}

func TestDetectIsStateless(t *testing.T) {
	img := clothFrame(400, 200)
	drawBall(img, 60, 60, 12, color.RGBA{245, 245, 245, 255})

	d, _ := New(testConfig(), nil)
	first := d.Detect(img)
	second := d.Detect(img)
	if len(first) != len(second) {
		t.Fatalf("repeat detection differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("detection %d differs between identical calls", i)
		}
	}
}

func TestDetectWithBlur(t *testing.T) {
	img := clothFrame(400, 200)
	drawBall(img, 100, 100, 12, color.RGBA{200, 30, 30, 255})

	cfg := testConfig()
	cfg.BlurSigma = 1.0
	d, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	dets := d.Detect(img)
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection after blur, got %d", len(dets))
	}
	if math.Abs(dets[0].Center.X-100) > 2 || math.Abs(dets[0].Center.Y-100) > 2 {
		t.Errorf("center drifted under blur: %+v", dets[0].Center)
	}
}
