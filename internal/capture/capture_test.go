package capture

import (
	"context"
	"testing"

	"poolmind/internal/detect"
	"poolmind/internal/geom"
	"poolmind/internal/vision"
)

func TestExtractJPEGFrame(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}
	buffer := append([]byte{0x00, 0x11}, frame...) // leading garbage
	buffer = append(buffer, 0xFF, 0xD8, 0x04)      // start of the next frame

	got := extractJPEGFrame(&buffer)
	if len(got) != len(frame) {
		t.Fatalf("frame length = %d, want %d", len(got), len(frame))
	}
	for i := range frame {
		if got[i] != frame[i] {
			t.Fatalf("frame[%d] = %#x, want %#x", i, got[i], frame[i])
		}
	}

	// The partial second frame stays buffered.
	if extractJPEGFrame(&buffer) != nil {
		t.Fatal("extracted a frame without an end marker")
	}
	if len(buffer) != 3 {
		t.Fatalf("remainder length = %d, want 3", len(buffer))
	}
}

func TestExtractJPEGFrameNoStart(t *testing.T) {
	buffer := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	if extractJPEGFrame(&buffer) != nil {
		t.Fatal("extracted a frame with no start marker")
	}
}

func TestSimulatorPaintsMarkersAndCloth(t *testing.T) {
	sim, err := NewSimulator(SimConfig{Width: 320, Height: 160})
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	defer sim.Close()

	frame, err := sim.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if frame.Seq != 1 {
		t.Fatalf("seq = %d, want 1", frame.Seq)
	}

	if got := frame.Image.RGBAAt(160, 80); got != SimCloth {
		t.Fatalf("cloth pixel = %+v, want %+v", got, SimCloth)
	}
	for id, center := range sim.MarkerCenters() {
		got := frame.Image.RGBAAt(int(center.X), int(center.Y))
		if got != MarkerColors[id] {
			t.Fatalf("marker %d pixel = %+v, want %+v", id, got, MarkerColors[id])
		}
	}
}

func TestSimulatorMarkerRangesMatchColors(t *testing.T) {
	ranges := SimMarkerRanges()
	for id, c := range MarkerColors {
		hsv := vision.RGBToHSV(c.R, c.G, c.B)
		if !ranges[id].Contains(hsv) {
			t.Fatalf("marker %d color %+v outside its range (hsv %+v)", id, c, hsv)
		}
	}
}

func TestSimulatorScriptsBallMotionAndPot(t *testing.T) {
	ball := SimBall{
		Class:  detect.ClassSolid,
		Color:  MarkerColors[1], // any saturated color
		Start:  geom.Point{X: 100, Y: 80},
		Vel:    geom.Point{X: 10, Y: 0},
		Radius: 8,
		PotAt:  2,
	}
	sim, err := NewSimulator(SimConfig{Width: 320, Height: 160, Balls: []SimBall{ball}})
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	defer sim.Close()

	ctx := context.Background()

	f0, _ := sim.Next(ctx)
	if f0.Image.RGBAAt(100, 80) != ball.Color {
		t.Fatal("ball missing at its start position")
	}

	f1, _ := sim.Next(ctx)
	if f1.Image.RGBAAt(110, 80) != ball.Color {
		t.Fatal("ball did not advance along its velocity")
	}

	// From frame index PotAt on, the ball is gone.
	f2, _ := sim.Next(ctx)
	if f2.Image.RGBAAt(120, 80) == ball.Color {
		t.Fatal("potted ball still rendered")
	}
}

func TestSimulatorHonorsContext(t *testing.T) {
	sim, err := NewSimulator(SimConfig{Width: 320, Height: 160})
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	defer sim.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.Next(ctx); err == nil {
		t.Fatal("Next ignored a cancelled context")
	}
}
