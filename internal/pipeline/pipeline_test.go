package pipeline

import (
	"context"
	"image/color"
	"testing"

	"poolmind/internal/calib"
	"poolmind/internal/capture"
	"poolmind/internal/detect"
	"poolmind/internal/game"
	"poolmind/internal/geom"
	"poolmind/internal/hub"
	"poolmind/internal/overlay"
	"poolmind/internal/table"
	"poolmind/internal/track"
	"poolmind/internal/vision"
)

// The synthetic cloth color converts to roughly H=147 S=0.82 V=0.43.
var testCloth = vision.HSVRange{HMin: 120, HMax: 170, SMin: 0.4, SMax: 1, VMin: 0.2, VMax: 1}

// buildPipeline wires every real stage over the simulator scene.
func buildPipeline(t *testing.T, balls []capture.SimBall) (*Pipeline, *capture.Simulator, *hub.Hub) {
	t.Helper()

	sim, err := capture.NewSimulator(capture.SimConfig{
		Width: 400, Height: 200, MarkerInset: 24, Balls: balls,
	})
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	t.Cleanup(func() { sim.Close() })

	finder := vision.NewColorPatchFinder(capture.SimMarkerRanges(), 16)
	calibrator, err := calib.New(calib.Config{
		CornerIDs: [4]int{0, 1, 2, 3},
		TableW:    400,
		TableH:    200,
		Alpha:     0.5,
	}, finder)
	if err != nil {
		t.Fatalf("calib.New: %v", err)
	}

	tbl, err := table.New(table.Config{Width: 400, Height: 200, Margin: 30, PocketRadius: 25})
	if err != nil {
		t.Fatalf("table.New: %v", err)
	}

	detector, err := detect.New(detect.Config{
		Cloth:         testCloth,
		MinRadius:     6,
		MaxRadius:     20,
		MinSeparation: 12,
		Rules:         detect.DefaultRules(),
	}, nil)
	if err != nil {
		t.Fatalf("detect.New: %v", err)
	}

	tracker, err := track.New(track.Config{MaxMatchDistance: 40, MaxDisappeared: 2, HistoryLen: 10})
	if err != nil {
		t.Fatalf("track.New: %v", err)
	}

	engine, err := game.NewEngine(game.Config{PocketSlop: 1.2, ReappearWindow: 30, ReappearRadius: 20}, tbl)
	if err != nil {
		t.Fatalf("game.NewEngine: %v", err)
	}

	h := hub.New(32)
	p, err := New(Deps{
		Source:     sim,
		Calibrator: calibrator,
		Table:      tbl,
		Detector:   detector,
		Tracker:    tracker,
		Engine:     engine,
		Renderer:   overlay.NewRenderer(tbl),
		Hub:        h,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, sim, h
}

// step pulls one simulator frame through the pipeline.
func step(t *testing.T, p *Pipeline, sim *capture.Simulator) {
	t.Helper()
	frame, err := sim.Next(context.Background())
	if err != nil {
		t.Fatalf("sim.Next: %v", err)
	}
	p.safeProcess(frame)
}

// cameraPos converts a canonical table position to simulator camera
// space for a 400x200 scene with markers inset 24.
func cameraPos(canonical geom.Point) geom.Point {
	return geom.Point{
		X: 24 + canonical.X*(352.0/400.0),
		Y: 24 + canonical.Y*(152.0/200.0),
	}
}

func TestPipelineCalibratesAndTracksBall(t *testing.T) {
	ball := capture.SimBall{
		Class:  detect.ClassSolid,
		Color:  color.RGBA{200, 30, 40, 255}, // saturated red, classifies solid
		Start:  cameraPos(geom.Point{X: 200, Y: 100}),
		Radius: 10,
	}
	p, sim, h := buildPipeline(t, []capture.SimBall{ball})

	for i := 0; i < 3; i++ {
		step(t, p, sim)
	}

	snap, ok := h.Latest()
	if !ok {
		t.Fatal("no snapshot committed")
	}
	if !snap.Calibration.Established {
		t.Fatalf("calibration not established: %+v", snap.Calibration)
	}
	if len(snap.Tracks) != 1 {
		t.Fatalf("tracks = %d, want 1 (%+v)", len(snap.Tracks), snap.Tracks)
	}
	tr := snap.Tracks[0]
	if tr.Class != detect.ClassSolid {
		t.Fatalf("class = %v", tr.Class)
	}
	if geom.Dist(tr.LastPosition, geom.Point{X: 200, Y: 100}) > 6 {
		t.Fatalf("canonical position = %+v, want near (200,100)", tr.LastPosition)
	}
	if snap.Game.Phase != game.PhaseBreak {
		t.Fatalf("phase = %v", snap.Game.Phase)
	}
}

func TestPipelinePotsBallAndAdvancesGame(t *testing.T) {
	// A solid sits on the top-left pocket and vanishes at frame 5.
	ball := capture.SimBall{
		Class:  detect.ClassSolid,
		Color:  color.RGBA{200, 30, 40, 255},
		Start:  cameraPos(geom.Point{X: 30, Y: 30}),
		Radius: 10,
		PotAt:  5,
	}
	p, sim, h := buildPipeline(t, []capture.SimBall{ball})

	// 5 frames with the ball, then enough frames for the tracker to
	// retire it (maxDisappeared 2).
	for i := 0; i < 10; i++ {
		step(t, p, sim)
	}

	events := h.RecentEvents(0)
	var pots, breaks int
	for _, ev := range events {
		switch ev.Type {
		case game.EventPot:
			pots++
			if ev.Zone != "top-left" {
				t.Fatalf("pot zone = %q", ev.Zone)
			}
			if ev.Class != detect.ClassSolid {
				t.Fatalf("pot class = %v", ev.Class)
			}
		case game.EventBreak:
			breaks++
		}
	}
	if pots != 1 {
		t.Fatalf("pot events = %d, want 1 (%+v)", pots, events)
	}
	if breaks != 1 {
		t.Fatalf("break outcomes = %d, want 1 (%+v)", breaks, events)
	}

	snap, _ := h.Latest()
	if snap.Game.TotalPotted != 1 {
		t.Fatalf("total potted = %d", snap.Game.TotalPotted)
	}
	if snap.Game.Phase != game.PhaseOpen {
		t.Fatalf("phase = %v", snap.Game.Phase)
	}
	if len(snap.Tracks) != 0 {
		t.Fatalf("tracks after pot = %d", len(snap.Tracks))
	}
}

func TestPipelinePublishesAnnotatedFrame(t *testing.T) {
	p, sim, h := buildPipeline(t, nil)
	step(t, p, sim)

	frame, ok := h.Frame()
	if !ok || len(frame) == 0 {
		t.Fatal("no annotated frame published")
	}
	// JPEG magic bytes.
	if frame[0] != 0xFF || frame[1] != 0xD8 {
		t.Fatalf("frame is not a JPEG: % x", frame[:2])
	}
}

func TestPipelineResetCommand(t *testing.T) {
	ball := capture.SimBall{
		Class:  detect.ClassSolid,
		Color:  color.RGBA{200, 30, 40, 255},
		Start:  cameraPos(geom.Point{X: 30, Y: 30}),
		Radius: 10,
		PotAt:  5,
	}
	p, sim, h := buildPipeline(t, []capture.SimBall{ball})
	for i := 0; i < 10; i++ {
		step(t, p, sim)
	}

	snap, _ := h.Latest()
	if snap.Game.TotalPotted != 1 {
		t.Fatalf("setup: total potted = %d", snap.Game.TotalPotted)
	}

	p.ResetGame()
	p.drainCommands()

	snap, _ = h.Latest()
	if snap.Game.TotalPotted != 0 || snap.Game.Phase != game.PhaseBreak || snap.Game.Player != 1 {
		t.Fatalf("after reset: %+v", snap.Game)
	}
}

func TestPipelineEndTurnCommand(t *testing.T) {
	p, sim, h := buildPipeline(t, nil)
	step(t, p, sim)

	p.EndTurn()
	p.drainCommands()

	snap, _ := h.Latest()
	if snap.Game.Player != 2 || snap.Game.Phase != game.PhaseOpen {
		t.Fatalf("after end turn: %+v", snap.Game)
	}

	events := h.RecentEvents(0)
	if len(events) != 1 || events[0].Type != game.EventTurnChange {
		t.Fatalf("events = %+v", events)
	}
}
