package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"poolmind/internal/auth"
	"poolmind/internal/calib"
	"poolmind/internal/capture"
	"poolmind/internal/config"
	"poolmind/internal/detect"
	"poolmind/internal/game"
	"poolmind/internal/geom"
	"poolmind/internal/hub"
	"poolmind/internal/notify"
	"poolmind/internal/overlay"
	"poolmind/internal/pipeline"
	"poolmind/internal/replay"
	"poolmind/internal/store"
	"poolmind/internal/table"
	"poolmind/internal/track"
	"poolmind/internal/vision"
	"poolmind/internal/web"
)

// Camera deployments mark the four corners with colored patches in the
// simulator palette. The bounds are looser than the simulator's to
// survive real lighting.
func cameraMarkerRanges() map[int]vision.HSVRange {
	return map[int]vision.HSVRange{
		0: {HMin: 340, HMax: 20, SMin: 0.5, SMax: 1, VMin: 0.4, VMax: 1},  // red
		1: {HMin: 40, HMax: 80, SMin: 0.5, SMax: 1, VMin: 0.4, VMax: 1},   // yellow
		2: {HMin: 210, HMax: 260, SMin: 0.5, SMax: 1, VMin: 0.3, VMax: 1}, // blue
		3: {HMin: 280, HMax: 320, SMin: 0.5, SMax: 1, VMin: 0.4, VMax: 1}, // magenta
	}
}

// cameraCloth covers common green felt under mixed lighting.
var cameraCloth = vision.HSVRange{HMin: 80, HMax: 180, SMin: 0.25, SMax: 1, VMin: 0.1, VMax: 0.95}

// simCloth matches the simulator's felt color exactly.
var simCloth = vision.HSVRange{HMin: 120, HMax: 170, SMin: 0.4, SMax: 1, VMin: 0.2, VMax: 1}

func main() {
	logger := log.New(os.Stderr, "[poolmind] ", log.Ltime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("configuration: %s", err)
	}

	// Frame source: a synthetic table unless a camera device is set.
	var (
		source  capture.Source
		markers map[int]vision.HSVRange
		cloth   vision.HSVRange
	)
	if cfg.Simulated() {
		logger.Printf("no camera device configured, running the simulator")
		source, err = capture.NewSimulator(simScene(cfg))
		markers = capture.SimMarkerRanges()
		cloth = simCloth
	} else {
		logger.Printf("capturing from %q at %d fps", cfg.CameraDevice, cfg.CameraFPS)
		source, err = capture.NewFFmpegSource(cfg.Capture())
		markers = cameraMarkerRanges()
		cloth = cameraCloth
	}
	if err != nil {
		logger.Fatalf("capture: %s", err)
	}
	defer source.Close()

	// Vision and game stages.
	finder := vision.NewColorPatchFinder(markers, cfg.MarkerMinPix)
	calibrator, err := calib.New(cfg.Calibration(), finder)
	if err != nil {
		logger.Fatalf("calibration: %s", err)
	}
	tbl, err := table.New(cfg.Table())
	if err != nil {
		logger.Fatalf("table: %s", err)
	}
	detector, err := detect.New(cfg.Detection(cloth), nil)
	if err != nil {
		logger.Fatalf("detection: %s", err)
	}
	tracker, err := track.New(cfg.Tracking())
	if err != nil {
		logger.Fatalf("tracking: %s", err)
	}
	engine, err := game.NewEngine(cfg.Game(), tbl)
	if err != nil {
		logger.Fatalf("rules: %s", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Fatalf("store: %s", err)
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		logger.Fatalf("store: %s", err)
	}

	var recorder *replay.Recorder
	if cfg.ReplayEnabled {
		recorder, err = replay.NewRecorder(replay.Config{
			Dir:       cfg.ReplayDir,
			Threshold: cfg.ReplayThreshold,
			Cooldown:  time.Duration(cfg.ReplayCooldown) * time.Second,
			Device:    cfg.CameraDevice,
		})
		if err != nil {
			logger.Fatalf("replay: %s", err)
		}
	}

	var notifier *notify.Notifier
	if cfg.NotifyEnabled() {
		notifier, err = notify.NewNotifier(cfg.Notify())
		if err != nil {
			logger.Fatalf("notify: %s", err)
		}
		defer notifier.Close()
	}

	authn := auth.NewAuthenticator(cfg.AdminUser, cfg.AdminPassRaw, cfg.JWTSecret, 24*time.Hour)
	if !authn.IsEnabled() {
		logger.Printf("no admin password set, game controls are open")
	}

	h := hub.New(cfg.EventLogSize)
	srv := web.NewServer(web.Config{Addr: cfg.ListenAddr, StreamFPS: cfg.CameraFPS}, h, nil, st, authn)

	p, err := pipeline.New(pipeline.Deps{
		Source:     source,
		Calibrator: calibrator,
		Table:      tbl,
		Detector:   detector,
		Tracker:    tracker,
		Engine:     engine,
		Renderer:   overlay.NewRenderer(tbl),
		Hub:        h,
		WS:         srv.WSHub(),
		Store:      st,
		Recorder:   recorder,
		Notifier:   notifier,
	})
	if err != nil {
		logger.Fatalf("pipeline: %s", err)
	}
	srv.SetControls(p)

	// Channel used by the signal handler and worker goroutines to tell
	// the main goroutine when to stop.
	errc := make(chan error, 3)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil {
			errc <- fmt.Errorf("pipeline: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			errc <- fmt.Errorf("web: %w", err)
		}
	}()

	logger.Printf("exiting (%v)", <-errc)
	cancel()
	source.Close()
	wg.Wait()
	logger.Println("exited")
}

// simScene scripts a small rack for the synthetic table so a bare start
// shows calibration, tracking and a pot without any hardware.
func simScene(cfg config.Config) capture.SimConfig {
	w, h := cfg.CameraWidth, cfg.CameraHeight
	return capture.SimConfig{
		Width:       w,
		Height:      h,
		MarkerInset: 40,
		FPS:         cfg.CameraFPS,
		Balls: []capture.SimBall{
			{
				Class:  detect.ClassCue,
				Color:  capture.BallWhite,
				Start:  geom.Point{X: float64(w) * 0.3, Y: float64(h) * 0.5},
				Radius: 12,
			},
			{
				Class:  detect.ClassSolid,
				Color:  capture.BallRed,
				Start:  geom.Point{X: float64(w) * 0.6, Y: float64(h) * 0.4},
				Vel:    geom.Point{X: -1.2, Y: -0.8},
				Radius: 12,
				PotAt:  240,
			},
			{
				Class:  detect.ClassStripe,
				Color:  capture.BallBlue,
				Start:  geom.Point{X: float64(w) * 0.7, Y: float64(h) * 0.6},
				Radius: 12,
			},
		},
	}
}
