// Package pipeline is the single-goroutine frame loop: acquire,
// calibrate, rectify, detect, track, apply the game rules, annotate and
// publish. All per-frame state lives here; everything downstream reads
// committed copies through the hub.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"log"
	"time"

	"github.com/google/uuid"

	"poolmind/internal/calib"
	"poolmind/internal/capture"
	"poolmind/internal/detect"
	"poolmind/internal/game"
	"poolmind/internal/hub"
	"poolmind/internal/notify"
	"poolmind/internal/overlay"
	"poolmind/internal/replay"
	"poolmind/internal/store"
	"poolmind/internal/table"
	"poolmind/internal/track"
	"poolmind/internal/vision"
	"poolmind/internal/web"
)

// fpsAlpha smooths the frames-per-second estimate.
const fpsAlpha = 0.2

type commandKind int

const (
	cmdReset commandKind = iota
	cmdEndTurn
)

// Deps are the stages the pipeline drives. Store, Recorder, Notifier
// and WS may be nil.
type Deps struct {
	Source     capture.Source
	Calibrator *calib.Calibrator
	Table      *table.Table
	Detector   *detect.Detector
	Tracker    *track.Tracker
	Engine     *game.Engine
	Renderer   *overlay.Renderer
	Hub        *hub.Hub
	WS         *web.WSHub
	Store      *store.Store
	Recorder   *replay.Recorder
	Notifier   *notify.Notifier
}

// Pipeline owns the frame loop.
type Pipeline struct {
	d        Deps
	commands chan commandKind

	sessionID string
	fps       float64
	lastFrame time.Time
}

var _ web.Controls = (*Pipeline)(nil)

// New validates the wiring and builds a pipeline.
func New(d Deps) (*Pipeline, error) {
	if d.Source == nil || d.Calibrator == nil || d.Table == nil ||
		d.Detector == nil || d.Tracker == nil || d.Engine == nil ||
		d.Renderer == nil || d.Hub == nil {
		return nil, errors.New("pipeline: missing required dependency")
	}
	return &Pipeline{d: d, commands: make(chan commandKind, 8)}, nil
}

// ResetGame requests a fresh rack; processed at the next frame boundary.
func (p *Pipeline) ResetGame() {
	select {
	case p.commands <- cmdReset:
	default:
		log.Printf("[Pipeline] Command queue full, dropping reset")
	}
}

// EndTurn requests an operator turn change.
func (p *Pipeline) EndTurn() {
	select {
	case p.commands <- cmdEndTurn:
	default:
		log.Printf("[Pipeline] Command queue full, dropping end turn")
	}
}

// Run drives the loop until ctx is cancelled. Acquisition errors back
// off and retry; a panic inside one frame is contained and the frame
// dropped.
func (p *Pipeline) Run(ctx context.Context) error {
	p.beginSession(time.Now())
	defer func() { p.closeSession(time.Now()) }()

	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		p.drainCommands()

		frame, err := p.d.Source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, capture.ErrSourceClosed) {
				log.Printf("[Pipeline] Source closed, stopping")
				return err
			}
			log.Printf("[Pipeline] Acquisition error, retrying in %s: %v", backoff, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 10*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		p.safeProcess(frame)
	}
}

// safeProcess contains a panicking frame so the loop survives.
func (p *Pipeline) safeProcess(frame vision.Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Pipeline] Panic processing frame %d: %v", frame.Seq, r)
		}
	}()
	p.process(frame)
}

func (p *Pipeline) process(frame vision.Frame) {
	now := frame.Timestamp
	p.updateFPS(now)

	status := p.d.Calibrator.Process(frame.Image)
	calState := p.d.Calibrator.State()
	if !calState.Established {
		// Nothing downstream can run in camera space; publish the
		// calibration state so /api/state shows why.
		p.d.Hub.Publish(hub.Snapshot{
			FrameSeq:    frame.Seq,
			Timestamp:   now,
			FPS:         p.fps,
			Calibration: calState,
			Game:        p.d.Engine.Aggregate(nil),
		}, nil)
		if frame.Seq%30 == 1 {
			log.Printf("[Pipeline] Waiting for calibration (status: %s)", status)
		}
		return
	}

	rect := p.d.Table.Rectify(frame.Image, calState.Inverse)

	detections := p.d.Detector.Detect(rect)
	res, err := p.d.Tracker.Update(detections)
	if err != nil {
		log.Printf("[Pipeline] Dropping frame %d: %v", frame.Seq, err)
		return
	}
	live := p.d.Tracker.Snapshot()

	events := p.d.Engine.Step(res, live, now, frame.Seq)
	agg := p.d.Engine.Aggregate(live)

	p.d.Renderer.Render(rect, live, agg, p.fps)

	snap := hub.Snapshot{
		FrameSeq:    frame.Seq,
		Timestamp:   now,
		FPS:         p.fps,
		Calibration: calState,
		Tracks:      live,
		Game:        agg,
	}
	p.d.Hub.Publish(snap, events)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rect, &jpeg.Options{Quality: 85}); err != nil {
		log.Printf("[Pipeline] Error encoding frame %d: %v", frame.Seq, err)
	} else {
		p.d.Hub.PublishFrame(buf.Bytes())
	}

	if p.d.Notifier != nil && len(events) > 0 {
		p.d.Notifier.Announce(events, buf.Bytes())
	}

	if p.d.WS != nil && p.d.WS.HasClients() {
		p.d.WS.Broadcast(&web.StateMessage{Type: "state", State: snap, Events: events})
	}

	p.persistEvents(events, now)

	if p.d.Recorder != nil {
		p.d.Recorder.Observe(rect, now)
	}
}

// drainCommands applies queued operator commands between frames.
func (p *Pipeline) drainCommands() {
	for {
		select {
		case cmd := <-p.commands:
			now := time.Now()
			switch cmd {
			case cmdReset:
				p.closeSession(now)
				ev := p.d.Engine.Reset(now, 0)
				p.d.Tracker.Reset()
				p.beginSession(now)
				p.d.Hub.Publish(hub.Snapshot{
					Timestamp: now,
					FPS:       p.fps,
					Game:      p.d.Engine.Aggregate(nil),
				}, []game.Event{ev})
				p.persistEvents([]game.Event{ev}, now)
				log.Printf("[Pipeline] Game reset (session %s)", p.sessionID)
			case cmdEndTurn:
				ev := p.d.Engine.EndTurn(now, 0)
				p.d.Hub.Publish(hub.Snapshot{
					Timestamp: now,
					FPS:       p.fps,
					Game:      p.d.Engine.Aggregate(p.d.Tracker.Snapshot()),
				}, []game.Event{ev})
				p.persistEvents([]game.Event{ev}, now)
			}
		default:
			return
		}
	}
}

func (p *Pipeline) beginSession(now time.Time) {
	p.sessionID = uuid.NewString()
	if p.d.Store == nil {
		return
	}
	if err := p.d.Store.BeginSession(p.sessionID, now); err != nil {
		log.Printf("[Pipeline] Error starting session: %v", err)
	}
}

func (p *Pipeline) closeSession(now time.Time) {
	if p.d.Store == nil || p.sessionID == "" {
		return
	}
	agg := p.d.Engine.Aggregate(nil)
	if err := p.d.Store.EndSession(p.sessionID, now, agg.Winner, agg.TotalPotted); err != nil {
		log.Printf("[Pipeline] Error closing session: %v", err)
	}
}

func (p *Pipeline) persistEvents(events []game.Event, now time.Time) {
	if p.d.Store == nil {
		return
	}
	for _, ev := range events {
		if err := p.d.Store.SaveEvent(p.sessionID, ev); err != nil {
			log.Printf("[Pipeline] Error persisting event %s: %v", ev.ID, err)
		}
		if ev.Type == game.EventGameOver {
			p.closeSession(now)
		}
	}
}

func (p *Pipeline) updateFPS(now time.Time) {
	if !p.lastFrame.IsZero() {
		dt := now.Sub(p.lastFrame).Seconds()
		if dt > 0 {
			inst := 1 / dt
			if p.fps == 0 {
				p.fps = inst
			} else {
				p.fps = (1-fpsAlpha)*p.fps + fpsAlpha*inst
			}
		}
	}
	p.lastFrame = now
}
