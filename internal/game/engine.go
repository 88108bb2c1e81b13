// Package game converts track lifecycle events into discrete, auditable
// game events. The engine attributes disappearances to pocket zones and
// feeds an 8-ball phase machine; both are owned by the single pipeline
// goroutine and expose only copies.
package game

import (
	"fmt"
	"time"

	"poolmind/internal/detect"
	"poolmind/internal/geom"
	"poolmind/internal/table"
	"poolmind/internal/track"
)

// Config holds engine parameters.
type Config struct {
	// PocketSlop widens pocket zones for pot attribution. A ball rarely
	// vanishes exactly on the pocket center, so the stock value is 1.2.
	PocketSlop float64
	// ReappearWindow is how many frames a vanished ball's position is
	// remembered for reappearance matching.
	ReappearWindow int
	// ReappearRadius is the maximum distance between a vanish and a later
	// new track for the two to be linked as a reappearance.
	ReappearRadius float64
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.PocketSlop < 1 {
		return fmt.Errorf("pocket slop must be >= 1, got %v", c.PocketSlop)
	}
	if c.ReappearWindow < 0 || c.ReappearRadius < 0 {
		return fmt.Errorf("reappearance window/radius must be non-negative")
	}
	return nil
}

// DefaultConfig returns the stock engine tuning.
func DefaultConfig() Config {
	return Config{PocketSlop: 1.2, ReappearWindow: 90, ReappearRadius: 30}
}

// Aggregate is the per-frame snapshot of game state. It is recomputed
// every frame; only the event log keeps history.
type Aggregate struct {
	Phase         Phase                    `json:"phase"`
	Player        int                      `json:"player"`
	Winner        int                      `json:"winner,omitempty"`
	Groups        map[int]detect.BallClass `json:"groups,omitempty"`
	ActiveTracks  int                      `json:"active_tracks"`
	ActiveByClass map[detect.BallClass]int `json:"active_by_class"`
	PottedByClass map[detect.BallClass]int `json:"potted_by_class"`
	TotalPotted   int                      `json:"total_potted"`
}

// vanished remembers an off-zone disappearance for reappearance matching.
type vanished struct {
	trackID  int64
	class    detect.BallClass
	position geom.Point
	frameSeq uint64
}

// Engine owns the rule machine plus the pot bookkeeping.
type Engine struct {
	cfg   Config
	tbl   *table.Table
	rules *Rules

	pottedByClass map[detect.BallClass]int
	totalPotted   int
	recentVanish  []vanished
}

// NewEngine builds an engine for the given table.
func NewEngine(cfg Config, tbl *table.Table) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:           cfg,
		tbl:           tbl,
		rules:         NewRules(),
		pottedByClass: make(map[detect.BallClass]int),
	}, nil
}

// Step consumes one frame's tracker result and emits the frame's game
// events in deterministic order: pots and vanishes first (ascending track
// ID, as the tracker reports them), then reappearances, then the single
// rule outcome for the shot if any ball was potted.
func (e *Engine) Step(res track.Result, live []track.Track, now time.Time, frameSeq uint64) []Event {
	var events []Event

	var potted []pottedBall
	for _, tr := range res.Retired {
		zone, ok := e.tbl.ZoneAt(tr.LastPosition, e.cfg.PocketSlop)
		if !ok {
			ev := newEvent(EventVanish, now, frameSeq)
			ev.SubjectID = tr.ID
			ev.Class = tr.Class
			ev.Phase = e.rules.Phase()
			ev.Player = e.rules.Player()
			ev.Detail = fmt.Sprintf("%s ball %d vanished away from pockets", tr.Class, tr.ID)
			events = append(events, ev)
			e.rememberVanish(tr, frameSeq)
			continue
		}

		potted = append(potted, pottedBall{id: tr.ID, class: tr.Class})
		e.pottedByClass[tr.Class]++
		e.totalPotted++

		ev := newEvent(EventPot, now, frameSeq)
		ev.SubjectID = tr.ID
		ev.Class = tr.Class
		ev.Zone = zone.Name
		ev.Phase = e.rules.Phase()
		ev.Player = e.rules.Player()
		ev.Detail = fmt.Sprintf("%s ball %d potted in %s", tr.Class, tr.ID, zone.Name)
		events = append(events, ev)
	}

	e.expireVanished(frameSeq)
	events = append(events, e.matchReappearances(res.Created, live, now, frameSeq)...)

	if len(potted) > 0 && e.rules.Phase() != PhaseGameOver {
		outcome := e.rules.HandleShot(newShot(potted, e.remainingByClass(live)))
		outcome.ID = newEvent(outcome.Type, now, frameSeq).ID
		outcome.Timestamp = now
		outcome.FrameSeq = frameSeq
		events = append(events, outcome)
	}

	return events
}

// EndTurn passes the turn on an operator signal (no pot observed).
func (e *Engine) EndTurn(now time.Time, frameSeq uint64) Event {
	ev := e.rules.EndTurn()
	ev.ID = newEvent(ev.Type, now, frameSeq).ID
	ev.Timestamp = now
	ev.FrameSeq = frameSeq
	return ev
}

// Reset starts a fresh game, clearing pot counts and the phase machine.
func (e *Engine) Reset(now time.Time, frameSeq uint64) Event {
	e.rules.Reset()
	e.pottedByClass = make(map[detect.BallClass]int)
	e.totalPotted = 0
	e.recentVanish = nil

	ev := newEvent(EventReset, now, frameSeq)
	ev.Phase = e.rules.Phase()
	ev.Player = e.rules.Player()
	ev.Detail = "new game"
	return ev
}

// Aggregate derives the current snapshot from the live track set.
func (e *Engine) Aggregate(live []track.Track) Aggregate {
	active := make(map[detect.BallClass]int)
	for _, tr := range live {
		active[tr.Class]++
	}
	potted := make(map[detect.BallClass]int, len(e.pottedByClass))
	for k, v := range e.pottedByClass {
		potted[k] = v
	}
	return Aggregate{
		Phase:         e.rules.Phase(),
		Player:        e.rules.Player(),
		Winner:        e.rules.Winner(),
		Groups:        e.rules.Groups(),
		ActiveTracks:  len(live),
		ActiveByClass: active,
		PottedByClass: potted,
		TotalPotted:   e.totalPotted,
	}
}

func (e *Engine) rememberVanish(tr track.Track, frameSeq uint64) {
	e.recentVanish = append(e.recentVanish, vanished{
		trackID:  tr.ID,
		class:    tr.Class,
		position: tr.LastPosition,
		frameSeq: frameSeq,
	})
}

// matchReappearances links newly created tracks to recent off-zone
// vanishes by proximity, oldest vanish first.
func (e *Engine) matchReappearances(created []int64, live []track.Track, now time.Time, frameSeq uint64) []Event {
	if len(created) == 0 || len(e.recentVanish) == 0 {
		return nil
	}

	byID := make(map[int64]track.Track, len(live))
	for _, tr := range live {
		byID[tr.ID] = tr
	}

	var events []Event
	for _, id := range created {
		tr, ok := byID[id]
		if !ok {
			continue
		}
		for i, v := range e.recentVanish {
			if geom.Dist(tr.LastPosition, v.position) > e.cfg.ReappearRadius {
				continue
			}
			ev := newEvent(EventReturn, now, frameSeq)
			ev.SubjectID = id
			ev.Class = tr.Class
			ev.Phase = e.rules.Phase()
			ev.Player = e.rules.Player()
			ev.Detail = fmt.Sprintf("ball %d reappeared near where ball %d vanished", id, v.trackID)
			events = append(events, ev)
			e.recentVanish = append(e.recentVanish[:i], e.recentVanish[i+1:]...)
			break
		}
	}
	return events
}

func (e *Engine) expireVanished(frameSeq uint64) {
	if e.cfg.ReappearWindow == 0 {
		return
	}
	kept := e.recentVanish[:0]
	for _, v := range e.recentVanish {
		if frameSeq-v.frameSeq <= uint64(e.cfg.ReappearWindow) {
			kept = append(kept, v)
		}
	}
	e.recentVanish = kept
}

// remainingByClass counts live balls per class. The rule machine only
// consults the shooter's group count.
func (e *Engine) remainingByClass(live []track.Track) map[detect.BallClass]int {
	remaining := make(map[detect.BallClass]int)
	for _, tr := range live {
		remaining[tr.Class]++
	}
	return remaining
}
