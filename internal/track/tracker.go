// Package track maintains persistent identities for detected balls across
// frames. Association is greedy nearest neighbour with a distance gate;
// identities survive short occlusions through a disappearance counter and
// are retired, never recycled, once the counter passes its limit.
package track

import (
	"fmt"
	"math"
	"sort"

	"poolmind/internal/detect"
	"poolmind/internal/geom"
)

// Config holds tracker parameters.
type Config struct {
	// MaxMatchDistance is the association gate: a detection further than
	// this from every track starts a new identity.
	MaxMatchDistance float64
	// MaxDisappeared is how many consecutive unseen frames a track
	// survives. One frame beyond it the track is retired.
	MaxDisappeared int
	// HistoryLen caps the per-track position history.
	HistoryLen int
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.MaxMatchDistance <= 0 {
		return fmt.Errorf("max match distance must be positive, got %v", c.MaxMatchDistance)
	}
	if c.MaxDisappeared < 0 {
		return fmt.Errorf("max disappeared must be non-negative, got %d", c.MaxDisappeared)
	}
	if c.HistoryLen < 1 {
		return fmt.Errorf("history length must be at least 1, got %d", c.HistoryLen)
	}
	return nil
}

// DefaultConfig returns the stock tracker tuning.
func DefaultConfig() Config {
	return Config{MaxMatchDistance: 40, MaxDisappeared: 8, HistoryLen: 120}
}

// Track is one persistent object identity. The tracker owns the live
// record; everything handed out is a copy.
type Track struct {
	ID              int64            `json:"id"`
	Class           detect.BallClass `json:"class"`
	LastPosition    geom.Point       `json:"last_position"`
	Radius          float64          `json:"radius"`
	History         []geom.Point     `json:"-"`
	FramesSinceSeen int              `json:"frames_since_seen"`
}

func (t *Track) clone() Track {
	c := *t
	c.History = append([]geom.Point(nil), t.History...)
	return c
}

// Result reports what one update cycle did.
type Result struct {
	// Created lists IDs assigned to unmatched detections this frame.
	Created []int64
	// Retired holds the final state of tracks removed this frame. Their
	// LastPosition is the position the rule engine attributes zones from.
	Retired []Track
}

// Tracker owns the live track set. It is only ever touched by the single
// pipeline goroutine, so it carries no internal locking; concurrent readers
// go through the hub's published copies instead.
type Tracker struct {
	cfg    Config
	tracks map[int64]*Track
	nextID int64
}

// New builds an empty tracker.
func New(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{cfg: cfg, tracks: make(map[int64]*Track), nextID: 1}, nil
}

// matchPair is a gated track/detection candidate ordered for greedy
// assignment: ascending distance, ties broken by ascending track ID then
// detection index so results are reproducible.
type matchPair struct {
	dist    float64
	trackID int64
	detIdx  int
}

// Update matches this frame's detections against the live tracks. The
// whole frame either applies or does not: invalid detections fail the call
// before any state is touched.
func (t *Tracker) Update(detections []detect.Detection) (Result, error) {
	for i, d := range detections {
		if d.Radius < 0 || math.IsNaN(d.Center.X) || math.IsNaN(d.Center.Y) {
			return Result{}, fmt.Errorf("invalid detection %d: radius=%v center=%+v", i, d.Radius, d.Center)
		}
	}

	var res Result

	pairs := make([]matchPair, 0, len(detections)*len(t.tracks))
	for id, tr := range t.tracks {
		for di, d := range detections {
			dist := geom.Dist(tr.LastPosition, d.Center)
			if dist <= t.cfg.MaxMatchDistance {
				pairs = append(pairs, matchPair{dist: dist, trackID: id, detIdx: di})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].dist != pairs[j].dist {
			return pairs[i].dist < pairs[j].dist
		}
		if pairs[i].trackID != pairs[j].trackID {
			return pairs[i].trackID < pairs[j].trackID
		}
		return pairs[i].detIdx < pairs[j].detIdx
	})

	matchedTracks := make(map[int64]bool, len(t.tracks))
	matchedDets := make(map[int]bool, len(detections))
	for _, p := range pairs {
		if matchedTracks[p.trackID] || matchedDets[p.detIdx] {
			continue
		}
		matchedTracks[p.trackID] = true
		matchedDets[p.detIdx] = true
		t.applyMatch(t.tracks[p.trackID], detections[p.detIdx])
	}

	// Unmatched tracks age; past the limit they retire.
	retiredIDs := make([]int64, 0)
	for id, tr := range t.tracks {
		if matchedTracks[id] {
			continue
		}
		tr.FramesSinceSeen++
		if tr.FramesSinceSeen > t.cfg.MaxDisappeared {
			retiredIDs = append(retiredIDs, id)
		}
	}
	sort.Slice(retiredIDs, func(i, j int) bool { return retiredIDs[i] < retiredIDs[j] })
	for _, id := range retiredIDs {
		res.Retired = append(res.Retired, t.tracks[id].clone())
		delete(t.tracks, id)
	}

	// Unmatched detections become new identities, in input order.
	for di, d := range detections {
		if matchedDets[di] {
			continue
		}
		id := t.nextID
		t.nextID++
		t.tracks[id] = &Track{
			ID:           id,
			Class:        d.Class,
			LastPosition: d.Center,
			Radius:       d.Radius,
			History:      []geom.Point{d.Center},
		}
		res.Created = append(res.Created, id)
	}

	return res, nil
}

func (t *Tracker) applyMatch(tr *Track, d detect.Detection) {
	tr.LastPosition = d.Center
	tr.Radius = d.Radius
	tr.FramesSinceSeen = 0
	if d.Class != detect.ClassUnknown {
		tr.Class = d.Class
	}
	tr.History = append(tr.History, d.Center)
	if over := len(tr.History) - t.cfg.HistoryLen; over > 0 {
		tr.History = tr.History[over:]
	}
}

// Snapshot returns copies of all live tracks sorted by ID.
func (t *Tracker) Snapshot() []Track {
	out := make([]Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		out = append(out, tr.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountByClass returns the number of live tracks per ball class.
func (t *Tracker) CountByClass() map[detect.BallClass]int {
	counts := make(map[detect.BallClass]int)
	for _, tr := range t.tracks {
		counts[tr.Class]++
	}
	return counts
}

// Len returns the live track count.
func (t *Tracker) Len() int { return len(t.tracks) }

// Reset drops all live tracks. ID allocation continues monotonically so
// identities are never reused within a process lifetime.
func (t *Tracker) Reset() {
	t.tracks = make(map[int64]*Track)
}
