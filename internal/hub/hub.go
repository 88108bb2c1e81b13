// Package hub publishes the pipeline's per-frame output to concurrent
// readers. The pipeline goroutine is the only writer; HTTP handlers and
// websocket pushers read copies under a shared lock and never observe a
// half-committed frame.
package hub

import (
	"sync"
	"time"

	"poolmind/internal/calib"
	"poolmind/internal/game"
	"poolmind/internal/track"
)

// DefaultEventLog is the stock event ring capacity.
const DefaultEventLog = 200

// Snapshot is one frame's committed output. Every field is a copy owned
// by the hub; readers may hold it indefinitely.
type Snapshot struct {
	FrameSeq    uint64      `json:"frame_seq"`
	Timestamp   time.Time   `json:"timestamp"`
	FPS         float64     `json:"fps"`
	Calibration calib.State `json:"calibration"`
	Tracks      []track.Track `json:"tracks"`
	Game        game.Aggregate `json:"game"`
}

// Hub holds the latest snapshot, the most recent annotated frame as JPEG
// bytes, and a bounded ring of game events.
type Hub struct {
	mu       sync.RWMutex
	snap     Snapshot
	hasSnap  bool
	jpeg     []byte
	events   []game.Event
	start    int // ring read position
	count    int
	capacity int
}

// New builds a hub with a bounded event log. A non-positive capacity
// falls back to DefaultEventLog.
func New(eventCapacity int) *Hub {
	if eventCapacity <= 0 {
		eventCapacity = DefaultEventLog
	}
	return &Hub{
		events:   make([]game.Event, eventCapacity),
		capacity: eventCapacity,
	}
}

// Publish commits one frame's snapshot and events atomically. The
// snapshot must already be a copy the caller will not mutate.
func (h *Hub) Publish(snap Snapshot, events []game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.snap = snap
	h.hasSnap = true
	for _, ev := range events {
		h.push(ev)
	}
}

// PublishFrame commits the latest annotated frame. The hub takes
// ownership of the byte slice.
func (h *Hub) PublishFrame(jpeg []byte) {
	h.mu.Lock()
	h.jpeg = jpeg
	h.mu.Unlock()
}

// push appends to the ring, evicting the oldest event when full.
// Caller holds the write lock.
func (h *Hub) push(ev game.Event) {
	if h.count < h.capacity {
		h.events[(h.start+h.count)%h.capacity] = ev
		h.count++
		return
	}
	h.events[h.start] = ev
	h.start = (h.start + 1) % h.capacity
}

// Latest returns the most recent snapshot, or false before the first
// frame commits.
func (h *Hub) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.hasSnap {
		return Snapshot{}, false
	}
	snap := h.snap
	snap.Tracks = append([]track.Track(nil), h.snap.Tracks...)
	return snap, true
}

// Frame returns a copy of the latest annotated JPEG, or false before the
// first frame commits.
func (h *Hub) Frame() ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.jpeg) == 0 {
		return nil, false
	}
	return append([]byte(nil), h.jpeg...), true
}

// RecentEvents returns up to n events, oldest first. n <= 0 means all
// retained events.
func (h *Hub) RecentEvents(n int) []game.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > h.count {
		n = h.count
	}
	out := make([]game.Event, 0, n)
	for i := h.count - n; i < h.count; i++ {
		out = append(out, h.events[(h.start+i)%h.capacity])
	}
	return out
}

// EventCount returns the number of retained events.
func (h *Hub) EventCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
