package game

import (
	"time"

	"github.com/google/uuid"

	"poolmind/internal/detect"
)

// EventType enumerates the discrete game events the engine can emit.
type EventType string

const (
	// EventPot: a tracked ball disappeared inside a pocket zone.
	EventPot EventType = "pot"
	// EventVanish: a tracked ball disappeared away from every pocket.
	// Logged for audit; has no rule effect.
	EventVanish EventType = "vanish"
	// EventReturn: a ball reappeared close to where one recently vanished.
	EventReturn EventType = "return"
	// EventBreak: outcome of the break shot.
	EventBreak EventType = "break"
	// EventGroupAssigned: the open table resolved to a group per player.
	EventGroupAssigned EventType = "group_assigned"
	// EventLegalPot: the shooting player potted from their own group.
	EventLegalPot EventType = "legal_pot"
	// EventFoul: scratch or wrong-group pot; turn passes.
	EventFoul EventType = "foul"
	// EventTurnChange: turn passed without a rule violation.
	EventTurnChange EventType = "turn_change"
	// EventGameOver: terminal outcome; the phase machine absorbs here.
	EventGameOver EventType = "game_over"
	// EventReset: the game state was reset by an operator.
	EventReset EventType = "reset"
)

// Event is one immutable game event. Events are append-only: once emitted
// they are never modified.
type Event struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	Timestamp time.Time        `json:"ts"`
	FrameSeq  uint64           `json:"frame_seq"`
	SubjectID int64            `json:"subject_id,omitempty"` // Track ID, 0 when not ball-specific
	Class     detect.BallClass `json:"class,omitempty"`
	Zone      string           `json:"zone,omitempty"`
	Phase     Phase            `json:"phase"`  // Phase after the event
	Player    int              `json:"player"` // Player to shoot after the event
	Detail    string           `json:"detail,omitempty"`
}

func newEvent(t EventType, now time.Time, seq uint64) Event {
	return Event{ID: uuid.NewString(), Type: t, Timestamp: now, FrameSeq: seq}
}
