package game

import (
	"fmt"
	"sort"

	"poolmind/internal/detect"
)

// Phase is the rule machine's lifecycle phase.
type Phase string

const (
	PhaseBreak    Phase = "break"
	PhaseOpen     Phase = "open_table"
	PhaseSolids   Phase = "solids"
	PhaseStripes  Phase = "stripes"
	PhaseEight    Phase = "eight_ball"
	PhaseGameOver Phase = "game_over"
)

// shot is one resolved group of pots the rule table evaluates together:
// every ball attributed to a pocket in the same frame.
type shot struct {
	potted     []pottedBall // Sorted by track ID for reproducible evaluation
	cuePotted  bool
	eightPotted bool
	// remaining counts live balls per class after the pots, used to decide
	// when a player is on the eight ball.
	remaining map[detect.BallClass]int
}

type pottedBall struct {
	id    int64
	class detect.BallClass
}

// Rules is the 8-ball phase machine. It owns only the phase, the player to
// shoot and the group assignment; ball bookkeeping stays in the engine.
type Rules struct {
	phase   Phase
	player  int               // 1 or 2
	groups  map[int]detect.BallClass // player -> solids/stripes
	winner  int               // 0 until decided
}

// NewRules starts a fresh game at the break.
func NewRules() *Rules {
	return &Rules{phase: PhaseBreak, player: 1, groups: make(map[int]detect.BallClass)}
}

// Phase returns the current phase.
func (r *Rules) Phase() Phase { return r.phase }

// Player returns the player to shoot.
func (r *Rules) Player() int { return r.player }

// Winner returns the winning player, or 0 while the game is live.
func (r *Rules) Winner() int { return r.winner }

// Groups returns a copy of the player group assignment.
func (r *Rules) Groups() map[int]detect.BallClass {
	out := make(map[int]detect.BallClass, len(r.groups))
	for k, v := range r.groups {
		out[k] = v
	}
	return out
}

// Reset returns the machine to the break phase.
func (r *Rules) Reset() {
	r.phase = PhaseBreak
	r.player = 1
	r.groups = make(map[int]detect.BallClass)
	r.winner = 0
}

// HandleShot evaluates one shot against the rule table and returns exactly
// one outcome event (untimed; the engine stamps it). In the terminal phase
// the machine absorbs: the shot is acknowledged but nothing transitions.
func (r *Rules) HandleShot(s shot) Event {
	switch r.phase {
	case PhaseBreak:
		return r.handleBreak(s)
	case PhaseOpen:
		return r.handleOpenTable(s)
	case PhaseSolids, PhaseStripes:
		return r.handleGroupShot(s)
	case PhaseEight:
		return r.handleEightShot(s)
	default: // PhaseGameOver
		return r.outcome(Event{Type: EventGameOver, Detail: "game already decided"})
	}
}

// EndTurn passes the turn without a pot (operator-signalled miss).
func (r *Rules) EndTurn() Event {
	if r.phase == PhaseGameOver {
		return r.outcome(Event{Type: EventGameOver, Detail: "game already decided"})
	}
	r.switchPlayer()
	if r.phase == PhaseBreak {
		r.phase = PhaseOpen
	}
	return r.outcome(Event{Type: EventTurnChange, Detail: "no balls potted"})
}

func (r *Rules) handleBreak(s shot) Event {
	switch {
	case s.eightPotted:
		// Eight down on the break loses outright.
		r.winner = other(r.player)
		r.phase = PhaseGameOver
		return r.outcome(Event{Type: EventGameOver, Detail: "eight ball potted on the break"})
	case s.cuePotted:
		r.switchPlayer()
		r.phase = PhaseOpen
		return r.outcome(Event{Type: EventFoul, Detail: "scratch on the break"})
	case len(s.potted) > 0:
		r.phase = PhaseOpen
		return r.outcome(Event{Type: EventBreak, Detail: fmt.Sprintf("%d balls potted on the break", len(s.potted))})
	default:
		r.switchPlayer()
		r.phase = PhaseOpen
		return r.outcome(Event{Type: EventBreak, Detail: "dry break"})
	}
}

func (r *Rules) handleOpenTable(s shot) Event {
	if s.eightPotted {
		r.winner = other(r.player)
		r.phase = PhaseGameOver
		return r.outcome(Event{Type: EventGameOver, Detail: "eight ball potted with the table open"})
	}
	if s.cuePotted || len(s.potted) == 0 {
		r.switchPlayer()
		return r.outcome(Event{Type: EventFoul, Detail: "scratch with the table open"})
	}

	// The first object ball down assigns the groups.
	first := s.potted[0].class
	if first != detect.ClassSolid && first != detect.ClassStripe {
		r.switchPlayer()
		return r.outcome(Event{Type: EventTurnChange, Detail: "no group resolved"})
	}
	r.groups[r.player] = first
	r.groups[other(r.player)] = otherGroup(first)
	r.phase = r.phaseForGroup(first)
	return r.outcome(Event{
		Type:   EventGroupAssigned,
		Class:  first,
		Detail: fmt.Sprintf("player %d takes %s", r.player, first),
	})
}

func (r *Rules) handleGroupShot(s shot) Event {
	if s.eightPotted {
		// Premature eight ball is an immediate loss.
		r.winner = other(r.player)
		r.phase = PhaseGameOver
		return r.outcome(Event{Type: EventGameOver, Detail: "eight ball potted prematurely"})
	}

	group := r.groups[r.player]
	var own, opponent int
	for _, p := range s.potted {
		switch p.class {
		case group:
			own++
		case detect.ClassCue:
		default:
			opponent++
		}
	}

	switch {
	case s.cuePotted || opponent > 0:
		r.switchPlayer()
		r.phase = r.turnPhase(s)
		return r.outcome(Event{Type: EventFoul, Detail: foulDetail(s.cuePotted, opponent)})
	case own > 0:
		ev := Event{Type: EventLegalPot, Class: group, Detail: fmt.Sprintf("player %d potted %d ball(s)", r.player, own)}
		if s.remaining[group] == 0 {
			r.phase = PhaseEight
			ev.Detail += "; on the eight ball"
		}
		return r.outcome(ev)
	default:
		r.switchPlayer()
		r.phase = r.turnPhase(s)
		return r.outcome(Event{Type: EventTurnChange, Detail: "no balls from own group"})
	}
}

// foulDetail names the cause of a foul.
func foulDetail(scratch bool, opponentPots int) string {
	switch {
	case scratch && opponentPots > 0:
		return "scratch and opponent ball potted"
	case scratch:
		return "scratch"
	default:
		return "opponent ball potted"
	}
}

func (r *Rules) handleEightShot(s shot) Event {
	switch {
	case s.eightPotted && s.cuePotted:
		r.winner = other(r.player)
		r.phase = PhaseGameOver
		return r.outcome(Event{Type: EventGameOver, Detail: "eight ball potted with a scratch"})
	case s.eightPotted:
		r.winner = r.player
		r.phase = PhaseGameOver
		return r.outcome(Event{Type: EventGameOver, Detail: fmt.Sprintf("player %d wins", r.player)})
	case s.cuePotted:
		r.switchPlayer()
		r.phase = r.turnPhase(s)
		return r.outcome(Event{Type: EventFoul, Detail: "scratch on the eight ball"})
	default:
		r.switchPlayer()
		r.phase = r.turnPhase(s)
		return r.outcome(Event{Type: EventTurnChange, Detail: "eight ball attempt missed"})
	}
}

// turnPhase is the phase for the incoming player: their group's turn, the
// eight ball once that group is cleared, or the open table before groups
// resolve.
func (r *Rules) turnPhase(s shot) Phase {
	group, ok := r.groups[r.player]
	if !ok {
		return PhaseOpen
	}
	if s.remaining[group] == 0 {
		return PhaseEight
	}
	return r.phaseForGroup(group)
}

// phaseForGroup maps the incoming player's group to the matching turn
// phase. Before groups resolve the table stays open; a player whose group
// is cleared shoots the eight.
func (r *Rules) phaseForGroup(group detect.BallClass) Phase {
	switch group {
	case detect.ClassSolid:
		return PhaseSolids
	case detect.ClassStripe:
		return PhaseStripes
	default:
		return PhaseOpen
	}
}

func (r *Rules) outcome(ev Event) Event {
	ev.Phase = r.phase
	ev.Player = r.player
	return ev
}

func (r *Rules) switchPlayer() { r.player = other(r.player) }

func other(player int) int {
	if player == 1 {
		return 2
	}
	return 1
}

func otherGroup(c detect.BallClass) detect.BallClass {
	if c == detect.ClassSolid {
		return detect.ClassStripe
	}
	return detect.ClassSolid
}

// newShot builds a shot from the frame's pots, sorted by track ID so rule
// evaluation is reproducible.
func newShot(potted []pottedBall, remaining map[detect.BallClass]int) shot {
	sort.Slice(potted, func(i, j int) bool { return potted[i].id < potted[j].id })
	s := shot{potted: potted, remaining: remaining}
	for _, p := range potted {
		switch p.class {
		case detect.ClassCue:
			s.cuePotted = true
		case detect.ClassEight:
			s.eightPotted = true
		}
	}
	return s
}
