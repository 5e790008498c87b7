package rules

import (
	"fmt"
	"strings"
)

// Phase is the turn state machine position of a game.
type Phase string

const (
	PhasePlaying        Phase = "playing"
	PhaseAwaitingTarget Phase = "awaiting_target"
	PhasePaused         Phase = "paused"
	PhaseGameOver       Phase = "game_over"
)

var phaseTransitions = map[Phase][]Phase{
	PhasePlaying:        {PhaseAwaitingTarget, PhasePaused, PhaseGameOver},
	PhaseAwaitingTarget: {PhasePlaying, PhasePaused, PhaseGameOver},
	PhasePaused:         {PhasePlaying, PhaseGameOver},
	PhaseGameOver:       nil,
}

func (p Phase) String() string {
	if p == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(string(p))
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseTransitions[p]
	return ok
}

// CanTransition reports whether the state machine allows p -> to.
// Staying in the same non-terminal phase is always allowed.
func (p Phase) CanTransition(to Phase) bool {
	if p == to {
		return p != PhaseGameOver
	}
	for _, next := range phaseTransitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the next phase.
func Transition(from, to Phase) (Phase, error) {
	if !from.CanTransition(to) {
		return from, fmt.Errorf("illegal phase transition %s -> %s", from, to)
	}
	return to, nil
}

// TurnManager tracks seating order, the active seat and turn progression.
type TurnManager struct {
	order      []string
	index      int
	turnNumber int
	rotation   int
}

// NewTurnManager creates a turn manager at turn 1 with the first seat active.
func NewTurnManager(order []string) *TurnManager {
	seats := make([]string, 0, len(order))
	for _, id := range order {
		if id = strings.TrimSpace(id); id != "" {
			seats = append(seats, id)
		}
	}
	return &TurnManager{
		order:      seats,
		turnNumber: 1,
	}
}

// ActivePlayer returns the seat that currently has the turn.
func (tm *TurnManager) ActivePlayer() string {
	if len(tm.order) == 0 {
		return ""
	}
	return tm.order[tm.index]
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// Rotation returns how many times the seating order has wrapped.
func (tm *TurnManager) Rotation() int {
	return tm.rotation
}

// Order returns a copy of the seating order.
func (tm *TurnManager) Order() []string {
	return append([]string(nil), tm.order...)
}

// SetActive moves the turn to playerID without counting a turn.
func (tm *TurnManager) SetActive(playerID string) bool {
	for i, id := range tm.order {
		if id == playerID {
			tm.index = i
			return true
		}
	}
	return false
}

// Advance passes the turn to the next seat for which skip returns false,
// wrapping around the seating order. It returns false when every other seat
// is skipped, in which case the turn stays where it is.
func (tm *TurnManager) Advance(skip func(playerID string) bool) (string, bool) {
	n := len(tm.order)
	if n == 0 {
		return "", false
	}
	for step := 1; step <= n; step++ {
		next := (tm.index + step) % n
		id := tm.order[next]
		if next == tm.index {
			break
		}
		if skip != nil && skip(id) {
			continue
		}
		if next <= tm.index {
			tm.rotation++
		}
		tm.index = next
		tm.turnNumber++
		return id, true
	}
	return tm.ActivePlayer(), false
}
