package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/game/rules"
)

// EndTurn finishes the current player's turn and starts the next one.
func (s *State) EndTurn(playerID string) error {
	if err := s.checkActor(playerID); err != nil {
		return s.reject(playerID, err)
	}
	p := s.Players[playerID]
	if p.count(catalog.KindValue) > 1 && !p.PlayedValueCardThisTurn {
		return s.reject(playerID, rejection("%s must play a value card before ending the turn", p.Name))
	}

	if s.cardsPlayed.EffectCards(playerID) == 0 {
		s.ConsecutivePasses++
	}
	s.systemLog("%s ended the turn.", p.Name)
	s.publish(rules.NewEvent(rules.EventTurnEnded, playerID, "", playerID))
	s.logger.Debug("turn ended",
		zap.String("player_id", playerID),
		zap.Int("turn", s.turns.TurnNumber()),
		zap.Int("consecutive_passes", s.ConsecutivePasses),
	)

	// checkTerminal moves the turn on by itself when it eliminates the
	// player ending it.
	if !s.checkTerminal() && s.CurrentPlayer == playerID {
		s.advance()
		s.checkTerminal()
	}
	s.touch()
	return nil
}

// Unlock releases a pinned modifier category on a player.
func (s *State) Unlock(playerID string, cat catalog.Category) error {
	p, ok := s.Players[playerID]
	if !ok {
		return rejection("player %s is not in this game", playerID)
	}
	mod := p.Modifiers.Get(cat)
	if !mod.Locked {
		return nil
	}
	p.Modifiers.Unlock(cat)
	s.systemLog("%s's %s modifier was unlocked.", p.Name, cat)
	s.publish(categoryEvent(rules.EventUnlocked, playerID, "", "", cat))
	s.touch()
	return nil
}

// checkActor validates that playerID may act now.
func (s *State) checkActor(playerID string) error {
	if s.Phase == rules.PhaseGameOver {
		return fmt.Errorf("%w: %w", ErrRejected, ErrGameOver)
	}
	p, ok := s.Players[playerID]
	if !ok {
		return rejection("player %s is not in this game", playerID)
	}
	if p.IsEliminated {
		return rejection("%s has been eliminated", p.Name)
	}
	if s.CurrentPlayer != playerID {
		return rejection("it is not %s's turn", p.Name)
	}
	return nil
}

func (s *State) advance() {
	next, ok := s.turns.Advance(s.isEliminated)
	if !ok {
		return
	}
	s.beginTurn(next)
}

// beginTurn hands the turn to playerID: turn-scoped watchers reset, expired
// locks are released and the hand is refilled.
func (s *State) beginTurn(playerID string) {
	p, ok := s.Players[playerID]
	if !ok {
		return
	}
	s.CurrentPlayer = playerID
	p.PlayedValueCardThisTurn = false
	s.watchers.ResetWatchersByScope(rules.WatcherScopeTurn)

	turn := s.turns.TurnNumber()
	for _, id := range s.PlayerIDsInGame {
		other := s.Players[id]
		for _, cat := range other.Modifiers.ExpireLocks(turn) {
			s.systemLog("The lock on %s's %s modifier expired.", other.Name, cat)
			s.publish(categoryEvent(rules.EventUnlocked, id, "", "", cat))
		}
	}

	s.refillHand(p)
	if s.Phase != rules.PhaseGameOver {
		s.Phase = rules.PhasePlaying
	}
	s.systemLog("It is %s's turn.", p.Name)
	s.publish(rules.NewEventWithAmount(rules.EventTurnStarted, playerID, "", playerID, turn))
}

// lockDeadline returns the turn at which a lock placed now expires, or 0 when
// locks are only released manually.
func (s *State) lockDeadline() int {
	if s.settings.LockTurns <= 0 {
		return 0
	}
	return s.turns.TurnNumber() + s.settings.LockTurns*len(s.ActivePlayers())
}
