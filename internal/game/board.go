package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/config"
	"github.com/reversus/reversus-server/internal/game/rules"
	"github.com/reversus/reversus-server/internal/game/targeting"
)

// TerminalCondition decides elimination and victory. Implementations must be
// stateless so one value can serve many games.
type TerminalCondition interface {
	Eliminated(p *Player, s *State) bool
	Winner(s *State) (string, bool)
}

// NoTerminal never ends the game on its own.
type NoTerminal struct{}

func (NoTerminal) Eliminated(*Player, *State) bool { return false }
func (NoTerminal) Winner(*State) (string, bool)    { return "", false }

// PositionGoal declares the first player, in seating order, whose position
// reaches Goal the winner.
type PositionGoal struct{ Goal int }

func (PositionGoal) Eliminated(*Player, *State) bool { return false }

func (c PositionGoal) Winner(s *State) (string, bool) {
	for _, id := range s.ActivePlayers() {
		if s.Players[id].Position >= c.Goal {
			return id, true
		}
	}
	return "", false
}

// ScoreFloor eliminates players whose score drops below Floor.
type ScoreFloor struct{ Floor int }

func (c ScoreFloor) Eliminated(p *Player, _ *State) bool { return p.Score < c.Floor }
func (ScoreFloor) Winner(*State) (string, bool)          { return "", false }

// PassLimit ends the game once ConsecutivePasses reaches Limit; the highest
// score wins, ties going to the earlier seat.
type PassLimit struct{ Limit int }

func (PassLimit) Eliminated(*Player, *State) bool { return false }

func (c PassLimit) Winner(s *State) (string, bool) {
	if c.Limit <= 0 || s.ConsecutivePasses < c.Limit {
		return "", false
	}
	best := ""
	for _, id := range s.ActivePlayers() {
		if best == "" || s.Players[id].Score > s.Players[best].Score {
			best = id
		}
	}
	return best, best != ""
}

type anyOf []TerminalCondition

// AnyOf combines conditions: a player is eliminated if any condition says so,
// and the first condition that names a winner decides the game.
func AnyOf(conds ...TerminalCondition) TerminalCondition {
	return anyOf(conds)
}

func (a anyOf) Eliminated(p *Player, s *State) bool {
	for _, c := range a {
		if c.Eliminated(p, s) {
			return true
		}
	}
	return false
}

func (a anyOf) Winner(s *State) (string, bool) {
	for _, c := range a {
		if id, ok := c.Winner(s); ok {
			return id, true
		}
	}
	return "", false
}

// TerminalFromConfig builds the condition selected by configuration.
func TerminalFromConfig(cfg config.TerminalConfig) (TerminalCondition, error) {
	var conds []TerminalCondition
	for _, mode := range cfg.Modes() {
		switch mode {
		case "none":
		case "position_goal":
			conds = append(conds, PositionGoal{Goal: cfg.Goal})
		case "score_floor":
			conds = append(conds, ScoreFloor{Floor: cfg.Floor})
		case "pass_limit":
			conds = append(conds, PassLimit{Limit: cfg.PassLimit})
		default:
			return nil, fmt.Errorf("unknown terminal mode %q", mode)
		}
	}
	switch len(conds) {
	case 0:
		return NoTerminal{}, nil
	case 1:
		return conds[0], nil
	}
	return AnyOf(conds...), nil
}

// FindPlayerForTarget implements targeting.TargetGameStateAccessor.
func (s *State) FindPlayerForTarget(playerID string) (targeting.TargetPlayerInfo, bool) {
	p, ok := s.Players[playerID]
	if !ok {
		return targeting.TargetPlayerInfo{}, false
	}
	return targeting.TargetPlayerInfo{PlayerID: p.ID, PathID: p.PathID, Eliminated: p.IsEliminated}, true
}

// PathsForTarget implements targeting.TargetGameStateAccessor.
func (s *State) PathsForTarget() []targeting.TargetPathInfo {
	occupant := s.occupants()
	out := make([]targeting.TargetPathInfo, 0, len(s.BoardPaths))
	for _, path := range s.BoardPaths {
		out = append(out, targeting.TargetPathInfo{ID: path.ID, OccupantID: occupant[path.ID]})
	}
	return out
}

// FreePaths returns the ids of paths no seated player occupies. Eliminated
// players keep their path.
func (s *State) FreePaths() []int {
	return s.targets.FreePaths()
}

func (s *State) occupants() map[int]string {
	occupant := make(map[int]string, len(s.Players))
	for _, id := range s.PlayerIDsInGame {
		occupant[s.Players[id].PathID] = id
	}
	return occupant
}

func (s *State) changeScore(p *Player, delta int, sourceID string) {
	if delta == 0 {
		return
	}
	p.Score += delta
	s.publish(rules.NewEventWithAmount(rules.EventScoreChanged, p.ID, sourceID, s.CurrentPlayer, delta))
}

// move shifts the player's position, clamped to the path bounds.
func (s *State) move(p *Player, delta int, sourceID string) {
	if delta == 0 {
		return
	}
	next := p.Position + delta
	if next < 0 {
		next = 0
	}
	if next > s.settings.PathLength {
		next = s.settings.PathLength
	}
	if next == p.Position {
		return
	}
	moved := next - p.Position
	p.Position = next
	s.publish(rules.NewEventWithAmount(rules.EventPlayerMoved, p.ID, sourceID, s.CurrentPlayer, moved))
}

// checkTerminal applies eliminations and declares the game over when at most
// one player remains or a winner is found. It reports whether the game ended.
func (s *State) checkTerminal() bool {
	if s.Phase == rules.PhaseGameOver {
		return true
	}
	for _, id := range s.ActivePlayers() {
		p := s.Players[id]
		if s.terminal.Eliminated(p, s) {
			p.IsEliminated = true
			s.systemLog("%s was eliminated.", p.Name)
			s.publish(rules.NewEvent(rules.EventPlayerEliminated, p.ID, "", ""))
			s.logger.Info("player eliminated", zap.String("player_id", p.ID))
		}
	}

	remaining := s.ActivePlayers()
	winner, over := "", false
	switch {
	case len(remaining) <= 1:
		over = true
		if len(remaining) == 1 {
			winner = remaining[0]
		}
	default:
		winner, over = s.terminal.Winner(s)
	}
	if !over {
		if p := s.Players[s.CurrentPlayer]; p != nil && p.IsEliminated {
			if next, ok := s.turns.Advance(s.isEliminated); ok {
				s.beginTurn(next)
			}
		}
		return false
	}

	s.Phase = rules.PhaseGameOver
	s.Winner = winner
	if winner != "" {
		s.systemLog("%s wins the game!", s.name(winner))
	} else {
		s.systemLog("The game ended without a winner.")
	}
	s.publish(rules.NewEvent(rules.EventGameOver, winner, "", ""))
	s.logger.Info("game over", zap.String("winner", winner), zap.Int("turn", s.turns.TurnNumber()))
	return true
}

func (s *State) isEliminated(id string) bool {
	p, ok := s.Players[id]
	return !ok || p.IsEliminated
}
