package game

import (
	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/game/rules"
)

// AssignFieldEffect attaches a catalog field effect to a player, replacing the
// one already there.
func (s *State) AssignFieldEffect(playerID, name string) error {
	if s.Phase == rules.PhaseGameOver {
		return ErrGameOver
	}
	p, ok := s.Players[playerID]
	if !ok {
		return rejection("player %s is not in this game", playerID)
	}
	def, ok := s.catalog.FieldEffect(name)
	if !ok {
		return rejection("unknown field effect %q", name)
	}

	s.dropFieldEffect(playerID)
	s.ActiveFieldEffects = append(s.ActiveFieldEffects, FieldEffect{
		Name:      def.Name,
		Polarity:  def.Polarity,
		Category:  def.Category,
		Amount:    def.Amount,
		AppliesTo: playerID,
	})
	s.systemLog("Field effect %s now applies to %s.", def.Name, p.Name)
	evt := categoryEvent(rules.EventFieldEffectSet, playerID, "", "", def.Category)
	evt.Metadata["name"] = def.Name
	s.publish(evt)
	s.logger.Debug("field effect assigned", zap.String("player_id", playerID), zap.String("effect", def.Name))
	s.touch()
	return nil
}

// RemoveFieldEffect clears the field effect of a player, if any.
func (s *State) RemoveFieldEffect(playerID string) error {
	p, ok := s.Players[playerID]
	if !ok {
		return rejection("player %s is not in this game", playerID)
	}
	removed, ok := s.dropFieldEffect(playerID)
	if !ok {
		return nil
	}
	s.systemLog("Field effect %s no longer applies to %s.", removed.Name, p.Name)
	evt := rules.NewEvent(rules.EventFieldEffectRemove, playerID, "", "")
	evt.Metadata["name"] = removed.Name
	s.publish(evt)
	s.touch()
	return nil
}

// FieldEffectFor returns the field effect attached to a player.
func (s *State) FieldEffectFor(playerID string) (FieldEffect, bool) {
	for _, fe := range s.ActiveFieldEffects {
		if fe.AppliesTo == playerID {
			return fe, true
		}
	}
	return FieldEffect{}, false
}

func (s *State) dropFieldEffect(playerID string) (FieldEffect, bool) {
	for i, fe := range s.ActiveFieldEffects {
		if fe.AppliesTo == playerID {
			s.ActiveFieldEffects = append(s.ActiveFieldEffects[:i], s.ActiveFieldEffects[i+1:]...)
			return fe, true
		}
	}
	return FieldEffect{}, false
}

// fieldDelta is the signed field-effect contribution to a category.
func (s *State) fieldDelta(playerID string, cat catalog.Category) int {
	fe, ok := s.FieldEffectFor(playerID)
	if !ok || fe.Category != cat {
		return 0
	}
	return fe.Polarity.Sign() * fe.Amount
}
