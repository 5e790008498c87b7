package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/game/rules"
)

// exhaustionMarker prefixes log entries for draws that could not be served.
const exhaustionMarker = "[FATAL]"

// DealCard pops the top card of the deck of the given kind.
//
// An empty deck is refilled from its discard pile, which is then emptied. When
// both are empty the deck is rebuilt from the catalog. If the catalog yields
// no cards either, ErrDeckExhausted is returned and nothing is dealt.
func (s *State) DealCard(kind catalog.Kind) (*catalog.Card, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown deck kind %q", kind)
	}

	if len(s.Decks[kind]) == 0 {
		discard := s.Discards[kind]
		if len(discard) == 0 {
			s.Decks[kind] = catalog.Shuffle(s.rng, s.catalog.BuildDeck(kind))
			s.systemLog("The %s deck and discard were exhausted; the deck was rebuilt.", kind)
			s.publish(rules.NewEventWithAmount(rules.EventDeckRebuilt, "", "", "", len(s.Decks[kind])))
			s.logger.Info("deck rebuilt from catalog",
				zap.String("kind", string(kind)),
				zap.Int("cards", len(s.Decks[kind])),
			)
		} else {
			s.Decks[kind] = catalog.Shuffle(s.rng, discard)
			s.Discards[kind] = make([]*catalog.Card, 0)
			s.publish(rules.NewEventWithAmount(rules.EventDeckReshuffled, "", "", "", len(s.Decks[kind])))
			s.logger.Debug("discard reshuffled into deck",
				zap.String("kind", string(kind)),
				zap.Int("cards", len(s.Decks[kind])),
			)
		}
	}

	deck := s.Decks[kind]
	if len(deck) == 0 {
		s.publish(rules.NewEvent(rules.EventDeckExhausted, "", "", ""))
		return nil, fmt.Errorf("%s deck: %w", kind, ErrDeckExhausted)
	}
	card := deck[len(deck)-1]
	s.Decks[kind] = deck[:len(deck)-1]
	card.CasterID = ""
	return card, nil
}

// refillHand tops the player's hand up to the configured size per kind.
// Exhaustion is logged and ends refilling of that kind only.
func (s *State) refillHand(p *Player) {
	sizes := map[catalog.Kind]int{
		catalog.KindValue:  s.settings.ValueHandSize,
		catalog.KindEffect: s.settings.EffectHandSize,
	}
	for _, kind := range catalog.Kinds {
		for p.count(kind) < sizes[kind] {
			card, err := s.DealCard(kind)
			if err != nil {
				s.systemLog("%s could not draw a %s card: %s", exhaustionMarker, kind, err)
				s.logger.Error("draw failed",
					zap.String("player_id", p.ID),
					zap.String("kind", string(kind)),
					zap.Error(err),
				)
				break
			}
			p.Hand = append(p.Hand, card)
			s.publish(rules.NewEvent(rules.EventCardDealt, p.ID, card.ID, p.ID))
		}
	}
}
