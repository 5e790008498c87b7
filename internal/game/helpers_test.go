package game

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversus/reversus-server/internal/game/catalog"
)

func seats(ids ...string) []Seat {
	out := make([]Seat, 0, len(ids))
	for _, id := range ids {
		out = append(out, Seat{ID: id, Name: strings.ToUpper(id[:1]) + id[1:], IsHuman: id == "alice"})
	}
	return out
}

func newTestState(t *testing.T, configure func(*Options), ids ...string) *State {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"alice", "bob"}
	}
	settings := DefaultSettings()
	opts := Options{
		Settings: &settings,
		RNG:      rand.New(rand.NewPCG(7, 11)),
		Logger:   zaptest.NewLogger(t),
	}
	if configure != nil {
		configure(&opts)
	}
	s, err := NewState("game-1", seats(ids...), opts)
	require.NoError(t, err)
	return s
}

// give moves a card with the given name into the player's hand, taking it
// from the deck, the discard pile or another hand, in that order.
func give(t *testing.T, s *State, playerID, name string) *catalog.Card {
	t.Helper()
	kind := catalog.KindEffect
	if _, ok := catalog.ParseEffect(name); !ok {
		kind = catalog.KindValue
	}
	p := s.Players[playerID]
	for _, pile := range []map[catalog.Kind][]*catalog.Card{s.Decks, s.Discards} {
		for i, c := range pile[kind] {
			if c.Name == name {
				pile[kind] = append(pile[kind][:i], pile[kind][i+1:]...)
				p.Hand = append(p.Hand, c)
				return c
			}
		}
	}
	for _, id := range s.PlayerIDsInGame {
		if id == playerID {
			continue
		}
		other := s.Players[id]
		for i, c := range other.Hand {
			if c.Name == name {
				other.Hand = append(other.Hand[:i], other.Hand[i+1:]...)
				p.Hand = append(p.Hand, c)
				return c
			}
		}
	}
	for _, c := range p.Hand {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %q card in the game", name)
	return nil
}

// keepValueCards returns value cards from the hand to the deck until n remain.
func keepValueCards(s *State, playerID string, n int) {
	p := s.Players[playerID]
	kept := p.Hand[:0]
	values := 0
	for _, c := range p.Hand {
		if c.Kind == catalog.KindValue {
			if values >= n {
				s.Decks[catalog.KindValue] = append(s.Decks[catalog.KindValue], c)
				continue
			}
			values++
		}
		kept = append(kept, c)
	}
	p.Hand = kept
}

func firstValueCard(s *State, playerID string) *catalog.Card {
	for _, c := range s.Players[playerID].Hand {
		if c.Kind == catalog.KindValue {
			return c
		}
	}
	return nil
}

func totalCards(s *State) map[catalog.Kind]int {
	total := make(map[catalog.Kind]int)
	for _, kind := range catalog.Kinds {
		total[kind] = len(s.Decks[kind]) + len(s.Discards[kind])
	}
	for _, p := range s.Players {
		for _, c := range p.Hand {
			total[c.Kind]++
		}
	}
	return total
}

func intPtr(v int) *int { return &v }

// finishTurn plays a value card when the gate requires it and ends the turn.
func finishTurn(t *testing.T, s *State) {
	t.Helper()
	id := s.CurrentPlayer
	p := s.Players[id]
	if p.count(catalog.KindValue) > 1 && !p.PlayedValueCardThisTurn {
		require.NoError(t, s.PlayCard(Play{PlayerID: id, CardID: firstValueCard(s, id).ID}))
	}
	require.NoError(t, s.EndTurn(id))
}
