package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/game/effects"
	"github.com/reversus/reversus-server/internal/game/rules"
	"github.com/reversus/reversus-server/internal/game/targeting"
)

func TestValueCardGate(t *testing.T) {
	s := newTestState(t, nil)
	first := firstValueCard(s, "alice")

	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: first.ID}))
	assert.True(t, s.Players["alice"].PlayedValueCardThisTurn)

	give(t, s, "alice", "3")
	second := firstValueCard(s, "alice")
	err := s.PlayCard(Play{PlayerID: "alice", CardID: second.ID})
	assert.ErrorIs(t, err, ErrRejected, "one value card per turn")
}

func TestValueCardKeepsLastCard(t *testing.T) {
	s := newTestState(t, nil)
	keepValueCards(s, "alice", 1)
	last := firstValueCard(s, "alice")
	version := s.Version
	hand := len(s.Players["alice"].Hand)

	err := s.PlayCard(Play{PlayerID: "alice", CardID: last.ID})
	require.ErrorIs(t, err, ErrRejected)
	assert.Len(t, s.Players["alice"].Hand, hand, "rejection leaves the hand alone")
	assert.Equal(t, rules.PhasePlaying, s.Phase)
	assert.Contains(t, s.Log[0].Message, "Rejected:")
	assert.Greater(t, s.Version, version)

	// the last value card does not block ending the turn
	require.NoError(t, s.EndTurn("alice"))
}

func TestValueCardScoring(t *testing.T) {
	s := newTestState(t, nil)
	keepValueCards(s, "alice", 0)
	five := give(t, s, "alice", "5")
	give(t, s, "alice", "1")

	alice := s.Players["alice"]
	_, _, err := alice.Modifiers.Stand(catalog.EffectMais)
	require.NoError(t, err)
	_, _, err = alice.Modifiers.Stand(catalog.EffectSobe)
	require.NoError(t, err)
	require.NoError(t, s.AssignFieldEffect("alice", "Sorte Grande"))
	require.NoError(t, s.AssignFieldEffect("alice", "Vento a Favor"), "replaces the score field effect")

	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: five.ID, TargetID: "alice"}))
	// 5 face + 2 Mais, Vento a Favor only moves
	assert.Equal(t, 7, alice.Score)
	assert.Equal(t, 2, alice.Position, "1 Sobe + 1 Vento a Favor")
	assert.Len(t, s.ActiveFieldEffects, 1)
	assert.Contains(t, s.Discards[catalog.KindValue], five)
}

func TestValueCardCannotTargetOthers(t *testing.T) {
	s := newTestState(t, nil)
	card := firstValueCard(s, "alice")
	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: card.ID, TargetID: "bob"}), ErrRejected)
}

func TestPositionIsClamped(t *testing.T) {
	s := newTestState(t, nil)
	bob := s.Players["bob"]
	s.move(bob, -3, "")
	assert.Equal(t, 0, bob.Position)
	s.move(bob, 100, "")
	assert.Equal(t, s.Settings().PathLength, bob.Position)
}

func TestStandingModifiers(t *testing.T) {
	s := newTestState(t, nil)
	mais := give(t, s, "alice", "Mais")
	desce := give(t, s, "alice", "Desce")
	bob := s.Players["bob"]
	bob.Position = 3

	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: mais.ID, TargetID: "bob"}))
	assert.Equal(t, 2, bob.Score)
	assert.Equal(t, catalog.EffectMais, bob.Modifiers.Score.Kind)
	assert.Zero(t, s.ConsecutivePasses)
	assert.Equal(t, "alice", mais.CasterID)

	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: desce.ID, TargetID: "bob"}))
	assert.Equal(t, 2, bob.Position)
	assert.Equal(t, -1, bob.Modifiers.Movement.Direction())
}

func TestTargetedCardNeedsLiveTarget(t *testing.T) {
	s := newTestState(t, nil)
	mais := give(t, s, "alice", "Mais")

	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: mais.ID}), ErrRejected)
	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: mais.ID, TargetID: "nobody"}), ErrRejected)

	s.Players["bob"].IsEliminated = true
	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: mais.ID, TargetID: "bob"}), ErrRejected)
	assert.Contains(t, s.Players["alice"].Hand, mais)
}

func TestOnlyCurrentPlayerMayPlay(t *testing.T) {
	s := newTestState(t, nil)
	card := firstValueCard(s, "bob")
	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "bob", CardID: card.ID}), ErrRejected)
	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: "missing"}), ErrRejected)
}

func TestBlockedCardCannotBePlayed(t *testing.T) {
	s := newTestState(t, nil)
	card := firstValueCard(s, "alice")
	card.IsBlocked = true
	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: card.ID}), ErrRejected)
}

func TestReversusInvertsLiveModifier(t *testing.T) {
	s := newTestState(t, nil)
	bob := s.Players["bob"]
	_, _, err := bob.Modifiers.Stand(catalog.EffectMais)
	require.NoError(t, err)
	before := bob.Modifiers

	r1 := give(t, s, "alice", "Reversus")
	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: r1.ID, TargetID: "bob", Options: PlayOptions{EffectType: "score"}}))
	assert.Equal(t, -1, bob.Modifiers.Score.Direction(), "Mais now subtracts")

	r2 := give(t, s, "alice", "Reversus")
	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: r2.ID, TargetID: "bob", Options: PlayOptions{EffectType: "score"}}))
	assert.Equal(t, before, bob.Modifiers, "double reversal is identity")
	assert.Equal(t, 2, s.Stats().Reversals)
}

func TestReversusNeedsEffectType(t *testing.T) {
	s := newTestState(t, nil)
	r := give(t, s, "alice", "Reversus")
	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: r.ID, TargetID: "bob"}), ErrRejected)
}

func TestLockImmunity(t *testing.T) {
	s := newTestState(t, nil)
	bob := s.Players["bob"]

	total := give(t, s, "alice", "Reversus Total")
	require.NoError(t, s.PlayCard(Play{
		PlayerID: "alice",
		CardID:   total.ID,
		TargetID: "bob",
		Options:  PlayOptions{IsIndividualLock: true, EffectNameToApply: "Mais"},
	}))
	assert.True(t, bob.Modifiers.Score.Locked)
	assert.Equal(t, catalog.EffectMais, bob.Modifiers.Score.Kind)

	rev := give(t, s, "alice", "Reversus")
	err := s.PlayCard(Play{PlayerID: "alice", CardID: rev.ID, TargetID: "bob", Options: PlayOptions{EffectType: "score"}})
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, effects.ErrCategoryLocked)
	assert.Equal(t, 1, bob.Modifiers.Score.Direction())

	menos := give(t, s, "alice", "Menos")
	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: menos.ID, TargetID: "bob"}))
	assert.Equal(t, catalog.EffectMais, bob.Modifiers.Score.Kind, "pinned card stays")

	require.NoError(t, s.Unlock("bob", catalog.CategoryScore))
	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: rev.ID, TargetID: "bob", Options: PlayOptions{EffectType: "score"}}))
	assert.Equal(t, -1, bob.Modifiers.Score.Direction())
}

func TestReversusTotalIndividualByCategory(t *testing.T) {
	s := newTestState(t, nil)
	bob := s.Players["bob"]
	_, _, _ = bob.Modifiers.Stand(catalog.EffectDesce)

	total := give(t, s, "alice", "Reversus Total")
	require.NoError(t, s.PlayCard(Play{
		PlayerID: "alice",
		CardID:   total.ID,
		TargetID: "bob",
		Options:  PlayOptions{IsIndividualLock: true, EffectNameToApply: "movement"},
	}))
	assert.True(t, bob.Modifiers.Movement.Locked)
	assert.Equal(t, catalog.EffectDesce, bob.Modifiers.Movement.Kind)
	assert.Zero(t, bob.Modifiers.Movement.LockedUntilTurn, "no expiry without lock turns")
}

func TestReversusTotalNeedsMode(t *testing.T) {
	s := newTestState(t, nil)
	total := give(t, s, "alice", "Reversus Total")

	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: total.ID, TargetID: "bob"}), ErrRejected)
	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: total.ID, TargetID: "bob",
		Options: PlayOptions{IsGlobal: true, IsIndividualLock: true, EffectNameToApply: "Mais"}}), ErrRejected)
	assert.ErrorIs(t, s.PlayCard(Play{PlayerID: "alice", CardID: total.ID, TargetID: "bob",
		Options: PlayOptions{IsIndividualLock: true, EffectNameToApply: "Pula"}}), ErrRejected)
}

func TestGlobalReversusTotalSymmetryAndIdempotence(t *testing.T) {
	s := newTestState(t, nil, "alice", "bob", "carol")
	_, _, _ = s.Players["alice"].Modifiers.Stand(catalog.EffectMenos)
	_, _, _ = s.Players["bob"].Modifiers.Stand(catalog.EffectSobe)
	require.NoError(t, s.Players["carol"].Modifiers.Lock(catalog.CategoryScore, catalog.EffectMais, 0))

	before := make(map[string]effects.Modifiers)
	for id, p := range s.Players {
		before[id] = p.Modifiers
	}

	global := PlayOptions{IsGlobal: true}
	first := give(t, s, "alice", "Reversus Total")
	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: first.ID, TargetID: "alice", Options: global}))
	for id, p := range s.Players {
		prev := before[id]
		for _, cat := range catalog.Categories {
			was, now := prev.Get(cat), p.Modifiers.Get(cat)
			if was.Locked {
				assert.Equal(t, was.Polarity, now.Polarity, "%s %s is locked", id, cat)
				continue
			}
			assert.Equal(t, -was.Polarity, now.Polarity, "%s %s flipped", id, cat)
		}
	}

	second := give(t, s, "alice", "Reversus Total")
	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: second.ID, Options: global}))
	for id, p := range s.Players {
		assert.Equal(t, before[id], p.Modifiers, "%s restored", id)
	}
}

func TestPulaMovesToFreePath(t *testing.T) {
	s := newTestState(t, nil, "alice", "bob", "carol")
	pula := give(t, s, "alice", "Pula")

	assert.ElementsMatch(t, []int{3, 4, 5}, s.FreePaths())
	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: pula.ID, TargetID: "bob", Options: PlayOptions{PulaPath: intPtr(4)}}))

	bob := s.Players["bob"]
	assert.Equal(t, 4, bob.PathID)
	require.NotNil(t, bob.TargetPathForPula)
	assert.Equal(t, 4, *bob.TargetPathForPula)
	assert.ElementsMatch(t, []int{1, 3, 5}, s.FreePaths())
	assertPathsUnique(t, s)
}

func TestPulaRejectsOccupiedOrMissingPath(t *testing.T) {
	s := newTestState(t, nil, "alice", "bob", "carol")
	pula := give(t, s, "alice", "Pula")

	for _, opts := range []PlayOptions{
		{},
		{PulaPath: intPtr(2)},
		{PulaPath: intPtr(1)},
		{PulaPath: intPtr(42)},
	} {
		err := s.PlayCard(Play{PlayerID: "alice", CardID: pula.ID, TargetID: "bob", Options: opts})
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, 1, s.Players["bob"].PathID)
	assertPathsUnique(t, s)
}

func TestPulaRejectedOnFullBoard(t *testing.T) {
	s := newTestState(t, func(o *Options) { o.Settings.PathCount = 2 })
	pula := give(t, s, "alice", "Pula")
	version := s.Version

	err := s.PlayCard(Play{PlayerID: "alice", CardID: pula.ID, TargetID: "bob", Options: PlayOptions{PulaPath: intPtr(0)}})
	assert.ErrorIs(t, err, targeting.ErrNoFreePath)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, s.Players["bob"].PathID)
	assert.Contains(t, s.Players["alice"].Hand, pula)
	assert.Equal(t, version+1, s.Version)
}

func TestPulaCannotTakeEliminatedPlayersPath(t *testing.T) {
	s := newTestState(t, func(o *Options) { o.Settings.PathCount = 3 }, "alice", "bob", "carol")
	s.Players["carol"].IsEliminated = true
	pula := give(t, s, "alice", "Pula")

	assert.Empty(t, s.FreePaths())
	err := s.PlayCard(Play{PlayerID: "alice", CardID: pula.ID, TargetID: "bob", Options: PlayOptions{PulaPath: intPtr(2)}})
	assert.ErrorIs(t, err, targeting.ErrNoFreePath)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, s.Players["bob"].PathID)
	assert.Equal(t, 2, s.Players["carol"].PathID)
	assertPathsUnique(t, s)
}

func TestVersatrixAppliesCatalogPayload(t *testing.T) {
	cat := catalog.Default()
	cat.EffectDeck = append(cat.EffectDeck, catalog.EffectEntry{Name: "Carta da Versatrix", Count: 1})
	cat.Versatrix = catalog.VersatrixPayload{Score: 4, Movement: 2}
	s := newTestState(t, func(o *Options) { o.Catalog = cat })

	card := give(t, s, "alice", "Carta da Versatrix")
	require.NoError(t, s.PlayCard(Play{PlayerID: "alice", CardID: card.ID, TargetID: "alice"}))
	assert.Equal(t, 4, s.Players["alice"].Score)
	assert.Equal(t, 2, s.Players["alice"].Position)
}

func TestCardConservation(t *testing.T) {
	s := newTestState(t, nil, "alice", "bob", "carol")
	want := totalCards(s)

	plays := []struct {
		name   string
		target string
		opts   PlayOptions
	}{
		{"Mais", "bob", PlayOptions{}},
		{"Reversus", "bob", PlayOptions{EffectType: "score"}},
		{"Pula", "carol", PlayOptions{PulaPath: intPtr(5)}},
		{"Reversus Total", "", PlayOptions{IsGlobal: true}},
		{"Sobe", "alice", PlayOptions{}},
	}
	for round := 0; round < 4; round++ {
		for _, pl := range plays {
			actor := s.CurrentPlayer
			card := give(t, s, actor, pl.name)
			_ = s.PlayCard(Play{PlayerID: actor, CardID: card.ID, TargetID: pl.target, Options: pl.opts})
			assert.Equal(t, want, totalCards(s), "round %d %s", round, pl.name)
		}
		finishTurn(t, s)
		assert.Equal(t, want, totalCards(s))
		assertPathsUnique(t, s)
	}
}

func assertPathsUnique(t *testing.T, s *State) {
	t.Helper()
	seen := make(map[int]string)
	for _, id := range s.PlayerIDsInGame {
		path := s.Players[id].PathID
		if other, dup := seen[path]; dup {
			t.Fatalf("players %s and %s share path %d", other, id, path)
		}
		seen[path] = id
	}
}
