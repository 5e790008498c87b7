package watchers

import (
	"testing"

	"github.com/reversus/reversus-server/internal/game/rules"
)

func TestCardsPlayedWatcher(t *testing.T) {
	watcher := NewCardsPlayedWatcher()

	if watcher.ConditionMet() {
		t.Fatal("watcher should not have condition met initially")
	}
	if watcher.GetScope() != rules.WatcherScopeTurn {
		t.Fatalf("expected turn scope, got %s", watcher.GetScope())
	}

	watcher.Watch(rules.NewEvent(rules.EventValueCardPlayed, "p1", "v1", "p1"))
	watcher.Watch(rules.NewEvent(rules.EventEffectCardPlayed, "p2", "e1", "p1"))
	watcher.Watch(rules.NewEvent(rules.EventEffectCardPlayed, "p1", "e2", "p1"))
	watcher.Watch(rules.NewEvent(rules.EventReversed, "p2", "e1", "p1"))

	if !watcher.ConditionMet() {
		t.Fatal("watcher should have condition met after a play")
	}
	if watcher.ValueCards("p1") != 1 {
		t.Fatalf("expected 1 value card, got %d", watcher.ValueCards("p1"))
	}
	if watcher.EffectCards("p1") != 2 {
		t.Fatalf("expected 2 effect cards, got %d", watcher.EffectCards("p1"))
	}
	if watcher.EffectCards("p2") != 0 {
		t.Fatalf("targets are not actors, got %d", watcher.EffectCards("p2"))
	}

	watcher.Reset()
	if watcher.ConditionMet() || watcher.ValueCards("p1") != 0 {
		t.Fatal("watcher should be cleared after reset")
	}
}

func TestMatchStatsWatcher(t *testing.T) {
	watcher := NewMatchStatsWatcher()

	events := []rules.Event{
		rules.NewEvent(rules.EventTurnStarted, "p1", "", "p1"),
		rules.NewEvent(rules.EventValueCardPlayed, "p1", "v", "p1"),
		rules.NewEvent(rules.EventEffectCardPlayed, "p2", "e", "p1"),
		rules.NewEvent(rules.EventReversed, "p2", "e", "p1"),
		rules.NewEvent(rules.EventLocked, "p2", "e", "p1"),
		rules.NewEvent(rules.EventDeckReshuffled, "", "", ""),
		rules.NewEvent(rules.EventDeckExhausted, "", "", ""),
		rules.NewEvent(rules.EventIntentRejected, "", "", "p2"),
		rules.NewEvent(rules.EventPlayerEliminated, "p3", "", ""),
		rules.NewEvent(rules.EventTurnStarted, "p2", "", "p2"),
	}
	for _, evt := range events {
		watcher.Watch(evt)
	}

	stats := watcher.Stats()
	if stats.Turns != 2 || stats.Reversals != 1 || stats.Locks != 1 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.ValuePlays["p1"] != 1 || stats.EffectPlays["p1"] != 1 {
		t.Fatalf("unexpected plays %+v", stats)
	}
	if stats.Reshuffles != 1 || stats.Exhaustions != 1 || stats.Rejections != 1 {
		t.Fatalf("unexpected deck totals %+v", stats)
	}
	if len(stats.Eliminations) != 1 || stats.Eliminations[0] != "p3" {
		t.Fatalf("unexpected eliminations %v", stats.Eliminations)
	}
	if watcher.ConditionMet() {
		t.Fatal("condition is only met at game over")
	}

	stats.ValuePlays["p1"] = 99
	if watcher.Stats().ValuePlays["p1"] != 1 {
		t.Fatal("Stats must return a copy")
	}

	watcher.Watch(rules.NewEvent(rules.EventGameOver, "p1", "", ""))
	if !watcher.ConditionMet() {
		t.Fatal("condition should be met at game over")
	}
}
