package watchers

import (
	"github.com/reversus/reversus-server/internal/game/rules"
)

// CardsPlayedWatcher tracks value and effect cards played during the current turn.
type CardsPlayedWatcher struct {
	*rules.BaseWatcher
	values  map[string]int // playerID -> value cards played
	effects map[string]int // playerID -> effect cards played
}

// NewCardsPlayedWatcher creates a turn-scoped cards played watcher.
func NewCardsPlayedWatcher() *CardsPlayedWatcher {
	w := &CardsPlayedWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeTurn),
		values:      make(map[string]int),
		effects:     make(map[string]int),
	}
	w.SetKey("CardsPlayedWatcher")
	return w
}

// Watch implements the Watcher interface.
func (w *CardsPlayedWatcher) Watch(event rules.Event) {
	if event.PlayerID == "" {
		return
	}
	switch event.Type {
	case rules.EventValueCardPlayed:
		w.values[event.PlayerID]++
	case rules.EventEffectCardPlayed:
		w.effects[event.PlayerID]++
	default:
		return
	}
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CardsPlayedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.values = make(map[string]int)
	w.effects = make(map[string]int)
}

// ValueCards returns how many value cards playerID played this turn.
func (w *CardsPlayedWatcher) ValueCards(playerID string) int {
	return w.values[playerID]
}

// EffectCards returns how many effect cards playerID played this turn.
func (w *CardsPlayedWatcher) EffectCards(playerID string) int {
	return w.effects[playerID]
}

// MatchStats are per-match totals kept for the archive.
type MatchStats struct {
	Turns        int            `json:"turns"`
	ValuePlays   map[string]int `json:"valuePlays"`
	EffectPlays  map[string]int `json:"effectPlays"`
	Reversals    int            `json:"reversals"`
	Locks        int            `json:"locks"`
	Reshuffles   int            `json:"reshuffles"`
	Exhaustions  int            `json:"exhaustions"`
	Rejections   int            `json:"rejections"`
	Eliminations []string       `json:"eliminations,omitempty"`
}

// MatchStatsWatcher accumulates MatchStats for the whole game.
type MatchStatsWatcher struct {
	*rules.BaseWatcher
	stats MatchStats
}

// NewMatchStatsWatcher creates a game-scoped statistics watcher.
func NewMatchStatsWatcher() *MatchStatsWatcher {
	w := &MatchStatsWatcher{BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame)}
	w.SetKey("MatchStatsWatcher")
	w.Reset()
	return w
}

// Watch implements the Watcher interface.
func (w *MatchStatsWatcher) Watch(event rules.Event) {
	switch event.Type {
	case rules.EventTurnStarted:
		w.stats.Turns++
	case rules.EventValueCardPlayed:
		w.stats.ValuePlays[event.PlayerID]++
	case rules.EventEffectCardPlayed:
		w.stats.EffectPlays[event.PlayerID]++
	case rules.EventReversed:
		w.stats.Reversals++
	case rules.EventLocked:
		w.stats.Locks++
	case rules.EventDeckReshuffled, rules.EventDeckRebuilt:
		w.stats.Reshuffles++
	case rules.EventDeckExhausted:
		w.stats.Exhaustions++
	case rules.EventIntentRejected:
		w.stats.Rejections++
	case rules.EventPlayerEliminated:
		w.stats.Eliminations = append(w.stats.Eliminations, event.TargetID)
	case rules.EventGameOver:
		w.SetCondition(true)
	}
}

// Reset clears the accumulated totals.
func (w *MatchStatsWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.stats = MatchStats{
		ValuePlays:  make(map[string]int),
		EffectPlays: make(map[string]int),
	}
}

// Stats returns a copy of the accumulated totals.
func (w *MatchStatsWatcher) Stats() MatchStats {
	out := w.stats
	out.ValuePlays = make(map[string]int, len(w.stats.ValuePlays))
	for k, v := range w.stats.ValuePlays {
		out.ValuePlays[k] = v
	}
	out.EffectPlays = make(map[string]int, len(w.stats.EffectPlays))
	for k, v := range w.stats.EffectPlays {
		out.EffectPlays[k] = v
	}
	out.Eliminations = append([]string(nil), w.stats.Eliminations...)
	return out
}
