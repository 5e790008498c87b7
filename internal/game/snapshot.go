package game

import (
	"fmt"
	"time"

	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/game/effects"
	"github.com/reversus/reversus-server/internal/game/rules"
)

// PlayerView is the read-only projection of a player. Hand is only filled for
// the viewer; everyone else sees HandCount.
type PlayerView struct {
	ID                      string            `json:"id"`
	Name                    string            `json:"name"`
	IsHuman                 bool              `json:"isHuman"`
	Hand                    []*catalog.Card   `json:"hand,omitempty"`
	HandCount               int               `json:"handCount"`
	PathID                  int               `json:"pathId"`
	Score                   int               `json:"score"`
	Position                int               `json:"position"`
	IsEliminated            bool              `json:"isEliminated"`
	PlayedValueCardThisTurn bool              `json:"playedValueCardThisTurn"`
	TargetPathForPula       *int              `json:"targetPathForPula,omitempty"`
	Modifiers               effects.Modifiers `json:"modifiers"`
}

// PathView is one board path and who stands on it.
type PathView struct {
	ID         int    `json:"id"`
	OccupantID string `json:"occupantId,omitempty"`
}

// Snapshot is what collaborators receive after every state change.
type Snapshot struct {
	GameID             string                `json:"gameId"`
	Version            uint64                `json:"version"`
	Checksum           string                `json:"checksum"`
	Viewer             string                `json:"viewer,omitempty"`
	Phase              rules.Phase           `json:"phase"`
	TurnNumber         int                   `json:"turnNumber"`
	CurrentPlayer      string                `json:"currentPlayer"`
	PlayerIDsInGame    []string              `json:"playerIdsInGame"`
	Players            map[string]PlayerView `json:"players"`
	DeckCounts         map[catalog.Kind]int  `json:"deckCounts"`
	DiscardCounts      map[catalog.Kind]int  `json:"discardCounts"`
	BoardPaths         []PathView            `json:"boardPaths"`
	ActiveFieldEffects []FieldEffect         `json:"activeFieldEffects"`
	Log                []LogEntry            `json:"log"`
	ConsecutivePasses  int                   `json:"consecutivePasses"`
	Winner             string                `json:"winner,omitempty"`
	TakenAt            time.Time             `json:"takenAt"`
}

// Snapshot projects the state for viewer. An empty viewer sees every hand.
func (s *State) Snapshot(viewer string) *Snapshot {
	snap := &Snapshot{
		GameID:             s.GameID,
		Version:            s.Version,
		Viewer:             viewer,
		Phase:              s.Phase,
		TurnNumber:         s.turns.TurnNumber(),
		CurrentPlayer:      s.CurrentPlayer,
		PlayerIDsInGame:    append([]string(nil), s.PlayerIDsInGame...),
		Players:            make(map[string]PlayerView, len(s.Players)),
		DeckCounts:         make(map[catalog.Kind]int, len(catalog.Kinds)),
		DiscardCounts:      make(map[catalog.Kind]int, len(catalog.Kinds)),
		ActiveFieldEffects: append([]FieldEffect(nil), s.ActiveFieldEffects...),
		Log:                append([]LogEntry(nil), s.Log...),
		ConsecutivePasses:  s.ConsecutivePasses,
		Winner:             s.Winner,
		TakenAt:            time.Now().UTC(),
	}
	for _, kind := range catalog.Kinds {
		snap.DeckCounts[kind] = len(s.Decks[kind])
		snap.DiscardCounts[kind] = len(s.Discards[kind])
	}
	occupant := s.occupants()
	for _, path := range s.BoardPaths {
		snap.BoardPaths = append(snap.BoardPaths, PathView{ID: path.ID, OccupantID: occupant[path.ID]})
	}
	for id, p := range s.Players {
		view := PlayerView{
			ID:                      p.ID,
			Name:                    p.Name,
			IsHuman:                 p.IsHuman,
			HandCount:               len(p.Hand),
			PathID:                  p.PathID,
			Score:                   p.Score,
			Position:                p.Position,
			IsEliminated:            p.IsEliminated,
			PlayedValueCardThisTurn: p.PlayedValueCardThisTurn,
			Modifiers:               p.Modifiers,
		}
		if p.TargetPathForPula != nil {
			path := *p.TargetPathForPula
			view.TargetPathForPula = &path
		}
		if viewer == "" || viewer == id {
			view.Hand = make([]*catalog.Card, 0, len(p.Hand))
			for _, c := range p.Hand {
				view.Hand = append(view.Hand, c.Clone())
			}
		}
		snap.Players[id] = view
	}
	snap.Checksum = snap.ComputeChecksum()
	return snap
}

// FreePaths returns the ids of unoccupied paths.
func (snap *Snapshot) FreePaths() []int {
	var free []int
	for _, path := range snap.BoardPaths {
		if path.OccupantID == "" {
			free = append(free, path.ID)
		}
	}
	return free
}

// Hand returns the viewer's own hand.
func (snap *Snapshot) Hand() []*catalog.Card {
	if snap == nil {
		return nil
	}
	return snap.Players[snap.Viewer].Hand
}

// Card finds a card in the viewer's hand.
func (snap *Snapshot) Card(cardID string) (*catalog.Card, bool) {
	for _, c := range snap.Hand() {
		if c.ID == cardID {
			return c, true
		}
	}
	return nil, false
}

// CheckFresh reports ErrStaleSnapshot when next fails its checksum or is older
// than prev for the same game.
func CheckFresh(prev, next *Snapshot) error {
	if next == nil {
		return fmt.Errorf("nil snapshot: %w", ErrStaleSnapshot)
	}
	if !next.VerifyChecksum() {
		return fmt.Errorf("checksum mismatch at version %d: %w", next.Version, ErrStaleSnapshot)
	}
	if prev != nil && prev.GameID == next.GameID && next.Version < prev.Version {
		return fmt.Errorf("version %d is older than %d: %w", next.Version, prev.Version, ErrStaleSnapshot)
	}
	return nil
}
