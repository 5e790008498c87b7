package game

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/reversus/reversus-server/internal/game/catalog"
)

// ComputeChecksum hashes the deterministic representation of the snapshot
// with BLAKE2b-256. The Checksum field and TakenAt are excluded.
func (snap *Snapshot) ComputeChecksum() string {
	sum := blake2b.Sum256([]byte(snap.buildDeterministicRepresentation()))
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether the stored checksum matches the contents.
func (snap *Snapshot) VerifyChecksum() bool {
	return snap.Checksum != "" && snap.Checksum == snap.ComputeChecksum()
}

// buildDeterministicRepresentation renders the snapshot independent of map
// iteration order.
func (snap *Snapshot) buildDeterministicRepresentation() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%d|%s|%s|%d|%s|%d|%s\n",
		snap.GameID,
		snap.Version,
		snap.Viewer,
		snap.Phase,
		snap.TurnNumber,
		snap.CurrentPlayer,
		snap.ConsecutivePasses,
		snap.Winner,
	)
	buf.WriteString("PLAYER_ORDER:")
	buf.WriteString(strings.Join(snap.PlayerIDsInGame, ","))
	buf.WriteString("\n")

	playerIDs := make([]string, 0, len(snap.Players))
	for id := range snap.Players {
		playerIDs = append(playerIDs, id)
	}
	sort.Strings(playerIDs)
	for _, id := range playerIDs {
		p := snap.Players[id]
		pula := -1
		if p.TargetPathForPula != nil {
			pula = *p.TargetPathForPula
		}
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%t|%d|%d|%d|%d|%t|%t|%d\n",
			id,
			p.Name,
			p.IsHuman,
			p.HandCount,
			p.PathID,
			p.Score,
			p.Position,
			p.IsEliminated,
			p.PlayedValueCardThisTurn,
			pula,
		)
		for _, m := range []struct {
			name string
			kind fmt.Stringer
			pol  int
			lock bool
			till int
		}{
			{"SCORE", p.Modifiers.Score.Kind, p.Modifiers.Score.Polarity, p.Modifiers.Score.Locked, p.Modifiers.Score.LockedUntilTurn},
			{"MOVEMENT", p.Modifiers.Movement.Kind, p.Modifiers.Movement.Polarity, p.Modifiers.Movement.Locked, p.Modifiers.Movement.LockedUntilTurn},
		} {
			fmt.Fprintf(&buf, "  MOD:%s|%s|%d|%t|%d\n", m.name, m.kind, m.pol, m.lock, m.till)
		}
		// hand order is the dealing order, keep it
		for _, c := range p.Hand {
			fmt.Fprintf(&buf, "  HAND:%s|%s|%s|%d|%t\n", c.ID, c.Kind, c.Name, c.FaceValue, c.IsBlocked)
		}
	}

	kinds := make([]string, 0, len(snap.DeckCounts))
	for kind := range snap.DeckCounts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(&buf, "PILE:%s|%d|%d\n", kind, snap.DeckCounts[catalog.Kind(kind)], snap.DiscardCounts[catalog.Kind(kind)])
	}

	for _, path := range snap.BoardPaths {
		fmt.Fprintf(&buf, "PATH:%d|%s\n", path.ID, path.OccupantID)
	}
	for _, fe := range snap.ActiveFieldEffects {
		fmt.Fprintf(&buf, "FIELD:%s|%s|%s|%d|%s\n", fe.Name, fe.Polarity, fe.Category, fe.Amount, fe.AppliesTo)
	}
	// log is newest first, order matters
	for _, entry := range snap.Log {
		fmt.Fprintf(&buf, "LOG:%s|%s|%s\n", entry.Type, entry.SpeakerID, entry.Message)
	}

	return buf.String()
}
