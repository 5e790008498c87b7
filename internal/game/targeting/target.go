package targeting

import (
	"fmt"

	"github.com/reversus/reversus-server/internal/game/catalog"
)

// TargetType represents what a card choice points at.
type TargetType string

const (
	// TargetTypePlayer targets a seated player
	TargetTypePlayer TargetType = "PLAYER"
	// TargetTypePath targets a board path
	TargetTypePath TargetType = "PATH"
)

// TargetRequirement defines one choice a card needs before it can resolve.
type TargetRequirement struct {
	Type TargetType
	// AllowSelf permits the acting player as a player target.
	AllowSelf bool
	// Free requires a path target to be unoccupied.
	Free        bool
	Description string
}

// RequirementsFor lists the choices needed to play a card of the given kind.
// A global Reversus Total needs none.
func RequirementsFor(kind catalog.EffectKind, global bool) []TargetRequirement {
	switch kind {
	case catalog.EffectMais, catalog.EffectMenos, catalog.EffectSobe, catalog.EffectDesce, catalog.EffectReversus:
		return []TargetRequirement{{Type: TargetTypePlayer, AllowSelf: true, Description: "target player"}}
	case catalog.EffectReversusTotal:
		if global {
			return nil
		}
		return []TargetRequirement{{Type: TargetTypePlayer, AllowSelf: true, Description: "player to lock"}}
	case catalog.EffectPula:
		return []TargetRequirement{
			{Type: TargetTypePlayer, AllowSelf: true, Description: "player to move"},
			{Type: TargetTypePath, Free: true, Description: "free destination path"},
		}
	}
	return nil
}

// Needs reports whether reqs contains a requirement of type tt.
func Needs(reqs []TargetRequirement, tt TargetType) bool {
	for _, r := range reqs {
		if r.Type == tt {
			return true
		}
	}
	return false
}

// Describe formats requirements for log and error messages.
func Describe(reqs []TargetRequirement) string {
	switch len(reqs) {
	case 0:
		return "no target"
	case 1:
		return reqs[0].Description
	}
	return fmt.Sprintf("%s and %s", reqs[0].Description, reqs[1].Description)
}
