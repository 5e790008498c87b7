package effects

import (
	"errors"
	"fmt"

	"github.com/reversus/reversus-server/internal/game/catalog"
)

// ErrCategoryLocked is returned when a locked category is asked to reverse.
var ErrCategoryLocked = errors.New("modifier category is locked")

// Modifier is the live state of one category (score or movement) on a player.
//
// Kind is the standing card (Mais/Menos or Sobe/Desce), EffectNone when no
// card stands. Polarity is a live multiplier owned by the category itself, so a
// Reversus flips it whether or not a card currently stands.
type Modifier struct {
	Kind            catalog.EffectKind `json:"kind"`
	Polarity        int                `json:"polarity"`
	Locked          bool               `json:"locked,omitempty"`
	LockedUntilTurn int                `json:"lockedUntilTurn,omitempty"`
}

// Active reports whether a standing card is in effect.
func (m Modifier) Active() bool {
	return m.Kind != catalog.EffectNone
}

// Direction is +1, -1 or 0 (no standing card).
func (m Modifier) Direction() int {
	if !m.Active() {
		return 0
	}
	return m.Kind.BaseSign() * m.polarity()
}

// Apply scales a base delta by the live polarity.
func (m Modifier) Apply(delta int) int {
	return delta * m.polarity()
}

func (m Modifier) polarity() int {
	if m.Polarity < 0 {
		return -1
	}
	return 1
}

// Modifiers holds both categories for one player.
type Modifiers struct {
	Score    Modifier `json:"score"`
	Movement Modifier `json:"movement"`
}

// NewModifiers returns neutral modifiers (no standing card, positive polarity).
func NewModifiers() Modifiers {
	return Modifiers{
		Score:    Modifier{Polarity: 1},
		Movement: Modifier{Polarity: 1},
	}
}

// Get returns the modifier for a category.
func (m *Modifiers) Get(cat catalog.Category) *Modifier {
	if cat == catalog.CategoryMovement {
		return &m.Movement
	}
	return &m.Score
}

// Stand installs kind as the standing card of its category. A locked category
// keeps its pinned card.
func (m *Modifiers) Stand(kind catalog.EffectKind) (catalog.Category, bool, error) {
	cat, ok := kind.Category()
	if !ok {
		return "", false, fmt.Errorf("%s is not a standing modifier", kind)
	}
	mod := m.Get(cat)
	if mod.Locked {
		return cat, false, nil
	}
	mod.Kind = kind
	return cat, true, nil
}

// Reverse flips the polarity of a category.
func (m *Modifiers) Reverse(cat catalog.Category) error {
	mod := m.Get(cat)
	if mod.Locked {
		return fmt.Errorf("%s: %w", cat, ErrCategoryLocked)
	}
	mod.Polarity = -mod.polarity()
	return nil
}

// ReverseAll flips every unlocked category and returns the ones flipped.
func (m *Modifiers) ReverseAll() []catalog.Category {
	flipped := make([]catalog.Category, 0, len(catalog.Categories))
	for _, cat := range catalog.Categories {
		if err := m.Reverse(cat); err == nil {
			flipped = append(flipped, cat)
		}
	}
	return flipped
}

// Lock pins a category. When kind names a standing card, that card is
// installed with positive polarity; EffectNone pins the current state.
// untilTurn of 0 keeps the lock until Unlock is called.
func (m *Modifiers) Lock(cat catalog.Category, kind catalog.EffectKind, untilTurn int) error {
	if kind != catalog.EffectNone {
		kc, ok := kind.Category()
		if !ok || kc != cat {
			return fmt.Errorf("%s cannot be pinned on %s", kind, cat)
		}
	}
	mod := m.Get(cat)
	if kind != catalog.EffectNone {
		mod.Kind = kind
		mod.Polarity = 1
	}
	mod.Polarity = mod.polarity()
	mod.Locked = true
	mod.LockedUntilTurn = untilTurn
	return nil
}

// Unlock releases a category.
func (m *Modifiers) Unlock(cat catalog.Category) {
	mod := m.Get(cat)
	mod.Locked = false
	mod.LockedUntilTurn = 0
}

// ExpireLocks releases locks whose deadline is at or before turn.
func (m *Modifiers) ExpireLocks(turn int) []catalog.Category {
	var expired []catalog.Category
	for _, cat := range catalog.Categories {
		mod := m.Get(cat)
		if mod.Locked && mod.LockedUntilTurn > 0 && mod.LockedUntilTurn <= turn {
			m.Unlock(cat)
			expired = append(expired, cat)
		}
	}
	return expired
}
