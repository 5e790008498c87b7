package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind separates the two decks.
type Kind string

const (
	KindValue  Kind = "value"
	KindEffect Kind = "effect"
)

// Kinds lists every deck kind in dealing order.
var Kinds = []Kind{KindValue, KindEffect}

// Valid reports whether k names a known deck.
func (k Kind) Valid() bool {
	return k == KindValue || k == KindEffect
}

// Category is the modifier channel an effect acts on.
type Category string

const (
	CategoryScore    Category = "score"
	CategoryMovement Category = "movement"
)

// Categories lists both modifier channels.
var Categories = []Category{CategoryScore, CategoryMovement}

// ParseCategory accepts "score" or "movement" in any case.
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryScore:
		return CategoryScore, true
	case CategoryMovement:
		return CategoryMovement, true
	}
	return "", false
}

// Polarity is the sign of a field effect.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// Sign returns +1 or -1.
func (p Polarity) Sign() int {
	if p == PolarityNegative {
		return -1
	}
	return 1
}

// EffectKind is the closed set of card behaviours.
type EffectKind int

const (
	EffectNone EffectKind = iota // value cards
	EffectMais
	EffectMenos
	EffectSobe
	EffectDesce
	EffectPula
	EffectReversus
	EffectReversusTotal
	EffectVersatrix
)

var effectNames = map[EffectKind]string{
	EffectMais:          "Mais",
	EffectMenos:         "Menos",
	EffectSobe:          "Sobe",
	EffectDesce:         "Desce",
	EffectPula:          "Pula",
	EffectReversus:      "Reversus",
	EffectReversusTotal: "Reversus Total",
	EffectVersatrix:     "Carta da Versatrix",
}

var effectsByName = func() map[string]EffectKind {
	m := make(map[string]EffectKind, len(effectNames))
	for kind, name := range effectNames {
		m[strings.ToLower(name)] = kind
	}
	return m
}()

func (k EffectKind) String() string {
	if name, ok := effectNames[k]; ok {
		return name
	}
	if k == EffectNone {
		return "VALUE"
	}
	return fmt.Sprintf("EFFECT_%d", int(k))
}

// MarshalText encodes the kind as its card name ("" for no effect).
func (k EffectKind) MarshalText() ([]byte, error) {
	if k == EffectNone {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a card name produced by MarshalText.
func (k *EffectKind) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = EffectNone
		return nil
	}
	kind, ok := ParseEffect(string(text))
	if !ok {
		return fmt.Errorf("unknown effect %q", text)
	}
	*k = kind
	return nil
}

// ParseEffect maps a card name to its behaviour.
func ParseEffect(name string) (EffectKind, bool) {
	kind, ok := effectsByName[strings.ToLower(strings.TrimSpace(name))]
	return kind, ok
}

// Targetable reports whether playing the card needs a target choice first.
func (k EffectKind) Targetable() bool {
	switch k {
	case EffectMais, EffectMenos, EffectSobe, EffectDesce, EffectPula, EffectReversus, EffectReversusTotal:
		return true
	}
	return false
}

// Category returns the modifier channel of a standing modifier card.
// The second result is false for cards that do not stand as modifiers.
func (k EffectKind) Category() (Category, bool) {
	switch k {
	case EffectMais, EffectMenos:
		return CategoryScore, true
	case EffectSobe, EffectDesce:
		return CategoryMovement, true
	}
	return "", false
}

// BaseSign is +1 for Mais/Sobe and -1 for Menos/Desce.
func (k EffectKind) BaseSign() int {
	switch k {
	case EffectMenos, EffectDesce:
		return -1
	case EffectMais, EffectSobe:
		return 1
	}
	return 0
}

// Card is a single physical card. Cards are created only by BuildDeck and
// are conserved for the lifetime of a game.
type Card struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"type"`
	Name      string `json:"name"`
	FaceValue int    `json:"value,omitempty"`
	IsBlocked bool   `json:"isBlocked,omitempty"`
	IsLocked  bool   `json:"isLocked,omitempty"`
	CasterID  string `json:"casterId,omitempty"`
}

// Effect returns the behaviour of the card. Value cards yield EffectNone.
func (c *Card) Effect() EffectKind {
	if c == nil || c.Kind == KindValue {
		return EffectNone
	}
	kind, _ := ParseEffect(c.Name)
	return kind
}

// Clone returns a copy safe to hand to collaborators.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func valueCardName(face int) string {
	return strconv.Itoa(face)
}
