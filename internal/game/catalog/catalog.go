package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ValueEntry describes how many copies of a face value are in the value deck.
type ValueEntry struct {
	Face  int `yaml:"face"`
	Count int `yaml:"count"`
}

// EffectEntry describes how many copies of an effect card are in the effect deck.
type EffectEntry struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// FieldEffectDef is a passive modifier that can be assigned to a player.
type FieldEffectDef struct {
	Name     string   `yaml:"name"`
	Polarity Polarity `yaml:"polarity"`
	Category Category `yaml:"category"`
	Amount   int      `yaml:"amount"`
}

// VersatrixPayload is the self-effect of "Carta da Versatrix".
type VersatrixPayload struct {
	Score    int `yaml:"score"`
	Movement int `yaml:"movement"`
}

// Catalog is the static card configuration of a game.
type Catalog struct {
	ValueDeck    []ValueEntry     `yaml:"value_deck"`
	EffectDeck   []EffectEntry    `yaml:"effect_deck"`
	FieldEffects []FieldEffectDef `yaml:"field_effects"`
	Versatrix    VersatrixPayload `yaml:"versatrix"`
}

// Default returns the built-in card set.
func Default() *Catalog {
	values := make([]ValueEntry, 0, 10)
	for face := 1; face <= 10; face++ {
		values = append(values, ValueEntry{Face: face, Count: 6})
	}
	return &Catalog{
		ValueDeck: values,
		EffectDeck: []EffectEntry{
			{Name: "Mais", Count: 8},
			{Name: "Menos", Count: 8},
			{Name: "Sobe", Count: 8},
			{Name: "Desce", Count: 8},
			{Name: "Pula", Count: 6},
			{Name: "Reversus", Count: 6},
			{Name: "Reversus Total", Count: 2},
		},
		FieldEffects: []FieldEffectDef{
			{Name: "Sorte Grande", Polarity: PolarityPositive, Category: CategoryScore, Amount: 2},
			{Name: "Azar", Polarity: PolarityNegative, Category: CategoryScore, Amount: 2},
			{Name: "Vento a Favor", Polarity: PolarityPositive, Category: CategoryMovement, Amount: 1},
			{Name: "Areia Movediça", Polarity: PolarityNegative, Category: CategoryMovement, Amount: 1},
		},
		Versatrix: VersatrixPayload{Score: 3, Movement: 1},
	}
}

// Load parses a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &c, nil
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks counts, names and field-effect definitions.
func (c *Catalog) Validate() error {
	if c == nil {
		return errors.New("catalog is nil")
	}
	for _, v := range c.ValueDeck {
		if v.Count < 0 {
			return fmt.Errorf("value card %d has negative count", v.Face)
		}
	}
	for _, e := range c.EffectDeck {
		if e.Count < 0 {
			return fmt.Errorf("effect card %q has negative count", e.Name)
		}
		if _, ok := ParseEffect(e.Name); !ok {
			return fmt.Errorf("unknown effect card %q", e.Name)
		}
	}
	seen := make(map[string]bool, len(c.FieldEffects))
	for _, fe := range c.FieldEffects {
		key := strings.ToLower(fe.Name)
		if fe.Name == "" || seen[key] {
			return fmt.Errorf("field effect name %q is empty or duplicated", fe.Name)
		}
		seen[key] = true
		if fe.Polarity != PolarityPositive && fe.Polarity != PolarityNegative {
			return fmt.Errorf("field effect %q has invalid polarity %q", fe.Name, fe.Polarity)
		}
		if _, ok := ParseCategory(string(fe.Category)); !ok {
			return fmt.Errorf("field effect %q has invalid category %q", fe.Name, fe.Category)
		}
	}
	return nil
}

// BuildDeck creates a fresh, unshuffled set of cards of the given kind.
func (c *Catalog) BuildDeck(kind Kind) []*Card {
	var cards []*Card
	switch kind {
	case KindValue:
		for _, entry := range c.ValueDeck {
			for i := 0; i < entry.Count; i++ {
				cards = append(cards, &Card{
					ID:        uuid.NewString(),
					Kind:      KindValue,
					Name:      valueCardName(entry.Face),
					FaceValue: entry.Face,
				})
			}
		}
	case KindEffect:
		for _, entry := range c.EffectDeck {
			effect, ok := ParseEffect(entry.Name)
			if !ok {
				continue
			}
			for i := 0; i < entry.Count; i++ {
				cards = append(cards, &Card{
					ID:   uuid.NewString(),
					Kind: KindEffect,
					Name: effect.String(),
				})
			}
		}
	}
	return cards
}

// FieldEffect looks up a field effect definition by name (case-insensitive).
func (c *Catalog) FieldEffect(name string) (FieldEffectDef, bool) {
	for _, fe := range c.FieldEffects {
		if strings.EqualFold(fe.Name, strings.TrimSpace(name)) {
			return fe, true
		}
	}
	return FieldEffectDef{}, false
}
