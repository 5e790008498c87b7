package game

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Action names an intent.
type Action string

const (
	ActionPlayCard          Action = "playCard"
	ActionEndTurn           Action = "endTurn"
	ActionAssignFieldEffect Action = "assignFieldEffect"
	ActionRemoveFieldEffect Action = "removeFieldEffect"
	ActionSay               Action = "say"
)

// MaxMessageLength caps a dialogue line, in runes.
const MaxMessageLength = 280

// HostOnly reports whether only the hosting side may submit the action.
func (a Action) HostOnly() bool {
	return a == ActionAssignFieldEffect || a == ActionRemoveFieldEffect
}

// PlayOptions carries the sub-choices of a card play.
type PlayOptions struct {
	EffectType        string `json:"effectType,omitempty"`
	IsGlobal          bool   `json:"isGlobal,omitempty"`
	IsIndividualLock  bool   `json:"isIndividualLock,omitempty"`
	EffectNameToApply string `json:"effectNameToApply,omitempty"`
	PulaPath          *int   `json:"pulaPath,omitempty"`
}

// Intent is a player's request to the authority.
type Intent struct {
	Action      Action       `json:"action"`
	PlayerID    string       `json:"playerId,omitempty"`
	CardID      string       `json:"cardId,omitempty"`
	TargetID    string       `json:"targetId,omitempty"`
	Options     *PlayOptions `json:"options,omitempty"`
	FieldEffect string       `json:"fieldEffect,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// ParseIntent decodes the JSON form of an intent.
func ParseIntent(data []byte) (Intent, error) {
	var in Intent
	if err := json.Unmarshal(data, &in); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	return in, nil
}

// Validate checks the intent is well formed. Rule checks happen in the
// authority.
func (in Intent) Validate() error {
	if strings.TrimSpace(in.PlayerID) == "" {
		return fmt.Errorf("intent has no player")
	}
	switch in.Action {
	case ActionPlayCard:
		if in.CardID == "" {
			return fmt.Errorf("playCard requires cardId")
		}
	case ActionEndTurn, ActionRemoveFieldEffect:
	case ActionAssignFieldEffect:
		if strings.TrimSpace(in.FieldEffect) == "" {
			return fmt.Errorf("assignFieldEffect requires fieldEffect")
		}
	case ActionSay:
		msg := strings.TrimSpace(in.Message)
		if msg == "" {
			return fmt.Errorf("say requires message")
		}
		if utf8.RuneCountInString(msg) > MaxMessageLength {
			return fmt.Errorf("message longer than %d characters", MaxMessageLength)
		}
	default:
		return fmt.Errorf("unknown action %q", in.Action)
	}
	return nil
}

// Play converts a playCard intent into a resolver request.
func (in Intent) Play() Play {
	play := Play{PlayerID: in.PlayerID, CardID: in.CardID, TargetID: in.TargetID}
	if in.Options != nil {
		play.Options = *in.Options
	}
	return play
}
