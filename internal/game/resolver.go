package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/game/effects"
	"github.com/reversus/reversus-server/internal/game/rules"
	"github.com/reversus/reversus-server/internal/game/targeting"
)

// Play is a fully specified card play.
type Play struct {
	PlayerID string
	CardID   string
	TargetID string
	Options  PlayOptions
}

type playContext struct {
	state  *State
	actor  *Player
	card   *catalog.Card
	kind   catalog.EffectKind
	play   Play
	target *Player
	cat    catalog.Category
	lock   catalog.EffectKind
	path   int
}

// effectHandler validates a play without mutating state, then applies it.
type effectHandler struct {
	validate func(pc *playContext) error
	apply    func(pc *playContext)
}

var effectHandlers map[catalog.EffectKind]effectHandler

func init() {
	standing := effectHandler{validate: validateTarget, apply: applyStanding}
	effectHandlers = map[catalog.EffectKind]effectHandler{
		catalog.EffectNone:          {validate: validateValueCard, apply: applyValueCard},
		catalog.EffectMais:          standing,
		catalog.EffectMenos:         standing,
		catalog.EffectSobe:          standing,
		catalog.EffectDesce:         standing,
		catalog.EffectPula:          {validate: validatePula, apply: applyPula},
		catalog.EffectReversus:      {validate: validateReversus, apply: applyReversus},
		catalog.EffectReversusTotal: {validate: validateReversusTotal, apply: applyReversusTotal},
		catalog.EffectVersatrix:     {validate: func(*playContext) error { return nil }, apply: applyVersatrix},
	}
}

// PlayCard resolves a card from the acting player's hand. A rejected play
// leaves the state untouched apart from the rejection log entry.
func (s *State) PlayCard(play Play) error {
	if err := s.checkActor(play.PlayerID); err != nil {
		return s.reject(play.PlayerID, err)
	}
	actor := s.Players[play.PlayerID]
	card, idx := actor.card(play.CardID)
	if card == nil {
		return s.reject(play.PlayerID, rejection("card %s is not in %s's hand", play.CardID, actor.Name))
	}
	if card.IsBlocked {
		return s.reject(play.PlayerID, rejection("%s is blocked", card.Name))
	}
	kind := card.Effect()
	if card.Kind == catalog.KindEffect && kind == catalog.EffectNone {
		return s.reject(play.PlayerID, rejection("unknown effect card %q", card.Name))
	}
	handler, ok := effectHandlers[kind]
	if !ok {
		return s.reject(play.PlayerID, rejection("%s has no resolver", card.Name))
	}

	pc := &playContext{state: s, actor: actor, card: card, kind: kind, play: play}
	if err := handler.validate(pc); err != nil {
		return s.reject(play.PlayerID, err)
	}

	actor.Hand = append(actor.Hand[:idx], actor.Hand[idx+1:]...)
	if card.Kind == catalog.KindEffect {
		card.CasterID = actor.ID
	}
	handler.apply(pc)
	s.Discards[card.Kind] = append(s.Discards[card.Kind], card)

	targetID := ""
	if pc.target != nil {
		targetID = pc.target.ID
	}
	if card.Kind == catalog.KindValue {
		s.publish(rules.NewEventWithAmount(rules.EventValueCardPlayed, targetID, card.ID, actor.ID, card.FaceValue))
	} else {
		s.ConsecutivePasses = 0
		evt := rules.NewEvent(rules.EventEffectCardPlayed, targetID, card.ID, actor.ID)
		evt.Data = kind.String()
		s.publish(evt)
	}
	s.publish(rules.NewEvent(rules.EventCardDiscarded, card.ID, card.ID, actor.ID))
	s.logger.Debug("card resolved",
		zap.String("player_id", actor.ID),
		zap.String("card", card.Name),
		zap.String("target_id", targetID),
	)

	s.checkTerminal()
	if s.Phase != rules.PhaseGameOver {
		s.Phase = rules.PhasePlaying
	}
	s.touch()
	return nil
}

// Requirements lists the choices a card in hand needs before it can be played.
func (s *State) Requirements(playerID, cardID string, global bool) ([]targeting.TargetRequirement, error) {
	p, ok := s.Players[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", playerID, ErrGameNotFound)
	}
	card, _ := p.card(cardID)
	if card == nil {
		return nil, fmt.Errorf("card %s is not in %s's hand", cardID, p.Name)
	}
	return targeting.RequirementsFor(card.Effect(), global), nil
}

func validateValueCard(pc *playContext) error {
	if pc.play.TargetID != "" && pc.play.TargetID != pc.actor.ID {
		return rejection("value cards can only be played on yourself")
	}
	if pc.actor.PlayedValueCardThisTurn {
		return rejection("%s already played a value card this turn", pc.actor.Name)
	}
	if pc.actor.count(catalog.KindValue) <= 1 {
		return rejection("%s must keep the last value card", pc.actor.Name)
	}
	pc.target = pc.actor
	return nil
}

func applyValueCard(pc *playContext) {
	s, p := pc.state, pc.actor
	p.PlayedValueCardThisTurn = true
	score := pc.card.FaceValue + p.Modifiers.Score.Direction()*s.settings.ScoreDelta + s.fieldDelta(p.ID, catalog.CategoryScore)
	move := p.Modifiers.Movement.Direction()*s.settings.MoveDelta + s.fieldDelta(p.ID, catalog.CategoryMovement)
	s.changeScore(p, score, pc.card.ID)
	s.move(p, move, pc.card.ID)
	s.systemLog("%s played the value card %d.", p.Name, pc.card.FaceValue)
}

func validateTarget(pc *playContext) error {
	reqs := targeting.RequirementsFor(pc.kind, pc.play.Options.IsGlobal)
	if len(reqs) == 0 || reqs[0].Type != targeting.TargetTypePlayer {
		return nil
	}
	if err := pc.state.targets.ValidatePlayer(pc.actor.ID, pc.play.TargetID, reqs[0]); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	pc.target = pc.state.Players[pc.play.TargetID]
	return nil
}

func applyStanding(pc *playContext) {
	s, t := pc.state, pc.target
	cat, applied, err := t.Modifiers.Stand(pc.kind)
	if err != nil {
		s.logger.Error("standing modifier", zap.Error(err))
		return
	}
	if applied {
		evt := categoryEvent(rules.EventModifierSet, t.ID, pc.card.ID, pc.actor.ID, cat)
		evt.Metadata["kind"] = pc.kind.String()
		s.publish(evt)
	}
	mod := t.Modifiers.Get(cat)
	if cat == catalog.CategoryScore {
		s.changeScore(t, pc.kind.BaseSign()*mod.Apply(s.settings.ScoreDelta), pc.card.ID)
	} else {
		s.move(t, pc.kind.BaseSign()*mod.Apply(s.settings.MoveDelta), pc.card.ID)
	}
	s.systemLog("%s played %s on %s.", pc.actor.Name, pc.kind, t.Name)
}

func validatePula(pc *playContext) error {
	if err := validateTarget(pc); err != nil {
		return err
	}
	reqs := targeting.RequirementsFor(catalog.EffectPula, false)
	if len(pc.state.targets.FreePaths()) == 0 {
		return fmt.Errorf("%w: %w", ErrRejected, targeting.ErrNoFreePath)
	}
	if pc.play.Options.PulaPath == nil {
		return rejection("Pula needs a destination path")
	}
	if err := pc.state.targets.ValidatePath(pc.target.ID, *pc.play.Options.PulaPath, reqs[1]); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	pc.path = *pc.play.Options.PulaPath
	return nil
}

func applyPula(pc *playContext) {
	s, t := pc.state, pc.target
	from := t.PathID
	path := pc.path
	t.PathID = path
	t.TargetPathForPula = &path
	evt := rules.NewEventWithAmount(rules.EventPathChanged, t.ID, pc.card.ID, pc.actor.ID, path)
	evt.Metadata["from"] = fmt.Sprint(from)
	s.publish(evt)
	s.systemLog("%s played Pula: %s moved from path %d to path %d.", pc.actor.Name, t.Name, from+1, path+1)
}

func validateReversus(pc *playContext) error {
	if err := validateTarget(pc); err != nil {
		return err
	}
	cat, ok := catalog.ParseCategory(pc.play.Options.EffectType)
	if !ok {
		return rejection("Reversus needs an effect type (score or movement), got %q", pc.play.Options.EffectType)
	}
	if pc.target.Modifiers.Get(cat).Locked {
		return fmt.Errorf("%w: %s's %w", ErrRejected, pc.target.Name, effects.ErrCategoryLocked)
	}
	pc.cat = cat
	return nil
}

func applyReversus(pc *playContext) {
	s, t := pc.state, pc.target
	if err := t.Modifiers.Reverse(pc.cat); err != nil {
		s.logger.Error("reverse", zap.Error(err))
		return
	}
	s.publish(categoryEvent(rules.EventReversed, t.ID, pc.card.ID, pc.actor.ID, pc.cat))
	s.systemLog("%s reversed %s's %s.", pc.actor.Name, t.Name, pc.cat)
}

func validateReversusTotal(pc *playContext) error {
	opts := pc.play.Options
	switch {
	case opts.IsGlobal && opts.IsIndividualLock:
		return rejection("Reversus Total is either global or an individual lock, not both")
	case opts.IsGlobal:
		return nil
	case !opts.IsIndividualLock:
		return rejection("Reversus Total needs a mode (global or individual lock)")
	}
	if err := validateTarget(pc); err != nil {
		return err
	}
	if kind, ok := catalog.ParseEffect(opts.EffectNameToApply); ok {
		cat, standing := kind.Category()
		if !standing {
			return rejection("%s cannot be locked", kind)
		}
		pc.cat, pc.lock = cat, kind
		return nil
	}
	if cat, ok := catalog.ParseCategory(opts.EffectNameToApply); ok {
		pc.cat, pc.lock = cat, catalog.EffectNone
		return nil
	}
	return rejection("unknown effect to lock %q", opts.EffectNameToApply)
}

func applyReversusTotal(pc *playContext) {
	s := pc.state
	if pc.play.Options.IsGlobal {
		for _, id := range s.ActivePlayers() {
			p := s.Players[id]
			for _, cat := range p.Modifiers.ReverseAll() {
				s.publish(categoryEvent(rules.EventReversed, id, pc.card.ID, pc.actor.ID, cat))
			}
		}
		s.systemLog("%s played Reversus Total: every effect in play was reversed.", pc.actor.Name)
		return
	}

	t := pc.target
	if err := t.Modifiers.Lock(pc.cat, pc.lock, s.lockDeadline()); err != nil {
		s.logger.Error("lock", zap.Error(err))
		return
	}
	evt := categoryEvent(rules.EventLocked, t.ID, pc.card.ID, pc.actor.ID, pc.cat)
	evt.Metadata["kind"] = pc.lock.String()
	s.publish(evt)
	s.systemLog("%s locked %s's %s modifier.", pc.actor.Name, t.Name, pc.cat)
}

func applyVersatrix(pc *playContext) {
	s, p := pc.state, pc.actor
	payload := s.catalog.Versatrix
	pc.target = p
	s.changeScore(p, payload.Score, pc.card.ID)
	s.move(p, payload.Movement, pc.card.ID)
	s.systemLog("%s played %s.", p.Name, pc.kind)
}

func categoryEvent(t rules.EventType, targetID, sourceID, playerID string, cat catalog.Category) rules.Event {
	evt := rules.NewEvent(t, targetID, sourceID, playerID)
	evt.Data = string(cat)
	return evt
}

// IsRejection reports whether err is a validation rejection.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRejected)
}
