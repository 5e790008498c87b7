package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/game/rules"
	"github.com/reversus/reversus-server/internal/game/targeting"
)

// Choice is the sub-choice a pending card play is waiting for.
type Choice string

const (
	ChoiceNone       Choice = ""
	ChoiceTarget     Choice = "target"
	ChoiceEffectType Choice = "effectType"
	ChoiceTotalMode  Choice = "totalMode"
	ChoiceLockEffect Choice = "lockEffect"
	ChoicePath       Choice = "path"
)

// ErrNoPendingChoice is returned when a choice is made that nothing asked for.
var ErrNoPendingChoice = errors.New("no such choice is pending")

// PendingAction is a card play being assembled by the local player.
type PendingAction struct {
	CardID      string
	Kind        catalog.EffectKind
	Outstanding Choice
	TargetID    string
	Options     PlayOptions
}

// Controller drives one seat: it collects the sub-choices of a card play and
// submits complete intents to its Authority. It never resolves rules itself.
type Controller struct {
	mu       sync.Mutex
	auth     Authority
	playerID string
	logger   *zap.Logger
	phase    rules.Phase
	pending  *PendingAction
	snap     *Snapshot
}

// NewController creates a controller for playerID.
func NewController(auth Authority, playerID string, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		auth:     auth,
		playerID: playerID,
		logger:   logger.With(zap.String("player_id", playerID)),
		phase:    rules.PhasePlaying,
	}
}

// Phase returns the controller's local phase.
func (c *Controller) Phase() rules.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Pending returns a copy of the play being assembled, if any.
func (c *Controller) Pending() (PendingAction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingAction{}, false
	}
	return *c.pending, true
}

// Snapshot returns the last accepted snapshot.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Sync fetches the current snapshot, refetching once when it is stale.
func (c *Controller) Sync(ctx context.Context) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var snap *Snapshot
		snap, err = c.auth.Snapshot(ctx)
		if err != nil {
			return err
		}
		if err = c.Accept(snap); !errors.Is(err, ErrStaleSnapshot) {
			return err
		}
		c.logger.Warn("stale snapshot, refetching", zap.Error(err))
	}
	return err
}

// Accept installs a snapshot pushed by the authority.
func (c *Controller) Accept(snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptLocked(snap)
}

func (c *Controller) acceptLocked(snap *Snapshot) error {
	if err := CheckFresh(c.snap, snap); err != nil {
		return err
	}
	c.snap = snap
	switch {
	case snap.Phase == rules.PhaseGameOver:
		c.phase = rules.PhaseGameOver
		c.pending = nil
	case c.phase == rules.PhasePaused:
		c.phase = rules.PhasePlaying
	}
	return nil
}

// Select picks a card from hand. Cards that need no choice are submitted at
// once and the result is returned; otherwise the controller waits for
// choices and Result is nil.
func (c *Controller) Select(ctx context.Context, cardID string) (*Result, error) {
	c.mu.Lock()
	if c.phase != rules.PhasePlaying {
		c.mu.Unlock()
		return nil, fmt.Errorf("cannot select a card while %s", c.phase)
	}
	if c.snap == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("no snapshot yet")
	}
	if c.snap.CurrentPlayer != c.playerID {
		c.mu.Unlock()
		return nil, fmt.Errorf("it is not your turn")
	}
	card, ok := c.snap.Card(cardID)
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("card %s is not in hand", cardID)
	}
	if card.IsBlocked {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s is blocked", card.Name)
	}

	kind := card.Effect()
	if !kind.Targetable() {
		pending := &PendingAction{CardID: cardID, Kind: kind}
		if card.Kind == catalog.KindValue {
			pending.TargetID = c.playerID
		}
		c.pending = pending
		return c.submitLocked(ctx)
	}

	if kind == catalog.EffectPula && len(c.snap.FreePaths()) == 0 {
		c.mu.Unlock()
		return nil, targeting.ErrNoFreePath
	}
	next, err := rules.Transition(c.phase, rules.PhaseAwaitingTarget)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.phase = next
	c.pending = &PendingAction{CardID: cardID, Kind: kind, Outstanding: firstChoice(kind)}
	c.mu.Unlock()
	return nil, nil
}

func firstChoice(kind catalog.EffectKind) Choice {
	if kind == catalog.EffectReversusTotal {
		return ChoiceTotalMode
	}
	return ChoiceTarget
}

// ChooseTarget supplies the target player.
func (c *Controller) ChooseTarget(ctx context.Context, playerID string) (*Result, error) {
	return c.choose(ctx, ChoiceTarget, func(p *PendingAction) (Choice, error) {
		view, ok := c.snap.Players[playerID]
		if !ok || view.IsEliminated {
			return ChoiceNone, fmt.Errorf("%s cannot be targeted", playerID)
		}
		p.TargetID = playerID
		switch p.Kind {
		case catalog.EffectReversus:
			return ChoiceEffectType, nil
		case catalog.EffectReversusTotal:
			return ChoiceLockEffect, nil
		case catalog.EffectPula:
			return ChoicePath, nil
		}
		return ChoiceNone, nil
	})
}

// ChooseEffectType supplies the category a Reversus flips.
func (c *Controller) ChooseEffectType(ctx context.Context, cat catalog.Category) (*Result, error) {
	return c.choose(ctx, ChoiceEffectType, func(p *PendingAction) (Choice, error) {
		if _, ok := catalog.ParseCategory(string(cat)); !ok {
			return ChoiceNone, fmt.Errorf("unknown effect type %q", cat)
		}
		p.Options.EffectType = string(cat)
		return ChoiceNone, nil
	})
}

// ChooseTotalMode picks global reversal or an individual lock.
func (c *Controller) ChooseTotalMode(ctx context.Context, global bool) (*Result, error) {
	return c.choose(ctx, ChoiceTotalMode, func(p *PendingAction) (Choice, error) {
		if global {
			p.Options.IsGlobal = true
			p.TargetID = c.playerID
			return ChoiceNone, nil
		}
		p.Options.IsIndividualLock = true
		return ChoiceTarget, nil
	})
}

// ChooseLockEffect names the effect an individual Reversus Total pins.
func (c *Controller) ChooseLockEffect(ctx context.Context, name string) (*Result, error) {
	return c.choose(ctx, ChoiceLockEffect, func(p *PendingAction) (Choice, error) {
		p.Options.EffectNameToApply = name
		return ChoiceNone, nil
	})
}

// ChoosePath supplies the Pula destination.
func (c *Controller) ChoosePath(ctx context.Context, pathID int) (*Result, error) {
	return c.choose(ctx, ChoicePath, func(p *PendingAction) (Choice, error) {
		path := pathID
		p.Options.PulaPath = &path
		return ChoiceNone, nil
	})
}

func (c *Controller) choose(ctx context.Context, want Choice, fill func(*PendingAction) (Choice, error)) (*Result, error) {
	c.mu.Lock()
	if c.phase != rules.PhaseAwaitingTarget || c.pending == nil || c.pending.Outstanding != want {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", want, ErrNoPendingChoice)
	}
	next, err := fill(c.pending)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.pending.Outstanding = next
	if next != ChoiceNone {
		c.mu.Unlock()
		return nil, nil
	}
	return c.submitLocked(ctx)
}

// Cancel abandons the pending play. Nothing is sent to the authority.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return ErrNoPendingChoice
	}
	if c.phase == rules.PhaseAwaitingTarget {
		c.phase = rules.PhasePlaying
	}
	c.pending = nil
	return nil
}

// EndTurn asks the authority to end the turn.
func (c *Controller) EndTurn(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.phase != rules.PhasePlaying {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("cannot end the turn while %s", c.phase)
	}
	c.phase = rules.PhasePaused
	c.mu.Unlock()

	res, err := c.auth.Submit(ctx, Intent{Action: ActionEndTurn, PlayerID: c.playerID})
	return c.settle(res, err)
}

// submitLocked sends the pending play. It is called with c.mu held and
// releases it.
func (c *Controller) submitLocked(ctx context.Context) (*Result, error) {
	p := c.pending
	opts := p.Options
	intent := Intent{
		Action:   ActionPlayCard,
		PlayerID: c.playerID,
		CardID:   p.CardID,
		TargetID: p.TargetID,
		Options:  &opts,
	}
	c.phase = rules.PhasePaused
	c.mu.Unlock()

	c.logger.Debug("submitting play", zap.String("card_id", p.CardID), zap.String("kind", p.Kind.String()))
	res, err := c.auth.Submit(ctx, intent)
	res, err = c.settle(res, err)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Controller) settle(res Result, err error) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	if err != nil {
		if c.phase == rules.PhasePaused {
			c.phase = rules.PhasePlaying
		}
		return Result{}, err
	}
	if res.Snapshot != nil {
		if aerr := c.acceptLocked(res.Snapshot); aerr != nil {
			c.logger.Warn("result snapshot not accepted", zap.Error(aerr))
		}
	}
	if c.phase == rules.PhasePaused {
		c.phase = rules.PhasePlaying
	}
	if !res.Accepted {
		c.logger.Info("play rejected", zap.String("reason", res.Reason))
	}
	return res, nil
}
