package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Result is the authority's answer to an intent.
type Result struct {
	Accepted bool      `json:"accepted"`
	Reason   string    `json:"reason,omitempty"`
	Snapshot *Snapshot `json:"snapshot"`
}

// Authority is the single side allowed to mutate a game. Controllers talk to
// it without knowing whether it is local or behind the network.
type Authority interface {
	Submit(ctx context.Context, intent Intent) (Result, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
	Subscribe(ctx context.Context) (<-chan *Snapshot, error)
}

type request struct {
	ctx     context.Context
	intent  Intent
	reply   chan response
	// stopped belongs to the loop the request was queued for.
	stopped chan struct{}
}

type response struct {
	result Result
	err    error
}

type subscriber struct {
	viewer string
	ch     chan *Snapshot
}

// LocalAuthority owns a State and resolves intents one at a time.
type LocalAuthority struct {
	mu     sync.Mutex
	state  *State
	logger *zap.Logger
	hooks  []func(*State)

	queue   chan request
	running atomic.Bool
	loopMu  sync.Mutex
	stopped chan struct{}

	subsMu  sync.Mutex
	subs    map[int]*subscriber
	nextSub int
}

// NewLocalAuthority wraps state. The state must not be mutated elsewhere.
func NewLocalAuthority(state *State, logger *zap.Logger) *LocalAuthority {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalAuthority{
		state:  state,
		logger: logger.With(zap.String("game_id", state.GameID)),
		queue:  make(chan request, 64),
		subs:   make(map[int]*subscriber),
	}
}

// GameID returns the id of the owned game.
func (a *LocalAuthority) GameID() string {
	return a.state.GameID
}

// HasPlayer reports whether playerID is seated in the game.
func (a *LocalAuthority) HasPlayer(playerID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.state.Players[playerID]
	return ok
}

// OnChange registers a hook run under the authority lock after every intent
// that changed the state, rejections included.
func (a *LocalAuthority) OnChange(hook func(*State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook)
}

// Inspect runs fn with the state under the authority lock. fn must not
// mutate the state.
func (a *LocalAuthority) Inspect(fn func(*State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a.state)
}

// Apply resolves intent synchronously. Rule violations come back as a
// non-accepted Result; errors are reserved for malformed intents.
func (a *LocalAuthority) Apply(intent Intent) (Result, error) {
	if err := intent.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidIntent, err)
	}

	a.mu.Lock()
	before := a.state.Version
	err := a.dispatch(intent)
	changed := a.state.Version != before
	if changed {
		for _, hook := range a.hooks {
			hook(a.state)
		}
	}
	result := Result{Accepted: err == nil, Snapshot: a.state.Snapshot(intent.PlayerID)}
	a.mu.Unlock()

	if err != nil {
		if !IsRejection(err) && !errors.Is(err, ErrGameOver) {
			return Result{}, err
		}
		result.Reason = Reason(err)
	}
	if changed {
		a.broadcast()
	}
	a.logger.Debug("intent applied",
		zap.String("action", string(intent.Action)),
		zap.String("player_id", intent.PlayerID),
		zap.Bool("accepted", result.Accepted),
		zap.Uint64("version", result.Snapshot.Version),
	)
	return result, nil
}

func (a *LocalAuthority) dispatch(intent Intent) error {
	s := a.state
	if _, ok := s.Players[intent.PlayerID]; !ok {
		return rejection("player %s is not in this game", intent.PlayerID)
	}
	switch intent.Action {
	case ActionPlayCard:
		return s.PlayCard(intent.Play())
	case ActionEndTurn:
		return s.EndTurn(intent.PlayerID)
	case ActionAssignFieldEffect:
		return s.AssignFieldEffect(intent.PlayerID, intent.FieldEffect)
	case ActionRemoveFieldEffect:
		return s.RemoveFieldEffect(intent.PlayerID)
	case ActionSay:
		return s.AddDialogue(intent.PlayerID, strings.TrimSpace(intent.Message))
	}
	return fmt.Errorf("%w: unknown action %q", ErrInvalidIntent, intent.Action)
}

// Run drains the intent queue until ctx is done. While it runs, Submit goes
// through the queue in FIFO order.
func (a *LocalAuthority) Run(ctx context.Context) error {
	a.loopMu.Lock()
	if a.stopped != nil {
		a.loopMu.Unlock()
		return fmt.Errorf("authority for game %s is already running", a.state.GameID)
	}
	stopped := make(chan struct{})
	a.stopped = stopped
	a.running.Store(true)
	a.loopMu.Unlock()
	defer a.stop(stopped)

	a.logger.Info("authority loop started")
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("authority loop stopped")
			return ctx.Err()
		case req := <-a.queue:
			if req.stopped != stopped {
				req.reply <- response{err: ErrAuthorityStopped}
				continue
			}
			if err := req.ctx.Err(); err != nil {
				req.reply <- response{err: err}
				continue
			}
			result, err := a.Apply(req.intent)
			req.reply <- response{result: result, err: err}
		}
	}
}

// stop marks the loop as finished and answers every request still queued.
func (a *LocalAuthority) stop(stopped chan struct{}) {
	a.loopMu.Lock()
	a.stopped = nil
	a.running.Store(false)
	close(stopped)
	a.loopMu.Unlock()

	for {
		select {
		case req := <-a.queue:
			req.reply <- response{err: ErrAuthorityStopped}
		default:
			return
		}
	}
}

// Submit implements Authority. Without a running loop the intent is applied
// directly. A request still pending when the loop stops fails with
// ErrAuthorityStopped.
func (a *LocalAuthority) Submit(ctx context.Context, intent Intent) (Result, error) {
	a.loopMu.Lock()
	stopped := a.stopped
	a.loopMu.Unlock()
	if stopped == nil {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		return a.Apply(intent)
	}

	req := request{ctx: ctx, intent: intent, reply: make(chan response, 1), stopped: stopped}
	select {
	case a.queue <- req:
	case <-stopped:
		return Result{}, ErrAuthorityStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.result, resp.err
	case <-stopped:
		select {
		case resp := <-req.reply:
			return resp.result, resp.err
		default:
			return Result{}, ErrAuthorityStopped
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Snapshot implements Authority with the unredacted view.
func (a *LocalAuthority) Snapshot(ctx context.Context) (*Snapshot, error) {
	return a.SnapshotFor(ctx, "")
}

// SnapshotFor returns the state as seen by viewer.
func (a *LocalAuthority) SnapshotFor(ctx context.Context, viewer string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Snapshot(viewer), nil
}

// Subscribe implements Authority with the unredacted view.
func (a *LocalAuthority) Subscribe(ctx context.Context) (<-chan *Snapshot, error) {
	return a.SubscribeAs(ctx, "")
}

// SubscribeAs streams snapshots for viewer, starting with the current one.
// Slow readers only see the latest snapshot. The channel is closed when ctx
// is done.
func (a *LocalAuthority) SubscribeAs(ctx context.Context, viewer string) (<-chan *Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscriber{viewer: viewer, ch: make(chan *Snapshot, 1)}

	a.mu.Lock()
	sub.ch <- a.state.Snapshot(viewer)
	a.subsMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = sub
	a.subsMu.Unlock()
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		a.subsMu.Lock()
		delete(a.subs, id)
		close(sub.ch)
		a.subsMu.Unlock()
	}()
	return sub.ch, nil
}

func (a *LocalAuthority) broadcast() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subsMu.Lock()
	defer a.subsMu.Unlock()

	for _, sub := range a.subs {
		snap := a.state.Snapshot(sub.viewer)
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}

// Seat returns an Authority bound to one player: intents are stamped with
// that player, host-only actions are refused and snapshots are redacted.
func (a *LocalAuthority) Seat(playerID string) Authority {
	return &seatAuthority{local: a, playerID: playerID}
}

type seatAuthority struct {
	local    *LocalAuthority
	playerID string
}

func (s *seatAuthority) Submit(ctx context.Context, intent Intent) (Result, error) {
	if intent.Action.HostOnly() {
		return Result{}, fmt.Errorf("%s: %w", intent.Action, ErrNotPermitted)
	}
	intent.PlayerID = s.playerID
	return s.local.Submit(ctx, intent)
}

func (s *seatAuthority) Snapshot(ctx context.Context) (*Snapshot, error) {
	return s.local.SnapshotFor(ctx, s.playerID)
}

func (s *seatAuthority) Subscribe(ctx context.Context) (<-chan *Snapshot, error) {
	return s.local.SubscribeAs(ctx, s.playerID)
}
