package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game/rules"
	"github.com/reversus/reversus-server/internal/game/watchers"
)

// MatchRecord is what gets archived when a game ends.
type MatchRecord struct {
	GameID     string
	Winner     string
	Players    []string
	Turns      int
	Stats      watchers.MatchStats
	Final      *Snapshot
	FinishedAt time.Time
}

// Archiver stores finished matches.
type Archiver interface {
	SaveMatch(ctx context.Context, record MatchRecord) error
}

// Notification types emitted by the engine.
const (
	NotificationStateChanged = "STATE_CHANGED"
	NotificationGameOver     = "GAME_OVER"
)

// GameNotification tells external systems that a game changed.
type GameNotification struct {
	Type      string
	GameID    string
	PlayerID  string
	Timestamp time.Time
	Data      map[string]interface{}
}

// NotificationHandler receives engine notifications.
type NotificationHandler func(notification GameNotification)

// EngineOptions configures NewEngine.
type EngineOptions struct {
	Options
	Recorder *ReplayRecorder
	Archiver Archiver
}

// Engine hosts many games, each owned by its own LocalAuthority.
type Engine struct {
	logger *zap.Logger
	opts   EngineOptions

	mu                  sync.RWMutex
	games               map[string]*LocalAuthority
	cancels             map[string]context.CancelFunc
	notificationHandler NotificationHandler
	wg                  sync.WaitGroup
}

// NewEngine creates an empty engine.
func NewEngine(logger *zap.Logger, opts EngineOptions) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:  logger,
		opts:    opts,
		games:   make(map[string]*LocalAuthority),
		cancels: make(map[string]context.CancelFunc),
	}
}

// SetNotificationHandler installs the handler for game notifications.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationHandler = handler
}

func (e *Engine) emitNotification(n GameNotification) {
	e.mu.RLock()
	handler := e.notificationHandler
	e.mu.RUnlock()
	if handler != nil {
		go handler(n)
	}
}

// StartGame creates a game and starts its authority loop. The loop stops when
// ctx is done or the game is cleaned up.
func (e *Engine) StartGame(ctx context.Context, gameID string, seats []Seat) (*LocalAuthority, error) {
	e.mu.Lock()
	if _, exists := e.games[gameID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("game %s already exists", gameID)
	}
	e.mu.Unlock()

	opts := e.opts.Options
	opts.Logger = e.logger
	state, err := NewState(gameID, seats, opts)
	if err != nil {
		return nil, fmt.Errorf("start game %s: %w", gameID, err)
	}
	auth := NewLocalAuthority(state, e.logger)

	if rec := e.opts.Recorder; rec != nil {
		rec.StartRecording(gameID)
		rec.Record(state)
		auth.OnChange(rec.Record)
	}
	var archived bool
	auth.OnChange(func(s *State) {
		e.emitNotification(GameNotification{
			Type:      NotificationStateChanged,
			GameID:    s.GameID,
			PlayerID:  s.CurrentPlayer,
			Timestamp: time.Now(),
			Data:      map[string]interface{}{"version": s.Version, "phase": string(s.Phase)},
		})
		if archived || s.Phase != rules.PhaseGameOver {
			return
		}
		archived = true
		e.finish(s)
	})

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if _, exists := e.games[gameID]; exists {
		e.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("game %s already exists", gameID)
	}
	e.games[gameID] = auth
	e.cancels[gameID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = auth.Run(runCtx)
	}()

	e.logger.Info("game registered", zap.String("game_id", gameID), zap.Int("players", len(seats)))
	return auth, nil
}

// finish runs under the authority lock once the game is over.
func (e *Engine) finish(s *State) {
	record := MatchRecord{
		GameID:     s.GameID,
		Winner:     s.Winner,
		Players:    append([]string(nil), s.PlayerIDsInGame...),
		Turns:      s.TurnNumber(),
		Stats:      s.Stats(),
		Final:      s.Snapshot(""),
		FinishedAt: time.Now().UTC(),
	}
	e.emitNotification(GameNotification{
		Type:      NotificationGameOver,
		GameID:    s.GameID,
		PlayerID:  s.Winner,
		Timestamp: record.FinishedAt,
		Data:      map[string]interface{}{"winner": s.Winner, "turns": record.Turns},
	})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if rec := e.opts.Recorder; rec != nil {
			if err := rec.Save(record.GameID); err != nil {
				e.logger.Error("failed to save replay", zap.String("game_id", record.GameID), zap.Error(err))
			}
		}
		if e.opts.Archiver == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.opts.Archiver.SaveMatch(ctx, record); err != nil {
			e.logger.Error("failed to archive match", zap.String("game_id", record.GameID), zap.Error(err))
			return
		}
		e.logger.Info("match archived", zap.String("game_id", record.GameID), zap.String("winner", record.Winner))
	}()
}

// Authority returns the authority owning gameID.
func (e *Engine) Authority(gameID string) (*LocalAuthority, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	auth, ok := e.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", gameID, ErrGameNotFound)
	}
	return auth, nil
}

// Submit routes an intent to its game.
func (e *Engine) Submit(ctx context.Context, gameID string, intent Intent) (Result, error) {
	auth, err := e.Authority(gameID)
	if err != nil {
		return Result{}, err
	}
	return auth.Submit(ctx, intent)
}

// Snapshot returns gameID as seen by viewer.
func (e *Engine) Snapshot(ctx context.Context, gameID, viewer string) (*Snapshot, error) {
	auth, err := e.Authority(gameID)
	if err != nil {
		return nil, err
	}
	return auth.SnapshotFor(ctx, viewer)
}

// AssignFieldEffect is the host-side entry for field effects.
func (e *Engine) AssignFieldEffect(ctx context.Context, gameID, playerID, name string) (Result, error) {
	return e.Submit(ctx, gameID, Intent{Action: ActionAssignFieldEffect, PlayerID: playerID, FieldEffect: name})
}

// RemoveFieldEffect is the host-side entry for removing a field effect.
func (e *Engine) RemoveFieldEffect(ctx context.Context, gameID, playerID string) (Result, error) {
	return e.Submit(ctx, gameID, Intent{Action: ActionRemoveFieldEffect, PlayerID: playerID})
}

// GameIDs lists hosted games in lexical order.
func (e *Engine) GameIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.games))
	for id := range e.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CleanupGame stops a game's loop and forgets it.
func (e *Engine) CleanupGame(gameID string) {
	e.mu.Lock()
	cancel, ok := e.cancels[gameID]
	delete(e.games, gameID)
	delete(e.cancels, gameID)
	e.mu.Unlock()
	if !ok {
		return
	}
	cancel()
	if rec := e.opts.Recorder; rec != nil {
		rec.Discard(gameID)
	}
	e.logger.Info("game cleaned up", zap.String("game_id", gameID))
}

// Close stops every game and waits for pending archive writes.
func (e *Engine) Close() {
	for _, id := range e.GameIDs() {
		e.CleanupGame(id)
	}
	e.wg.Wait()
}
