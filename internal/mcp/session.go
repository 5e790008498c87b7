package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game"
	"github.com/reversus/reversus-server/internal/game/rules"
)

// Session drives one seat for an MCP client through a game.Controller.
type Session struct {
	ctrl     *game.Controller
	auth     game.Authority
	playerID string
	logger   *zap.Logger
}

// NewSession creates a session for playerID on auth. auth should already be
// bound to that seat.
func NewSession(auth game.Authority, playerID string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		ctrl:     game.NewController(auth, playerID, logger),
		auth:     auth,
		playerID: playerID,
		logger:   logger,
	}
}

// Follow feeds pushed snapshots into the controller until ctx is done or the
// subscription ends.
func (s *Session) Follow(ctx context.Context) error {
	updates, err := s.auth.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	for snap := range updates {
		if err := s.ctrl.Accept(snap); err != nil {
			s.logger.Debug("pushed snapshot ignored", zap.Uint64("version", snap.Version), zap.Error(err))
		}
	}
	return ctx.Err()
}

// PendingView describes a card play waiting for a sub-choice.
type PendingView struct {
	CardID      string      `json:"cardId"`
	Effect      string      `json:"effect,omitempty"`
	Outstanding game.Choice `json:"outstanding"`
	TargetID    string      `json:"targetId,omitempty"`
}

// ToolResponse is the JSON body every tool answers with.
type ToolResponse struct {
	PlayerID string         `json:"playerId"`
	Phase    rules.Phase    `json:"phase"`
	YourTurn bool           `json:"yourTurn"`
	GameOver bool           `json:"gameOver"`
	Winner   string         `json:"winner,omitempty"`
	Pending  *PendingView   `json:"pending,omitempty"`
	Result   *game.Result   `json:"result,omitempty"`
	State    *game.Snapshot `json:"state,omitempty"`
}

func (s *Session) response(result *game.Result) *ToolResponse {
	snap := s.ctrl.Snapshot()
	resp := &ToolResponse{
		PlayerID: s.playerID,
		Phase:    s.ctrl.Phase(),
		State:    snap,
	}
	if result != nil {
		trimmed := *result
		trimmed.Snapshot = nil
		resp.Result = &trimmed
	}
	if snap != nil {
		resp.YourTurn = snap.CurrentPlayer == s.playerID && snap.Phase != rules.PhaseGameOver
		resp.GameOver = snap.Phase == rules.PhaseGameOver
		resp.Winner = snap.Winner
	}
	if p, ok := s.ctrl.Pending(); ok {
		resp.Pending = &PendingView{
			CardID:      p.CardID,
			Effect:      p.Kind.String(),
			Outstanding: p.Outstanding,
			TargetID:    p.TargetID,
		}
	}
	return resp
}

func respondJSON(resp *ToolResponse) string {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal error: %v"}`, err)
	}
	return string(data)
}
