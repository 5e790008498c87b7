package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game"
	"github.com/reversus/reversus-server/internal/game/catalog"
)

// RegisterTools adds the seat tools to an MCP server.
func (s *Session) RegisterTools(srv *server.MCPServer) {
	srv.AddTool(getGameStateTool(), s.handleGetGameState)
	srv.AddTool(selectCardTool(), s.handleSelectCard)
	srv.AddTool(chooseTargetTool(), s.handleChooseTarget)
	srv.AddTool(chooseEffectTypeTool(), s.handleChooseEffectType)
	srv.AddTool(chooseTotalModeTool(), s.handleChooseTotalMode)
	srv.AddTool(chooseLockEffectTool(), s.handleChooseLockEffect)
	srv.AddTool(choosePathTool(), s.handleChoosePath)
	srv.AddTool(cancelPlayTool(), s.handleCancelPlay)
	srv.AddTool(endTurnTool(), s.handleEndTurn)
	srv.AddTool(sayTool(), s.handleSay)
}

// --- Tool definitions ---

func getGameStateTool() mcp.Tool {
	return mcp.NewTool("get_game_state",
		mcp.WithDescription("Fetch the current game as seen from your seat: your hand, every player's score, position and modifiers, the board and the recent log. Read-only."),
	)
}

func selectCardTool() mcp.Tool {
	return mcp.NewTool("select_card",
		mcp.WithDescription("Play a card from your hand. Value cards and cards without a target are submitted at once. "+
			"Targeted cards open a pending play; answer the choice named in pending.outstanding with the matching choose_* tool."),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("Id of a card in your hand")),
	)
}

func chooseTargetTool() mcp.Tool {
	return mcp.NewTool("choose_target",
		mcp.WithDescription("Answer pending.outstanding = 'target' with the player the card affects."),
		mcp.WithString("player_id", mcp.Required(), mcp.Description("Id of a player still in the game")),
	)
}

func chooseEffectTypeTool() mcp.Tool {
	return mcp.NewTool("choose_effect_type",
		mcp.WithDescription("Answer pending.outstanding = 'effectType' for a Reversus: which modifier to flip."),
		mcp.WithString("effect_type", mcp.Required(), mcp.Enum(string(catalog.CategoryScore), string(catalog.CategoryMovement))),
	)
}

func chooseTotalModeTool() mcp.Tool {
	return mcp.NewTool("choose_total_mode",
		mcp.WithDescription("Answer pending.outstanding = 'totalMode' for a Reversus Total: true reverses every modifier in play, false locks one effect on one player."),
		mcp.WithBoolean("global", mcp.Required(), mcp.Description("true for the global reversal")),
	)
}

func chooseLockEffectTool() mcp.Tool {
	return mcp.NewTool("choose_lock_effect",
		mcp.WithDescription("Answer pending.outstanding = 'lockEffect': the effect name an individual Reversus Total pins on the target."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Effect card name, e.g. Mais, Menos, Sobe or Desce")),
	)
}

func choosePathTool() mcp.Tool {
	return mcp.NewTool("choose_path",
		mcp.WithDescription("Answer pending.outstanding = 'path' for a Pula: the free path the target moves to."),
		mcp.WithNumber("path", mcp.Required(), mcp.Description("Id of an unoccupied board path")),
	)
}

func cancelPlayTool() mcp.Tool {
	return mcp.NewTool("cancel_play",
		mcp.WithDescription("Abandon the pending play. The card stays in your hand."),
	)
}

func endTurnTool() mcp.Tool {
	return mcp.NewTool("end_turn",
		mcp.WithDescription("End your turn. You must have played a value card first when you hold more than one."),
	)
}

func sayTool() mcp.Tool {
	return mcp.NewTool("say",
		mcp.WithDescription("Say something to the table. The line appears in every player's game log. Does not use your turn."),
		mcp.WithString("message", mcp.Required(), mcp.Description("What to say, at most 280 characters")),
	)
}

// --- Tool handlers ---

func (s *Session) reply(result *game.Result, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(respondJSON(s.response(result))), nil
}

func (s *Session) handleGetGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ctrl.Sync(ctx); err != nil {
		return mcp.NewToolResultErrorf("Failed to fetch the game: %v", err), nil
	}
	return s.reply(nil, nil)
}

func (s *Session) handleSelectCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID := request.GetString("card_id", "")
	if cardID == "" {
		return mcp.NewToolResultError("card_id is required"), nil
	}
	if s.ctrl.Snapshot() == nil {
		if err := s.ctrl.Sync(ctx); err != nil {
			return mcp.NewToolResultErrorf("Failed to fetch the game: %v", err), nil
		}
	}
	return s.reply(s.ctrl.Select(ctx, cardID))
}

func (s *Session) handleChooseTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.reply(s.ctrl.ChooseTarget(ctx, request.GetString("player_id", "")))
}

func (s *Session) handleChooseEffectType(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.reply(s.ctrl.ChooseEffectType(ctx, catalog.Category(request.GetString("effect_type", ""))))
}

func (s *Session) handleChooseTotalMode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.reply(s.ctrl.ChooseTotalMode(ctx, request.GetBool("global", false)))
}

func (s *Session) handleChooseLockEffect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.reply(s.ctrl.ChooseLockEffect(ctx, request.GetString("name", "")))
}

func (s *Session) handleChoosePath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetInt("path", -1)
	if path < 0 {
		return mcp.NewToolResultError("path is required"), nil
	}
	return s.reply(s.ctrl.ChoosePath(ctx, path))
}

func (s *Session) handleCancelPlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.reply(nil, s.ctrl.Cancel())
}

func (s *Session) handleEndTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.ctrl.EndTurn(ctx)
	if err != nil {
		return s.reply(nil, err)
	}
	return s.reply(&res, nil)
}

func (s *Session) handleSay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.auth.Submit(ctx, game.Intent{
		Action:   game.ActionSay,
		PlayerID: s.playerID,
		Message:  request.GetString("message", ""),
	})
	if err != nil {
		return s.reply(nil, err)
	}
	if res.Snapshot != nil {
		if err := s.ctrl.Accept(res.Snapshot); err != nil {
			s.logger.Debug("say snapshot ignored", zap.Error(err))
		}
	}
	return s.reply(&res, nil)
}
