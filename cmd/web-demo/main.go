// Command web-demo hosts a single local game for browser development: one
// human seat served over WebSocket and autoplaying seats for everyone else.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/config"
	"github.com/reversus/reversus-server/internal/game"
	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/game/rules"
	"github.com/reversus/reversus-server/internal/server"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	bots := flag.Int("bots", 1, "number of autoplaying seats")
	goal := flag.Int("goal", 10, "position that wins the game")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	terminal, err := game.TerminalFromConfig(config.TerminalConfig{Mode: "position_goal,pass_limit", Goal: *goal, PassLimit: 12})
	if err != nil {
		logger.Fatal("invalid terminal condition", zap.Error(err))
	}
	engine := game.NewEngine(logger, game.EngineOptions{Options: game.Options{Terminal: terminal}})
	defer engine.Close()

	seats := []game.Seat{{ID: "player1", Name: "You", IsHuman: true}}
	for i := 1; i <= *bots; i++ {
		seats = append(seats, game.Seat{ID: fmt.Sprintf("bot%d", i), Name: fmt.Sprintf("Bot %d", i)})
	}
	auth, err := engine.StartGame(ctx, "demo", seats)
	if err != nil {
		logger.Fatal("failed to start demo game", zap.Error(err))
	}
	for _, seat := range seats[1:] {
		go autoplay(ctx, auth.Seat(seat.ID), seat.ID, logger)
	}

	hub := server.NewHub(engine, []string{"*"}, logger)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logger.Info("WebSocket demo starting",
		zap.String("address", *addr),
		zap.String("endpoint", "ws://localhost"+*addr+"/ws?game=demo&player=player1"),
		zap.Int("bots", *bots),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
}

// autoplay plays the first value card it holds and ends the turn, once per
// turn of playerID.
func autoplay(ctx context.Context, seat game.Authority, playerID string, logger *zap.Logger) {
	updates, err := seat.Subscribe(ctx)
	if err != nil {
		logger.Error("bot could not subscribe", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	actedOnTurn := -1
	for snap := range updates {
		if snap.Phase == rules.PhaseGameOver {
			logger.Info("demo game over", zap.String("winner", snap.Winner))
			return
		}
		if snap.CurrentPlayer != playerID || snap.Phase != rules.PhasePlaying || snap.TurnNumber == actedOnTurn {
			continue
		}
		actedOnTurn = snap.TurnNumber
		me := snap.Players[playerID]
		if !me.PlayedValueCardThisTurn {
			for _, card := range snap.Hand() {
				if card.Kind != catalog.KindValue {
					continue
				}
				if _, err := seat.Submit(ctx, game.Intent{Action: game.ActionPlayCard, CardID: card.ID}); err != nil {
					logger.Warn("bot play failed", zap.String("player_id", playerID), zap.Error(err))
				}
				break
			}
		}
		res, err := seat.Submit(ctx, game.Intent{Action: game.ActionEndTurn})
		if err != nil {
			logger.Warn("bot end turn failed", zap.String("player_id", playerID), zap.Error(err))
			continue
		}
		if !res.Accepted {
			logger.Debug("bot end turn rejected", zap.String("player_id", playerID), zap.String("reason", res.Reason))
		}
	}
}
