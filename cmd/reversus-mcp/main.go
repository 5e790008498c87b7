package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	reversusmcp "github.com/reversus/reversus-server/internal/mcp"
	reversusserver "github.com/reversus/reversus-server/internal/server"
)

func main() {
	addr := flag.String("addr", "localhost:7070", "authority gRPC address")
	gameID := flag.String("game", "", "game (table) id to play in")
	playerID := flag.String("player", "", "seat to play as")
	logPath := flag.String("log", "", "write logs to this file (stdout carries the MCP protocol)")
	flag.Parse()

	if *gameID == "" || *playerID == "" {
		fmt.Fprintln(os.Stderr, "Error: -game and -player are required")
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *logPath != "" {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{*logPath}
		cfg.ErrorOutputPaths = []string{*logPath}
		l, err := cfg.Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auth := reversusserver.NewRemoteAuthority(conn, *gameID, *playerID)
	session := reversusmcp.NewSession(auth, *playerID, logger)
	go func() {
		if err := session.Follow(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("snapshot stream ended", zap.Error(err))
		}
	}()

	s := server.NewMCPServer("reversus", "1.0.0")
	session.RegisterTools(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
