package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/reversus/reversus-server/internal/config"
	"github.com/reversus/reversus-server/internal/game"
	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/repository"
	"github.com/reversus/reversus-server/internal/server"
	"github.com/reversus/reversus-server/internal/table"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Reversus server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cards, err := catalog.LoadOrDefault(cfg.Game.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	terminal, err := game.TerminalFromConfig(cfg.Game.Terminal)
	if err != nil {
		logger.Fatal("invalid terminal condition", zap.Error(err))
	}
	settings := game.SettingsFromConfig(cfg.Game)

	engineOpts := game.EngineOptions{
		Options: game.Options{
			Catalog:  cards,
			Settings: &settings,
			Terminal: terminal,
		},
	}
	if cfg.Replay.Enabled {
		engineOpts.Recorder = game.NewReplayRecorder(logger, cfg.Replay.Directory)
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}

	var db *repository.DB
	if cfg.Database.Enabled {
		db, err = repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		matches := repository.NewMatchRepository(db, logger)
		if err := matches.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare match archive", zap.Error(err))
		}
		engineOpts.Archiver = matches
		logger.Info("match archive initialized", db.Stats()...)
	}

	engine := game.NewEngine(logger, engineOpts)
	tableMgr := table.NewManager(engine, settings.PathCount, logger)
	engine.SetNotificationHandler(tableMgr.HandleNotification)
	logger.Info("game engine initialized",
		zap.Int("path_count", settings.PathCount),
		zap.Strings("terminal", cfg.Game.Terminal.Modes()),
	)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
		)),
		grpc.ChainStreamInterceptor(
			server.StreamRecoveryInterceptor(logger),
			server.StreamLoggingInterceptor(logger),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	server.NewAuthorityServer(engine, tableMgr, logger).Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	hub := server.NewHub(engine, cfg.Server.WebSocket.AllowedOrigins, logger)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WebSocket.Path, hub)
	mux.HandleFunc("/healthz", healthHandler(engine, tableMgr, hub, db))
	httpServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if wsErr := httpServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("Reversus server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket server shutdown", zap.Error(err))
	}
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		logger.Warn("forcing gRPC shutdown, watch streams still open")
		grpcServer.Stop()
	}

	// Waits for replay saves and archive writes of games that just ended.
	engine.Close()

	logger.Info("Reversus server stopped")
}

type healthReport struct {
	Status           string `json:"status"`
	Games            int    `json:"games"`
	ActiveTables     int    `json:"activeTables"`
	WebSocketClients int    `json:"websocketClients"`
	Database         string `json:"database,omitempty"`
}

// healthHandler reports liveness and load. The database is only checked when
// the match archive is enabled.
func healthHandler(engine *game.Engine, tables *table.Manager, hub *server.Hub, db *repository.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{
			Status:           "ok",
			Games:            len(engine.GameIDs()),
			ActiveTables:     tables.ActiveCount(),
			WebSocketClients: hub.ClientCount(),
		}
		code := http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			report.Database = "ok"
			if err := db.Health(ctx); err != nil {
				report.Status, report.Database = "degraded", err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
