package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Replay   ReplayConfig   `mapstructure:"replay"`
}

// ServerConfig holds the transport listeners.
type ServerConfig struct {
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// GRPCConfig configures the authority gRPC listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// WebSocketConfig configures the browser-facing WebSocket listener.
type WebSocketConfig struct {
	Address        string   `mapstructure:"address"`
	Path           string   `mapstructure:"path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig configures the match archive.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// GameConfig holds the rule-engine tunables.
type GameConfig struct {
	CatalogPath    string         `mapstructure:"catalog_path"`
	PathCount      int            `mapstructure:"path_count"`
	PathLength     int            `mapstructure:"path_length"`
	ValueHandSize  int            `mapstructure:"value_hand_size"`
	EffectHandSize int            `mapstructure:"effect_hand_size"`
	ScoreDelta     int            `mapstructure:"score_delta"`
	MoveDelta      int            `mapstructure:"move_delta"`
	LogCapacity    int            `mapstructure:"log_capacity"`
	LockTurns      int            `mapstructure:"lock_turns"`
	Terminal       TerminalConfig `mapstructure:"terminal"`
}

// TerminalConfig selects the pluggable game-over predicate.
// Mode is one of "none", "position_goal", "score_floor", "pass_limit" or a
// comma separated combination of them.
type TerminalConfig struct {
	Mode      string `mapstructure:"mode"`
	Goal      int    `mapstructure:"goal"`
	Floor     int    `mapstructure:"floor"`
	PassLimit int    `mapstructure:"pass_limit"`
}

// ReplayConfig controls snapshot recording.
type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc.address", ":7070")
	v.SetDefault("server.grpc.max_concurrent_streams", 256)
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.allowed_origins", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.max_conns", 8)

	v.SetDefault("game.catalog_path", "")
	v.SetDefault("game.path_count", 6)
	v.SetDefault("game.path_length", 10)
	v.SetDefault("game.value_hand_size", 2)
	v.SetDefault("game.effect_hand_size", 2)
	v.SetDefault("game.score_delta", 2)
	v.SetDefault("game.move_delta", 1)
	v.SetDefault("game.log_capacity", 50)
	v.SetDefault("game.lock_turns", 0)
	v.SetDefault("game.terminal.mode", "none")

	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.directory", "replays")
}

// Load reads the configuration file at path. A missing path yields defaults.
// Environment variables prefixed with REVERSUS_ override file values
// (server.grpc.address -> REVERSUS_SERVER_GRPC_ADDRESS).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REVERSUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	g := c.Game
	switch {
	case g.PathCount < 2:
		return fmt.Errorf("game.path_count must be at least 2, got %d", g.PathCount)
	case g.PathLength < 1:
		return fmt.Errorf("game.path_length must be positive, got %d", g.PathLength)
	case g.ValueHandSize < 0 || g.EffectHandSize < 0:
		return errors.New("game hand sizes must not be negative")
	case g.LogCapacity < 1:
		return fmt.Errorf("game.log_capacity must be positive, got %d", g.LogCapacity)
	case g.LockTurns < 0:
		return fmt.Errorf("game.lock_turns must not be negative, got %d", g.LockTurns)
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return errors.New("database.url is required when database.enabled is true")
	}
	for _, mode := range c.Game.Terminal.Modes() {
		switch mode {
		case "none", "position_goal", "score_floor", "pass_limit":
		default:
			return fmt.Errorf("unknown game.terminal.mode %q", mode)
		}
	}
	return nil
}

// Modes splits the configured terminal mode list.
func (t TerminalConfig) Modes() []string {
	var modes []string
	for _, part := range strings.Split(t.Mode, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			modes = append(modes, part)
		}
	}
	return modes
}
