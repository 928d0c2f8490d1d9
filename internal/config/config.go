// Package config manages CraftGate daemon configuration using koanf/v2.
//
// Supports YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete craftgate configuration.
type Config struct {
	Listen  ListenConfig  `koanf:"listen"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Status  StatusConfig  `koanf:"status"`
	Game    GameConfig    `koanf:"game"`
	Auth    AuthConfig    `koanf:"auth"`
}

// ListenConfig holds the game listener configuration.
type ListenConfig struct {
	// Addr is the TCP listen address for game clients (host:port).
	Addr string `koanf:"addr"`

	// ReadTimeout bounds how long a connection may sit idle between
	// packets in any phase, as a slowloris guard. Zero disables it.
	// The timeout never covers the session-auth HTTPS round-trip.
	ReadTimeout time.Duration `koanf:"read_timeout"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9464").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// StatusConfig holds the server list (status phase) response values.
type StatusConfig struct {
	// MOTD is the description text shown in the client's server list.
	MOTD string `koanf:"motd"`

	// MaxPlayers is the advertised player capacity.
	MaxPlayers int `koanf:"max_players"`

	// Favicon is an optional data URL (data:image/png;base64,...) shown
	// as the server icon. Empty sends no icon.
	Favicon string `koanf:"favicon"`
}

// GameConfig holds the values encoded into the JoinGame packet.
type GameConfig struct {
	// Gamemode is the initial gamemode (0 survival, 1 creative, ...).
	Gamemode uint8 `koanf:"gamemode"`

	// Hardcore flags the world as hardcore.
	Hardcore bool `koanf:"hardcore"`

	// LevelType is the world generator name (e.g., "default", "flat").
	LevelType string `koanf:"level_type"`

	// ViewDistance is the render distance sent to the client (2-32).
	ViewDistance int `koanf:"view_distance"`

	// ReducedDebugInfo hides coordinates on the client's debug screen.
	ReducedDebugInfo bool `koanf:"reduced_debug_info"`

	// EnableRespawnScreen shows the respawn screen instead of instant
	// respawn.
	EnableRespawnScreen bool `koanf:"enable_respawn_screen"`
}

// AuthConfig holds the session authority client configuration.
type AuthConfig struct {
	// SessionServer is the base URL of the session authority.
	// Overridable for tests and mirrors.
	SessionServer string `koanf:"session_server"`

	// Timeout bounds the hasJoined HTTPS exchange.
	Timeout time.Duration `koanf:"timeout"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
// The game listener binds loopback on the protocol's registered port; the
// metrics endpoint listens on port 9464 of all interfaces.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr:        "127.0.0.1:25565",
			ReadTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Status: StatusConfig{
			MOTD:       "A CraftGate Server",
			MaxPlayers: 20,
		},
		Game: GameConfig{
			Gamemode:            0,
			Hardcore:            false,
			LevelType:           "default",
			ViewDistance:        10,
			ReducedDebugInfo:    false,
			EnableRespawnScreen: true,
		},
		Auth: AuthConfig{
			SessionServer: "https://sessionserver.mojang.com",
			Timeout:       15 * time.Second,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for CraftGate configuration.
// Variables are named CRAFTGATE_<section>_<key>, e.g., CRAFTGATE_LISTEN_ADDR.
const envPrefix = "CRAFTGATE_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (CRAFTGATE_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults. An empty path skips
// the file layer and loads defaults plus environment only.
//
// Environment variable mapping:
//
//	CRAFTGATE_LISTEN_ADDR  -> listen.addr
//	CRAFTGATE_METRICS_ADDR -> metrics.addr
//	CRAFTGATE_LOG_LEVEL    -> log.level
//	CRAFTGATE_STATUS_MOTD  -> status.motd
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	// CRAFTGATE_LISTEN_ADDR -> listen.addr (strip prefix, lowercase, first _ -> .).
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper transforms CRAFTGATE_LISTEN_ADDR -> listen.addr.
// Strips the CRAFTGATE_ prefix, lowercases, and replaces the first _
// (the section separator) with ., so CRAFTGATE_STATUS_MAX_PLAYERS maps
// to status.max_players.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"listen.addr":                defaults.Listen.Addr,
		"listen.read_timeout":        defaults.Listen.ReadTimeout.String(),
		"metrics.addr":               defaults.Metrics.Addr,
		"metrics.path":               defaults.Metrics.Path,
		"log.level":                  defaults.Log.Level,
		"log.format":                 defaults.Log.Format,
		"status.motd":                defaults.Status.MOTD,
		"status.max_players":         defaults.Status.MaxPlayers,
		"status.favicon":             defaults.Status.Favicon,
		"game.gamemode":              defaults.Game.Gamemode,
		"game.hardcore":              defaults.Game.Hardcore,
		"game.level_type":            defaults.Game.LevelType,
		"game.view_distance":         defaults.Game.ViewDistance,
		"game.reduced_debug_info":    defaults.Game.ReducedDebugInfo,
		"game.enable_respawn_screen": defaults.Game.EnableRespawnScreen,
		"auth.session_server":        defaults.Auth.SessionServer,
		"auth.timeout":               defaults.Auth.Timeout.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidListenAddr indicates listen.addr is empty or unparsable.
	ErrInvalidListenAddr = errors.New("listen.addr must be a valid host:port")

	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrInvalidMaxPlayers indicates status.max_players is out of range.
	ErrInvalidMaxPlayers = errors.New("status.max_players must be between 0 and 255")

	// ErrInvalidViewDistance indicates game.view_distance is out of range.
	ErrInvalidViewDistance = errors.New("game.view_distance must be between 2 and 32")

	// ErrEmptySessionServer indicates auth.session_server is empty.
	ErrEmptySessionServer = errors.New("auth.session_server must not be empty")

	// ErrNegativeReadTimeout indicates listen.read_timeout is negative.
	ErrNegativeReadTimeout = errors.New("listen.read_timeout must be >= 0")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Listen.Addr == "" {
		return ErrInvalidListenAddr
	}
	if _, _, err := net.SplitHostPort(cfg.Listen.Addr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if cfg.Listen.ReadTimeout < 0 {
		return ErrNegativeReadTimeout
	}

	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	if cfg.Status.MaxPlayers < 0 || cfg.Status.MaxPlayers > 255 {
		return ErrInvalidMaxPlayers
	}

	if cfg.Game.ViewDistance < 2 || cfg.Game.ViewDistance > 32 {
		return ErrInvalidViewDistance
	}

	if cfg.Auth.SessionServer == "" {
		return ErrEmptySessionServer
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
