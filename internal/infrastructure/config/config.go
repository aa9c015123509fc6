package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Terminal  TerminalConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"127.0.0.1"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// Shared cap on shell spawns and stream upgrades across all clients
	SpawnPerSecond int `envconfig:"RATE_LIMIT_SPAWN_RPS" default:"20"`
	SpawnBurst     int `envconfig:"RATE_LIMIT_SPAWN_BURST" default:"40"`
}

// TerminalConfig holds PTY session manager configuration.
type TerminalConfig struct {
	Shell           string        `envconfig:"TERM_SHELL"`
	ShellArgs       []string      `envconfig:"TERM_SHELL_ARGS"`
	WorkDir         string        `envconfig:"TERM_WORKDIR"`
	ChunkSize       int           `envconfig:"TERM_CHUNK_SIZE" default:"1024"`
	EventBuffer     int           `envconfig:"TERM_EVENT_BUFFER" default:"256"`
	ScrollbackBytes int           `envconfig:"TERM_SCROLLBACK_BYTES" default:"262144"`
	KillGrace       time.Duration `envconfig:"TERM_KILL_GRACE" default:"2s"`
	StrictIDs       bool          `envconfig:"TERM_STRICT_IDS" default:"false"`
	Shards          int           `envconfig:"TERM_SHARDS" default:"32"`
	SpawnBreaker    bool          `envconfig:"TERM_SPAWN_BREAKER" default:"true"`
	ProfileFile     string        `envconfig:"TERM_PROFILE_FILE"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "127.0.0.1",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
			SpawnPerSecond:    20,
			SpawnBurst:        40,
		},
		Terminal: TerminalConfig{
			ChunkSize:       1024,
			EventBuffer:     256,
			ScrollbackBytes: 256 * 1024,
			KillGrace:       2 * time.Second,
			Shards:          32,
			SpawnBreaker:    true,
		},
	}
}

// Validate rejects settings the session manager cannot run with.
func (c *Config) Validate() error {
	t := c.Terminal
	switch {
	case t.ChunkSize <= 0:
		return errors.New("TERM_CHUNK_SIZE must be positive")
	case t.EventBuffer <= 0:
		return errors.New("TERM_EVENT_BUFFER must be positive")
	case t.ScrollbackBytes < 0:
		return errors.New("TERM_SCROLLBACK_BYTES must not be negative")
	case t.KillGrace <= 0:
		return errors.New("TERM_KILL_GRACE must be positive")
	case t.Shards <= 0:
		return errors.New("TERM_SHARDS must be positive")
	}
	return nil
}

// ResolveShell returns the configured shell, falling back to $SHELL and
// then /bin/sh.
func (t TerminalConfig) ResolveShell() string {
	if t.Shell != "" {
		return t.Shell
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// ResolveWorkDir returns the configured working directory, falling back to
// $HOME. An empty result means "inherit the server's directory".
func (t TerminalConfig) ResolveWorkDir() string {
	if t.WorkDir != "" {
		return t.WorkDir
	}
	return os.Getenv("HOME")
}
