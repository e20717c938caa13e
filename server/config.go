package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server settings. Environment variables supply defaults and
// command-line flags override them.
type Config struct {
	Addr         string        `env:"ARENA_ADDR" envDefault:":3000"`
	ClientDir    string        `env:"ARENA_CLIENT_DIR" envDefault:"../public"`
	DBPath       string        `env:"ARENA_DB_PATH" envDefault:"arena.db"`
	TickInterval time.Duration `env:"ARENA_TICK_INTERVAL" envDefault:"15ms"`
	MapWidth     float64       `env:"ARENA_MAP_WIDTH" envDefault:"1920"`
	MapHeight    float64       `env:"ARENA_MAP_HEIGHT" envDefault:"1080"`
	MaxMoveDelta float64       `env:"ARENA_MAX_MOVE_DELTA" envDefault:"25"`

	MaxConnsPerIP     int `env:"ARENA_MAX_CONNS_PER_IP" envDefault:"5"`
	MaxTotalConns     int `env:"ARENA_MAX_TOTAL_CONNS" envDefault:"1000"`
	MaxMessagesPerSec int `env:"ARENA_MAX_MESSAGES_PER_SEC" envDefault:"200"`

	LogLevel  string `env:"ARENA_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ARENA_LOG_FORMAT" envDefault:"text"`
}

// LoadConfig parses the environment and then args
func LoadConfig(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("arena-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.ClientDir, "client", cfg.ClientDir, "path to static client files")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite path for match results (empty disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}
	if !finite(c.MapWidth, c.MapHeight) || c.MapWidth <= 4*spawnPadding || c.MapHeight <= 4*spawnPadding {
		errs = append(errs, fmt.Errorf("map must be larger than %gx%g", 4*spawnPadding, 4*spawnPadding))
	}
	if !finite(c.MaxMoveDelta) || c.MaxMoveDelta <= 0 {
		errs = append(errs, errors.New("max move delta must be positive"))
	}
	if c.MaxConnsPerIP <= 0 || c.MaxTotalConns <= 0 || c.MaxMessagesPerSec <= 0 {
		errs = append(errs, errors.New("connection limits must be positive"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RoomOptions derives the per-room settings
func (c Config) RoomOptions() RoomOptions {
	return RoomOptions{
		Width:        c.MapWidth,
		Height:       c.MapHeight,
		MaxMoveDelta: c.MaxMoveDelta,
	}
}

// setupLogger builds the process logger and installs it as the default
func setupLogger(level, format string) *slog.Logger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}
