package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	defaultListenAddr    = ":8080"
	defaultDBPath        = "taskgate.db"
	defaultWorkerLimit   = 0 // 0 means sized from GOMAXPROCS
	defaultPruneEvery    = time.Minute
	defaultPruneRetain   = 10 * time.Minute
	defaultAwaitDeadline = 30 * time.Second

	envListenAddr    = "TASKGATE_LISTEN_ADDR"
	envDBPath        = "TASKGATE_DB_PATH"
	envLogLevel      = "TASKGATE_LOG_LEVEL"
	envLogFormat     = "TASKGATE_LOG_FORMAT"
	envWorkerLimit   = "TASKGATE_WORKER_LIMIT"
	envPruneEvery    = "TASKGATE_PRUNE_INTERVAL"
	envPruneRetain   = "TASKGATE_PRUNE_RETENTION"
	envAwaitDeadline = "TASKGATE_AWAIT_DEADLINE"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level
	LogFormat  string

	// WorkerLimit caps concurrently running tasks; 0 leaves the engine's
	// default in place.
	WorkerLimit int

	// PruneEvery is how often terminal tasks are swept from memory;
	// PruneRetain is how long they stay queryable in memory after finishing.
	PruneEvery  time.Duration
	PruneRetain time.Duration

	// AwaitDeadline caps how long an HTTP await may block when the request
	// itself does not carry a budget.
	AwaitDeadline time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:    defaultListenAddr,
		DBPath:        defaultDBPath,
		LogLevel:      slog.LevelInfo,
		LogFormat:     "json",
		WorkerLimit:   defaultWorkerLimit,
		PruneEvery:    defaultPruneEvery,
		PruneRetain:   defaultPruneRetain,
		AwaitDeadline: defaultAwaitDeadline,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envLogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv(envWorkerLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerLimit = n
		}
	}
	if v := os.Getenv(envPruneEvery); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PruneEvery = d
		}
	}
	if v := os.Getenv(envPruneRetain); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.PruneRetain = d
		}
	}
	if v := os.Getenv(envAwaitDeadline); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AwaitDeadline = d
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// NewLogger creates a structured logger writing to w at the configured level.
// Format "text" gets a colorized development handler; anything else is JSON.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if format == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
