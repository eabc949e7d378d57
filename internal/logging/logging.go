// Package logging provides categorized logging for crambench.
// Every subsystem logs through a named child of one shared zap logger so a
// single run produces one interleaved, level-filtered stream (console plus an
// optional per-run log file).
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log categories, one per subsystem.
const (
	CategoryHarness    = "harness"
	CategoryMemory     = "memory"
	CategoryRetry      = "retry"
	CategoryCheckpoint = "checkpoint"
	CategoryScoring    = "scoring"
	CategoryRetrieval  = "retrieval"
	CategoryLLM        = "llm"
	CategoryStore      = "store"
	CategoryCLI        = "cli"
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Init builds the shared logger. level is one of debug/info/warn/error;
// logFile, when non-empty, receives a JSON copy of everything.
// Before Init all logging is a no-op, which keeps library use in tests quiet.
func Init(level, logFile string) error {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info", "":
		lvl = zapcore.InfoLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	root = logger
	mu.Unlock()
	return nil
}

// For returns the sugared logger for a category.
func For(category string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(category).Sugar()
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
