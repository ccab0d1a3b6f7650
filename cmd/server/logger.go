package main

import (
	"log/slog"
	"os"

	"github.com/gagliardetto/solana-go/rpc"
)

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// commitmentFromConfig maps the configured commitment string to the RPC type.
// Config validation already restricts the value.
func commitmentFromConfig(commitment string) rpc.CommitmentType {
	if commitment == "finalized" {
		return rpc.CommitmentFinalized
	}
	return rpc.CommitmentConfirmed
}
