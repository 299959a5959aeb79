// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package server

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// setupLogger installs the process-wide slog logger that all request and
// workflow events go through. Text output is colorized via tint for local
// development, JSON is for aggregated production logs.
func setupLogger(level, format string) {
	slog.SetDefault(slog.New(newLogHandler(level, format)))
}

func newLogHandler(level, format string) slog.Handler {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	if format == "json" {
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return tint.NewHandler(os.Stdout, &tint.Options{Level: logLevel})
}
