// Package logging provides structured logging for the outages pipeline.
//
// It wraps log/slog to give every component a consistent logger. Output goes
// to stdout, optionally teed to a log file, in text or JSON format.
//
// Usage:
//
//	logging.Init(slog.LevelInfo, false)
//	log := logging.Component("connector")
//	log.Info("page fetched", "offset", 5000)
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	initWriter(os.Stdout, level, jsonFormat)
}

// InitWithFile initializes the global logger teeing output to a file in
// addition to stdout. mode "a" appends; anything else truncates.
func InitWithFile(level slog.Level, jsonFormat bool, path, mode string) error {
	flags := os.O_CREATE | os.O_WRONLY
	if mode == "a" {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}

	initWriter(io.MultiWriter(os.Stdout, f), level, jsonFormat)
	return nil
}

func initWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
func Component(name string) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With("component", name)
}

// With returns a new logger with additional attributes.
func With(args ...any) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With(args...)
}
