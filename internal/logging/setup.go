// Package logging configures slog handlers backed by charmbracelet/log.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// NewHandler builds a text slog handler writing to the provided writer at the
// given level. A nil writer defaults to stderr.
func NewHandler(level string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stderr
	}

	lvl := log.InfoLevel
	reportTimestamp := false
	switch strings.ToLower(level) {
	case "debug":
		lvl = log.DebugLevel
		reportTimestamp = true
	case "info":
		lvl = log.InfoLevel
	case "warn", "warning":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	}

	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: reportTimestamp,
		Level:           lvl,
	})
}

// NewLogger returns a slog logger for the named component.
func NewLogger(level, component string) *slog.Logger {
	logger := slog.New(NewHandler(level, nil))
	if component != "" {
		logger = logger.With("component", component)
	}
	return logger
}
