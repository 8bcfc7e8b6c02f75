package main

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

func newLogger(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true})
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

// fileLogger logs to path so a full-screen TUI keeps the terminal. An empty
// path discards log output.
func fileLogger(path, level string) (*log.Logger, func(), error) {
	if path == "" {
		return log.NewWithOptions(io.Discard, log.Options{}), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return newLogger(f, level), func() { _ = f.Close() }, nil
}
