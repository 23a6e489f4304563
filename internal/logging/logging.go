package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"flowmic/internal/config"
)

// FileName is the rotating log file created inside the configured log dir.
const FileName = "flowmic.log"

// New builds the process logger. Output always goes to console; when a log
// dir is configured it is also written to a rotating file. The returned
// closer releases that file and is safe to call when none was opened.
func New(cfg config.LogConfig, console io.Writer) (*slog.Logger, io.Closer) {
	var (
		writer io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if cfg.Dir != "" {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, FileName),
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		writer = io.MultiWriter(console, rotator)
		closer = rotator
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(writer, opts)), closer
	}
	return slog.New(slog.NewTextHandler(writer, opts)), closer
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
