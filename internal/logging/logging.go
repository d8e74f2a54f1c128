package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where logs go and how much history is kept.
type Config struct {
	Level         string // minimum level: debug, info, warn, error
	FilePath      string // log file location
	MaxSizeMB     int    // rotation threshold in megabytes
	MaxFiles      int    // rotated generations kept on disk
	WriteToStderr bool   // tee output to stderr as well
}

// DefaultConfig is the standard setup: info level, 10 MB rotation,
// three kept generations, teed to stderr.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      3,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig with the level lowered to debug.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// destination builds the write target for the handler: the rotating log
// file, optionally teed to stderr for interactive runs. The *RotatingWriter
// is returned separately so the caller can flush and close it.
func (cfg Config) destination() (io.Writer, *RotatingWriter, error) {
	file, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}
	if cfg.WriteToStderr {
		return io.MultiWriter(file, os.Stderr), file, nil
	}
	return file, file, nil
}

// Setup initializes file-based logging and returns the configured logger
// and a cleanup function that flushes and closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	out, file, err := cfg.destination()
	if err != nil {
		return nil, nil, err
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	cleanup := func() {
		_ = file.Sync()
		_ = file.Close()
	}

	return slog.New(handler), cleanup, nil
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// parseLevel maps a level name to slog.Level; unknown names fall back to info.
func parseLevel(level string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// LevelFromString converts string level to slog.Level (exported for use by the log viewer).
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
