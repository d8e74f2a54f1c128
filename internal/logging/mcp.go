package logging

import "log/slog"

// SetupMCPMode initializes logging for MCP server mode and installs the
// logger as the process default. Stdout carries JSON-RPC exclusively and a
// stray diagnostic on stdout or stderr corrupts the stream, so MCP mode
// writes to the rotating file only. The level is pinned to debug: the log
// file is the sole window into a headless server.
func SetupMCPMode() (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("MCP mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
