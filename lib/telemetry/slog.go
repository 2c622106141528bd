package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the default text handler used by the exporter
// binaries. debug enables the DEBUG level, which the scrape loop logs at
// for every card visit.
func InitSlog(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
